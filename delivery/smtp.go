package delivery

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"
	"io"
	"sync"
	texttemplate "text/template"
	"time"

	"gopkg.in/gomail.v2"
)

// SMTPConfig holds the mail relay settings.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	Subject  string
}

type mailDialer interface {
	DialAndSend(m ...*gomail.Message) error
}

// SMTPSender mails codes through an SMTP relay. Each Send dials a fresh
// connection.
type SMTPSender struct {
	dialer  mailDialer
	from    string
	subject string
	now     func() time.Time
}

// NewSMTPSender returns a Sender that relays through the configured SMTP server.
func NewSMTPSender(cfg SMTPConfig) (*SMTPSender, error) {
	if cfg.Host == "" || cfg.Port <= 0 {
		return nil, errors.New("delivery: smtp host and port required")
	}
	if cfg.From == "" {
		return nil, errors.New("delivery: smtp from address required")
	}
	return newSMTPSender(gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password), cfg), nil
}

func newSMTPSender(d mailDialer, cfg SMTPConfig) *SMTPSender {
	subject := cfg.Subject
	if subject == "" {
		subject = "Your sign-in code"
	}
	return &SMTPSender{dialer: d, from: cfg.From, subject: subject, now: time.Now}
}

func (s *SMTPSender) Send(ctx context.Context, msg Message) error {
	if msg.Recipient == "" {
		return ErrNoRecipient
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	m, err := s.compose(msg)
	if err != nil {
		return err
	}
	if err := s.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("delivery: send code email: %w", err)
	}
	return nil
}

func (s *SMTPSender) compose(msg Message) (*gomail.Message, error) {
	view := messageView{
		Message: msg,
		Minutes: minutesLeft(msg.ExpiresAt, s.now()),
	}

	var text, html bytes.Buffer
	if err := textBody.Execute(&text, view); err != nil {
		return nil, fmt.Errorf("delivery: render text body: %w", err)
	}
	if err := htmlBody.Execute(&html, view); err != nil {
		return nil, fmt.Errorf("delivery: render html body: %w", err)
	}

	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", msg.Recipient)
	m.SetHeader("Subject", s.subject)
	m.SetBody("text/plain", text.String())
	m.AddAlternative("text/html", html.String())
	return m, nil
}

type messageView struct {
	Message
	Minutes int
}

func minutesLeft(expiresAt, now time.Time) int {
	d := expiresAt.Sub(now)
	if d <= 0 {
		return 0
	}
	return int((d + time.Minute - 1) / time.Minute)
}

var (
	textBody = texttemplate.Must(texttemplate.New("text").Parse(
		"Your sign-in code is {{.ShortCode}}.\n\n" +
			"Or open this link: {{.Link}}\n\n" +
			"The code expires in {{.Minutes}} minutes. If you did not ask for it, ignore this email.\n"))

	htmlBody = template.Must(template.New("html").Parse(`
		<h3>Your sign-in code</h3>
		<p style="font-size:24px;letter-spacing:4px"><strong>{{.ShortCode}}</strong></p>
		<p>Or <a href="{{.Link}}">sign in with one click</a>.</p>
		<p>The code expires in {{.Minutes}} minutes. If you did not ask for it, ignore this email.</p>
	`))
)

// WriterSender prints messages, one block per send. Use it only for local
// development: it writes the plaintext code.
type WriterSender struct {
	mu sync.Mutex
	w  io.Writer
}

// NewWriterSender returns a Sender that prints messages to w.
func NewWriterSender(w io.Writer) *WriterSender {
	return &WriterSender{w: w}
}

func (s *WriterSender) Send(_ context.Context, msg Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := fmt.Fprintf(s.w, "to=%s code=%s link=%s expires=%s\n",
		msg.Recipient, msg.ShortCode, msg.Link, msg.ExpiresAt.UTC().Format(time.RFC3339))
	return err
}
