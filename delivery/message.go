package delivery

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"time"

	goOTC "github.com/MrEthical07/goOTC"
)

var (
	ErrInvalidBaseURL = errors.New("delivery: invalid link base URL")
	ErrNoRecipient    = errors.New("delivery: empty recipient")
)

// LinkParam is the query parameter carrying the long code.
const LinkParam = "code"

// Message is everything a sender needs to deliver one code.
type Message struct {
	Recipient string
	ShortCode string
	Link      string
	ExpiresAt time.Time
}

// Sender delivers a message. Implementations must be safe for concurrent use.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// SenderFunc adapts a function to [Sender].
type SenderFunc func(ctx context.Context, msg Message) error

func (f SenderFunc) Send(ctx context.Context, msg Message) error { return f(ctx, msg) }

// BuildLink appends the long code to base as ?code=. Existing query
// parameters on base are kept.
func BuildLink(base, longCode string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(base))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "", ErrInvalidBaseURL
	}
	q := u.Query()
	q.Set(LinkParam, longCode)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// NewMessage turns an issued code into a deliverable message.
func NewMessage(code goOTC.IssuedCode, linkBase string) (Message, error) {
	if strings.TrimSpace(code.Recipient) == "" {
		return Message{}, ErrNoRecipient
	}
	link, err := BuildLink(linkBase, code.LongCode)
	if err != nil {
		return Message{}, err
	}
	return Message{
		Recipient: code.Recipient,
		ShortCode: code.ShortCode,
		Link:      link,
		ExpiresAt: code.ExpiresAt,
	}, nil
}

// Deliver builds the message for code and sends it.
func Deliver(ctx context.Context, sender Sender, code goOTC.IssuedCode, linkBase string) error {
	msg, err := NewMessage(code, linkBase)
	if err != nil {
		return err
	}
	return sender.Send(ctx, msg)
}
