// Package delivery hands issued codes to the recipient.
//
// The engine never sends anything itself: callers issue a code, then pass
// the returned [goOTC.IssuedCode] to a [Sender]. [SMTPSender] mails the
// short code and the sign-in link through gomail; [WriterSender] prints the
// message for local development.
//
// # What this package must NOT do
//
//   - Persist or log plaintext codes outside the message it sends.
//   - Retry sends. A failed send is returned to the caller, who decides
//     whether to reissue.
package delivery
