package mail

import (
	"context"
	"log/slog"
)

// Message is a rendered HTML email.
type Message struct {
	To      string
	Subject string
	HTML    string
}

type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// NoOpSender logs messages instead of delivering them.
type NoOpSender struct{}

func (s *NoOpSender) Send(ctx context.Context, msg Message) error {
	slog.Debug("would send email", "component", "mail", "to", msg.To, "subject", msg.Subject, "bytes", len(msg.HTML))
	return nil
}
