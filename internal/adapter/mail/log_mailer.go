package mail

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"newspaper/internal/usecase/auth"
)

// LogMailer writes outgoing mail to the log instead of delivering it and
// keeps the messages in memory so they can be inspected.
type LogMailer struct {
	log  *zap.Logger
	from string

	mu     sync.Mutex
	outbox []auth.Email
}

// NewLogMailer creates a LogMailer sending as from.
func NewLogMailer(from string, log *zap.Logger) *LogMailer {
	return &LogMailer{log: log, from: from}
}

// Send implements auth.Mailer.
func (m *LogMailer) Send(ctx context.Context, msg auth.Email) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	m.outbox = append(m.outbox, msg)
	m.mu.Unlock()

	m.log.Info("email sent",
		zap.String("from", m.from),
		zap.String("to", msg.To),
		zap.String("subject", msg.Subject),
		zap.String("body", msg.Body),
	)
	return nil
}

// Outbox returns a copy of the messages sent so far.
func (m *LogMailer) Outbox() []auth.Email {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]auth.Email(nil), m.outbox...)
}
