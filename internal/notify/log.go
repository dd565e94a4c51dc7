package notify

import (
	"context"

	"github.com/nkiryanov/authkeeper/internal/logger"
)

// Mailer that only logs recipient and subject
// Used in development when no real delivery configured. Body is never logged cause it may carry secrets
type LogMailer struct {
	logger logger.Logger
}

func NewLogMailer(l logger.Logger) *LogMailer {
	return &LogMailer{logger: l}
}

func (m *LogMailer) Send(_ context.Context, msg Message) error {
	m.logger.Info("Email not delivered, log mailer in use", "to", msg.To, "subject", msg.Subject)
	return nil
}
