package mailer

import (
	"context"

	auth "github.com/goliatone/go-user-auth"
)

// LogMailer writes emails to the logger instead of delivering them. Meant
// for local development, the body carries live tokens.
type LogMailer struct {
	logger auth.Logger
}

var _ auth.Mailer = (*LogMailer)(nil)

func NewLogMailer(logger auth.Logger) *LogMailer {
	return &LogMailer{logger: logger}
}

func (l *LogMailer) SendEmail(ctx context.Context, to, subject, html string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	l.logger.Info("email", "to", to, "subject", subject)
	l.logger.Debug("email body", "to", to, "html", html)
	return nil
}
