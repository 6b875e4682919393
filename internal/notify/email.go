package notify

import (
	"context"

	"github.com/gmsas95/medremind/internal/config"
	"go.uber.org/zap"
	"gopkg.in/gomail.v2"
)

// SMTPClient sends HTML email over SMTP
type SMTPClient struct {
	dialer *gomail.Dialer
	from   string
	logger *zap.Logger
}

// NewSMTPClient creates an SMTP email client
func NewSMTPClient(cfg config.EmailConfig, logger *zap.Logger) *SMTPClient {
	return &SMTPClient{
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
		from:   cfg.From,
		logger: logger,
	}
}

// Send delivers an HTML email. Dial-and-send runs in a goroutine so the
// caller's context deadline is honored even though gomail itself does
// not take a context.
func (c *SMTPClient) Send(ctx context.Context, to, subject, htmlBody string) error {
	msg := gomail.NewMessage()
	msg.SetHeader("From", c.from)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/html", htmlBody)

	done := make(chan error, 1)
	go func() {
		done <- c.dialer.DialAndSend(msg)
	}()

	select {
	case err := <-done:
		if err != nil {
			return err
		}
		c.logger.Debug("email sent", zap.String("to", to), zap.String("subject", subject))
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
