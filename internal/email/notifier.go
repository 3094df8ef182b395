package email

import (
	"context"
	"fmt"

	"gopkg.in/gomail.v2"

	"github.com/redmonkez12/nonprofit-portal/internal/config"
	"github.com/redmonkez12/nonprofit-portal/internal/logging"
	"github.com/redmonkez12/nonprofit-portal/internal/verification"
)

// Sender hands finished messages to a mail server. *gomail.Dialer satisfies it.
type Sender interface {
	DialAndSend(m ...*gomail.Message) error
}

// SMTPNotifier delivers catalog templates over SMTP.
type SMTPNotifier struct {
	sender    Sender
	from      string
	templates *Templates
	logger    *logging.Logger
}

func NewNotifier(sender Sender, from string, templates *Templates, logger *logging.Logger) *SMTPNotifier {
	return &SMTPNotifier{
		sender:    sender,
		from:      from,
		templates: templates,
		logger:    logger,
	}
}

// NewSMTPNotifier dials the configured SMTP server for every message.
func NewSMTPNotifier(cfg config.EmailConfig, templates *Templates, logger *logging.Logger) *SMTPNotifier {
	dialer := gomail.NewDialer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPassword)
	return NewNotifier(dialer, cfg.FromAddress, templates, logger)
}

// Send renders the template and delivers it. The returned error only says
// whether the message reached the mail server.
func (n *SMTPNotifier) Send(ctx context.Context, template string, msg verification.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	rendered, err := n.templates.Render(template, msg)
	if err != nil {
		return err
	}

	m := gomail.NewMessage()
	m.SetHeader("From", n.from)
	m.SetHeader("To", rendered.To)
	m.SetHeader("Subject", rendered.Subject)
	m.SetBody("text/html", rendered.HTML)

	if err := n.sender.DialAndSend(m); err != nil {
		return fmt.Errorf("send %s email: %w", template, err)
	}

	n.logger.Info("email sent", "template", template, "to", rendered.To)
	return nil
}

var _ verification.Notifier = (*SMTPNotifier)(nil)
