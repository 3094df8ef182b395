package email

import (
	"context"

	"github.com/redmonkez12/nonprofit-portal/internal/logging"
	"github.com/redmonkez12/nonprofit-portal/internal/verification"
)

// LogNotifier prints emails instead of sending them. Development only: the
// code ends up in the log.
type LogNotifier struct {
	templates *Templates
	logger    *logging.Logger
}

func NewLogNotifier(templates *Templates, logger *logging.Logger) *LogNotifier {
	return &LogNotifier{templates: templates, logger: logger}
}

func (n *LogNotifier) Send(_ context.Context, template string, msg verification.Message) error {
	rendered, err := n.templates.Render(template, msg)
	if err != nil {
		return err
	}

	n.logger.Info("email not sent (development)",
		"template", template,
		"to", rendered.To,
		"subject", rendered.Subject,
		"code", msg.Code,
	)
	return nil
}

var _ verification.Notifier = (*LogNotifier)(nil)
