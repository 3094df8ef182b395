package verificationtest

import (
	"context"
	"errors"
	"sync"

	"github.com/redmonkez12/nonprofit-portal/internal/verification"
)

var ErrDeliveryRefused = errors.New("smtp: recipient refused")

// Sent is one recorded Notifier.Send call.
type Sent struct {
	Template string
	Message  verification.Message
}

// Notifier records every message. Templates listed in Fail are refused with
// ErrDeliveryRefused and are not recorded.
type Notifier struct {
	mu   sync.Mutex
	sent []Sent
	Fail map[string]bool
}

func NewNotifier() *Notifier {
	return &Notifier{Fail: make(map[string]bool)}
}

func (n *Notifier) Send(_ context.Context, template string, msg verification.Message) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.Fail[template] {
		return ErrDeliveryRefused
	}
	n.sent = append(n.sent, Sent{Template: template, Message: msg})
	return nil
}

// FailTemplate makes subsequent sends of template fail.
func (n *Notifier) FailTemplate(template string, fail bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.Fail[template] = fail
}

func (n *Notifier) Sent() []Sent {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]Sent, len(n.sent))
	copy(out, n.sent)
	return out
}

// LastCode returns the code of the newest message addressed to "to".
func (n *Notifier) LastCode(to string) string {
	n.mu.Lock()
	defer n.mu.Unlock()
	for i := len(n.sent) - 1; i >= 0; i-- {
		if n.sent[i].Message.To == to && n.sent[i].Message.Code != "" {
			return n.sent[i].Message.Code
		}
	}
	return ""
}

// Count returns how many messages used template.
func (n *Notifier) Count(template string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	c := 0
	for _, s := range n.sent {
		if s.Template == template {
			c++
		}
	}
	return c
}
