package verification

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
)

// PendingCode is the outstanding secret of a cycle. A subject carries at most
// one; a nil pointer means no cycle is in flight.
type PendingCode struct {
	CodeHash  string
	ExpiresAt time.Time
}

// Subject is anything that proves ownership of an email address by echoing a
// code: an account, an inquiry sender, a collaboration requester. P holds the
// data submitted alongside the request.
type Subject[P any] struct {
	ID        uuid.UUID
	Identity  string
	Email     string
	Name      string
	Payload   P
	Pending   *PendingCode
	Verified  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Repository persists subjects of one kind.
type Repository[P any] interface {
	// FindByIdentity returns ErrNoRecord when nothing matches.
	FindByIdentity(ctx context.Context, identity string) (*Subject[P], error)
	// Create returns ErrRecordExists when the identity is already taken.
	Create(ctx context.Context, s *Subject[P]) (*Subject[P], error)
	Save(ctx context.Context, s *Subject[P]) (*Subject[P], error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// Message is the data handed to a notification template.
type Message struct {
	To      string
	Name    string
	Code    string
	Subject string
	Body    string
}

// Notifier delivers templated messages. Send returns an error when the
// message could not be handed to the mail transport.
type Notifier interface {
	Send(ctx context.Context, template string, msg Message) error
}

// NormalizeIdentity trims and lowercases a lookup key.
func NormalizeIdentity(identity string) string {
	return strings.ToLower(strings.TrimSpace(identity))
}
