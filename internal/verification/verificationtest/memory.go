// Package verificationtest provides in-memory collaborators for exercising
// verification machines without a database or mail server.
package verificationtest

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/redmonkez12/nonprofit-portal/internal/verification"
)

// Repository keeps subjects in a map keyed by identity. Returned subjects are
// copies, so a caller's mutation is invisible until it is saved.
type Repository[P any] struct {
	mu       sync.Mutex
	subjects map[string]*verification.Subject[P]

	// Errors injected into the matching method when set.
	FindErr   error
	CreateErr error
	SaveErr   error
	DeleteErr error

	// BeforeCreate runs at the start of Create, outside the lock. Tests use it
	// to store a competing subject between a lookup and an insert.
	BeforeCreate func()

	Deletes int
}

func NewRepository[P any]() *Repository[P] {
	return &Repository[P]{subjects: make(map[string]*verification.Subject[P])}
}

func (r *Repository[P]) FindByIdentity(_ context.Context, identity string) (*verification.Subject[P], error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.FindErr != nil {
		return nil, r.FindErr
	}
	s, ok := r.subjects[identity]
	if !ok {
		return nil, verification.ErrNoRecord
	}
	return clone(s), nil
}

func (r *Repository[P]) Create(_ context.Context, s *verification.Subject[P]) (*verification.Subject[P], error) {
	if r.BeforeCreate != nil {
		r.BeforeCreate()
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.CreateErr != nil {
		return nil, r.CreateErr
	}
	if _, ok := r.subjects[s.Identity]; ok {
		return nil, verification.ErrRecordExists
	}
	now := time.Now()
	stored := clone(s)
	stored.CreatedAt, stored.UpdatedAt = now, now
	r.subjects[stored.Identity] = stored
	return clone(stored), nil
}

func (r *Repository[P]) Save(_ context.Context, s *verification.Subject[P]) (*verification.Subject[P], error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.SaveErr != nil {
		return nil, r.SaveErr
	}
	if _, ok := r.subjects[s.Identity]; !ok {
		return nil, verification.ErrNoRecord
	}
	stored := clone(s)
	stored.UpdatedAt = time.Now()
	r.subjects[stored.Identity] = stored
	return clone(stored), nil
}

func (r *Repository[P]) Delete(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.DeleteErr != nil {
		return r.DeleteErr
	}
	for identity, s := range r.subjects {
		if s.ID == id {
			delete(r.subjects, identity)
			r.Deletes++
			return nil
		}
	}
	return verification.ErrNoRecord
}

// Put stores s directly, bypassing the machine.
func (r *Repository[P]) Put(s *verification.Subject[P]) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.subjects[s.Identity] = clone(s)
}

// Get returns a copy of the stored subject.
func (r *Repository[P]) Get(identity string) (*verification.Subject[P], bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.subjects[identity]
	if !ok {
		return nil, false
	}
	return clone(s), true
}

func (r *Repository[P]) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.subjects)
}

func clone[P any](s *verification.Subject[P]) *verification.Subject[P] {
	c := *s
	if s.Pending != nil {
		p := *s.Pending
		c.Pending = &p
	}
	return &c
}
