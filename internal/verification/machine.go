package verification

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/redmonkez12/nonprofit-portal/internal/logging"
)

// Receipt is what a caller learns after a code was sent.
type Receipt struct {
	SubjectID uuid.UUID
	ExpiresAt time.Time
	Created   bool
}

// Machine runs two-step verification cycles for one Flow.
//
// Concurrent StartCycle calls for the same identity race: the last write wins
// and only the code it stored is accepted.
type Machine[P any] struct {
	flow     Flow[P]
	repo     Repository[P]
	notifier Notifier
	codes    CodeIssuer
	logger   *logging.Logger
	tel      *instruments
}

func NewMachine[P any](flow Flow[P], repo Repository[P], notifier Notifier, codes CodeIssuer, logger *logging.Logger) *Machine[P] {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Machine[P]{
		flow:     flow,
		repo:     repo,
		notifier: notifier,
		codes:    codes,
		logger:   logger.WithFields(map[string]any{"flow": flow.Name}),
		tel:      newInstruments(),
	}
}

// Flow returns the configuration the machine runs.
func (m *Machine[P]) Flow() Flow[P] { return m.flow }

// StartCycle issues a fresh code for identity, replacing any outstanding one,
// persists its digest and sends the code. When delivery fails the subject is
// rolled back: a subject created by this call is deleted, an existing one
// keeps no pending code.
func (m *Machine[P]) StartCycle(ctx context.Context, identity string, payload P) (_ *Receipt, err error) {
	ctx, span := m.tel.start(ctx, m.flow.Name, "start")
	defer func() { m.tel.end(ctx, span, m.flow.Name, "start", err) }()

	identity = NormalizeIdentity(identity)
	if identity == "" {
		return nil, InvalidInput("identity is required")
	}

	subject, err := m.repo.FindByIdentity(ctx, identity)
	created := false
	switch {
	case errors.Is(err, ErrNoRecord):
		if !m.flow.CreateOnDemand {
			return nil, ErrNotFound
		}
		subject = &Subject[P]{
			ID:       uuid.New(),
			Identity: identity,
			Email:    identity,
			Payload:  payload,
		}
		created = true
	case err != nil:
		return nil, m.unknown(ctx, "find subject", err)
	default:
		if err := m.restart(subject, payload); err != nil {
			return nil, err
		}
	}

	code, err := m.codes.GenerateCode()
	if err != nil {
		return nil, m.unknown(ctx, "generate code", err)
	}
	pending := &PendingCode{
		CodeHash:  HashCode(code),
		ExpiresAt: m.codes.ExpiryFromNow(),
	}
	subject.Pending = pending

	if created {
		var stored *Subject[P]
		stored, err = m.repo.Create(ctx, subject)
		if errors.Is(err, ErrRecordExists) {
			// a concurrent StartCycle created the subject first; this
			// cycle overwrites it like any restart would
			created = false
			stored, err = m.repo.FindByIdentity(ctx, identity)
			if err != nil {
				return nil, m.unknown(ctx, "reload subject", err)
			}
			if err := m.restart(stored, payload); err != nil {
				return nil, err
			}
			stored.Pending = pending
			stored, err = m.repo.Save(ctx, stored)
		}
		subject = stored
	} else {
		subject, err = m.repo.Save(ctx, subject)
	}
	if err != nil {
		return nil, m.unknown(ctx, "persist subject", err)
	}

	msg := m.flow.message(subject)
	msg.Code = code
	if err := m.notifier.Send(ctx, m.flow.CodeTemplate, msg); err != nil {
		m.logFor(ctx).Warn("verification code delivery failed",
			"subject_id", subject.ID,
			"template", m.flow.CodeTemplate,
			"error", err,
		)
		m.rollback(ctx, subject, created)
		return nil, fmt.Errorf("send %s: %w", m.flow.CodeTemplate, ErrDeliveryFailed)
	}

	return &Receipt{
		SubjectID: subject.ID,
		ExpiresAt: subject.Pending.ExpiresAt,
		Created:   created,
	}, nil
}

// SubmitCode checks code against the pending cycle of identity. A wrong code
// leaves the cycle untouched; an expired one ends it. On success the cycle is
// cleared, the subject is marked verified when the flow says so, and a
// confirmation is sent on a best-effort basis.
func (m *Machine[P]) SubmitCode(ctx context.Context, identity, code string) (_ *Subject[P], err error) {
	ctx, span := m.tel.start(ctx, m.flow.Name, "submit")
	defer func() { m.tel.end(ctx, span, m.flow.Name, "submit", err) }()

	identity = NormalizeIdentity(identity)
	code = strings.TrimSpace(code)
	if identity == "" || code == "" {
		return nil, InvalidInput("identity and code are required")
	}

	subject, err := m.repo.FindByIdentity(ctx, identity)
	if errors.Is(err, ErrNoRecord) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, m.unknown(ctx, "find subject", err)
	}

	if subject.Pending == nil {
		return nil, ErrNoPendingCycle
	}
	if !codeMatches(code, subject.Pending.CodeHash) {
		return nil, ErrInvalidCode
	}

	if !m.codes.Now().Before(subject.Pending.ExpiresAt) {
		subject.Pending = nil
		if _, err := m.repo.Save(ctx, subject); err != nil {
			return nil, m.unknown(ctx, "clear expired code", err)
		}
		return nil, ErrExpired
	}

	subject.Pending = nil
	if m.flow.MarkVerified {
		subject.Verified = true
	}
	subject, err = m.repo.Save(ctx, subject)
	if err != nil {
		return nil, m.unknown(ctx, "save verified subject", err)
	}

	if m.flow.ConfirmationTemplate != "" {
		if err := m.notifier.Send(ctx, m.flow.ConfirmationTemplate, m.flow.message(subject)); err != nil {
			m.logFor(ctx).Warn("confirmation delivery failed",
				"subject_id", subject.ID,
				"template", m.flow.ConfirmationTemplate,
				"error", err,
			)
		}
	}

	return subject, nil
}

// restart applies the flow's rules for starting a new cycle on an existing
// subject.
func (m *Machine[P]) restart(subject *Subject[P], payload P) error {
	if m.flow.Guard != nil {
		if err := m.flow.Guard(subject); err != nil {
			return err
		}
	}
	if m.flow.ReplacePayload {
		subject.Payload = payload
	}
	if m.flow.ResetVerified {
		subject.Verified = false
	}
	return nil
}

func (m *Machine[P]) rollback(ctx context.Context, subject *Subject[P], created bool) {
	// the caller's context may already be cancelled; compensation must still run
	ctx = context.WithoutCancel(ctx)

	var err error
	if created {
		err = m.repo.Delete(ctx, subject.ID)
	} else {
		subject.Pending = nil
		_, err = m.repo.Save(ctx, subject)
	}
	if err != nil {
		m.logFor(ctx).Error("rollback after failed delivery",
			"subject_id", subject.ID,
			"created", created,
			"error", err,
		)
	}
}

func (m *Machine[P]) unknown(ctx context.Context, op string, cause error) error {
	m.logFor(ctx).Error("verification store failure", "op", op, "error", cause)
	return fmt.Errorf("%s: %w", op, ErrUnknown)
}

// logFor prefers the request-scoped logger so lines carry the request id.
func (m *Machine[P]) logFor(ctx context.Context) *logging.Logger {
	if l, ok := ctx.Value(logging.LoggerContextKey).(*logging.Logger); ok {
		return l.WithFields(map[string]any{"flow": m.flow.Name})
	}
	return m.logger
}
