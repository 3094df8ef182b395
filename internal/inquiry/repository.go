package inquiry

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/redmonkez12/nonprofit-portal/internal/database"
	"github.com/redmonkez12/nonprofit-portal/internal/verification"
)

// Repository stores inquiry messages. There is at most one row per sender
// address; a new submission overwrites the previous one.
type Repository struct {
	db  bun.IDB
	now func() time.Time
}

func NewRepository(db bun.IDB) *Repository {
	return &Repository{db: db, now: time.Now}
}

func (r *Repository) FindByIdentity(ctx context.Context, identity string) (*verification.Subject[Payload], error) {
	row := new(database.InquiryMessage)
	err := r.db.NewSelect().
		Model(row).
		Where("im.email = ?", strings.ToLower(strings.TrimSpace(identity))).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, verification.ErrNoRecord
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get inquiry: %w", err)
	}

	return toSubject(row), nil
}

func (r *Repository) Create(ctx context.Context, s *verification.Subject[Payload]) (*verification.Subject[Payload], error) {
	now := r.now()
	row := fromSubject(s)
	row.CreatedAt = now
	row.UpdatedAt = now

	if _, err := r.db.NewInsert().Model(row).Returning("*").Exec(ctx); err != nil {
		if _, dup := database.UniqueViolation(err); dup {
			return nil, verification.ErrRecordExists
		}
		return nil, fmt.Errorf("failed to create inquiry: %w", err)
	}

	return toSubject(row), nil
}

func (r *Repository) Save(ctx context.Context, s *verification.Subject[Payload]) (*verification.Subject[Payload], error) {
	row := fromSubject(s)
	row.UpdatedAt = r.now()

	result, err := r.db.NewUpdate().
		Model(row).
		Column("name", "subject", "message", "verified", "code_hash", "code_expires_at", "updated_at").
		WherePK().
		Returning("*").
		Exec(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, verification.ErrNoRecord
	}
	if err != nil {
		return nil, fmt.Errorf("failed to save inquiry: %w", err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return nil, verification.ErrNoRecord
	}

	return toSubject(row), nil
}

func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.NewDelete().
		Model((*database.InquiryMessage)(nil)).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to delete inquiry: %w", err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return verification.ErrNoRecord
	}
	return nil
}

// ListVerified returns confirmed inquiries, most recently updated first.
func (r *Repository) ListVerified(ctx context.Context, limit, offset int) ([]Inquiry, error) {
	var rows []database.InquiryMessage
	err := r.db.NewSelect().
		Model(&rows).
		Where("im.verified = TRUE").
		Order("im.updated_at DESC").
		Limit(limit).
		Offset(offset).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list inquiries: %w", err)
	}

	out := make([]Inquiry, 0, len(rows))
	for i := range rows {
		out = append(out, toInquiry(&rows[i]))
	}
	return out, nil
}

func fromSubject(s *verification.Subject[Payload]) *database.InquiryMessage {
	row := &database.InquiryMessage{
		ID:       s.ID,
		Email:    s.Email,
		Name:     s.Payload.Name,
		Subject:  s.Payload.Subject,
		Message:  s.Payload.Message,
		Verified: s.Verified,
	}
	if s.Pending != nil {
		hash, expiresAt := s.Pending.CodeHash, s.Pending.ExpiresAt
		row.CodeHash = &hash
		row.CodeExpiresAt = &expiresAt
	}
	return row
}

func toSubject(row *database.InquiryMessage) *verification.Subject[Payload] {
	s := &verification.Subject[Payload]{
		ID:        row.ID,
		Identity:  row.Email,
		Email:     row.Email,
		Name:      row.Name,
		Payload:   Payload{Name: row.Name, Subject: row.Subject, Message: row.Message},
		Verified:  row.Verified,
		CreatedAt: row.CreatedAt,
		UpdatedAt: row.UpdatedAt,
	}
	if row.CodeHash != nil && row.CodeExpiresAt != nil {
		s.Pending = &verification.PendingCode{CodeHash: *row.CodeHash, ExpiresAt: *row.CodeExpiresAt}
	}
	return s
}

func toInquiry(row *database.InquiryMessage) Inquiry {
	return Inquiry{
		ID:        row.ID,
		Email:     row.Email,
		Name:      row.Name,
		Subject:   row.Subject,
		Message:   row.Message,
		Verified:  row.Verified,
		CreatedAt: row.CreatedAt,
		UpdatedAt: row.UpdatedAt,
	}
}

var _ verification.Repository[Payload] = (*Repository)(nil)
