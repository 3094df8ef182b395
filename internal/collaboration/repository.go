package collaboration

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

// Repository stores collaboration requests, one per requester address.
type Repository struct {
	db  bun.IDB
	now func() time.Time
}

func NewRepository(db bun.IDB) *Repository {
	return &Repository{db: db, now: time.Now}
}

func (r *Repository) FindByIdentity(ctx context.Context, identity string) (*verification.Subject[Payload], error) {
	row := new(database.CollaborationRequest)
	err := r.db.NewSelect().
		Model(row).
		Where("cr.email = ?", strings.ToLower(strings.TrimSpace(identity))).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, verification.ErrNoRecord
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get collaboration request: %w", err)
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
		return nil, fmt.Errorf("failed to create collaboration request: %w", err)
	}

	return toSubject(row), nil
}

func (r *Repository) Save(ctx context.Context, s *verification.Subject[Payload]) (*verification.Subject[Payload], error) {
	row := fromSubject(s)
	row.UpdatedAt = r.now()

	result, err := r.db.NewUpdate().
		Model(row).
		Column("name", "organization", "website", "proposal", "verified", "code_hash", "code_expires_at", "updated_at").
		WherePK().
		Returning("*").
		Exec(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, verification.ErrNoRecord
	}
	if err != nil {
		return nil, fmt.Errorf("failed to save collaboration request: %w", err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return nil, verification.ErrNoRecord
	}

	return toSubject(row), nil
}

func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.NewDelete().
		Model((*database.CollaborationRequest)(nil)).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to delete collaboration request: %w", err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return verification.ErrNoRecord
	}
	return nil
}

// ListVerified returns confirmed requests, most recently updated first.
func (r *Repository) ListVerified(ctx context.Context, limit, offset int) ([]Request, error) {
	var rows []database.CollaborationRequest
	err := r.db.NewSelect().
		Model(&rows).
		Where("cr.verified = TRUE").
		Order("cr.updated_at DESC").
		Limit(limit).
		Offset(offset).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list collaboration requests: %w", err)
	}

	out := make([]Request, 0, len(rows))
	for i := range rows {
		out = append(out, toRequest(&rows[i]))
	}
	return out, nil
}

func fromSubject(s *verification.Subject[Payload]) *database.CollaborationRequest {
	row := &database.CollaborationRequest{
		ID:           s.ID,
		Email:        s.Email,
		Name:         s.Payload.Name,
		Organization: s.Payload.Organization,
		Website:      s.Payload.Website,
		Proposal:     s.Payload.Proposal,
		Verified:     s.Verified,
	}
	if s.Pending != nil {
		hash, expiresAt := s.Pending.CodeHash, s.Pending.ExpiresAt
		row.CodeHash = &hash
		row.CodeExpiresAt = &expiresAt
	}
	return row
}

func toSubject(row *database.CollaborationRequest) *verification.Subject[Payload] {
	s := &verification.Subject[Payload]{
		ID:       row.ID,
		Identity: row.Email,
		Email:    row.Email,
		Name:     row.Name,
		Payload: Payload{
			Name:         row.Name,
			Organization: row.Organization,
			Website:      row.Website,
			Proposal:     row.Proposal,
		},
		Verified:  row.Verified,
		CreatedAt: row.CreatedAt,
		UpdatedAt: row.UpdatedAt,
	}
	if row.CodeHash != nil && row.CodeExpiresAt != nil {
		s.Pending = &verification.PendingCode{CodeHash: *row.CodeHash, ExpiresAt: *row.CodeExpiresAt}
	}
	return s
}

func toRequest(row *database.CollaborationRequest) Request {
	return Request{
		ID:           row.ID,
		Email:        row.Email,
		Name:         row.Name,
		Organization: row.Organization,
		Website:      row.Website,
		Proposal:     row.Proposal,
		Verified:     row.Verified,
		CreatedAt:    row.CreatedAt,
		UpdatedAt:    row.UpdatedAt,
	}
}

var _ verification.Repository[Payload] = (*Repository)(nil)
