package user

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
)

var (
	ErrNotFound          = errors.New("user not found")
	ErrDuplicateEmail    = errors.New("email already exists")
	ErrDuplicateUsername = errors.New("username already taken")
)

// Repository handles user data persistence
type Repository struct {
	db  bun.IDB
	now func() time.Time
}

func NewRepository(db bun.IDB) *Repository {
	return &Repository{db: db, now: time.Now}
}

// Create inserts a new user into the database
func (r *Repository) Create(ctx context.Context, nu NewUser) (*User, error) {
	role := nu.Role
	if role == "" {
		role = RoleUser
	}

	now := r.now()
	dbUser := &database.User{
		ID:            uuid.New(),
		Email:         strings.ToLower(strings.TrimSpace(nu.Email)),
		Username:      strings.TrimSpace(nu.Username),
		Name:          strings.TrimSpace(nu.Name),
		PasswordHash:  nu.PasswordHash,
		Role:          string(role),
		EmailVerified: nu.EmailVerified,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	_, err := r.db.NewInsert().
		Model(dbUser).
		Returning("*").
		Exec(ctx)
	if err != nil {
		if dup := duplicateError(err); dup != nil {
			return nil, dup
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	return mapDBUserToModel(dbUser), nil
}

// GetByEmail retrieves a user by email
func (r *Repository) GetByEmail(ctx context.Context, email string) (*User, error) {
	return r.getOne(ctx, "get user by email", func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Where("u.email = ?", strings.ToLower(strings.TrimSpace(email)))
	})
}

// GetByID retrieves a user by ID
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*User, error) {
	return r.getOne(ctx, "get user by id", func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Where("u.id = ?", id)
	})
}

// GetByIdentity accepts either an email address or a username.
func (r *Repository) GetByIdentity(ctx context.Context, identity string) (*User, error) {
	identity = strings.ToLower(strings.TrimSpace(identity))
	return r.getOne(ctx, "get user by identity", func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.WhereGroup(" AND ", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Where("u.email = ?", identity).WhereOr("LOWER(u.username) = ?", identity)
		})
	})
}

func (r *Repository) getOne(ctx context.Context, op string, where func(*bun.SelectQuery) *bun.SelectQuery) (*User, error) {
	dbUser := new(database.User)
	err := where(r.db.NewSelect().Model(dbUser)).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to %s: %w", op, err)
	}

	return mapDBUserToModel(dbUser), nil
}

// UpdateRole changes the role of the account with the given email.
func (r *Repository) UpdateRole(ctx context.Context, email string, role Role) (*User, error) {
	dbUser := new(database.User)
	result, err := r.db.NewUpdate().
		Model(dbUser).
		Set("role = ?", string(role)).
		Set("updated_at = ?", r.now()).
		Where("email = ?", strings.ToLower(strings.TrimSpace(email))).
		Returning("*").
		Exec(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update role: %w", err)
	}

	if err := expectOneRow(result); err != nil {
		return nil, err
	}

	return mapDBUserToModel(dbUser), nil
}

// saveVerification writes the verified flag and one pair of code columns.
func (r *Repository) saveVerification(ctx context.Context, u *User, columns codeColumns, code pendingCode) (*User, error) {
	dbUser := new(database.User)
	result, err := r.db.NewUpdate().
		Model(dbUser).
		Set(columns.hash+" = ?", code.hash).
		Set(columns.expiresAt+" = ?", code.expiresAt).
		Set("email_verified = ?", u.EmailVerified).
		Set("updated_at = ?", r.now()).
		Where("id = ?", u.ID).
		Returning("*").
		Exec(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to save verification state: %w", err)
	}

	if err := expectOneRow(result); err != nil {
		return nil, err
	}

	return mapDBUserToModel(dbUser), nil
}

// Delete removes a user. Used to undo a registration whose code could not be
// delivered.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.NewDelete().
		Model((*database.User)(nil)).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}

	return expectOneRow(result)
}

func expectOneRow(result sql.Result) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return ErrNotFound
	}

	return nil
}

func duplicateError(err error) error {
	constraint, ok := database.UniqueViolation(err)
	if !ok {
		return nil
	}
	if strings.Contains(constraint, "username") {
		return ErrDuplicateUsername
	}
	return ErrDuplicateEmail
}

// mapDBUserToModel converts database model to domain model
func mapDBUserToModel(dbu *database.User) *User {
	return &User{
		ID:            dbu.ID,
		Email:         dbu.Email,
		Username:      dbu.Username,
		Name:          dbu.Name,
		PasswordHash:  dbu.PasswordHash,
		Role:          Role(dbu.Role),
		EmailVerified: dbu.EmailVerified,
		CreatedAt:     dbu.CreatedAt,
		UpdatedAt:     dbu.UpdatedAt,
		signup:        pendingCode{hash: dbu.VerificationCodeHash, expiresAt: dbu.VerificationExpiresAt},
		login:         pendingCode{hash: dbu.LoginCodeHash, expiresAt: dbu.LoginCodeExpiresAt},
	}
}
