package user

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/redmonkez12/nonprofit-portal/internal/verification"
)

// Account is the payload of account subjects. Accounts carry no data beyond
// the user row itself.
type Account struct{}

type codeColumns struct {
	hash      string
	expiresAt string
}

var (
	signupColumns = codeColumns{hash: "verification_code_hash", expiresAt: "verification_expires_at"}
	loginColumns  = codeColumns{hash: "login_code_hash", expiresAt: "login_code_expires_at"}
)

// Subjects exposes accounts to a verification machine. Each instance owns one
// pair of code columns.
type Subjects struct {
	repo    *Repository
	columns codeColumns
	login   bool
}

// SignupSubjects looks accounts up by email and stores codes in the email
// verification columns.
func (r *Repository) SignupSubjects() *Subjects {
	return &Subjects{repo: r, columns: signupColumns}
}

// LoginSubjects looks accounts up by email or username and stores codes in
// the login columns.
func (r *Repository) LoginSubjects() *Subjects {
	return &Subjects{repo: r, columns: loginColumns, login: true}
}

var errCreateOnDemand = errors.New("accounts are created by registration only")

func (s *Subjects) FindByIdentity(ctx context.Context, identity string) (*verification.Subject[Account], error) {
	var (
		u   *User
		err error
	)
	if s.login {
		u, err = s.repo.GetByIdentity(ctx, identity)
	} else {
		u, err = s.repo.GetByEmail(ctx, identity)
	}
	if errors.Is(err, ErrNotFound) {
		return nil, verification.ErrNoRecord
	}
	if err != nil {
		return nil, err
	}

	return s.toSubject(u), nil
}

func (s *Subjects) Create(context.Context, *verification.Subject[Account]) (*verification.Subject[Account], error) {
	return nil, errCreateOnDemand
}

func (s *Subjects) Save(ctx context.Context, subj *verification.Subject[Account]) (*verification.Subject[Account], error) {
	var code pendingCode
	if subj.Pending != nil {
		hash, expiresAt := subj.Pending.CodeHash, subj.Pending.ExpiresAt
		code = pendingCode{hash: &hash, expiresAt: &expiresAt}
	}

	u, err := s.repo.saveVerification(ctx, &User{ID: subj.ID, EmailVerified: subj.Verified}, s.columns, code)
	if errors.Is(err, ErrNotFound) {
		return nil, verification.ErrNoRecord
	}
	if err != nil {
		return nil, err
	}

	return s.toSubject(u), nil
}

func (s *Subjects) Delete(ctx context.Context, id uuid.UUID) error {
	err := s.repo.Delete(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return verification.ErrNoRecord
	}
	return err
}

func (s *Subjects) toSubject(u *User) *verification.Subject[Account] {
	code := u.signup
	if s.login {
		code = u.login
	}

	subj := &verification.Subject[Account]{
		ID:        u.ID,
		Identity:  u.Email,
		Email:     u.Email,
		Name:      u.Name,
		Verified:  u.EmailVerified,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
	if code.hash != nil && code.expiresAt != nil {
		subj.Pending = &verification.PendingCode{CodeHash: *code.hash, ExpiresAt: *code.expiresAt}
	}

	return subj
}

var _ verification.Repository[Account] = (*Subjects)(nil)
