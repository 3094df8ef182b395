package auth

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/redmonkez12/nonprofit-portal/internal/user"
)

// TokenService defines the interface for token creation and validation.
// Implementations include PasetoService (PASETO v4.local) and JWTService (HS256).
type TokenService interface {
	CreateToken(userID uuid.UUID, email string, role user.Role, duration time.Duration) (string, error)
	VerifyToken(tokenStr string) (*TokenClaims, error)
}

// CredentialVerifier hashes and checks passwords.
type CredentialVerifier interface {
	Hash(password string) (string, error)
	Compare(password, encodedHash string) bool
}

// UserStore is the subset of user.Repository the auth service needs.
type UserStore interface {
	Create(ctx context.Context, nu user.NewUser) (*user.User, error)
	GetByID(ctx context.Context, id uuid.UUID) (*user.User, error)
	GetByIdentity(ctx context.Context, identity string) (*user.User, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// UserLookup loads the live account behind a session.
type UserLookup interface {
	GetByID(ctx context.Context, id uuid.UUID) (*user.User, error)
}
