// Package account holds the operator commands that manage accounts directly
// in the database, bypassing the emailed codes.
package account

import (
	"context"
	"errors"
	"fmt"

	"github.com/redmonkez12/nonprofit-portal/internal/auth"
	"github.com/redmonkez12/nonprofit-portal/internal/user"
)

// Store is the part of user.Repository the commands use.
type Store interface {
	Create(ctx context.Context, nu user.NewUser) (*user.User, error)
	UpdateRole(ctx context.Context, email string, role user.Role) (*user.User, error)
}

// Hasher hashes new passwords.
type Hasher interface {
	Hash(password string) (string, error)
}

// Input is what an operator supplies for a new account.
type Input struct {
	Email    string
	Username string
	Name     string
	Password string
	Role     string
}

// Complete reports whether every required field is filled in. Role defaults
// to admin.
func (in Input) Complete() bool {
	return in.Email != "" && in.Username != "" && in.Name != "" && in.Password != ""
}

// Create opens an already verified account with the given role.
func Create(ctx context.Context, store Store, hasher Hasher, in Input) (*user.User, error) {
	if in.Role == "" {
		in.Role = string(user.RoleAdmin)
	}
	role, err := user.ParseRole(in.Role)
	if err != nil {
		return nil, err
	}

	reg := auth.RegisterInput{
		Email:    in.Email,
		Username: in.Username,
		Name:     in.Name,
		Password: in.Password,
	}
	if err := auth.ValidateRegistration(&reg); err != nil {
		return nil, err
	}

	hash, err := hasher.Hash(reg.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	u, err := store.Create(ctx, user.NewUser{
		Email:         reg.Email,
		Username:      reg.Username,
		Name:          reg.Name,
		PasswordHash:  hash,
		Role:          role,
		EmailVerified: true,
	})
	switch {
	case errors.Is(err, user.ErrDuplicateEmail):
		return nil, fmt.Errorf("an account with email %s already exists", reg.Email)
	case errors.Is(err, user.ErrDuplicateUsername):
		return nil, fmt.Errorf("username %s is taken", reg.Username)
	case err != nil:
		return nil, err
	}

	return u, nil
}

// SetRole changes the role of an existing account.
func SetRole(ctx context.Context, store Store, email, role string) (*user.User, error) {
	r, err := user.ParseRole(role)
	if err != nil {
		return nil, err
	}

	u, err := store.UpdateRole(ctx, email, r)
	if errors.Is(err, user.ErrNotFound) {
		return nil, fmt.Errorf("no account with email %s", email)
	}
	if err != nil {
		return nil, err
	}

	return u, nil
}
