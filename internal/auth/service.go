package auth

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/redmonkez12/nonprofit-portal/internal/logging"
	"github.com/redmonkez12/nonprofit-portal/internal/user"
	"github.com/redmonkez12/nonprofit-portal/internal/verification"
)

var (
	ErrInvalidCredentials   = errors.New("invalid email or password")
	ErrEmailNotVerified     = errors.New("email not verified, please check your inbox")
	ErrEmailAlreadyVerified = errors.New("email already verified")

	ErrEmailRequired      = verification.InvalidInput("email is required")
	ErrInvalidEmailFormat = verification.InvalidInput("invalid email format")
	ErrUsernameRequired   = verification.InvalidInput("username is required")
	ErrInvalidUsername    = verification.InvalidInput("username must be 3-50 letters, digits, dots, dashes or underscores")
	ErrNameRequired       = verification.InvalidInput("name is required")
	ErrNameTooLong        = verification.InvalidInput("name must be at most 120 characters")
	ErrPasswordRequired   = verification.InvalidInput("password is required")
	ErrPasswordTooShort   = verification.InvalidInput("password must be at least 8 characters")
	ErrPasswordTooLong    = verification.InvalidInput("password must be at most 128 characters")
)

var usernamePattern = regexp.MustCompile(`^[A-Za-z0-9._-]{3,50}$`)

// RegisterInput is the data needed to open an account.
type RegisterInput struct {
	Email    string
	Username string
	Name     string
	Password string
}

// Registration is the outcome of Register.
type Registration struct {
	User      *user.User
	ExpiresAt time.Time
}

// Session is a freshly issued session token.
type Session struct {
	Token     string
	ExpiresAt time.Time
	User      *user.User
}

// Service handles authentication business logic
type Service struct {
	users           UserStore
	passwords       CredentialVerifier
	signup          *verification.Machine[user.Account]
	login           *verification.Machine[user.Account]
	tokens          TokenService
	logger          *logging.Logger
	sessionDuration time.Duration
	now             func() time.Time

	dummyOnce sync.Once
	dummyHash string
}

func NewService(
	users UserStore,
	passwords CredentialVerifier,
	signup *verification.Machine[user.Account],
	login *verification.Machine[user.Account],
	tokens TokenService,
	logger *logging.Logger,
	sessionDuration time.Duration,
) *Service {
	return &Service{
		users:           users,
		passwords:       passwords,
		signup:          signup,
		login:           login,
		tokens:          tokens,
		logger:          logger,
		sessionDuration: sessionDuration,
		now:             time.Now,
	}
}

// Register creates an unverified account and emails it a verification code.
// When the code cannot be sent the account is removed again so the visitor can
// retry with the same email.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*Registration, error) {
	if err := ValidateRegistration(&in); err != nil {
		return nil, err
	}

	passwordHash, err := s.passwords.Hash(in.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	newUser, err := s.users.Create(ctx, user.NewUser{
		Email:        in.Email,
		Username:     in.Username,
		Name:         in.Name,
		PasswordHash: passwordHash,
		Role:         user.RoleUser,
	})
	if err != nil {
		return nil, err
	}

	receipt, err := s.signup.StartCycle(ctx, newUser.Email, user.Account{})
	if err != nil {
		if delErr := s.users.Delete(context.WithoutCancel(ctx), newUser.ID); delErr != nil {
			s.logger.Error("failed to remove account after signup cycle failure",
				"user_id", newUser.ID,
				"error", delErr,
			)
		}
		return nil, err
	}

	return &Registration{User: newUser, ExpiresAt: receipt.ExpiresAt}, nil
}

// ResendVerification issues a new email verification code, invalidating the
// previous one.
func (s *Service) ResendVerification(ctx context.Context, email string) (*verification.Receipt, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return nil, ErrEmailRequired
	}
	return s.signup.StartCycle(ctx, email, user.Account{})
}

// VerifyEmail consumes an email verification code.
func (s *Service) VerifyEmail(ctx context.Context, email, code string) (*user.User, error) {
	subject, err := s.signup.SubmitCode(ctx, email, code)
	if err != nil {
		return nil, err
	}
	return s.users.GetByID(ctx, subject.ID)
}

// Login checks the password and, for verified accounts, emails a one-time
// login code. No session is issued yet.
func (s *Service) Login(ctx context.Context, identity, password string) (*verification.Receipt, error) {
	identity = strings.TrimSpace(identity)
	if identity == "" || password == "" {
		return nil, ErrInvalidCredentials
	}

	existingUser, err := s.users.GetByIdentity(ctx, identity)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			// unknown accounts pay for a hash comparison too
			s.passwords.Compare(password, s.unknownAccountHash())
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	if !s.passwords.Compare(password, existingUser.PasswordHash) {
		return nil, ErrInvalidCredentials
	}

	return s.login.StartCycle(ctx, existingUser.Email, user.Account{})
}

// unknownAccountHash is a hash of a random password made with the same
// parameters as real account hashes.
func (s *Service) unknownAccountHash() string {
	s.dummyOnce.Do(func() {
		hash, err := s.passwords.Hash(uuid.NewString())
		if err != nil {
			s.logger.Error("failed to prepare unknown account hash", "error", err.Error())
			return
		}
		s.dummyHash = hash
	})
	return s.dummyHash
}

// VerifyLogin consumes a login code and mints a session token for the account.
func (s *Service) VerifyLogin(ctx context.Context, identity, code string) (*Session, error) {
	subject, err := s.login.SubmitCode(ctx, identity, code)
	if err != nil {
		return nil, err
	}

	// roles may have changed since the cycle started
	current, err := s.users.GetByID(ctx, subject.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to reload user: %w", err)
	}

	token, err := s.tokens.CreateToken(current.ID, current.Email, current.Role, s.sessionDuration)
	if err != nil {
		return nil, fmt.Errorf("failed to create session token: %w", err)
	}

	return &Session{
		Token:     token,
		ExpiresAt: s.now().Add(s.sessionDuration),
		User:      current,
	}, nil
}

// Profile returns the live account for a session.
func (s *Service) Profile(ctx context.Context, userID uuid.UUID) (*user.User, error) {
	return s.users.GetByID(ctx, userID)
}

// ValidateRegistration normalizes in and checks it against the signup rules.
func ValidateRegistration(in *RegisterInput) error {
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.Username = strings.TrimSpace(in.Username)
	in.Name = strings.TrimSpace(in.Name)

	if in.Email == "" {
		return ErrEmailRequired
	}
	if len(in.Email) > 254 {
		return ErrInvalidEmailFormat
	}
	if addr, err := mail.ParseAddress(in.Email); err != nil || addr.Address != in.Email {
		return ErrInvalidEmailFormat
	}
	if in.Username == "" {
		return ErrUsernameRequired
	}
	if !usernamePattern.MatchString(in.Username) {
		return ErrInvalidUsername
	}
	if in.Name == "" {
		return ErrNameRequired
	}
	if len([]rune(in.Name)) > 120 {
		return ErrNameTooLong
	}
	if in.Password == "" {
		return ErrPasswordRequired
	}
	if len(in.Password) < 8 {
		return ErrPasswordTooShort
	}
	if len(in.Password) > 128 {
		return ErrPasswordTooLong
	}

	return nil
}
