package auth

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/redmonkez12/nonprofit-portal/internal/logging"
	"github.com/redmonkez12/nonprofit-portal/internal/user"
	"github.com/redmonkez12/nonprofit-portal/internal/verification"
	"github.com/redmonkez12/nonprofit-portal/internal/verification/verificationtest"
)

const testKey = "0123456789abcdef0123456789abcdef"

type serviceHarness struct {
	svc       *Service
	store     *accountStore
	notifier  *verificationtest.Notifier
	clock     *verificationtest.Clock
	tokens    *PasetoService
	passwords *plainPasswords
}

func newServiceHarness(t *testing.T) *serviceHarness {
	t.Helper()

	clock := verificationtest.NewClock(time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC))
	store := newAccountStore()
	notifier := verificationtest.NewNotifier()
	codes := verificationtest.NewCodes(clock, 15*time.Minute)
	logger := logging.Discard()

	tokens, err := NewPasetoService([]byte(testKey))
	require.NoError(t, err)
	tokens.now = clock.Now

	signup := verification.NewMachine(SignupFlow(), store.signup(), notifier, codes, logger)
	login := verification.NewMachine(LoginFlow(), store.login(), notifier, codes, logger)

	passwords := &plainPasswords{}
	svc := NewService(store, passwords, signup, login, tokens, logger, 24*time.Hour)
	svc.now = clock.Now

	return &serviceHarness{svc: svc, store: store, notifier: notifier, clock: clock, tokens: tokens, passwords: passwords}
}

func (h *serviceHarness) register(t *testing.T, email, username string) *user.User {
	t.Helper()

	reg, err := h.svc.Register(context.Background(), RegisterInput{
		Email:    email,
		Username: username,
		Name:     "Ada Lovelace",
		Password: "correct horse",
	})
	require.NoError(t, err)
	return reg.User
}

func (h *serviceHarness) registerVerified(t *testing.T, email, username string) *user.User {
	t.Helper()

	u := h.register(t, email, username)
	_, err := h.svc.VerifyEmail(context.Background(), email, h.notifier.LastCode(email))
	require.NoError(t, err)
	return u
}

func TestService_RegisterThenVerifyEmail(t *testing.T) {
	h := newServiceHarness(t)
	ctx := context.Background()

	reg, err := h.svc.Register(ctx, RegisterInput{
		Email:    "  Ada@Example.org ",
		Username: "ada",
		Name:     "Ada Lovelace",
		Password: "correct horse",
	})
	require.NoError(t, err)
	assert.Equal(t, "ada@example.org", reg.User.Email)
	assert.False(t, reg.User.EmailVerified)
	assert.Equal(t, h.clock.Now().Add(15*time.Minute), reg.ExpiresAt)
	assert.Equal(t, 1, h.notifier.Count(TemplateSignupCode))

	code := h.notifier.LastCode("ada@example.org")
	require.Len(t, code, 6)

	verified, err := h.svc.VerifyEmail(ctx, "ada@example.org", code)
	require.NoError(t, err)
	assert.True(t, verified.EmailVerified)
	assert.Equal(t, 1, h.notifier.Count(TemplateWelcome))

	_, err = h.svc.VerifyEmail(ctx, "ada@example.org", code)
	assert.ErrorIs(t, err, verification.ErrNoPendingCycle)
}

func TestService_RegisterDuplicate(t *testing.T) {
	h := newServiceHarness(t)
	h.register(t, "ada@example.org", "ada")

	_, err := h.svc.Register(context.Background(), RegisterInput{
		Email: "ADA@example.org", Username: "other", Name: "Ada", Password: "correct horse",
	})
	assert.ErrorIs(t, err, user.ErrDuplicateEmail)

	_, err = h.svc.Register(context.Background(), RegisterInput{
		Email: "grace@example.org", Username: "ADA", Name: "Grace", Password: "correct horse",
	})
	assert.ErrorIs(t, err, user.ErrDuplicateUsername)
}

func TestService_RegisterDeliveryFailureRemovesAccount(t *testing.T) {
	h := newServiceHarness(t)
	h.notifier.FailTemplate(TemplateSignupCode, true)

	_, err := h.svc.Register(context.Background(), RegisterInput{
		Email: "ada@example.org", Username: "ada", Name: "Ada", Password: "correct horse",
	})
	require.ErrorIs(t, err, verification.ErrDeliveryFailed)
	assert.Equal(t, 0, h.store.count())

	h.notifier.FailTemplate(TemplateSignupCode, false)
	h.register(t, "ada@example.org", "ada")
}

func TestService_RegisterValidation(t *testing.T) {
	valid := RegisterInput{Email: "ada@example.org", Username: "ada", Name: "Ada", Password: "correct horse"}

	tests := []struct {
		name   string
		mutate func(*RegisterInput)
		want   error
	}{
		{"missing email", func(in *RegisterInput) { in.Email = " " }, ErrEmailRequired},
		{"bad email", func(in *RegisterInput) { in.Email = "not-an-email" }, ErrInvalidEmailFormat},
		{"display name email", func(in *RegisterInput) { in.Email = "Ada <ada@example.org>" }, ErrInvalidEmailFormat},
		{"missing username", func(in *RegisterInput) { in.Username = "" }, ErrUsernameRequired},
		{"bad username", func(in *RegisterInput) { in.Username = "a b" }, ErrInvalidUsername},
		{"missing name", func(in *RegisterInput) { in.Name = "" }, ErrNameRequired},
		{"missing password", func(in *RegisterInput) { in.Password = "" }, ErrPasswordRequired},
		{"short password", func(in *RegisterInput) { in.Password = "short" }, ErrPasswordTooShort},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			h := newServiceHarness(t)
			in := valid
			tc.mutate(&in)

			_, err := h.svc.Register(context.Background(), in)
			require.ErrorIs(t, err, tc.want)
			assert.ErrorIs(t, err, verification.ErrValidation)
			assert.Equal(t, 0, h.store.count())
			assert.Empty(t, h.notifier.Sent())
		})
	}
}

func TestService_ResendVerification(t *testing.T) {
	h := newServiceHarness(t)
	ctx := context.Background()
	h.register(t, "ada@example.org", "ada")
	first := h.notifier.LastCode("ada@example.org")

	receipt, err := h.svc.ResendVerification(ctx, "ada@example.org")
	require.NoError(t, err)
	assert.False(t, receipt.Created)

	second := h.notifier.LastCode("ada@example.org")
	require.NotEqual(t, first, second)

	_, err = h.svc.VerifyEmail(ctx, "ada@example.org", first)
	assert.ErrorIs(t, err, verification.ErrInvalidCode)

	_, err = h.svc.VerifyEmail(ctx, "ada@example.org", second)
	require.NoError(t, err)

	_, err = h.svc.ResendVerification(ctx, "ada@example.org")
	assert.ErrorIs(t, err, ErrEmailAlreadyVerified)

	_, err = h.svc.ResendVerification(ctx, "nobody@example.org")
	assert.ErrorIs(t, err, verification.ErrNotFound)
}

func TestService_VerifyEmailExpired(t *testing.T) {
	h := newServiceHarness(t)
	ctx := context.Background()
	h.register(t, "ada@example.org", "ada")
	code := h.notifier.LastCode("ada@example.org")

	h.clock.Advance(15 * time.Minute)

	_, err := h.svc.VerifyEmail(ctx, "ada@example.org", code)
	assert.ErrorIs(t, err, verification.ErrExpired)

	_, err = h.svc.VerifyEmail(ctx, "ada@example.org", code)
	assert.ErrorIs(t, err, verification.ErrNoPendingCycle)
}

func TestService_LoginRejections(t *testing.T) {
	h := newServiceHarness(t)
	ctx := context.Background()
	h.register(t, "ada@example.org", "ada")

	_, err := h.svc.Login(ctx, "ada@example.org", "correct horse")
	assert.ErrorIs(t, err, ErrEmailNotVerified)

	_, err = h.svc.Login(ctx, "ada@example.org", "wrong password")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = h.svc.Login(ctx, "nobody@example.org", "correct horse")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = h.svc.Login(ctx, "", "correct horse")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	assert.Equal(t, 0, h.notifier.Count(TemplateLoginCode))
}

func TestService_LoginUnknownAccountStillComparesPassword(t *testing.T) {
	h := newServiceHarness(t)
	ctx := context.Background()

	for range 2 {
		_, err := h.svc.Login(ctx, "nobody@example.org", "correct horse")
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	}

	compared := h.passwords.Compared()
	require.Len(t, compared, 2)
	assert.NotEmpty(t, compared[0])
	assert.Equal(t, compared[0], compared[1])
	assert.NotEqual(t, "plain:correct horse", compared[0])
}

func TestService_LoginIssuesSession(t *testing.T) {
	h := newServiceHarness(t)
	ctx := context.Background()
	u := h.registerVerified(t, "ada@example.org", "ada")

	receipt, err := h.svc.Login(ctx, "ada", "correct horse")
	require.NoError(t, err)
	assert.Equal(t, u.ID, receipt.SubjectID)
	assert.Equal(t, 1, h.notifier.Count(TemplateLoginCode))

	code := h.notifier.LastCode("ada@example.org")

	session, err := h.svc.VerifyLogin(ctx, "ADA@example.org", code)
	require.NoError(t, err)
	assert.Equal(t, h.clock.Now().Add(24*time.Hour), session.ExpiresAt)
	assert.True(t, session.User.EmailVerified)

	claims, err := h.tokens.VerifyToken(session.Token)
	require.NoError(t, err)
	assert.Equal(t, u.ID.String(), claims.UserID)
	assert.Equal(t, user.RoleUser, claims.Role)
	assert.Equal(t, "ada@example.org", claims.Email)
	assert.Equal(t, h.clock.Now().Add(24*time.Hour).Unix(), claims.ExpiresAt.Unix())

	_, err = h.svc.VerifyLogin(ctx, "ada", code)
	assert.ErrorIs(t, err, verification.ErrNoPendingCycle)
}

func TestService_LoginSessionCarriesCurrentRole(t *testing.T) {
	h := newServiceHarness(t)
	ctx := context.Background()
	u := h.registerVerified(t, "ada@example.org", "ada")

	_, err := h.svc.Login(ctx, "ada@example.org", "correct horse")
	require.NoError(t, err)
	h.store.setRole(u.ID, user.RoleAdmin)

	session, err := h.svc.VerifyLogin(ctx, "ada@example.org", h.notifier.LastCode("ada@example.org"))
	require.NoError(t, err)

	claims, err := h.tokens.VerifyToken(session.Token)
	require.NoError(t, err)
	assert.Equal(t, user.RoleAdmin, claims.Role)
}

func TestService_LoginCodeIsSeparateFromSignupCode(t *testing.T) {
	h := newServiceHarness(t)
	ctx := context.Background()
	h.register(t, "ada@example.org", "ada")
	signupCode := h.notifier.LastCode("ada@example.org")

	// a login cycle cannot exist before verification
	_, err := h.svc.VerifyLogin(ctx, "ada@example.org", signupCode)
	assert.ErrorIs(t, err, verification.ErrNoPendingCycle)

	_, err = h.svc.VerifyEmail(ctx, "ada@example.org", signupCode)
	require.NoError(t, err)

	_, err = h.svc.Login(ctx, "ada@example.org", "correct horse")
	require.NoError(t, err)
	loginCode := h.notifier.LastCode("ada@example.org")

	_, err = h.svc.VerifyEmail(ctx, "ada@example.org", loginCode)
	assert.ErrorIs(t, err, verification.ErrNoPendingCycle)

	_, err = h.svc.VerifyLogin(ctx, "ada@example.org", "000000")
	assert.ErrorIs(t, err, verification.ErrInvalidCode)

	session, err := h.svc.VerifyLogin(ctx, "ada@example.org", loginCode)
	require.NoError(t, err)
	assert.True(t, session.User.EmailVerified)
}

func TestService_LoginCodeExpires(t *testing.T) {
	h := newServiceHarness(t)
	ctx := context.Background()
	h.registerVerified(t, "ada@example.org", "ada")

	_, err := h.svc.Login(ctx, "ada@example.org", "correct horse")
	require.NoError(t, err)
	code := h.notifier.LastCode("ada@example.org")

	h.clock.Advance(16 * time.Minute)

	_, err = h.svc.VerifyLogin(ctx, "ada@example.org", code)
	assert.ErrorIs(t, err, verification.ErrExpired)
}

func TestService_Profile(t *testing.T) {
	h := newServiceHarness(t)
	u := h.register(t, "ada@example.org", "ada")

	got, err := h.svc.Profile(context.Background(), u.ID)
	require.NoError(t, err)
	assert.Equal(t, "ada", got.Username)

	_, err = h.svc.Profile(context.Background(), uuid.New())
	assert.ErrorIs(t, err, user.ErrNotFound)
}
