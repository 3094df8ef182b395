package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/redmonkez12/nonprofit-portal/internal/httputil"
)

type cooldownSet struct {
	mu   sync.Mutex
	keys map[string]bool
}

func (c *cooldownSet) CheckEmailCooldown(_ context.Context, purpose, email string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.keys[purpose+":"+strings.ToLower(strings.TrimSpace(email))], nil
}

func (c *cooldownSet) SetEmailCooldown(_ context.Context, purpose, email string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.keys == nil {
		c.keys = make(map[string]bool)
	}
	c.keys[purpose+":"+strings.ToLower(strings.TrimSpace(email))] = true
	return nil
}

func (c *cooldownSet) clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.keys = nil
}

type handlerHarness struct {
	*serviceHarness
	handler  *Handler
	cooldown *cooldownSet
}

func newHandlerHarness(t *testing.T) *handlerHarness {
	t.Helper()

	sh := newServiceHarness(t)
	cd := &cooldownSet{}
	return &handlerHarness{
		serviceHarness: sh,
		handler:        NewHandler(sh.svc, cd, CookieConfig{Name: "token", Secure: true, MaxAge: 24 * time.Hour}),
		cooldown:       cd,
	}
}

func call(t *testing.T, h http.HandlerFunc, body string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h(rec, req)
	return rec
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()

	var resp httputil.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.False(t, resp.Success)
	return resp.Code
}

const registerBody = `{"email":"ada@example.org","username":"ada","name":"Ada Lovelace","password":"correct horse"}`

func TestHandler_Register(t *testing.T) {
	h := newHandlerHarness(t)

	rec := call(t, h.handler.Register, registerBody)
	require.Equal(t, http.StatusCreated, rec.Code)

	var resp RegisterResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, "ada@example.org", resp.User.Email)
	assert.False(t, resp.User.EmailVerified)
	assert.NotContains(t, rec.Body.String(), h.notifier.LastCode("ada@example.org"))
	assert.NotContains(t, rec.Body.String(), "password")

	rec = call(t, h.handler.Register, registerBody)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, httputil.CodeEmailAlreadyExists, errorCode(t, rec))
}

func TestHandler_RegisterBadRequests(t *testing.T) {
	h := newHandlerHarness(t)

	rec := call(t, h.handler.Register, `{"email":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, httputil.CodeInvalidRequestBody, errorCode(t, rec))

	rec = call(t, h.handler.Register, `{"email":"ada@example.org","role":"admin"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = call(t, h.handler.Register, `{"email":"ada@example.org","username":"ada","name":"Ada","password":"short"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, httputil.CodeValidationFailed, errorCode(t, rec))
	assert.Contains(t, rec.Body.String(), "at least 8 characters")
}

func TestHandler_RegisterDeliveryFailure(t *testing.T) {
	h := newHandlerHarness(t)
	h.notifier.FailTemplate(TemplateSignupCode, true)

	rec := call(t, h.handler.Register, registerBody)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, httputil.CodeDeliveryFailed, errorCode(t, rec))
	assert.Equal(t, 0, h.store.count())
}

func TestHandler_ResendVerification(t *testing.T) {
	h := newHandlerHarness(t)
	require.Equal(t, http.StatusCreated, call(t, h.handler.Register, registerBody).Code)

	rec := call(t, h.handler.ResendVerification, `{"email":"ada@example.org"}`)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, httputil.CodeCooldownActive, errorCode(t, rec))

	h.cooldown.clear()
	rec = call(t, h.handler.ResendVerification, `{"email":"ada@example.org"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 2, h.notifier.Count(TemplateSignupCode))

	h.cooldown.clear()
	rec = call(t, h.handler.ResendVerification, `{"email":"nobody@example.org"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandler_VerifyEmail(t *testing.T) {
	h := newHandlerHarness(t)
	require.Equal(t, http.StatusCreated, call(t, h.handler.Register, registerBody).Code)
	code := h.notifier.LastCode("ada@example.org")

	rec := call(t, h.handler.VerifyEmail, `{"email":"ada@example.org","code":"000000"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, httputil.CodeInvalidCode, errorCode(t, rec))

	rec = call(t, h.handler.VerifyEmail, `{"email":"ada@example.org","code":"`+code+`"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp UserEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.User.EmailVerified)

	h.cooldown.clear()
	rec = call(t, h.handler.ResendVerification, `{"email":"ada@example.org"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, httputil.CodeAlreadyVerified, errorCode(t, rec))
}

func TestHandler_LoginFlow(t *testing.T) {
	h := newHandlerHarness(t)
	require.Equal(t, http.StatusCreated, call(t, h.handler.Register, registerBody).Code)

	rec := call(t, h.handler.Login, `{"identity":"ada","password":"correct horse"}`)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, httputil.CodeEmailNotVerified, errorCode(t, rec))

	code := h.notifier.LastCode("ada@example.org")
	require.Equal(t, http.StatusOK, call(t, h.handler.VerifyEmail, `{"email":"ada@example.org","code":"`+code+`"}`).Code)

	rec = call(t, h.handler.Login, `{"identity":"ada","password":"wrong password"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, httputil.CodeInvalidCredentials, errorCode(t, rec))

	rec = call(t, h.handler.Login, `{"identity":"ada","password":"correct horse"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Result().Cookies(), "no session before the login code is entered")

	rec = call(t, h.handler.Login, `{"identity":"ADA","password":"correct horse"}`)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)

	loginCode := h.notifier.LastCode("ada@example.org")
	rec = call(t, h.handler.VerifyLogin, `{"identity":"ada","code":"`+loginCode+`"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	c := cookies[0]
	assert.Equal(t, "token", c.Name)
	assert.True(t, c.HttpOnly)
	assert.True(t, c.Secure)
	assert.Equal(t, "/", c.Path)
	assert.Equal(t, http.SameSiteLaxMode, c.SameSite)
	assert.Equal(t, 86400, c.MaxAge)
	assert.NotContains(t, rec.Body.String(), c.Value)

	claims, err := h.tokens.VerifyToken(c.Value)
	require.NoError(t, err)
	assert.Equal(t, "ada@example.org", claims.Email)
}

func TestHandler_Logout(t *testing.T) {
	h := newHandlerHarness(t)

	rec := call(t, h.handler.Logout, ``)
	require.Equal(t, http.StatusOK, rec.Code)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, "token", cookies[0].Name)
	assert.Empty(t, cookies[0].Value)
	assert.Less(t, cookies[0].MaxAge, 0)
}

func TestHandler_Me(t *testing.T) {
	h := newHandlerHarness(t)
	u := h.register(t, "ada@example.org", "ada")

	req := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	req = req.WithContext(context.WithValue(req.Context(), UserIDContextKey, u.ID))
	rec := httptest.NewRecorder()
	h.handler.Me(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp UserEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, u.ID, resp.User.ID)

	rec = httptest.NewRecorder()
	h.handler.Me(rec, httptest.NewRequest(http.MethodGet, "/auth/me", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
