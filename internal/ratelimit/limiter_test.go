package ratelimit

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/redmonkez12/nonprofit-portal/internal/config"
)

func newTestLimiter(t *testing.T, limit int) (*Limiter, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return NewLimiter(client, config.RateLimitConfig{
		IPLimit:       limit,
		IPWindow:      15 * time.Minute,
		EmailCooldown: time.Minute,
	}), mr
}

func TestLimiter_IPBudget(t *testing.T) {
	l, mr := newTestLimiter(t, 2)
	ctx := context.Background()

	for range 2 {
		exceeded, err := l.CheckIPRateLimitWithPurpose(ctx, "10.0.0.1", PurposeLogin)
		require.NoError(t, err)
		assert.False(t, exceeded)
		require.NoError(t, l.RecordIPRequestWithPurpose(ctx, "10.0.0.1", PurposeLogin))
	}

	exceeded, err := l.CheckIPRateLimitWithPurpose(ctx, "10.0.0.1", PurposeLogin)
	require.NoError(t, err)
	assert.True(t, exceeded)

	other, err := l.CheckIPRateLimitWithPurpose(ctx, "10.0.0.1", PurposeVerify)
	require.NoError(t, err)
	assert.False(t, other, "purposes have separate budgets")

	mr.FastForward(16 * time.Minute)
	exceeded, err = l.CheckIPRateLimitWithPurpose(ctx, "10.0.0.1", PurposeLogin)
	require.NoError(t, err)
	assert.False(t, exceeded)
}

func TestLimiter_EmailCooldown(t *testing.T) {
	l, mr := newTestLimiter(t, 10)
	ctx := context.Background()

	assert.False(t, OnCooldown(ctx, l, PurposeInquiry, "a@x.com"))

	StartCooldown(ctx, l, PurposeInquiry, "A@X.com")
	assert.True(t, OnCooldown(ctx, l, PurposeInquiry, "a@x.com"))
	assert.False(t, OnCooldown(ctx, l, PurposeLogin, "a@x.com"))

	mr.FastForward(61 * time.Second)
	assert.False(t, OnCooldown(ctx, l, PurposeInquiry, "a@x.com"))
}

func TestLimiter_FailingStoreNeverBlocks(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	t.Cleanup(func() { _ = client.Close() })
	l := NewLimiter(client, config.RateLimitConfig{IPLimit: 1, IPWindow: time.Minute, EmailCooldown: time.Minute})

	assert.False(t, OnCooldown(context.Background(), l, PurposeInquiry, "a@x.com"))

	called := false
	h := l.PerIP(PurposeInquiry)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { called = true }))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/inquiries", nil))
	assert.True(t, called)
}

func TestLimiter_PerIP(t *testing.T) {
	l, _ := newTestLimiter(t, 1)
	h := l.PerIP(PurposeRegister)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	}))

	first := httptest.NewRecorder()
	h.ServeHTTP(first, httptest.NewRequest(http.MethodPost, "/auth/register", nil))
	assert.Equal(t, http.StatusCreated, first.Code)

	second := httptest.NewRecorder()
	h.ServeHTTP(second, httptest.NewRequest(http.MethodPost, "/auth/register", nil))
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
	assert.Contains(t, second.Body.String(), "too_many_requests")
}

func TestClientIP_UntrustedPeerIgnoresHeaders(t *testing.T) {
	l := NewLimiter(nil, config.RateLimitConfig{})

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "192.0.2.7:5555"
	assert.Equal(t, "192.0.2.7", l.ClientIP(r))

	r.Header.Set("X-Real-IP", "198.51.100.2")
	r.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
	assert.Equal(t, "192.0.2.7", l.ClientIP(r))
}

func TestClientIP_TrustedProxy(t *testing.T) {
	l := NewLimiter(nil, config.RateLimitConfig{TrustedProxies: []string{"10.0.0.0/8"}})

	tests := []struct {
		name   string
		remote string
		xff    []string
		realIP string
		want   string
	}{
		{"no headers", "10.0.0.5:443", nil, "", "10.0.0.5"},
		{"single hop", "10.0.0.5:443", []string{"203.0.113.9"}, "", "203.0.113.9"},
		{"client-supplied entries are skipped", "10.0.0.5:443", []string{"1.2.3.4, 203.0.113.9"}, "", "203.0.113.9"},
		{"chained trusted proxies", "10.0.0.5:443", []string{"203.0.113.9, 10.0.0.7"}, "", "203.0.113.9"},
		{"repeated headers", "10.0.0.5:443", []string{"1.2.3.4", "203.0.113.9"}, "", "203.0.113.9"},
		{"garbage hop stops the walk", "10.0.0.5:443", []string{"203.0.113.9, nonsense"}, "", "10.0.0.5"},
		{"real ip header", "10.0.0.5:443", nil, "198.51.100.2", "198.51.100.2"},
		{"ipv6 peer", "[2001:db8::1]:443", []string{"203.0.113.9"}, "", "2001:db8::1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.RemoteAddr = tt.remote
			for _, v := range tt.xff {
				r.Header.Add("X-Forwarded-For", v)
			}
			if tt.realIP != "" {
				r.Header.Set("X-Real-IP", tt.realIP)
			}
			assert.Equal(t, tt.want, l.ClientIP(r))
		})
	}
}
