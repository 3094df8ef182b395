package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/netip"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/redmonkez12/nonprofit-portal/internal/config"
	"github.com/redmonkez12/nonprofit-portal/internal/httputil"
	"github.com/redmonkez12/nonprofit-portal/internal/logging"
)

// Purposes keep budgets separate so verifying a code does not eat into the
// budget for requesting one.
const (
	PurposeRegister      = "register"
	PurposeResend        = "resend"
	PurposeLogin         = "login"
	PurposeInquiry       = "inquiry"
	PurposeCollaboration = "collaboration"
	PurposeVerify        = "verify"
)

// EmailCooldown spaces out code emails sent to the same address.
type EmailCooldown interface {
	CheckEmailCooldown(ctx context.Context, purpose, email string) (bool, error)
	SetEmailCooldown(ctx context.Context, purpose, email string) error
}

// Limiter keeps request counters in Redis
type Limiter struct {
	client        redis.Cmdable
	ipLimit       int
	ipWindow      time.Duration
	emailCooldown time.Duration
	trusted       []netip.Prefix
}

// NewLimiter builds a limiter. Invalid trusted proxy entries are rejected by
// config.Load and skipped here.
func NewLimiter(client redis.Cmdable, cfg config.RateLimitConfig) *Limiter {
	trusted, _ := cfg.TrustedProxyPrefixes()
	return &Limiter{
		client:        client,
		ipLimit:       cfg.IPLimit,
		ipWindow:      cfg.IPWindow,
		emailCooldown: cfg.EmailCooldown,
		trusted:       trusted,
	}
}

func ipKey(purpose, ip string) string {
	return fmt.Sprintf("ratelimit:ip:%s:%s", purpose, ip)
}

func cooldownKey(purpose, email string) string {
	return fmt.Sprintf("ratelimit:cooldown:%s:%s", purpose, strings.ToLower(strings.TrimSpace(email)))
}

// CheckIPRateLimitWithPurpose reports whether ip has used up its budget for purpose
func (l *Limiter) CheckIPRateLimitWithPurpose(ctx context.Context, ip, purpose string) (bool, error) {
	count, err := l.client.Get(ctx, ipKey(purpose, ip)).Int()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read ip counter: %w", err)
	}

	return count >= l.ipLimit, nil
}

// RecordIPRequestWithPurpose counts one request. The window starts with the
// first request and is not extended by later ones.
func (l *Limiter) RecordIPRequestWithPurpose(ctx context.Context, ip, purpose string) error {
	key := ipKey(purpose, ip)

	count, err := l.client.Incr(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("failed to increment ip counter: %w", err)
	}

	if count == 1 {
		if err := l.client.Expire(ctx, key, l.ipWindow).Err(); err != nil {
			return fmt.Errorf("failed to set ip counter TTL: %w", err)
		}
	}

	return nil
}

// CheckEmailCooldown reports whether a code for purpose was sent to email recently
func (l *Limiter) CheckEmailCooldown(ctx context.Context, purpose, email string) (bool, error) {
	n, err := l.client.Exists(ctx, cooldownKey(purpose, email)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check email cooldown: %w", err)
	}
	return n > 0, nil
}

// SetEmailCooldown starts the cooldown for email
func (l *Limiter) SetEmailCooldown(ctx context.Context, purpose, email string) error {
	if err := l.client.Set(ctx, cooldownKey(purpose, email), "1", l.emailCooldown).Err(); err != nil {
		return fmt.Errorf("failed to set email cooldown: %w", err)
	}
	return nil
}

// PerIP rejects requests from clients that exhausted their budget for purpose
// and counts the rest. Redis failures are logged and the request goes through.
func (l *Limiter) PerIP(purpose string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			logger := logging.GetLoggerFromContext(r.Context())
			ip := l.ClientIP(r)

			exceeded, err := l.CheckIPRateLimitWithPurpose(r.Context(), ip, purpose)
			if err != nil {
				logger.Error("failed to check IP rate limit", "error", err.Error())
			} else if exceeded {
				logger.Warn("IP rate limit exceeded", "ip", ip, "purpose", purpose)
				httputil.RespondErrorWithCode(w, "too many requests, please try again later", httputil.CodeTooManyRequests, http.StatusTooManyRequests)
				return
			}

			if err := l.RecordIPRequestWithPurpose(r.Context(), ip, purpose); err != nil {
				logger.Error("failed to record IP request", "error", err.Error())
			}

			next.ServeHTTP(w, r)
		})
	}
}

// OnCooldown reports whether email must wait before another code is sent.
// A nil cooldown or a failing store never blocks.
func OnCooldown(ctx context.Context, c EmailCooldown, purpose, email string) bool {
	if c == nil || email == "" {
		return false
	}
	onCooldown, err := c.CheckEmailCooldown(ctx, purpose, email)
	if err != nil {
		logging.GetLoggerFromContext(ctx).Error("failed to check email cooldown", "error", err.Error())
		return false
	}
	return onCooldown
}

// StartCooldown records that a code was just sent to email.
func StartCooldown(ctx context.Context, c EmailCooldown, purpose, email string) {
	if c == nil || email == "" {
		return
	}
	if err := c.SetEmailCooldown(ctx, purpose, email); err != nil {
		logging.GetLoggerFromContext(ctx).Error("failed to set email cooldown", "error", err.Error())
	}
}

// ClientIP identifies the client behind r. Forwarding headers are only read
// when the connection comes from a trusted proxy; X-Forwarded-For is then
// walked from the right, skipping trusted hops, so entries a client prepends
// are never used.
func (l *Limiter) ClientIP(r *http.Request) string {
	peer, ok := remoteAddr(r.RemoteAddr)
	if !ok {
		return r.RemoteAddr
	}
	if !l.isTrusted(peer) {
		return peer.String()
	}

	if xff := r.Header.Values("X-Forwarded-For"); len(xff) > 0 {
		hops := strings.Split(strings.Join(xff, ","), ",")
		for i := len(hops) - 1; i >= 0; i-- {
			hop, err := netip.ParseAddr(strings.TrimSpace(hops[i]))
			if err != nil {
				break
			}
			hop = hop.Unmap()
			if !l.isTrusted(hop) {
				return hop.String()
			}
			peer = hop
		}
		return peer.String()
	}

	if xri, err := netip.ParseAddr(strings.TrimSpace(r.Header.Get("X-Real-IP"))); err == nil {
		return xri.Unmap().String()
	}

	return peer.String()
}

func (l *Limiter) isTrusted(addr netip.Addr) bool {
	for _, p := range l.trusted {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}

func remoteAddr(hostport string) (netip.Addr, bool) {
	host, _, err := net.SplitHostPort(hostport)
	if err != nil {
		host = hostport
	}
	addr, err := netip.ParseAddr(host)
	if err != nil {
		return netip.Addr{}, false
	}
	return addr.Unmap(), true
}
