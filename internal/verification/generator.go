package verification

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"math/big"
	"time"
)

const (
	// CodeLength is the number of decimal digits in every verification code.
	CodeLength = 6

	// DefaultTTL is how long a code stays valid after it is issued.
	DefaultTTL = 15 * time.Minute
)

var codeSpace = big.NewInt(1_000_000)

// CodeIssuer produces codes and their expiry. It is also the clock the
// Machine checks expiry against, so both sides of a cycle agree on "now".
type CodeIssuer interface {
	GenerateCode() (string, error)
	ExpiryFromNow() time.Time
	Now() time.Time
}

// Generator issues 6-digit codes from crypto/rand with a fixed TTL.
type Generator struct {
	ttl time.Duration
	now func() time.Time
}

// GeneratorOption customises a Generator.
type GeneratorOption func(*Generator)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) GeneratorOption {
	return func(g *Generator) { g.now = now }
}

// NewGenerator returns a Generator whose codes expire ttl after issue.
// A non-positive ttl falls back to DefaultTTL.
func NewGenerator(ttl time.Duration, opts ...GeneratorOption) *Generator {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	g := &Generator{ttl: ttl, now: time.Now}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// GenerateCode returns a uniformly distributed code such as "048213".
func (g *Generator) GenerateCode() (string, error) {
	n, err := rand.Int(rand.Reader, codeSpace)
	if err != nil {
		return "", fmt.Errorf("read random: %w", err)
	}
	return fmt.Sprintf("%0*d", CodeLength, n.Int64()), nil
}

// ExpiryFromNow is the moment a code generated now stops being valid.
func (g *Generator) ExpiryFromNow() time.Time {
	return g.now().Add(g.ttl)
}

func (g *Generator) Now() time.Time { return g.now() }

// TTL reports the configured lifetime.
func (g *Generator) TTL() time.Duration { return g.ttl }

// HashCode returns the hex SHA-256 digest stored in place of a code.
func HashCode(code string) string {
	sum := sha256.Sum256([]byte(code))
	return hex.EncodeToString(sum[:])
}

// codeMatches compares a submitted code with a stored digest in constant time.
func codeMatches(submitted, storedHash string) bool {
	if submitted == "" || storedHash == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(HashCode(submitted)), []byte(storedHash)) == 1
}
