// Package handshake signs and verifies the identity headers a persistent
// node presents when it opens its connection.
package handshake

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"math/rand/v2"
	"strconv"
	"strings"
	"sync"
	"time"
)

const (
	HeaderIdentifier = "X-Identifier"
	HeaderSignature  = "X-Signature"

	DefaultClockSkew = 3 * time.Second
)

var (
	ErrMissingHeaders    = errors.New("missing identity headers")
	ErrBadSignature      = errors.New("signature mismatch")
	ErrMalformedIdentity = errors.New("malformed identifier")
	ErrReplayedNonce     = errors.New("nonce reused")
	ErrClockSkew         = errors.New("timestamp outside allowed skew")
	ErrNotConfigured     = errors.New("handshake key not configured")
)

// Sign returns hex(HMAC-SHA256(key, msg)).
func Sign(key, msg []byte) string {
	mac := hmac.New(sha256.New, key)
	mac.Write(msg)
	return hex.EncodeToString(mac.Sum(nil))
}

// NewIdentifier builds "name.hexUnixTime.nonce".
func NewIdentifier(name string, now time.Time) string {
	return fmt.Sprintf("%s.%x.%d", name, now.Unix(), rand.Uint32())
}

// Identity is a parsed identifier.
type Identity struct {
	Name      string
	Timestamp time.Time
	Nonce     string
}

func ParseIdentifier(ident string) (Identity, error) {
	parts := strings.Split(ident, ".")
	if len(parts) != 3 || parts[0] == "" || parts[2] == "" {
		return Identity{}, fmt.Errorf("%w: %q", ErrMalformedIdentity, ident)
	}
	ts, err := strconv.ParseInt(parts[1], 16, 64)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: timestamp %q", ErrMalformedIdentity, parts[1])
	}
	return Identity{
		Name:      parts[0],
		Timestamp: time.Unix(ts, 0),
		Nonce:     parts[2],
	}, nil
}

// Verifier checks handshakes against a shared key. Replay protection keeps
// only the most recently accepted nonce, process wide.
type Verifier struct {
	key       []byte
	skew      time.Duration
	now       func() time.Time
	mu        sync.Mutex
	lastNonce string
}

func NewVerifier(key string, skew time.Duration) *Verifier {
	if skew <= 0 {
		skew = DefaultClockSkew
	}
	return &Verifier{
		key:  []byte(key),
		skew: skew,
		now:  time.Now,
	}
}

// Verify runs every check in order and records the nonce on success. With
// no key configured every handshake is refused.
func (v *Verifier) Verify(identifier, signature string) (Identity, error) {
	if len(v.key) == 0 {
		return Identity{}, ErrNotConfigured
	}
	if identifier == "" || signature == "" {
		return Identity{}, ErrMissingHeaders
	}

	expected := Sign(v.key, []byte(identifier))
	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return Identity{}, ErrBadSignature
	}

	id, err := ParseIdentifier(identifier)
	if err != nil {
		return Identity{}, err
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	if id.Nonce == v.lastNonce {
		return Identity{}, ErrReplayedNonce
	}

	// Identifiers carry whole seconds, so compare in whole seconds.
	diff := v.now().Unix() - id.Timestamp.Unix()
	if diff < 0 {
		diff = -diff
	}
	if diff > int64(v.skew/time.Second) {
		return Identity{}, fmt.Errorf("%w: %ds", ErrClockSkew, diff)
	}

	v.lastNonce = id.Nonce
	return id, nil
}
