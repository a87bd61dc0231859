package auth

import (
	"crypto/hmac"
	"errors"
	"fmt"
	"strconv"
	"time"

	"token_swap/internal/domain"
)

// DefaultMaxSkew is the accepted distance between the request timestamp and
// the server clock.
const DefaultMaxSkew = 30 * time.Second

var (
	ErrMissingCredentials = errors.New("missing authentication headers")
	ErrUnknownKey         = errors.New("unknown access key")
	ErrBadTimestamp       = errors.New("timestamp outside accepted window")
	ErrBadSignature       = errors.New("signature mismatch")
)

// Credential binds an access key's secret to the principal it acts as.
type Credential struct {
	Secret    string
	Principal domain.Address
}

// Verifier authenticates signed requests against a fixed key set.
type Verifier struct {
	keys    map[string]Credential
	maxSkew time.Duration
	now     func() time.Time
}

// NewVerifier builds a verifier. maxSkew <= 0 uses DefaultMaxSkew.
func NewVerifier(keys map[string]Credential, maxSkew time.Duration) *Verifier {
	if maxSkew <= 0 {
		maxSkew = DefaultMaxSkew
	}
	copied := make(map[string]Credential, len(keys))
	for k, v := range keys {
		copied[k] = v
	}
	return &Verifier{keys: copied, maxSkew: maxSkew, now: time.Now}
}

// Headers is the subset of http.Header the verifier reads.
type Headers interface {
	Get(key string) string
}

// Verify checks the signature headers of a request and returns the principal
// bound to the access key.
func (v *Verifier) Verify(method, path, query, body string, h Headers) (domain.Address, error) {
	key, sign, ts := h.Get(HeaderKey), h.Get(HeaderSign), h.Get(HeaderTimestamp)
	if key == "" || sign == "" || ts == "" {
		return "", ErrMissingCredentials
	}
	cred, ok := v.keys[key]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownKey, key)
	}

	millis, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrBadTimestamp, ts)
	}
	skew := v.now().Sub(time.UnixMilli(millis))
	if skew < -v.maxSkew || skew > v.maxSkew {
		return "", fmt.Errorf("%w: skew %s", ErrBadTimestamp, skew)
	}

	expected := computeHmacSha256(payload(ts, method, path, query, body), cred.Secret)
	if !hmac.Equal([]byte(expected), []byte(sign)) {
		return "", ErrBadSignature
	}
	return cred.Principal, nil
}
