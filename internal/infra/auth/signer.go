// Package auth signs and verifies API requests with HMAC-SHA256.
//
// The string to sign is timestamp + method + path[?query] + body, where the
// timestamp is Unix milliseconds. The signature is base64 encoded.
package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"strconv"
	"time"
)

// Request header names.
const (
	HeaderKey       = "ACCESS-KEY"
	HeaderSign      = "ACCESS-SIGN"
	HeaderTimestamp = "ACCESS-TIMESTAMP"
)

// Signer produces authentication headers for one API key.
type Signer struct {
	accessKey string
	secretKey string
	now       func() time.Time
}

// NewSigner creates a new Signer instance
func NewSigner(accessKey, secretKey string) *Signer {
	return &Signer{
		accessKey: accessKey,
		secretKey: secretKey,
		now:       time.Now,
	}
}

// GenerateHeaders creates the necessary headers for a request
// method: GET, POST, etc.
// path: /v1/swap (no host)
// query: param=1&test=2 (empty if none)
// body: json string (empty if none)
func (s *Signer) GenerateHeaders(method, path, query, body string) map[string]string {
	timestamp := strconv.FormatInt(s.now().UnixMilli(), 10)

	return map[string]string{
		HeaderKey:       s.accessKey,
		HeaderSign:      computeHmacSha256(payload(timestamp, method, path, query, body), s.secretKey),
		HeaderTimestamp: timestamp,
		"Content-Type":  "application/json",
	}
}

func payload(timestamp, method, path, query, body string) string {
	fullPath := path
	if query != "" {
		fullPath = path + "?" + query
	}
	return timestamp + method + fullPath + body
}

func computeHmacSha256(message string, secret string) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write([]byte(message))
	return base64.StdEncoding.EncodeToString(h.Sum(nil))
}
