package storage

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"strconv"
	"strings"
	"time"
)

var (
	// ErrLinkInvalid covers malformed tokens and bad signatures.
	ErrLinkInvalid = errors.New("invalid download link")
	// ErrLinkExpired is returned for well-signed tokens past their expiry.
	ErrLinkExpired = errors.New("download link expired")
)

// LinkSigner issues and verifies expiring download tokens for stored exports.
type LinkSigner struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewLinkSigner returns a signer. A non-positive ttl defaults to 15 minutes.
func NewLinkSigner(secret string, ttl time.Duration) *LinkSigner {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &LinkSigner{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// TTL reports how long issued links stay valid.
func (s *LinkSigner) TTL() time.Duration {
	return s.ttl
}

// Sign returns a token of the form <name>.<expiry>.<signature>.
func (s *LinkSigner) Sign(name string) (string, time.Time, error) {
	if name == "" {
		return "", time.Time{}, errors.New("export name required")
	}
	if len(s.secret) == 0 {
		return "", time.Time{}, errors.New("link signing secret missing")
	}
	expiresAt := s.now().Add(s.ttl).Truncate(time.Second)
	encoded := base64.RawURLEncoding.EncodeToString([]byte(name))
	expiry := strconv.FormatInt(expiresAt.Unix(), 10)
	return strings.Join([]string{encoded, expiry, s.mac(encoded, expiry)}, "."), expiresAt, nil
}

// Verify checks the signature and expiry and returns the export name.
func (s *LinkSigner) Verify(token string) (string, error) {
	parts := strings.Split(token, ".")
	if len(parts) != 3 || len(s.secret) == 0 {
		return "", ErrLinkInvalid
	}
	encoded, expiry, signature := parts[0], parts[1], parts[2]
	if !hmac.Equal([]byte(s.mac(encoded, expiry)), []byte(signature)) {
		return "", ErrLinkInvalid
	}
	unix, err := strconv.ParseInt(expiry, 10, 64)
	if err != nil {
		return "", ErrLinkInvalid
	}
	if s.now().After(time.Unix(unix, 0)) {
		return "", ErrLinkExpired
	}
	name, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return "", ErrLinkInvalid
	}
	return string(name), nil
}

func (s *LinkSigner) mac(encoded, expiry string) string {
	h := hmac.New(sha256.New, s.secret)
	_, _ = h.Write([]byte(encoded + "|" + expiry))
	return hex.EncodeToString(h.Sum(nil))
}
