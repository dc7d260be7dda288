package storage

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"
	"time"
)

// SignedURLSigner creates and validates signed invoice download tokens.
type SignedURLSigner struct {
	secret []byte
	ttl    time.Duration
}

// NewSignedURLSigner constructs a signer with the provided secret and TTL.
func NewSignedURLSigner(secret string, ttl time.Duration) *SignedURLSigner {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &SignedURLSigner{
		secret: []byte(secret),
		ttl:    ttl,
	}
}

// Generate returns a signed token referencing the invoice and its file path.
func (s *SignedURLSigner) Generate(invoiceNo, relPath string) (string, time.Time, error) {
	if invoiceNo == "" || relPath == "" {
		return "", time.Time{}, fmt.Errorf("invoiceNo and relPath required")
	}
	if len(s.secret) == 0 {
		return "", time.Time{}, fmt.Errorf("signing secret missing")
	}
	expiresAt := time.Now().Add(s.ttl)
	encodedPath := base64.RawURLEncoding.EncodeToString([]byte(relPath))
	payload := fmt.Sprintf("%s|%d|%s", invoiceNo, expiresAt.Unix(), encodedPath)
	mac := hmac.New(sha256.New, s.secret)
	_, _ = mac.Write([]byte(payload))
	signature := hex.EncodeToString(mac.Sum(nil))
	token := strings.Join([]string{invoiceNo, fmt.Sprintf("%d", expiresAt.Unix()), encodedPath, signature}, ".")
	return token, expiresAt, nil
}

// Parse validates a token and returns the embedded metadata.
func (s *SignedURLSigner) Parse(token string) (invoiceNo, relPath string, expiresAt time.Time, err error) {
	parts := strings.Split(token, ".")
	if len(parts) != 4 {
		return "", "", time.Time{}, fmt.Errorf("invalid token format")
	}
	invoiceNo = parts[0]
	ts := parts[1]
	encodedPath := parts[2]
	signature := parts[3]

	rawPath, err := base64.RawURLEncoding.DecodeString(encodedPath)
	if err != nil {
		return "", "", time.Time{}, fmt.Errorf("decode path: %w", err)
	}

	expUnix, err := parseUnix(ts)
	if err != nil {
		return "", "", time.Time{}, err
	}
	expiresAt = time.Unix(expUnix, 0)

	payload := fmt.Sprintf("%s|%s|%s", invoiceNo, ts, encodedPath)
	mac := hmac.New(sha256.New, s.secret)
	_, _ = mac.Write([]byte(payload))
	expected := hex.EncodeToString(mac.Sum(nil))
	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return "", "", time.Time{}, fmt.Errorf("invalid token signature")
	}
	if time.Now().After(expiresAt) {
		return "", "", time.Time{}, fmt.Errorf("token expired")
	}
	return invoiceNo, string(rawPath), expiresAt, nil
}

func parseUnix(raw string) (int64, error) {
	var ts int64
	_, err := fmt.Sscanf(raw, "%d", &ts)
	if err != nil {
		return 0, fmt.Errorf("invalid timestamp")
	}
	return ts, nil
}
