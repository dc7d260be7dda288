package storage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSignedURLRoundTrip(t *testing.T) {
	signer := NewSignedURLSigner("secret", time.Hour)
	token, expires, err := signer.Generate("INV-1001", "2026/INV-1001.pdf")
	require.NoError(t, err)
	require.True(t, expires.After(time.Now()))

	invoiceNo, relPath, _, err := signer.Parse(token)
	require.NoError(t, err)
	require.Equal(t, "INV-1001", invoiceNo)
	require.Equal(t, "2026/INV-1001.pdf", relPath)
}

func TestSignedURLRejectsTampering(t *testing.T) {
	signer := NewSignedURLSigner("secret", time.Hour)
	token, _, err := signer.Generate("INV-1001", "2026/INV-1001.pdf")
	require.NoError(t, err)

	_, _, _, err = signer.Parse(token + "x")
	require.Error(t, err)

	other := NewSignedURLSigner("other-secret", time.Hour)
	_, _, _, err = other.Parse(token)
	require.Error(t, err)
}

func TestSignedURLExpiry(t *testing.T) {
	signer := NewSignedURLSigner("secret", time.Hour)
	signer.ttl = -time.Minute
	token, _, err := signer.Generate("INV-1001", "a.pdf")
	require.NoError(t, err)

	_, _, _, err = signer.Parse(token)
	require.Error(t, err)
}
