package gateway

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVerifyPaymentSignature(t *testing.T) {
	secret := "test_secret"
	orderID := "order_Nxq4h2"
	paymentID := "pay_Nxq7k9"
	signature := SignPayment(secret, orderID, paymentID)

	t.Run("accepts matching signature", func(t *testing.T) {
		assert.True(t, VerifyPaymentSignature(secret, orderID, paymentID, signature))
	})

	t.Run("rejects tampered payment id", func(t *testing.T) {
		assert.False(t, VerifyPaymentSignature(secret, orderID, "pay_other", signature))
	})

	t.Run("rejects tampered order id", func(t *testing.T) {
		assert.False(t, VerifyPaymentSignature(secret, "order_other", paymentID, signature))
	})

	t.Run("rejects wrong secret", func(t *testing.T) {
		assert.False(t, VerifyPaymentSignature("other_secret", orderID, paymentID, signature))
	})

	t.Run("rejects empty signature", func(t *testing.T) {
		assert.False(t, VerifyPaymentSignature(secret, orderID, paymentID, ""))
	})
}

func TestVerifyWebhookSignature(t *testing.T) {
	secret := "webhook_secret"
	body := []byte(`{"event":"payment.captured","payload":{"payment":{"entity":{"id":"pay_1"}}}}`)

	digest := func(secret string, body []byte) string {
		mac := hmac.New(sha256.New, []byte(secret))
		mac.Write(body)
		return hex.EncodeToString(mac.Sum(nil))
	}

	t.Run("accepts matching digest", func(t *testing.T) {
		assert.True(t, VerifyWebhookSignature(secret, body, digest(secret, body)))
	})

	t.Run("rejects modified body", func(t *testing.T) {
		assert.False(t, VerifyWebhookSignature(secret, []byte(`{"event":"other"}`), digest(secret, body)))
	})

	t.Run("rejects wrong secret", func(t *testing.T) {
		assert.False(t, VerifyWebhookSignature("other", body, digest(secret, body)))
	})
}
