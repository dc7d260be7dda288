package gateway

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// SignPayment computes the settlement signature over "orderID|paymentID"
// using the gateway key secret. The gateway sends the same digest back with
// checkout confirmations.
func SignPayment(secret, orderID, paymentID string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write([]byte(orderID + "|" + paymentID))
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifyPaymentSignature reports whether the provided signature matches the
// expected digest. Comparison is constant time.
func VerifyPaymentSignature(secret, orderID, paymentID, signature string) bool {
	expected := SignPayment(secret, orderID, paymentID)
	return hmac.Equal([]byte(expected), []byte(signature))
}

// VerifyWebhookSignature authenticates a webhook delivery by recomputing the
// HMAC over the raw request body with the webhook secret.
func VerifyWebhookSignature(secret string, body []byte, signature string) bool {
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}
