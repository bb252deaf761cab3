package app

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// VerifySignature reports whether signature is the provider's HMAC-SHA256 of
// "orderID|paymentID" keyed with secret, hex encoded. An empty secret or
// signature never verifies.
func VerifySignature(orderID, paymentID, signature, secret string) bool {
	if secret == "" || signature == "" {
		return false
	}
	return hmac.Equal([]byte(signHex([]byte(orderID+"|"+paymentID), secret)), []byte(signature))
}

// VerifyWebhookSignature checks a Razorpay webhook body against its
// X-Razorpay-Signature header, with the same fail-closed rules.
func VerifyWebhookSignature(body []byte, signature, secret string) bool {
	if secret == "" || signature == "" {
		return false
	}
	return hmac.Equal([]byte(signHex(body, secret)), []byte(signature))
}

func signHex(msg []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(msg)
	return hex.EncodeToString(mac.Sum(nil))
}
