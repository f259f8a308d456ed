// Package signature verifies gateway HMAC-SHA256 signatures.
package signature

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Sign returns the lowercase hex HMAC-SHA256 of payload under secret.
func Sign(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// PaymentPayload is the string signed by the gateway checkout for a completed payment.
func PaymentPayload(gatewayOrderID, gatewayPaymentID string) []byte {
	return []byte(gatewayOrderID + "|" + gatewayPaymentID)
}

// VerifyPayment checks the checkout signature over "orderID|paymentID".
func VerifyPayment(gatewayOrderID, gatewayPaymentID, provided, secret string) bool {
	if gatewayOrderID == "" || gatewayPaymentID == "" {
		return false
	}
	return Verify(PaymentPayload(gatewayOrderID, gatewayPaymentID), provided, secret)
}

// Verify compares provided against the expected signature in constant time.
func Verify(payload []byte, provided, secret string) bool {
	provided = strings.TrimSpace(provided)
	if provided == "" || secret == "" {
		return false
	}
	expected := Sign(payload, secret)
	return hmac.Equal([]byte(expected), []byte(strings.ToLower(provided)))
}
