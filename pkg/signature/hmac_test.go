package signature

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

const (
	fixtureSecret    = "test_key_secret"
	fixtureOrderID   = "order_IluGWxBm9U8zJ8"
	fixturePaymentID = "pay_IluGWxBm9U8zJ9"

	// printf '%s' "order_IluGWxBm9U8zJ8|pay_IluGWxBm9U8zJ9" | openssl dgst -sha256 -hmac test_key_secret
	referenceSignature = "1b7c366b19bc8f59686e3c092e1fc541be2a084e631d3645e93eb32bcaf9f8ea"
)

func TestVerifyPaymentMatchesReference(t *testing.T) {
	expected := Sign(PaymentPayload(fixtureOrderID, fixturePaymentID), fixtureSecret)
	assert.Equal(t, referenceSignature, expected)
	assert.True(t, VerifyPayment(fixtureOrderID, fixturePaymentID, referenceSignature, fixtureSecret))
}

func TestVerifyPaymentRejectsSingleCharacterMutation(t *testing.T) {
	mutatedOrder := fixtureOrderID[:len(fixtureOrderID)-1] + "9"
	assert.False(t, VerifyPayment(mutatedOrder, fixturePaymentID, referenceSignature, fixtureSecret))

	mutatedPayment := "Pay" + fixturePaymentID[3:]
	assert.False(t, VerifyPayment(fixtureOrderID, mutatedPayment, referenceSignature, fixtureSecret))

	sig := []byte(referenceSignature)
	if sig[0] == 'a' {
		sig[0] = 'b'
	} else {
		sig[0] = 'a'
	}
	assert.False(t, VerifyPayment(fixtureOrderID, fixturePaymentID, string(sig), fixtureSecret))
}

func TestVerifyRejectsEmptyInputs(t *testing.T) {
	assert.False(t, Verify([]byte("body"), "", fixtureSecret))
	assert.False(t, Verify([]byte("body"), Sign([]byte("body"), fixtureSecret), ""))
	assert.False(t, VerifyPayment("", fixturePaymentID, referenceSignature, fixtureSecret))
}

func TestVerifyWebhookBody(t *testing.T) {
	body := []byte(`{"event":"payment.captured"}`)
	sig := Sign(body, "whsec")
	assert.True(t, Verify(body, sig, "whsec"))
	assert.False(t, Verify([]byte(`{"event":"payment.captured" }`), sig, "whsec"))
}
