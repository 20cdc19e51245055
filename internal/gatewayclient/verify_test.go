package gatewayclient

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVerifySignatureAcceptsGenuineCallback(t *testing.T) {
	v := NewVerifier("merchant_secret")

	sig := v.Signature("order_abc", "pay_xyz")

	assert.True(t, v.VerifySignature("order_abc", "pay_xyz", sig))
}

func TestVerifySignatureRejectsTampering(t *testing.T) {
	v := NewVerifier("merchant_secret")
	sig := v.Signature("order_abc", "pay_xyz")

	tests := []struct {
		name      string
		orderID   string
		paymentID string
		signature string
	}{
		{"swapped order id", "order_other", "pay_xyz", sig},
		{"swapped payment id", "order_abc", "pay_other", sig},
		{"truncated signature", "order_abc", "pay_xyz", sig[:len(sig)-2]},
		{"empty signature", "order_abc", "pay_xyz", ""},
		{"signature from another secret", "order_abc", "pay_xyz", NewVerifier("other_secret").Signature("order_abc", "pay_xyz")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.False(t, v.VerifySignature(tt.orderID, tt.paymentID, tt.signature))
		})
	}
}

func TestSignatureIsDeterministicHex(t *testing.T) {
	v := NewVerifier("merchant_secret")

	first := v.Signature("order_abc", "pay_xyz")
	second := v.Signature("order_abc", "pay_xyz")

	assert.Equal(t, first, second)
	assert.Len(t, first, 64)
}
