package gatewayclient

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// Verifier recomputes gateway callback signatures from the shared
// merchant secret. A callback whose signature does not match is forged
// or tampered and must never produce an order.
type Verifier struct {
	secret []byte
}

// NewVerifier creates a signature verifier for the merchant secret.
func NewVerifier(keySecret string) *Verifier {
	return &Verifier{secret: []byte(keySecret)}
}

// Signature computes the expected HMAC-SHA256 signature over
// "<gatewayOrderID>|<gatewayPaymentID>", hex encoded.
func (v *Verifier) Signature(gatewayOrderID, gatewayPaymentID string) string {
	mac := hmac.New(sha256.New, v.secret)
	mac.Write([]byte(gatewayOrderID + "|" + gatewayPaymentID))
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature reports whether the supplied signature matches the
// recomputed one. Constant time comparison.
func (v *Verifier) VerifySignature(gatewayOrderID, gatewayPaymentID, signature string) bool {
	expected := v.Signature(gatewayOrderID, gatewayPaymentID)
	return hmac.Equal([]byte(expected), []byte(signature))
}
