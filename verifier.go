package salesbridge

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
)

// SignatureHeader carries the base64 HMAC-SHA256 of the raw request body.
const SignatureHeader = "X-Line-Signature"

var (
	ErrSecretNotConfigured = errors.New("signature secret not configured")
	ErrMissingSignature    = errors.New("signature header is missing")
	ErrInvalidSignature    = errors.New("invalid signature")
)

// VerifySignature reports whether signature is the base64 encoded
// HMAC-SHA256 of body keyed with secret. An empty secret never verifies.
func VerifySignature(body []byte, signature, secret string) bool {
	if secret == "" {
		return false
	}

	return hmac.Equal([]byte(signature), []byte(Sign(body, secret)))
}

// Sign returns the signature LINE would send for body.
func Sign(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// Verifier handles signature verification for webhook payloads
type Verifier struct {
	secret string
}

// NewVerifier creates a new signature verifier
func NewVerifier(secret string) *Verifier {
	return &Verifier{
		secret: secret,
	}
}

// Verify checks the signature of the payload
func (v *Verifier) Verify(payload []byte, signature string) error {
	if v.secret == "" {
		return ErrSecretNotConfigured
	}

	if signature == "" {
		return ErrMissingSignature
	}

	if !VerifySignature(payload, signature, v.secret) {
		return ErrInvalidSignature
	}

	return nil
}

// Valid is Verify as a bool.
func (v *Verifier) Valid(payload []byte, signature string) bool {
	return v.Verify(payload, signature) == nil
}
