package api

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
)

const (
	SignatureHeader = "X-Signature"
	// GatewaySignatureHeader is the name the gateway itself sends.
	GatewaySignatureHeader = "X-Paystack-Signature"
)

var (
	ErrAuthentication     = errors.New("webhook authentication failed")
	ErrNoSignature        = fmt.Errorf("%w: no signature", ErrAuthentication)
	ErrWebhookSecretUnset = fmt.Errorf("%w: webhook secret is not set", ErrAuthentication)
	ErrInvalidSignature   = fmt.Errorf("%w: invalid signature", ErrAuthentication)
)

// Sign returns the hex HMAC-SHA512 of body under secret.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha512.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature checks signature against the HMAC of the exact raw body.
func VerifySignature(secret string, body []byte, signature string) error {
	if signature == "" {
		return ErrNoSignature
	}
	if secret == "" {
		return ErrWebhookSecretUnset
	}
	if !hmac.Equal([]byte(Sign(secret, body)), []byte(signature)) {
		return ErrInvalidSignature
	}
	return nil
}

func signatureFromHeader(h http.Header) string {
	if sig := h.Get(SignatureHeader); sig != "" {
		return sig
	}
	return h.Get(GatewaySignatureHeader)
}
