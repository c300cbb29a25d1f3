// Package webhook authenticates and decodes inbound Shopify webhook
// deliveries.
package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"strings"
)

// SignatureHeader carries the base64 HMAC Shopify computes over the raw
// request body.
const SignatureHeader = "X-Shopify-Hmac-Sha256"

var ErrMissingSecret = errors.New("webhook secret not configured")

// Verifier checks that a delivery genuinely originated from the platform.
type Verifier struct {
	secret []byte
}

// NewVerifier rejects an empty secret outright: a service without a secret
// must refuse webhook traffic at startup, not fall back to accepting
// unverified events.
func NewVerifier(secret string) (*Verifier, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return nil, ErrMissingSecret
	}
	return &Verifier{secret: []byte(secret)}, nil
}

// Verify reports whether signatureHeader is a valid HMAC-SHA256 of rawBody
// under the configured secret. The body must be the exact bytes received on
// the wire; hashing re-serialized JSON breaks on whitespace and key order.
// Any decode failure or missing header yields false, never an error.
func (v *Verifier) Verify(rawBody []byte, signatureHeader string) bool {
	signatureHeader = strings.TrimSpace(signatureHeader)
	if signatureHeader == "" {
		return false
	}
	want, err := base64.StdEncoding.DecodeString(signatureHeader)
	if err != nil {
		return false
	}

	mac := hmac.New(sha256.New, v.secret)
	mac.Write(rawBody)
	return hmac.Equal(mac.Sum(nil), want)
}

// Sign computes the signature header value for a body. Used by tests and
// local webhook simulation.
func (v *Verifier) Sign(rawBody []byte) string {
	mac := hmac.New(sha256.New, v.secret)
	mac.Write(rawBody)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// SecretLen exposes the configured secret length for mismatch diagnostics.
// Logs may carry lengths, never values.
func (v *Verifier) SecretLen() int {
	return len(v.secret)
}
