package webhook

import (
	"bytes"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"net/http"
	"strings"
)

// Delivery headers.
const (
	SignatureHeader = "X-Ruby-Signature-256"
	EventHeader     = "X-Ruby-Event"
	DeliveryHeader  = "X-Ruby-Delivery"
)

const signaturePrefix = "sha256="

// ErrBadSignature is returned by VerifyRequest when the signature header is
// missing or does not match the body.
var ErrBadSignature = errors.New("webhook signature mismatch")

func mac(secret string, payload []byte) []byte {
	m := hmac.New(sha256.New, []byte(secret))
	m.Write(payload)
	return m.Sum(nil)
}

// Sign returns "sha256=<hex HMAC-SHA256 of payload>".
func Sign(secret string, payload []byte) string {
	return signaturePrefix + hex.EncodeToString(mac(secret, payload))
}

// Verify reports whether signature is the Sign output for payload.
func Verify(secret string, payload []byte, signature string) bool {
	digest, ok := strings.CutPrefix(signature, signaturePrefix)
	if !ok {
		return false
	}
	got, err := hex.DecodeString(digest)
	if err != nil {
		return false
	}
	return hmac.Equal(got, mac(secret, payload))
}

// SignRequest sets the JSON content type and the delivery headers on req.
func SignRequest(req *http.Request, secret, eventType, deliveryID string, body []byte) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(SignatureHeader, Sign(secret, body))
	req.Header.Set(EventHeader, eventType)
	req.Header.Set(DeliveryHeader, deliveryID)
}

// VerifyRequest reads and checks the body of an incoming delivery. The body
// is returned so the receiver can decode it, and r.Body is left readable.
func VerifyRequest(r *http.Request, secret string) ([]byte, error) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, err
	}
	r.Body = io.NopCloser(bytes.NewReader(body))
	if !Verify(secret, body, r.Header.Get(SignatureHeader)) {
		return nil, ErrBadSignature
	}
	return body, nil
}

// GenerateSecret returns 32 random bytes, hex encoded.
func GenerateSecret() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
