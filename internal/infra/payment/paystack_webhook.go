package payment

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"strings"
)

// SignatureHeader carries the hex HMAC-SHA512 of the raw request body.
const SignatureHeader = "X-Paystack-Signature"

// VerifySignature checks signature against HMAC-SHA512(secret, body).
// body must be the raw bytes exactly as received; never a re-encoded payload.
func VerifySignature(secret string, body []byte, signature string) bool {
	if secret == "" || signature == "" {
		return false
	}
	claimed, err := hex.DecodeString(strings.TrimSpace(signature))
	if err != nil {
		return false
	}

	h := hmac.New(sha512.New, []byte(secret))
	h.Write(body)
	return hmac.Equal(h.Sum(nil), claimed)
}

// Sign returns the signature the provider would send for body. Used by tooling and tests.
func Sign(secret string, body []byte) string {
	h := hmac.New(sha512.New, []byte(secret))
	h.Write(body)
	return hex.EncodeToString(h.Sum(nil))
}
