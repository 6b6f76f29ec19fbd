//go:build !integration

package payment

import (
	"strings"
	"testing"
)

func TestVerifySignature(t *testing.T) {
	secret := "sk_test_secret"
	body := []byte(`{"event":"charge.success","data":{"status":"success","reference":"ENR-1","amount":75000}}`)
	sig := Sign(secret, body)

	t.Run("should accept the signature of the raw body", func(t *testing.T) {
		if !VerifySignature(secret, body, sig) {
			t.Fatal("expected valid signature")
		}
	})

	t.Run("should accept an upper-case hex digest", func(t *testing.T) {
		if !VerifySignature(secret, body, strings.ToUpper(sig)) {
			t.Fatal("hex case must not matter")
		}
	})

	t.Run("should reject a tampered body", func(t *testing.T) {
		tampered := []byte(strings.Replace(string(body), "75000", "1", 1))
		if VerifySignature(secret, tampered, sig) {
			t.Fatal("tampered body must be rejected")
		}
	})

	t.Run("should reject a re-encoded body", func(t *testing.T) {
		reencoded := []byte(strings.ReplaceAll(string(body), ":", ": "))
		if VerifySignature(secret, reencoded, sig) {
			t.Fatal("signature covers the raw bytes only")
		}
	})

	t.Run("should reject the wrong secret, empty and non-hex signatures", func(t *testing.T) {
		if VerifySignature("other", body, sig) {
			t.Error("wrong secret accepted")
		}
		if VerifySignature(secret, body, "") {
			t.Error("empty signature accepted")
		}
		if VerifySignature(secret, body, "not-hex") {
			t.Error("non-hex signature accepted")
		}
		if VerifySignature("", body, Sign("", body)) {
			t.Error("empty secret must never verify")
		}
	})
}
