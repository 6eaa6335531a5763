package security

import (
	"strings"
	"testing"
)

func TestGenerateNumericCode(t *testing.T) {
	code, err := GenerateNumericCode(6)
	if err != nil {
		t.Fatalf("GenerateNumericCode: %v", err)
	}
	if len(code) != 6 || strings.Trim(code, "0123456789") != "" {
		t.Fatalf("unexpected code %q", code)
	}
	if _, err := GenerateNumericCode(0); err == nil {
		t.Fatal("expected error for zero length")
	}
	if _, err := GenerateNumericCode(19); err == nil {
		t.Fatal("expected error above 18 digits")
	}

	// one-digit codes hit every value, zero included
	seen := map[string]bool{}
	for i := 0; i < 500 && len(seen) < 10; i++ {
		c, _ := GenerateNumericCode(1)
		seen[c] = true
	}
	if len(seen) != 10 {
		t.Fatalf("expected all ten digits, saw %v", seen)
	}
}

func TestPayloadSignature(t *testing.T) {
	body := []byte(`{"transaction_id":"tx-1","status":"SUCCESS"}`)
	sig := SignPayload("secret", body)

	if !VerifyPayloadSignature("secret", body, sig) {
		t.Fatal("expected signature to verify")
	}
	if !VerifyPayloadSignature("secret", body, "sha256="+sig) {
		t.Fatal("expected prefixed signature to verify")
	}
	if VerifyPayloadSignature("other", body, sig) {
		t.Fatal("signature under another secret must fail")
	}
	if VerifyPayloadSignature("", body, SignPayload("", body)) {
		t.Fatal("empty secret must never verify")
	}
	if VerifyPayloadSignature("secret", body, "not-hex") {
		t.Fatal("malformed signature must fail")
	}
}
