package settlement

import (
	"errors"
	"testing"
)

func TestHMACVerifierRoundTrip(t *testing.T) {
	secret := []byte("meter-secret")
	payload := UsagePayload("alice", "2026-09", 700, "n-1")
	signature := SignUsage(secret, payload)

	verifier := NewHMACVerifier(secret)
	if err := verifier.Verify(payload, signature); err != nil {
		t.Fatalf("verify: %v", err)
	}
}

func TestHMACVerifierRejectsTampering(t *testing.T) {
	secret := []byte("meter-secret")
	payload := UsagePayload("alice", "2026-09", 700, "n-1")
	signature := SignUsage(secret, payload)

	verifier := NewHMACVerifier(secret)
	cases := map[string][]byte{
		"kwh":     UsagePayload("alice", "2026-09", 701, "n-1"),
		"account": UsagePayload("mallory", "2026-09", 700, "n-1"),
		"month":   UsagePayload("alice", "2026-10", 700, "n-1"),
		"nonce":   UsagePayload("alice", "2026-09", 700, "n-2"),
	}
	for name, tampered := range cases {
		if err := verifier.Verify(tampered, signature); !errors.Is(err, ErrBadSignature) {
			t.Fatalf("%s: expected bad signature, got %v", name, err)
		}
	}

	wrongKey := NewHMACVerifier([]byte("other-secret"))
	if err := wrongKey.Verify(payload, signature); !errors.Is(err, ErrBadSignature) {
		t.Fatalf("wrong key: expected bad signature, got %v", err)
	}
	if err := verifier.Verify(payload, "not-hex"); !errors.Is(err, ErrBadSignature) {
		t.Fatalf("garbage signature: expected bad signature, got %v", err)
	}
}
