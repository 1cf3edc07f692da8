package passwd

import "testing"

func TestHashAndVerifyRoundTrip(t *testing.T) {
	verifier, err := Hash("correct horse battery staple")
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	if !Verify(verifier, "correct horse battery staple") {
		t.Fatalf("expected correct password to verify")
	}
	if Verify(verifier, "wrong password") {
		t.Fatalf("expected wrong password to fail verification")
	}
}

func TestHashIsSalted(t *testing.T) {
	a, err := Hash("same-password")
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	b, err := Hash("same-password")
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	if a == b {
		t.Fatalf("expected distinct verifier strings for repeated hashing")
	}
	if !Verify(a, "same-password") || !Verify(b, "same-password") {
		t.Fatalf("expected both verifiers to accept the original password")
	}
}

func TestVerifyRejectsMalformedVerifier(t *testing.T) {
	if Verify("not-a-verifier", "anything") {
		t.Fatalf("expected malformed verifier to fail")
	}
	if Verify("", "") {
		t.Fatalf("expected empty verifier to fail")
	}
}
