package ident

import "testing"

func TestSessionTokenRoundTrip(t *testing.T) {
	tok, err := NewSessionToken()
	if err != nil {
		t.Fatalf("NewSessionToken: %v", err)
	}

	parsed, err := ParseSessionToken(tok.String())
	if err != nil {
		t.Fatalf("ParseSessionToken: %v", err)
	}
	if parsed != tok {
		t.Fatalf("round trip mismatch: got %s want %s", parsed, tok)
	}
}

func TestParseSessionTokenRejectsBadInput(t *testing.T) {
	cases := []string{
		"",
		"deadbeef",
		"not-hex-not-hex-not-hex-not-hex-not-hex-not-hex-not-hex-not-he",
		"zz" + hexRepeat("a", 62),
	}
	for _, c := range cases {
		if _, err := ParseSessionToken(c); err == nil {
			t.Errorf("ParseSessionToken(%q) = nil error, want error", c)
		}
	}
}

func hexRepeat(s string, n int) string {
	out := make([]byte, 0, n)
	for len(out) < n {
		out = append(out, s...)
	}
	return string(out[:n])
}

func TestRestoreIDDeterministic(t *testing.T) {
	a := NewRestoreID("repo1", "snap1", "/home/alice/docs")
	b := NewRestoreID("repo1", "snap1", "/home/alice/docs")
	if a != b {
		t.Fatalf("expected identical restore IDs for identical inputs")
	}

	c := NewRestoreID("repo1", "snap1", "/home/alice/other")
	if a == c {
		t.Fatalf("expected different restore IDs for different paths")
	}

	d := NewRestoreID("repo2", "snap1", "/home/alice/docs")
	if a == d {
		t.Fatalf("expected different restore IDs for different repositories")
	}
}

func TestRestoreIDStringRoundTrip(t *testing.T) {
	id := NewRestoreID("repo1", "snap1", "/etc/hostname")
	parsed, err := ParseRestoreID(id.String())
	if err != nil {
		t.Fatalf("ParseRestoreID: %v", err)
	}
	if parsed != id {
		t.Fatalf("round trip mismatch")
	}
}
