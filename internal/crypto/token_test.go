package crypto

import (
	"strings"
	"testing"
)

func TestNewSecret(t *testing.T) {
	s1, err := NewSecret(32)
	if err != nil {
		t.Fatalf("NewSecret failed: %v", err)
	}
	s2, err := NewSecret(32)
	if err != nil {
		t.Fatalf("NewSecret failed: %v", err)
	}

	if s1 == s2 {
		t.Error("two secrets should not be equal")
	}
	if strings.ContainsAny(s1, "+/=") {
		t.Errorf("secret should be base64url without padding: %q", s1)
	}
}

func TestNewTokenAndParse(t *testing.T) {
	tests := []struct {
		name    string
		userID  string
		grantID string
	}{
		{"simple ids", "alice", "grant-123"},
		{"uuid grant", "bob", "a81bc81b-dead-4e5d-abff-90865d1e13b1"},
		{"user id with dots", "alice@example.com", "grant-456"},
		{"user id with many dots", "a.b.c.d", "grant-789"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			token, err := NewToken(tt.userID, tt.grantID)
			if err != nil {
				t.Fatalf("NewToken failed: %v", err)
			}

			userID, grantID, ok := ParseToken(token)
			if !ok {
				t.Fatalf("ParseToken failed for %q", token)
			}
			if userID != tt.userID {
				t.Errorf("userID = %q, want %q", userID, tt.userID)
			}
			if grantID != tt.grantID {
				t.Errorf("grantID = %q, want %q", grantID, tt.grantID)
			}
		})
	}
}

func TestNewCodeAndParse(t *testing.T) {
	const grantID = "a81bc81b-dead-4e5d-abff-90865d1e13b1"
	code, err := NewCode(grantID)
	if err != nil {
		t.Fatalf("NewCode failed: %v", err)
	}

	got, ok := ParseCode(code)
	if !ok {
		t.Fatalf("ParseCode failed for %q", code)
	}
	if got != grantID {
		t.Errorf("grantID = %q, want %q", got, grantID)
	}

	code2, err := NewCode(grantID)
	if err != nil {
		t.Fatalf("NewCode failed: %v", err)
	}
	if code == code2 {
		t.Error("two codes for the same grant should not be equal")
	}
}

func TestParseCodeMalformed(t *testing.T) {
	for _, code := range []string{"", "nodot", ".starts-with-dot"} {
		if _, ok := ParseCode(code); ok {
			t.Errorf("ParseCode(%q) should fail", code)
		}
	}
}

func TestParseTokenMalformed(t *testing.T) {
	for _, token := range []string{"", "nodots", "one.dot", ".starts.with-dot"} {
		if _, _, ok := ParseToken(token); ok {
			t.Errorf("ParseToken(%q) should fail", token)
		}
	}
}

func TestHashToken(t *testing.T) {
	h1 := HashToken("some-token")
	h2 := HashToken("some-token")
	h3 := HashToken("other-token")

	if h1 != h2 {
		t.Error("hash should be deterministic")
	}
	if h1 == h3 {
		t.Error("different tokens should hash differently")
	}
	if len(h1) != 64 {
		t.Errorf("hash length = %d, want 64 hex chars", len(h1))
	}
}

func TestHashAndVerifySecret(t *testing.T) {
	hash, err := HashSecret("correct-horse")
	if err != nil {
		t.Fatalf("HashSecret failed: %v", err)
	}

	if !strings.HasPrefix(hash, "$pbkdf2-sha256$") {
		t.Errorf("unexpected hash format: %q", hash)
	}
	if !VerifySecret(hash, "correct-horse") {
		t.Error("correct secret should verify")
	}
	if VerifySecret(hash, "wrong-horse") {
		t.Error("wrong secret should not verify")
	}
}

func TestVerifySecretMalformedHash(t *testing.T) {
	malformed := []string{
		"",
		"plaintext",
		"$pbkdf2-sha256$notanumber$c2FsdA$a2V5",
		"$bcrypt$10$c2FsdA$a2V5",
		"$pbkdf2-sha256$100000$!!!$a2V5",
	}
	for _, h := range malformed {
		if VerifySecret(h, "secret") {
			t.Errorf("VerifySecret(%q) should fail", h)
		}
	}
}

func TestHashSecretUniqueSalt(t *testing.T) {
	h1, err := HashSecret("secret")
	if err != nil {
		t.Fatalf("HashSecret failed: %v", err)
	}
	h2, err := HashSecret("secret")
	if err != nil {
		t.Fatalf("HashSecret failed: %v", err)
	}
	if h1 == h2 {
		t.Error("same secret should produce different hashes (random salt)")
	}
}
