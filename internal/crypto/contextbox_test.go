package crypto

import (
	"bytes"
	"testing"
)

func TestSealAndOpenContext(t *testing.T) {
	plaintext := []byte(`{"upstream_token":"ya29.secret"}`)

	sealed, err := SealContext(plaintext, "credential-abc")
	if err != nil {
		t.Fatalf("SealContext failed: %v", err)
	}
	if bytes.Contains(sealed.Ciphertext, []byte("ya29")) {
		t.Error("ciphertext should not contain plaintext")
	}

	opened, err := OpenContext(sealed, "credential-abc")
	if err != nil {
		t.Fatalf("OpenContext failed: %v", err)
	}
	if !bytes.Equal(opened, plaintext) {
		t.Errorf("opened = %q, want %q", opened, plaintext)
	}
}

func TestOpenContextWrongCredential(t *testing.T) {
	sealed, err := SealContext([]byte("secret payload"), "right-credential")
	if err != nil {
		t.Fatalf("SealContext failed: %v", err)
	}

	if _, err := OpenContext(sealed, "wrong-credential"); err == nil {
		t.Error("wrong credential should fail to open")
	}
}

func TestOpenContextTampered(t *testing.T) {
	sealed, err := SealContext([]byte("secret payload"), "credential")
	if err != nil {
		t.Fatalf("SealContext failed: %v", err)
	}

	sealed.Ciphertext[0] ^= 0xff
	if _, err := OpenContext(sealed, "credential"); err == nil {
		t.Error("tampered ciphertext should fail authentication")
	}
}

func TestSealContextIndependentCopies(t *testing.T) {
	plaintext := []byte("shared payload")

	a, err := SealContext(plaintext, "cred-a")
	if err != nil {
		t.Fatalf("SealContext failed: %v", err)
	}
	b, err := SealContext(plaintext, "cred-b")
	if err != nil {
		t.Fatalf("SealContext failed: %v", err)
	}

	// Fresh content key per copy: identical plaintext never repeats on the wire.
	if bytes.Equal(a.Ciphertext, b.Ciphertext) {
		t.Error("two seals of the same plaintext should differ")
	}
	if _, err := OpenContext(a, "cred-b"); err == nil {
		t.Error("copy sealed to cred-a should not open with cred-b")
	}
}

func TestResealContext(t *testing.T) {
	plaintext := []byte("rotating payload")

	old, err := SealContext(plaintext, "old-token")
	if err != nil {
		t.Fatalf("SealContext failed: %v", err)
	}

	fresh, err := ResealContext(old, "old-token", "new-token")
	if err != nil {
		t.Fatalf("ResealContext failed: %v", err)
	}

	opened, err := OpenContext(fresh, "new-token")
	if err != nil {
		t.Fatalf("OpenContext with new credential failed: %v", err)
	}
	if !bytes.Equal(opened, plaintext) {
		t.Errorf("opened = %q, want %q", opened, plaintext)
	}

	// The resealed copy must not be openable with the old credential.
	if _, err := OpenContext(fresh, "old-token"); err == nil {
		t.Error("resealed copy should not open with old credential")
	}
	// The old copy remains independently intact.
	if _, err := OpenContext(old, "old-token"); err != nil {
		t.Errorf("original copy should still open: %v", err)
	}
}

func TestResealContextWrongCredential(t *testing.T) {
	sealed, err := SealContext([]byte("payload"), "token")
	if err != nil {
		t.Fatalf("SealContext failed: %v", err)
	}
	if _, err := ResealContext(sealed, "wrong", "new"); err == nil {
		t.Error("reseal with wrong credential should fail")
	}
}
