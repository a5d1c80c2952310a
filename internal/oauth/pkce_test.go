package oauth

import (
	"testing"

	oautherrors "github.com/tendant/simple-oauth/internal/errors"
)

func TestVerifyCodeVerifier(t *testing.T) {
	// Verifier and S256 challenge from RFC 7636 appendix B.
	const (
		rfcVerifier  = "dBjftJeZ4CVP-mB92K27uhbUJU1p1r_wW1gFWFOEjXk"
		rfcChallenge = "E9Melhoa2OwvFrEMTJguCHaoeK1t8URWbuGJSstw-cM"
	)

	tests := []struct {
		name      string
		verifier  string
		challenge string
		method    string
		wantErr   bool
	}{
		{"valid S256", rfcVerifier, rfcChallenge, "S256", false},
		{"invalid S256", "wrong-verifier-wrong-verifier-wrong-verifie", rfcChallenge, "S256", true},
		{"valid plain", "plain-verifier-value", "plain-verifier-value", "plain", false},
		{"invalid plain", "plain-verifier-value", "other-value", "plain", true},
		{"no challenge no verifier", "", "", "", false},
		{"verifier without challenge", "some-verifier", "", "", true},
		{"challenge without verifier", "", rfcChallenge, "S256", true},
		{"unsupported method", rfcVerifier, rfcChallenge, "S512", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := VerifyCodeVerifier(tt.verifier, tt.challenge, tt.method)
			if tt.wantErr && err == nil {
				t.Error("expected error, got nil")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
			if tt.wantErr && !oautherrors.IsCode(err, oautherrors.CodeInvalidGrant) {
				t.Errorf("error code should be invalid_grant, got %v", err)
			}
		})
	}
}
