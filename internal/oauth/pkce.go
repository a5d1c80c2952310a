// Package oauth implements the OAuth 2.1 grant and token lifecycle engine:
// authorization-code issuance, PKCE, code exchange, refresh rotation with a
// grace window, and grant-family invalidation on replay detection.
package oauth

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"

	oautherrors "github.com/tendant/simple-oauth/internal/errors"
)

// PKCE code challenge methods (RFC 7636).
const (
	CodeChallengePlain = "plain"
	CodeChallengeS256  = "S256"
)

// VerifyCodeVerifier checks a PKCE verifier against the challenge stored on
// the grant. If the grant carries a challenge, a verifier is mandatory; if
// it carries none, a supplied verifier is itself an error, which prevents
// verifier confusion attacks.
func VerifyCodeVerifier(verifier, challenge, method string) error {
	if challenge == "" {
		if verifier != "" {
			return oautherrors.InvalidGrant("code_verifier provided but no code_challenge was registered")
		}
		return nil
	}
	if verifier == "" {
		return oautherrors.InvalidGrant("code_verifier is required")
	}

	switch method {
	case CodeChallengePlain:
		if subtle.ConstantTimeCompare([]byte(verifier), []byte(challenge)) != 1 {
			return oautherrors.InvalidGrant("invalid code_verifier")
		}
	case CodeChallengeS256:
		hash := sha256.Sum256([]byte(verifier))
		computed := base64.RawURLEncoding.EncodeToString(hash[:])
		if subtle.ConstantTimeCompare([]byte(computed), []byte(challenge)) != 1 {
			return oautherrors.InvalidGrant("invalid code_verifier")
		}
	default:
		return oautherrors.InvalidGrant("unsupported code_challenge_method")
	}
	return nil
}
