// Package crypto provides the cryptographic primitives for the authorization
// server: high-entropy token generation, one-way token hashing for storage
// keys, PBKDF2 client-secret hashing, and per-grant context encryption.
package crypto

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/crypto/pbkdf2"
)

const (
	// tokenRandomBytes is the entropy of the random segment of every token.
	tokenRandomBytes = 32

	// PBKDF2 parameters for client-secret hashing. Iterations are recorded
	// in the encoded hash so they can be raised without invalidating
	// existing secrets.
	secretSaltBytes  = 16
	secretKeyBytes   = 32
	secretIterations = 100000
)

// NewSecret generates a cryptographically secure random string of n bytes of
// entropy, base64url-encoded.
func NewSecret(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate random secret: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// NewToken mints a token structurally bound to its user and grant:
// "{userID}.{grantID}.{random}". The binding allows the grant id to be
// recovered from a presented token without a storage round-trip, which the
// refresh grace window relies on. The random segment carries all the entropy.
func NewToken(userID, grantID string) (string, error) {
	random, err := NewSecret(tokenRandomBytes)
	if err != nil {
		return "", err
	}
	return userID + "." + grantID + "." + random, nil
}

// NewCode mints an authorization code bound to its grant:
// "{grantID}.{random}". A consumed code can therefore still name its grant
// family when it is presented again, which is what lets a replay revoke the
// tokens the first exchange issued. The random segment carries all the
// entropy.
func NewCode(grantID string) (string, error) {
	random, err := NewSecret(tokenRandomBytes)
	if err != nil {
		return "", err
	}
	return grantID + "." + random, nil
}

// ParseCode recovers the grant id from an authorization code. Grant ids
// never contain '.', so the split anchors on the right.
func ParseCode(code string) (grantID string, ok bool) {
	last := strings.LastIndexByte(code, '.')
	if last <= 0 {
		return "", false
	}
	return code[:last], true
}

// ParseToken splits a token into its user and grant components. The random
// segment and grant id never contain '.', so parsing anchors on the right;
// user identifiers may contain dots.
func ParseToken(token string) (userID, grantID string, ok bool) {
	last := strings.LastIndexByte(token, '.')
	if last <= 0 {
		return "", "", false
	}
	rest := token[:last]
	mid := strings.LastIndexByte(rest, '.')
	if mid <= 0 {
		return "", "", false
	}
	return rest[:mid], rest[mid+1:], true
}

// HashToken returns the one-way hash under which a token or code is stored.
// Storage compromise therefore never yields a usable credential.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// HashSecret hashes a client secret with PBKDF2-SHA256 and a random salt.
// Format: $pbkdf2-sha256$<iterations>$<b64 salt>$<b64 key>
func HashSecret(secret string) (string, error) {
	salt := make([]byte, secretSaltBytes)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("failed to generate salt: %w", err)
	}
	key := pbkdf2.Key([]byte(secret), salt, secretIterations, secretKeyBytes, sha256.New)
	return fmt.Sprintf("$pbkdf2-sha256$%d$%s$%s",
		secretIterations,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

// VerifySecret checks a client secret against its stored hash using a
// constant-time comparison.
func VerifySecret(encoded, secret string) bool {
	parts := strings.Split(encoded, "$")
	if len(parts) != 5 || parts[0] != "" || parts[1] != "pbkdf2-sha256" {
		return false
	}
	iterations, err := strconv.Atoi(parts[2])
	if err != nil || iterations < 1 {
		return false
	}
	salt, err := base64.RawStdEncoding.DecodeString(parts[3])
	if err != nil {
		return false
	}
	expected, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return false
	}
	key := pbkdf2.Key([]byte(secret), salt, iterations, len(expected), sha256.New)
	return subtle.ConstantTimeCompare(key, expected) == 1
}
