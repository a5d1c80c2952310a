// Package domain defines the core record types for the authorization server.
package domain

import (
	"strings"
	"time"
)

// Record kind discriminators. Every stored record carries one; the storage
// layer rejects a record whose kind does not match its namespace.
const (
	KindClient      = "client"
	KindGrant       = "grant"
	KindAccessToken = "access_token"
	KindRefresh     = "refresh_token"
	KindGrantTokens = "grant_tokens"
	KindConsent     = "consent"
	KindApproval    = "approval_request"
)

// Client represents a registered OAuth 2.1 client application.
type Client struct {
	Kind         string    `json:"kind"`
	ID           string    `json:"id"`
	SecretHash   string    `json:"secret_hash,omitempty"` // Empty for public clients
	Name         string    `json:"name"`
	RedirectURIs []string  `json:"redirect_uris"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Public reports whether the client is a public client (no secret).
func (c *Client) Public() bool {
	return c.SecretHash == ""
}

// AllowsRedirectURI checks the redirect URI against the registered set.
// Exact string match only: no prefix, suffix, or query-parameter leniency.
func (c *Client) AllowsRedirectURI(uri string) bool {
	for _, registered := range c.RedirectURIs {
		if registered == uri {
			return true
		}
	}
	return false
}

// EncryptedContext is an opaque, caller-defined secret payload bound to one
// credential. The content key is wrapped to the credential string, so only
// the holder of that credential can recover the plaintext.
type EncryptedContext struct {
	Ciphertext []byte `json:"ciphertext"`
	IV         []byte `json:"iv"`
	WrappedKey []byte `json:"wrapped_key"`
}

// Grant represents one authorization-code issuance. It is stored keyed by
// the hash of its single-use code; the plaintext code is never persisted.
type Grant struct {
	Kind                string            `json:"kind"`
	ID                  string            `json:"id"`
	ClientID            string            `json:"client_id"`
	UserID              string            `json:"user_id"`
	Scope               string            `json:"scope"`
	RedirectURI         string            `json:"redirect_uri,omitempty"`
	CodeChallenge       string            `json:"code_challenge,omitempty"`
	CodeChallengeMethod string            `json:"code_challenge_method,omitempty"` // plain or S256
	CreatedAt           time.Time         `json:"created_at"`
	ExpiresAt           time.Time         `json:"expires_at"`
	Exchanged           bool              `json:"exchanged"`
	Context             *EncryptedContext `json:"context,omitempty"` // wrapped to the code
}

// IsExpired checks if the authorization code has expired.
func (g *Grant) IsExpired() bool {
	return time.Now().After(g.ExpiresAt)
}

// AccessToken is the server-side record of an access token, stored keyed by
// the hash of the token value.
type AccessToken struct {
	Kind      string            `json:"kind"`
	UserID    string            `json:"user_id"`
	ClientID  string            `json:"client_id"`
	Scope     string            `json:"scope"`
	GrantID   string            `json:"grant_id"`
	CreatedAt time.Time         `json:"created_at"` // copied from the originating grant
	ExpiresAt time.Time         `json:"expires_at"`
	Context   *EncryptedContext `json:"context,omitempty"`
}

// IsExpired checks if the access token has expired.
func (t *AccessToken) IsExpired() bool {
	return time.Now().After(t.ExpiresAt)
}

// RefreshToken is the server-side record of a refresh token. CreatedAt is
// the originating grant's creation time and must be copied forward unchanged
// through every rotation; IssuedAt is when this particular record was minted.
type RefreshToken struct {
	Kind              string            `json:"kind"`
	UserID            string            `json:"user_id"`
	ClientID          string            `json:"client_id"`
	Scope             string            `json:"scope"`
	GrantID           string            `json:"grant_id"`
	CreatedAt         time.Time         `json:"created_at"`
	IssuedAt          time.Time         `json:"issued_at"`
	ExpiresAt         time.Time         `json:"expires_at"`
	PreviousTokenHash string            `json:"previous_token_hash,omitempty"`
	IsRotated         bool              `json:"is_rotated"`
	RotatedAt         time.Time         `json:"rotated_at,omitempty"`
	Context           *EncryptedContext `json:"context,omitempty"`
}

// IsExpired checks if the refresh token has expired.
func (t *RefreshToken) IsExpired() bool {
	return time.Now().After(t.ExpiresAt)
}

// GrantTokens indexes the most recently issued token pair for a grant. It
// enables family-wide invalidation on replay detection and serves as the
// rotation-head pointer for the refresh grace window.
type GrantTokens struct {
	Kind             string    `json:"kind"`
	GrantID          string    `json:"grant_id"`
	AccessTokenHash  string    `json:"access_token_hash"`
	RefreshTokenHash string    `json:"refresh_token_hash,omitempty"`
	IssuedAt         time.Time `json:"issued_at"`
}

// Consent records a user's durable authorization decision for a client.
type Consent struct {
	Kind       string    `json:"kind"`
	UserID     string    `json:"user_id"`
	ClientID   string    `json:"client_id"`
	Scope      string    `json:"scope"`
	GrantedAt  time.Time `json:"granted_at"`
	ExpiresAt  time.Time `json:"expires_at"`
	LastUsedAt time.Time `json:"last_used_at,omitempty"`
	UseCount   int       `json:"use_count"`
	AutoRenew  bool      `json:"auto_renew"`
}

// IsExpired checks if the consent has expired.
func (c *Consent) IsExpired() bool {
	return time.Now().After(c.ExpiresAt)
}

// Covers reports whether the granted scope covers every requested scope
// token. An empty requested scope is always covered.
func (c *Consent) Covers(requestedScope string) bool {
	granted := make(map[string]bool)
	for _, s := range strings.Fields(c.Scope) {
		granted[s] = true
	}
	for _, s := range strings.Fields(requestedScope) {
		if !granted[s] {
			return false
		}
	}
	return true
}

// ApprovalRequest is a single-use, time-boxed anti-forgery ticket binding a
// pending authorization to the specific (client, redirect_uri) pair the user
// was asked to approve.
type ApprovalRequest struct {
	Kind                string    `json:"kind"`
	ClientID            string    `json:"client_id"`
	UserID              string    `json:"user_id"`
	RedirectURI         string    `json:"redirect_uri"`
	Scope               string    `json:"scope"`
	State               string    `json:"state,omitempty"`
	CodeChallenge       string    `json:"code_challenge,omitempty"`
	CodeChallengeMethod string    `json:"code_challenge_method,omitempty"`
	CreatedAt           time.Time `json:"created_at"`
	ExpiresAt           time.Time `json:"expires_at"`
}

// IsExpired checks if the approval ticket has expired.
func (a *ApprovalRequest) IsExpired() bool {
	return time.Now().After(a.ExpiresAt)
}
