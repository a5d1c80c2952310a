// Package store defines the storage contract and repository interfaces for
// the authorization server.
package store

import (
	"context"
	"time"

	"github.com/tendant/simple-oauth/internal/domain"
)

// Key namespaces. All core state is namespaced by these string prefixes.
const (
	PrefixClient      = "client:"
	PrefixGrant       = "grant:"
	PrefixToken       = "token:"
	PrefixRefresh     = "refresh:"
	PrefixGrantTokens = "grant-tokens:"
	PrefixConsent     = "consent:"
	PrefixApproval    = "authreq:"
)

// KV is the minimal durable key-value contract required of a backend.
// Backends must offer per-key read-after-write consistency; multi-key
// transactions are not assumed. A ttl of zero means no expiry.
type KV interface {
	// Get returns the value for key, or a not_found error.
	Get(ctx context.Context, key string) ([]byte, error)
	// GetDel returns the value for key and deletes it. Backends should make
	// this atomic where the underlying store allows it; it is the single-use
	// enforcement primitive for authorization codes.
	GetDel(ctx context.Context, key string) ([]byte, error)
	// Put stores value under key with an optional TTL.
	Put(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error
	// List returns all keys with the given prefix.
	List(ctx context.Context, prefix string) ([]string, error)
	// Close releases backend resources.
	Close() error
}

// ClientRepository defines operations for OAuth client persistence.
type ClientRepository interface {
	Create(ctx context.Context, client *domain.Client) error
	GetByID(ctx context.Context, id string) (*domain.Client, error)
	Update(ctx context.Context, client *domain.Client) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([]*domain.Client, error)
}

// GrantRepository defines operations for grant persistence. Grants are keyed
// by their single-use code; only a hash of the code ever reaches the backend.
type GrantRepository interface {
	Put(ctx context.Context, code string, grant *domain.Grant, ttl time.Duration) error
	// Consume reads the grant for code and deletes it in the same operation.
	// This is the single-use enforcement mechanism: a concurrent second
	// consumer must observe the deletion.
	Consume(ctx context.Context, code string) (*domain.Grant, error)
	Delete(ctx context.Context, code string) error
}

// TokenRepository defines operations for access and refresh token records,
// keyed by the one-way hash of the token value.
type TokenRepository interface {
	PutAccess(ctx context.Context, hash string, token *domain.AccessToken, ttl time.Duration) error
	GetAccess(ctx context.Context, hash string) (*domain.AccessToken, error)
	DeleteAccess(ctx context.Context, hash string) error

	PutRefresh(ctx context.Context, hash string, token *domain.RefreshToken, ttl time.Duration) error
	GetRefresh(ctx context.Context, hash string) (*domain.RefreshToken, error)
	DeleteRefresh(ctx context.Context, hash string) error
}

// GrantFamilyRepository defines operations for the grant-family index.
type GrantFamilyRepository interface {
	Put(ctx context.Context, grantID string, tokens *domain.GrantTokens, ttl time.Duration) error
	Get(ctx context.Context, grantID string) (*domain.GrantTokens, error)
	Delete(ctx context.Context, grantID string) error
}

// ConsentRepository defines operations for consent persistence. Keys are
// prefix-scoped per user so a user's consents can be listed and revoked
// together.
type ConsentRepository interface {
	Put(ctx context.Context, consent *domain.Consent, ttl time.Duration) error
	Get(ctx context.Context, userID, clientID string) (*domain.Consent, error)
	Delete(ctx context.Context, userID, clientID string) error
	ListByUser(ctx context.Context, userID string) ([]*domain.Consent, error)
	DeleteByUser(ctx context.Context, userID string) error
}

// ApprovalRepository defines operations for single-use approval tickets.
type ApprovalRepository interface {
	Put(ctx context.Context, ticket string, req *domain.ApprovalRequest, ttl time.Duration) error
	// Consume reads the approval request for ticket and deletes it.
	Consume(ctx context.Context, ticket string) (*domain.ApprovalRequest, error)
}

// Store aggregates all repositories.
type Store interface {
	Clients() ClientRepository
	Grants() GrantRepository
	Tokens() TokenRepository
	GrantFamilies() GrantFamilyRepository
	Consents() ConsentRepository
	Approvals() ApprovalRepository
	Close() error
}
