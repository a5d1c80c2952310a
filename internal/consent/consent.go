// Package consent tracks durable per-(user, client) authorization decisions
// with expiry and opportunistic renewal.
package consent

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/tendant/simple-oauth/internal/domain"
	oautherrors "github.com/tendant/simple-oauth/internal/errors"
	"github.com/tendant/simple-oauth/internal/store"
)

// Manager implements the consent lifecycle over a ConsentRepository.
type Manager struct {
	consents store.ConsentRepository

	ttl              time.Duration
	renewalWindow    time.Duration
	maxLifetime      time.Duration
	allowScopeGrowth bool
}

// Option configures the Manager.
type Option func(*Manager)

// WithAllowScopeGrowth permits a consent check to succeed and extend the
// granted scope when new scopes are requested. The default requires
// re-consent on any new scope.
func WithAllowScopeGrowth(allow bool) Option {
	return func(m *Manager) {
		m.allowScopeGrowth = allow
	}
}

// NewManager creates a consent Manager. ttl is the lifetime of a fresh or
// renewed consent, renewalWindow is how close to expiry a use triggers a
// renewal, and maxLifetime caps total lifetime measured from GrantedAt.
func NewManager(consents store.ConsentRepository, ttl, renewalWindow, maxLifetime time.Duration, opts ...Option) *Manager {
	m := &Manager{
		consents:      consents,
		ttl:           ttl,
		renewalWindow: renewalWindow,
		maxLifetime:   maxLifetime,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Check returns the consent for (user, client) if it is valid and covers the
// requested scope, or nil if the user must (re-)consent. On a hit it records
// the use and, when the consent is within the renewal window of expiry,
// extends it up to GrantedAt+maxLifetime.
func (m *Manager) Check(ctx context.Context, userID, clientID, scope string) (*domain.Consent, error) {
	consent, err := m.consents.Get(ctx, userID, clientID)
	if oautherrors.IsCode(err, oautherrors.CodeNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	now := time.Now()
	if consent.IsExpired() {
		if err := m.consents.Delete(ctx, userID, clientID); err != nil {
			return nil, err
		}
		return nil, nil
	}

	if !consent.Covers(scope) {
		if !m.allowScopeGrowth {
			return nil, nil
		}
		consent.Scope = mergeScopes(consent.Scope, scope)
	}

	consent.UseCount++
	consent.LastUsedAt = now

	if consent.AutoRenew && consent.ExpiresAt.Sub(now) < m.renewalWindow {
		renewed := now.Add(m.ttl)
		if ceiling := consent.GrantedAt.Add(m.maxLifetime); renewed.After(ceiling) {
			renewed = ceiling
		}
		if renewed.After(consent.ExpiresAt) {
			consent.ExpiresAt = renewed
		}
	}

	if err := m.consents.Put(ctx, consent, time.Until(consent.ExpiresAt)); err != nil {
		return nil, err
	}
	return consent, nil
}

// Grant records a new consent decision, replacing any existing one for the
// same (user, client) pair.
func (m *Manager) Grant(ctx context.Context, userID, clientID, scope string, autoRenew bool) (*domain.Consent, error) {
	now := time.Now()
	consent := &domain.Consent{
		UserID:    userID,
		ClientID:  clientID,
		Scope:     scope,
		GrantedAt: now,
		ExpiresAt: now.Add(m.ttl),
		AutoRenew: autoRenew,
	}
	if err := m.consents.Put(ctx, consent, m.ttl); err != nil {
		return nil, err
	}
	return consent, nil
}

// Revoke removes the consent for a single client.
func (m *Manager) Revoke(ctx context.Context, userID, clientID string) error {
	return m.consents.Delete(ctx, userID, clientID)
}

// ListForUser returns all live consents for a user.
func (m *Manager) ListForUser(ctx context.Context, userID string) ([]*domain.Consent, error) {
	consents, err := m.consents.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	live := consents[:0]
	for _, c := range consents {
		if !c.IsExpired() {
			live = append(live, c)
		}
	}
	return live, nil
}

// RevokeAll removes every consent for a user.
func (m *Manager) RevokeAll(ctx context.Context, userID string) error {
	return m.consents.DeleteByUser(ctx, userID)
}

// mergeScopes unions two space-separated scope strings, sorted for a stable
// stored representation.
func mergeScopes(a, b string) string {
	set := make(map[string]bool)
	for _, s := range strings.Fields(a) {
		set[s] = true
	}
	for _, s := range strings.Fields(b) {
		set[s] = true
	}
	merged := make([]string, 0, len(set))
	for s := range set {
		merged = append(merged, s)
	}
	sort.Strings(merged)
	return strings.Join(merged, " ")
}
