package consent

import (
	"context"
	"testing"
	"time"

	"github.com/tendant/simple-oauth/internal/domain"
	"github.com/tendant/simple-oauth/internal/store"
	"github.com/tendant/simple-oauth/internal/store/kv"
	"github.com/tendant/simple-oauth/internal/store/memory"
)

func newTestManager(t *testing.T, opts ...Option) (*Manager, store.ConsentRepository) {
	t.Helper()
	repo := kv.NewStore(memory.NewKV()).Consents()
	m := NewManager(repo, 30*24*time.Hour, 7*24*time.Hour, 90*24*time.Hour, opts...)
	return m, repo
}

func TestCheckMiss(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	c, err := m.Check(ctx, "alice", "app", "profile")
	if err != nil {
		t.Fatalf("Check failed: %v", err)
	}
	if c != nil {
		t.Errorf("no consent on file should return nil, got %+v", c)
	}
}

func TestGrantThenCheck(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	if _, err := m.Grant(ctx, "alice", "app", "profile email", true); err != nil {
		t.Fatalf("Grant failed: %v", err)
	}

	c, err := m.Check(ctx, "alice", "app", "profile")
	if err != nil {
		t.Fatalf("Check failed: %v", err)
	}
	if c == nil {
		t.Fatal("consent should cover a scope subset")
	}
	if c.UseCount != 1 {
		t.Errorf("UseCount = %d, want 1", c.UseCount)
	}
	if c.LastUsedAt.IsZero() {
		t.Error("Check should record LastUsedAt")
	}

	c2, err := m.Check(ctx, "alice", "app", "email")
	if err != nil {
		t.Fatalf("Check failed: %v", err)
	}
	if c2 == nil || c2.UseCount != 2 {
		t.Errorf("second check should increment UseCount, got %+v", c2)
	}
}

func TestCheckScopeNotCovered(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	if _, err := m.Grant(ctx, "alice", "app", "profile", true); err != nil {
		t.Fatalf("Grant failed: %v", err)
	}

	c, err := m.Check(ctx, "alice", "app", "profile email")
	if err != nil {
		t.Fatalf("Check failed: %v", err)
	}
	if c != nil {
		t.Errorf("uncovered scope should require re-consent, got %+v", c)
	}
}

func TestCheckScopeGrowth(t *testing.T) {
	m, _ := newTestManager(t, WithAllowScopeGrowth(true))
	ctx := context.Background()

	if _, err := m.Grant(ctx, "alice", "app", "profile", true); err != nil {
		t.Fatalf("Grant failed: %v", err)
	}

	c, err := m.Check(ctx, "alice", "app", "email profile")
	if err != nil {
		t.Fatalf("Check failed: %v", err)
	}
	if c == nil {
		t.Fatal("scope growth enabled: check should succeed")
	}
	if c.Scope != "email profile" {
		t.Errorf("Scope = %q, want merged %q", c.Scope, "email profile")
	}
}

func TestCheckExpiredDeletes(t *testing.T) {
	m, repo := newTestManager(t)
	ctx := context.Background()

	// Write a backdated consent directly; Grant always stamps now.
	now := time.Now()
	expired := &domain.Consent{
		UserID:    "alice",
		ClientID:  "app",
		Scope:     "profile",
		GrantedAt: now.Add(-48 * time.Hour),
		ExpiresAt: now.Add(-time.Hour),
	}
	if err := repo.Put(ctx, expired, 0); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	c, err := m.Check(ctx, "alice", "app", "profile")
	if err != nil {
		t.Fatalf("Check failed: %v", err)
	}
	if c != nil {
		t.Errorf("expired consent should miss, got %+v", c)
	}
	if _, err := repo.Get(ctx, "alice", "app"); err == nil {
		t.Error("expired consent should be deleted on check")
	}
}

func TestAutoRenewExtends(t *testing.T) {
	m, repo := newTestManager(t)
	ctx := context.Background()

	// Near expiry, auto-renewing, well within the lifetime ceiling.
	now := time.Now()
	consent := &domain.Consent{
		UserID:    "alice",
		ClientID:  "app",
		Scope:     "profile",
		GrantedAt: now.Add(-10 * 24 * time.Hour),
		ExpiresAt: now.Add(24 * time.Hour),
		AutoRenew: true,
	}
	if err := repo.Put(ctx, consent, 0); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	c, err := m.Check(ctx, "alice", "app", "profile")
	if err != nil {
		t.Fatalf("Check failed: %v", err)
	}
	if c == nil {
		t.Fatal("check should hit")
	}
	if c.ExpiresAt.Before(now.Add(29 * 24 * time.Hour)) {
		t.Errorf("consent should be renewed ~30d out, got %v", c.ExpiresAt)
	}
}

func TestAutoRenewCappedAtMaxLifetime(t *testing.T) {
	m, repo := newTestManager(t)
	ctx := context.Background()

	// Granted 89 days ago: renewal may extend at most 1 more day.
	now := time.Now()
	consent := &domain.Consent{
		UserID:    "alice",
		ClientID:  "app",
		Scope:     "profile",
		GrantedAt: now.Add(-89 * 24 * time.Hour),
		ExpiresAt: now.Add(12 * time.Hour),
		AutoRenew: true,
	}
	if err := repo.Put(ctx, consent, 0); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	c, err := m.Check(ctx, "alice", "app", "profile")
	if err != nil {
		t.Fatalf("Check failed: %v", err)
	}
	if c == nil {
		t.Fatal("check should hit")
	}
	ceiling := consent.GrantedAt.Add(90 * 24 * time.Hour)
	if c.ExpiresAt.After(ceiling) {
		t.Errorf("renewal must not pass GrantedAt+maxLifetime: %v > %v", c.ExpiresAt, ceiling)
	}
	if !c.ExpiresAt.After(now.Add(12 * time.Hour)) {
		t.Errorf("renewal should still extend expiry, got %v", c.ExpiresAt)
	}
}

func TestNoRenewWithoutAutoRenew(t *testing.T) {
	m, repo := newTestManager(t)
	ctx := context.Background()

	now := time.Now()
	expiry := now.Add(24 * time.Hour)
	consent := &domain.Consent{
		UserID:    "alice",
		ClientID:  "app",
		Scope:     "profile",
		GrantedAt: now.Add(-10 * 24 * time.Hour),
		ExpiresAt: expiry,
		AutoRenew: false,
	}
	if err := repo.Put(ctx, consent, 0); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	c, err := m.Check(ctx, "alice", "app", "profile")
	if err != nil {
		t.Fatalf("Check failed: %v", err)
	}
	if c == nil {
		t.Fatal("check should hit")
	}
	if !c.ExpiresAt.Equal(expiry) {
		t.Errorf("non-renewing consent expiry should be unchanged, got %v", c.ExpiresAt)
	}
}

func TestRevokeAndList(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	if _, err := m.Grant(ctx, "alice", "app1", "profile", true); err != nil {
		t.Fatalf("Grant failed: %v", err)
	}
	if _, err := m.Grant(ctx, "alice", "app2", "email", true); err != nil {
		t.Fatalf("Grant failed: %v", err)
	}

	list, err := m.ListForUser(ctx, "alice")
	if err != nil {
		t.Fatalf("ListForUser failed: %v", err)
	}
	if len(list) != 2 {
		t.Errorf("got %d consents, want 2", len(list))
	}

	if err := m.Revoke(ctx, "alice", "app1"); err != nil {
		t.Fatalf("Revoke failed: %v", err)
	}
	c, err := m.Check(ctx, "alice", "app1", "profile")
	if err != nil {
		t.Fatalf("Check failed: %v", err)
	}
	if c != nil {
		t.Error("revoked consent should miss")
	}

	if err := m.RevokeAll(ctx, "alice"); err != nil {
		t.Fatalf("RevokeAll failed: %v", err)
	}
	list, err = m.ListForUser(ctx, "alice")
	if err != nil {
		t.Fatalf("ListForUser failed: %v", err)
	}
	if len(list) != 0 {
		t.Errorf("all consents should be revoked, got %d", len(list))
	}
}
