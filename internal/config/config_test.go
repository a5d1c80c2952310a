package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Addr() != "0.0.0.0:8080" {
		t.Errorf("Addr() = %q", cfg.Addr())
	}
	if cfg.Store != "memory" {
		t.Errorf("Store = %q, want memory", cfg.Store)
	}
	if cfg.CodeTTL != 10*time.Minute {
		t.Errorf("CodeTTL = %v", cfg.CodeTTL)
	}
	if cfg.AccessTokenTTL != time.Hour {
		t.Errorf("AccessTokenTTL = %v", cfg.AccessTokenTTL)
	}
	if cfg.RefreshTokenTTL != 720*time.Hour {
		t.Errorf("RefreshTokenTTL = %v", cfg.RefreshTokenTTL)
	}
	if cfg.MaxAuthorizationLifetime != 2160*time.Hour {
		t.Errorf("MaxAuthorizationLifetime = %v", cfg.MaxAuthorizationLifetime)
	}
	if cfg.RefreshGracePeriod != 2*time.Minute {
		t.Errorf("RefreshGracePeriod = %v", cfg.RefreshGracePeriod)
	}
	if !cfg.StrictMode {
		t.Error("StrictMode should default to true")
	}
	if cfg.AllowScopeGrowth {
		t.Error("AllowScopeGrowth should default to false")
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("OAUTH_PORT", "9090")
	t.Setenv("OAUTH_STORE", "redis")
	t.Setenv("OAUTH_STRICT_MODE", "false")
	t.Setenv("OAUTH_CODE_TTL", "5m")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Port != 9090 {
		t.Errorf("Port = %d", cfg.Port)
	}
	if cfg.Store != "redis" {
		t.Errorf("Store = %q", cfg.Store)
	}
	if cfg.StrictMode {
		t.Error("StrictMode should be overridable")
	}
	if cfg.CodeTTL != 5*time.Minute {
		t.Errorf("CodeTTL = %v", cfg.CodeTTL)
	}
}

func TestLoadRejectsUnknownStore(t *testing.T) {
	t.Setenv("OAUTH_STORE", "cassandra")
	if _, err := Load(); err == nil {
		t.Error("unknown store backend should fail")
	}
}

func TestParseBootstrapClients(t *testing.T) {
	cfg := &Config{
		BootstrapClients: "web-app|topsecret|http://localhost:3000/cb http://localhost:4000/cb, spa||http://localhost:5173/cb,,malformed",
	}

	clients := cfg.ParseBootstrapClients()
	if len(clients) != 2 {
		t.Fatalf("got %d clients, want 2: %+v", len(clients), clients)
	}

	if clients[0].ID != "web-app" || clients[0].Secret != "topsecret" || clients[0].Public {
		t.Errorf("unexpected confidential client: %+v", clients[0])
	}
	if len(clients[0].RedirectURIs) != 2 {
		t.Errorf("RedirectURIs = %v", clients[0].RedirectURIs)
	}

	if clients[1].ID != "spa" || !clients[1].Public {
		t.Errorf("empty secret should mean public client: %+v", clients[1])
	}
}

func TestParseBootstrapClientsEmpty(t *testing.T) {
	cfg := &Config{}
	if clients := cfg.ParseBootstrapClients(); clients != nil {
		t.Errorf("empty env should yield nil, got %+v", clients)
	}
}
