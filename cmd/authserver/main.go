// Package main is the entry point for the simple-oauth authorization server.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/tendant/simple-oauth/internal/config"
	"github.com/tendant/simple-oauth/internal/consent"
	"github.com/tendant/simple-oauth/internal/crypto"
	"github.com/tendant/simple-oauth/internal/domain"
	oautherrors "github.com/tendant/simple-oauth/internal/errors"
	oauthhttp "github.com/tendant/simple-oauth/internal/http"
	"github.com/tendant/simple-oauth/internal/oauth"
	"github.com/tendant/simple-oauth/internal/store"
	"github.com/tendant/simple-oauth/internal/store/kv"
	"github.com/tendant/simple-oauth/internal/store/memory"
	redisstore "github.com/tendant/simple-oauth/internal/store/redis"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// Setup logger
	var handler slog.Handler
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: parseLogLevel(cfg.LogLevel),
		})
	} else {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level: parseLogLevel(cfg.LogLevel),
		})
	}
	logger := slog.New(handler)
	slog.SetDefault(logger)

	ctx := context.Background()

	// Initialize storage backend
	var (
		backend store.KV
		pinger  oauthhttp.Pinger
	)
	switch cfg.Store {
	case "redis":
		rkv, err := redisstore.NewKV(ctx, redisstore.Config{
			Addr:      cfg.RedisAddr,
			Password:  cfg.RedisPassword,
			DB:        cfg.RedisDB,
			KeyPrefix: cfg.RedisKeyPrefix,
		})
		if err != nil {
			logger.Error("failed to connect to redis", "addr", cfg.RedisAddr, "error", err)
			os.Exit(1)
		}
		backend = rkv
		pinger = rkv
		logger.Info("initialized redis store", "addr", cfg.RedisAddr)
	default:
		backend = memory.NewKV()
		logger.Info("initialized memory store")
	}
	defer backend.Close()

	st := kv.NewStore(backend)

	if err := bootstrapClients(ctx, st.Clients(), cfg.ParseBootstrapClients(), logger); err != nil {
		logger.Error("failed to bootstrap clients", "error", err)
		os.Exit(1)
	}

	// Wire services
	consents := consent.NewManager(
		st.Consents(),
		cfg.ConsentTTL, cfg.ConsentRenewalWindow, cfg.ConsentMaxLifetime,
		consent.WithAllowScopeGrowth(cfg.AllowScopeGrowth),
	)

	authorizeService := oauth.NewAuthorizeService(
		st.Clients(), st.Grants(), st.Approvals(), consents,
		cfg.CodeTTL, cfg.ApprovalTTL,
		cfg.StrictMode,
	)
	tokenService := oauth.NewTokenService(
		st.Clients(), st.Grants(), st.Tokens(), st.GrantFamilies(),
		cfg.IssuerURL,
		cfg.AccessTokenTTL, cfg.RefreshTokenTTL, cfg.MaxAuthorizationLifetime, cfg.RefreshGracePeriod,
		cfg.StrictMode,
	)

	oauthHandler := oauthhttp.NewOAuthHandler(
		authorizeService,
		tokenService,
		oauthhttp.HeaderUserResolver("X-User-ID"),
		logger,
	)

	server := oauthhttp.NewServer(cfg.Addr(),
		oauthhttp.WithLogger(logger),
		oauthhttp.WithPinger(pinger),
		oauthhttp.WithRateLimit(cfg.TokenRateLimit),
	)
	server.MountOAuth(oauthHandler)

	// Start server in goroutine
	go func() {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	logger.Info("server started", "addr", cfg.Addr(), "issuer", cfg.IssuerURL, "strict_mode", cfg.StrictMode)

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}

// bootstrapClients registers the clients listed in OAUTH_BOOTSTRAP_CLIENTS,
// skipping ones that already exist.
func bootstrapClients(ctx context.Context, clients store.ClientRepository, bootstrap []config.BootstrapClient, logger *slog.Logger) error {
	for _, bc := range bootstrap {
		if _, err := clients.GetByID(ctx, bc.ID); err == nil {
			continue
		} else if !oautherrors.IsCode(err, oautherrors.CodeNotFound) {
			return err
		}

		client := &domain.Client{
			ID:           bc.ID,
			Name:         bc.ID,
			RedirectURIs: bc.RedirectURIs,
		}
		if !bc.Public {
			hash, err := crypto.HashSecret(bc.Secret)
			if err != nil {
				return err
			}
			client.SecretHash = hash
		}

		if err := clients.Create(ctx, client); err != nil {
			return err
		}
		logger.Info("bootstrapped client", "client_id", bc.ID, "public", bc.Public)
	}
	return nil
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
