// Package main provides a utility to seed test clients for development.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"

	"github.com/tendant/simple-oauth/internal/crypto"
	"github.com/tendant/simple-oauth/internal/domain"
	"github.com/tendant/simple-oauth/internal/store/kv"
	redisstore "github.com/tendant/simple-oauth/internal/store/redis"
)

func main() {
	redisAddr := flag.String("redis-addr", "localhost:6379", "Redis address")
	keyPrefix := flag.String("key-prefix", "oauth:", "Redis key prefix")
	flag.Parse()

	ctx := context.Background()

	backend, err := redisstore.NewKV(ctx, redisstore.Config{
		Addr:      *redisAddr,
		KeyPrefix: *keyPrefix,
	})
	if err != nil {
		log.Fatalf("Failed to connect to redis: %v", err)
	}
	defer backend.Close()

	store := kv.NewStore(backend)

	// Create confidential test client
	secret := "test-secret"
	hash, err := crypto.HashSecret(secret)
	if err != nil {
		log.Fatalf("Failed to hash client secret: %v", err)
	}
	client := &domain.Client{
		ID:           "test-client",
		SecretHash:   hash,
		Name:         "Test Application",
		RedirectURIs: []string{"http://localhost:3000/callback", "http://localhost:8081/callback"},
	}

	if err := store.Clients().Create(ctx, client); err != nil {
		fmt.Printf("Client may already exist: %v\n", err)
	} else {
		fmt.Printf("Created client: %s (secret: %s)\n", client.ID, secret)
	}

	// Create public test client (PKCE required in strict mode)
	publicClient := &domain.Client{
		ID:           "test-public-client",
		Name:         "Test Public Application",
		RedirectURIs: []string{"http://localhost:3000/callback", "http://localhost:8081/callback"},
	}

	if err := store.Clients().Create(ctx, publicClient); err != nil {
		fmt.Printf("Public client may already exist: %v\n", err)
	} else {
		fmt.Printf("Created public client: %s\n", publicClient.ID)
	}

	fmt.Println("\nSeed data created successfully!")
	fmt.Println("\nTest with:")
	fmt.Println("  1. Start server: OAUTH_STORE=redis go run ./cmd/authserver")
	fmt.Println("  2. Authorize: curl -H 'X-User-ID: alice' 'http://localhost:8080/authorize?client_id=test-client&redirect_uri=http://localhost:3000/callback&response_type=code&scope=profile&state=test123'")
	fmt.Println("  3. Approve the returned ticket via POST /authorize/decision, then exchange the code at POST /token")
}
