// Package main is the entry point for the sync server: it wires the
// persistence layer, the secrets codec, the OAuth manager, and the
// import orchestrator behind an HTTP API.
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/scrumlens/sync-core/internal/config"
	"github.com/scrumlens/sync-core/internal/importer"
	"github.com/scrumlens/sync-core/internal/kv"
	"github.com/scrumlens/sync-core/internal/oauth"
	"github.com/scrumlens/sync-core/internal/secrets"
	"github.com/scrumlens/sync-core/internal/store"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Load .env if present; real deployments set the environment directly.
	if err := godotenv.Load(); err == nil {
		log.Println("loaded environment from .env")
	}

	cfg := config.Load()

	codec, err := buildCodec(cfg)
	if err != nil {
		log.Fatalf("secrets codec: %v", err)
	}

	st, err := buildStore(ctx, cfg)
	if err != nil {
		log.Fatalf("store: %v", err)
	}
	defer st.Close()

	states, err := buildStateStore(cfg)
	if err != nil {
		log.Fatalf("state store: %v", err)
	}
	defer states.Close()

	var manager *oauth.Manager
	if cfg.OAuthClientID != "" {
		manager, err = oauth.NewManager(oauth.Config{
			ClientID:     cfg.OAuthClientID,
			ClientSecret: cfg.OAuthClientSecret,
			RedirectURI:  cfg.OAuthRedirectURI,
		}, codec, st, states)
		if err != nil {
			log.Fatalf("oauth manager: %v", err)
		}
	} else {
		log.Println("no OAuth client configured; oauth-mode imports are disabled")
	}

	// A nil *Manager must not reach the orchestrator as a non-nil
	// interface value.
	var tokens importer.TokenSource
	if manager != nil {
		tokens = manager
	}
	orchestrator := importer.NewOrchestrator(st, codec, tokens)

	srv := &server{
		orchestrator: orchestrator,
		oauth:        manager,
	}

	httpServer := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler: srv.routes(),
	}

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Println("shutting down...")
		cancel()
		if err := httpServer.Shutdown(context.Background()); err != nil {
			log.Printf("error shutting down server: %v", err)
		}
	}()

	log.Printf("Sync server listening on %s:%d", cfg.Host, cfg.Port)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("server error: %v", err)
	}
}

// buildCodec enforces a persistent token key in production. Anywhere
// else a missing key degrades to a process-lifetime random key, which
// invalidates stored secrets on restart.
func buildCodec(cfg *config.ServerConfig) (*secrets.Codec, error) {
	if cfg.TokenKey != "" {
		return secrets.NewCodec(cfg.TokenKey)
	}
	if cfg.IsProduction() {
		return nil, fmt.Errorf("SYNC_TOKEN_KEY is required in production")
	}
	log.Println("SYNC_TOKEN_KEY not set; using a transient key, stored secrets will not survive a restart")
	return secrets.NewRandomCodec(), nil
}

func buildStore(ctx context.Context, cfg *config.ServerConfig) (store.Store, error) {
	if cfg.DatabaseURL == "" {
		log.Println("DATABASE_URL not set; using in-memory store")
		return store.NewMemoryStore(), nil
	}
	return store.NewPostgresStore(ctx, cfg.DatabaseURL)
}

func buildStateStore(cfg *config.ServerConfig) (kv.Store, error) {
	if cfg.DatabaseURL == "" {
		return kv.NewMemoryStore(), nil
	}
	return kv.NewPostgresStore(cfg.DatabaseURL)
}
