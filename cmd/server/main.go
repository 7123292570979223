package main

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"cloud.google.com/go/firestore"
	"github.com/joho/godotenv"
	"github.com/rs/cors"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/benmercer/finboard/internal/auth"
	"github.com/benmercer/finboard/internal/cache"
	"github.com/benmercer/finboard/internal/config"
	"github.com/benmercer/finboard/internal/log"
	"github.com/benmercer/finboard/internal/provider"
	"github.com/benmercer/finboard/internal/service"
	"github.com/benmercer/finboard/internal/store"
)

func main() {
	// Local development convenience; missing .env is fine.
	_ = godotenv.Load()

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	logger := log.New(log.Config{Level: cfg.LogLevel, Component: "finboard"})
	ctx := context.Background()

	var storeImpl store.Store
	var firebaseAuth *auth.FirebaseAuth

	if cfg.UseMemoryStore {
		logger.Info("using in-memory store for local development")
		storeImpl = store.NewMemoryStore()
	} else {
		firestoreClient, err := firestore.NewClient(ctx, cfg.GCPProject)
		if err != nil {
			logger.Error("failed to create Firestore client", "error", err)
			os.Exit(1)
		}
		defer firestoreClient.Close()
		storeImpl = store.NewFirestoreStore(firestoreClient)

		if cfg.SkipAuth {
			logger.Warn("SKIP_AUTH enabled, using mock authentication with Firestore")
		} else {
			firebaseAuth, err = auth.NewFirebaseAuth(ctx)
			if err != nil {
				logger.Error("failed to initialize Firebase Auth", "error", err)
				os.Exit(1)
			}
		}
	}

	tokens := provider.NewTokenCell()
	if token := os.Getenv("PROVIDER_ACCESS_TOKEN"); token != "" {
		tokens.Set(token)
	}
	tokens.OnAuthInvalid(func() {
		logger.Warn("provider rejected the access token, re-authentication required")
	})

	client := provider.NewClient(cfg.ProviderBaseURL, tokens, logger)
	queryCache := cache.New(cfg.CacheFreshTTL, cfg.CacheRetainTTL,
		cache.WithNegativeTTL(cfg.CacheNegativeTTL))

	svc := service.New(storeImpl, client, tokens, queryCache, logger, cfg.BudgetID)

	mux := http.NewServeMux()
	svc.Routes(mux)

	var handler http.Handler = mux
	if firebaseAuth != nil {
		handler = auth.Middleware(firebaseAuth)(handler)
	} else {
		handler = auth.LocalDevMiddleware()(handler)
	}

	c := cors.New(cors.Options{
		AllowedOrigins: cfg.AllowedOrigins,
		AllowedMethods: []string{
			http.MethodGet,
			http.MethodPost,
			http.MethodPut,
			http.MethodPatch,
			http.MethodDelete,
			http.MethodOptions,
		},
		AllowedHeaders: []string{
			"Accept",
			"Authorization",
			"Content-Type",
			"User-Agent",
			"X-Debug-Impersonate-User",
		},
		AllowCredentials: true,
	})
	handler = c.Handler(handler)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Port),
		Handler: h2c.NewHandler(handler, &http2.Server{}),
	}

	logger.Info("starting server", "port", cfg.Port, "budget", cfg.BudgetID)
	if err := srv.ListenAndServe(); err != nil {
		logger.Error("server stopped", "error", err)
		os.Exit(1)
	}
}
