package main

import (
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Glossick/akasha-sub002"
)

func main() {
	configPath := flag.String("config", "", "Path to config file (JSON)")
	addr := flag.String("addr", ":8080", "Listen address")
	flag.Parse()

	// Structured JSON logging.
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})))

	cfg := akasha.DefaultConfig()
	if *configPath != "" {
		f, err := os.Open(*configPath)
		if err != nil {
			slog.Error("opening config", "error", err)
			os.Exit(1)
		}
		if err := json.NewDecoder(f).Decode(&cfg); err != nil {
			f.Close()
			slog.Error("parsing config", "error", err)
			os.Exit(1)
		}
		f.Close()
	}

	// Override from environment variables.
	if v := os.Getenv("AKASHA_DB_PATH"); v != "" {
		cfg.Store.FilesystemPath = v
		cfg.Store.Endpoint = ""
	}
	if v := os.Getenv("AKASHA_NEO4J_URI"); v != "" {
		cfg.Store.Endpoint = v
		cfg.Store.FilesystemPath = ""
	}
	if v := os.Getenv("AKASHA_NEO4J_USERNAME"); v != "" {
		cfg.Store.Username = v
	}
	if v := os.Getenv("AKASHA_NEO4J_PASSWORD"); v != "" {
		cfg.Store.Password = v
	}
	if v := os.Getenv("AKASHA_NEO4J_DATABASE"); v != "" {
		cfg.Store.Database = v
	}
	if v := os.Getenv("AKASHA_LLM_BASE_URL"); v != "" {
		cfg.LLM.BaseURL = v
	}
	if v := os.Getenv("AKASHA_EMBED_BASE_URL"); v != "" {
		cfg.Embedding.BaseURL = v
	}
	if v := os.Getenv("AKASHA_LLM_API_KEY"); v != "" {
		cfg.LLM.APIKey = v
	}
	if v := os.Getenv("AKASHA_EMBED_API_KEY"); v != "" {
		cfg.Embedding.APIKey = v
	}
	if v := os.Getenv("AKASHA_LLM_MODEL"); v != "" {
		cfg.LLM.Model = v
	}
	if v := os.Getenv("AKASHA_EMBED_MODEL"); v != "" {
		cfg.Embedding.Model = v
	}
	if v := os.Getenv("AKASHA_LLM_PROVIDER"); v != "" {
		cfg.LLM.Provider = v
	}
	if v := os.Getenv("AKASHA_EMBED_PROVIDER"); v != "" {
		cfg.Embedding.Provider = v
	}
	if v := os.Getenv("AKASHA_SCOPE_ID"); v != "" {
		cfg.Scope.ID = v
	}
	if v := os.Getenv("AKASHA_SCOPE_TYPE"); v != "" {
		cfg.Scope.Type = v
	}
	if v := os.Getenv("AKASHA_SCOPE_NAME"); v != "" {
		cfg.Scope.Name = v
	}

	// Fallback: check the well-known provider env var for API keys.
	if cfg.LLM.Provider == "openai" && cfg.LLM.APIKey == "" {
		cfg.LLM.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if cfg.Embedding.Provider == "openai" && cfg.Embedding.APIKey == "" {
		cfg.Embedding.APIKey = os.Getenv("OPENAI_API_KEY")
	}

	apiKey := os.Getenv("AKASHA_API_KEY")
	corsOrigins := os.Getenv("AKASHA_CORS_ORIGINS")

	engine, err := akasha.New(cfg)
	if err != nil {
		slog.Error("creating engine", "error", err)
		os.Exit(1)
	}

	initCtx, initCancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := engine.Initialize(initCtx); err != nil {
		initCancel()
		slog.Error("initializing engine", "error", err)
		os.Exit(1)
	}
	initCancel()
	defer engine.Cleanup(context.Background())

	h := newHandler(engine)
	mux := http.NewServeMux()

	mux.HandleFunc("POST /learn", h.handleLearn)
	mux.HandleFunc("POST /learn/file", h.handleLearnFile)
	mux.HandleFunc("POST /learn/batch", h.handleLearnBatch)
	mux.HandleFunc("POST /ask", h.handleAsk)
	mux.HandleFunc("GET /entities", h.handleListEntities)
	mux.HandleFunc("GET /entities/{id}", h.handleGetEntity)
	mux.HandleFunc("PATCH /entities/{id}", h.handleUpdateEntity)
	mux.HandleFunc("DELETE /entities/{id}", h.handleDeleteEntity)
	mux.HandleFunc("GET /documents", h.handleListDocuments)
	mux.HandleFunc("GET /documents/{id}", h.handleGetDocument)
	mux.HandleFunc("PATCH /documents/{id}", h.handleUpdateDocument)
	mux.HandleFunc("DELETE /documents/{id}", h.handleDeleteDocument)
	mux.HandleFunc("GET /relationships", h.handleListRelationships)
	mux.HandleFunc("GET /relationships/{id}", h.handleGetRelationship)
	mux.HandleFunc("PATCH /relationships/{id}", h.handleUpdateRelationship)
	mux.HandleFunc("DELETE /relationships/{id}", h.handleDeleteRelationship)
	mux.HandleFunc("GET /health", h.handleHealth)

	// Middleware chain: recovery -> cors -> auth -> logging -> mux
	var handler http.Handler = mux
	handler = logMiddleware(handler)
	handler = authMiddleware(apiKey, handler)
	handler = corsMiddleware(corsOrigins, handler)
	handler = recoveryMiddleware(handler)

	srv := &http.Server{
		Addr:         *addr,
		Handler:      handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0, // batch learns can run long
		IdleTimeout:  120 * time.Second,
	}

	// Graceful shutdown on SIGTERM/SIGINT.
	done := make(chan os.Signal, 1)
	signal.Notify(done, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("server starting", "addr", *addr, "scope", cfg.Scope.ID)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-done
	slog.Info("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("server shutdown error", "error", err)
	}

	slog.Info("server stopped")
}
