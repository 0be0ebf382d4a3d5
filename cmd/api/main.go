// Package main implements the InfraSage API server.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/InfraSageAI/infrasage-mvp/engine/domain"
	"github.com/InfraSageAI/infrasage-mvp/engine/rag"
	"github.com/InfraSageAI/infrasage-mvp/engine/retrieval"
	"github.com/InfraSageAI/infrasage-mvp/engine/router"
	"github.com/InfraSageAI/infrasage-mvp/engine/store"
	"github.com/InfraSageAI/infrasage-mvp/engine/webfetch"
	"github.com/InfraSageAI/infrasage-mvp/pkg/crossenc"
	"github.com/InfraSageAI/infrasage-mvp/pkg/metrics"
	"github.com/InfraSageAI/infrasage-mvp/pkg/mid"
	"github.com/InfraSageAI/infrasage-mvp/pkg/ollama"
	"github.com/InfraSageAI/infrasage-mvp/pkg/resilience"
)

// Config holds all environment-based configuration.
type Config struct {
	Port         string
	OllamaURL    string
	EmbedModel   string
	GenModel     string
	QdrantURL    string
	Collection   string
	RerankerURL  string
	RerankModel  string
	IndexDir     string
	RouterConfig string
	CORSOrigin   string
	DenseWeight  float64
	SparseWeight float64
	LocalWeight  float64
	WebWeight    float64
	UseWeb       bool
}

func loadConfig() Config {
	return Config{
		Port:         envOr("PORT", "8080"),
		OllamaURL:    envOr("OLLAMA_URL", "http://localhost:11434"),
		EmbedModel:   envOr("EMBED_MODEL", "all-minilm"),
		GenModel:     envOr("GEN_MODEL", "llama3.1:8b"),
		QdrantURL:    envOr("QDRANT_URL", "localhost:6334"),
		Collection:   envOr("QDRANT_COLLECTION", "infrasage"),
		RerankerURL:  envOr("RERANKER_URL", "http://localhost:8501"),
		RerankModel:  envOr("RERANK_MODEL", "cross-encoder/ms-marco-MiniLM-L-6-v2"),
		IndexDir:     envOr("INDEX_DIR", "./data/index"),
		RouterConfig: envOr("ROUTER_CONFIG", ""),
		CORSOrigin:   envOr("CORS_ORIGIN", "*"),
		DenseWeight:  envFloat("DENSE_WEIGHT", 0.7),
		SparseWeight: envFloat("SPARSE_WEIGHT", 0.3),
		LocalWeight:  envFloat("LOCAL_WEIGHT", 0.4),
		WebWeight:    envFloat("WEB_WEIGHT", 0.6),
		UseWeb:       envOr("USE_WEB", "true") == "true",
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg := loadConfig()

	if err := run(cfg, logger); err != nil {
		logger.Error("server exited with error", "err", err)
		os.Exit(1)
	}
}

func run(cfg Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// --- Connect to Qdrant ---
	denseIdx, err := store.NewQdrantIndex(cfg.QdrantURL, cfg.Collection)
	if err != nil {
		return fmt.Errorf("qdrant connect: %w", err)
	}
	defer denseIdx.Close()

	// --- Open the document store ---
	// The breaker around the embedder makes dense search fail fast when
	// Ollama is down, so the hybrid retriever degrades to sparse-only
	// instead of stalling every query on a dead connection.
	embedder := &breakerEmbedder{
		client:  ollama.NewEmbedClient(cfg.OllamaURL, cfg.EmbedModel),
		breaker: resilience.NewBreaker(resilience.DefaultBreakerOpts),
	}
	docStore, err := store.Open(ctx, denseIdx, embedder, store.DefaultOptions(cfg.IndexDir), logger)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}

	// --- Build retrieval ---
	hybrid, err := retrieval.NewHybrid(
		&denseAdapter{store: docStore},
		&sparseAdapter{store: docStore},
		retrieval.Weights{Dense: cfg.DenseWeight, Sparse: cfg.SparseWeight},
		logger,
	)
	if err != nil {
		return fmt.Errorf("hybrid retriever: %w", err)
	}
	reranker := retrieval.NewReranker(crossenc.New(cfg.RerankerURL, cfg.RerankModel), logger)

	// --- Build source routing + web fetch ---
	routerCfg := router.DefaultConfig()
	if cfg.RouterConfig != "" {
		routerCfg, err = router.LoadConfig(cfg.RouterConfig)
		if err != nil {
			return fmt.Errorf("router config: %w", err)
		}
	}
	srcRouter, err := router.New(routerCfg, logger)
	if err != nil {
		return fmt.Errorf("source router: %w", err)
	}
	fetcher := webfetch.NewFetcher(
		webfetch.DefaultOptions(),
		webfetch.NewCommandRunner([]string{"oc"}, 10*time.Second),
		logger,
	)

	// --- Build RAG service ---
	ragOpts := rag.DefaultOptions()
	ragOpts.UseWeb = cfg.UseWeb
	ragOpts.Fusion.LocalWeight = cfg.LocalWeight
	ragOpts.Fusion.WebWeight = cfg.WebWeight
	ragSvc := rag.New(
		hybrid,
		reranker,
		srcRouter,
		fetcher,
		ollama.NewGenerateClient(cfg.OllamaURL, cfg.GenModel),
		ragOpts,
		logger,
	)

	// --- Build HTTP server ---
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/health", handleHealth)
	mux.HandleFunc("POST /api/ask", handleAsk(ragSvc, logger))
	mux.Handle("GET /metrics", metrics.Handler())

	handler := mid.Chain(mux,
		mid.Recover(logger),
		mid.Logger(logger),
		mid.CORS(cfg.CORSOrigin),
	)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// --- Graceful shutdown ---
	errCh := make(chan error, 1)
	go func() {
		logger.Info("api server starting", "port", cfg.Port)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutCtx)
}

// --- Handlers ---

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// AskRequest is the JSON body for POST /api/ask.
type AskRequest struct {
	Question string `json:"question"`
}

// AskResponse is the JSON response for POST /api/ask.
type AskResponse struct {
	Answer     string                `json:"answer"`
	Sources    []domain.SourceRecord `json:"sources"`
	Categories []string              `json:"categories"`
	HasLocal   bool                  `json:"has_local"`
	HasWeb     bool                  `json:"has_web"`
}

func handleAsk(ragSvc *rag.Service, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req AskRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, `{"error":"invalid request body"}`, http.StatusBadRequest)
			return
		}

		answer, err := ragSvc.Query(r.Context(), req.Question)
		if err != nil {
			if errors.Is(err, domain.ErrQueryTooShort) || errors.Is(err, domain.ErrEmptyQuery) {
				http.Error(w, `{"error":"question is too short"}`, http.StatusBadRequest)
				return
			}
			logger.Error("rag query failed", "err", err)
			http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(AskResponse{
			Answer:     answer.Text,
			Sources:    answer.Sources,
			Categories: answer.Categories,
			HasLocal:   answer.HasLocal,
			HasWeb:     answer.HasWeb,
		})
	}
}

// --- Adapters ---

// breakerEmbedder guards the Ollama embedding endpoint with a circuit
// breaker. An open breaker surfaces as a model-unavailable error, which the
// retrieval layer treats as a degradable failure.
type breakerEmbedder struct {
	client  *ollama.EmbedClient
	breaker *resilience.Breaker
}

func (e *breakerEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	var vec []float32
	err := e.breaker.Call(ctx, func(ctx context.Context) error {
		var callErr error
		vec, callErr = e.client.Embed(ctx, text)
		return callErr
	})
	if err != nil {
		if errors.Is(err, resilience.ErrCircuitOpen) {
			return nil, fmt.Errorf("%w: embedder circuit open", domain.ErrModelUnavailable)
		}
		return nil, err
	}
	return vec, nil
}

// denseAdapter exposes the store's vector search as a retrieval.Retriever.
type denseAdapter struct {
	store *store.Store
}

func (a *denseAdapter) Search(ctx context.Context, query string, k int) ([]domain.CandidateResult, error) {
	return a.store.DenseSearch(ctx, query, k)
}

// sparseAdapter exposes the store's BM25 search as a retrieval.Retriever.
type sparseAdapter struct {
	store *store.Store
}

func (a *sparseAdapter) Search(ctx context.Context, query string, k int) ([]domain.CandidateResult, error) {
	return a.store.SparseSearch(ctx, query, k)
}
