// Command ingest consumes parsed documents from NATS and writes their chunks
// into the document store (Qdrant dense index plus the on-disk BM25
// snapshot).
package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"time"

	"github.com/InfraSageAI/infrasage-mvp/engine/ingest"
	"github.com/InfraSageAI/infrasage-mvp/engine/store"
	"github.com/InfraSageAI/infrasage-mvp/pkg/metrics"
	"github.com/InfraSageAI/infrasage-mvp/pkg/ollama"
	"github.com/nats-io/nats.go"
)

func main() {
	var (
		natsURL     = flag.String("nats", nats.DefaultURL, "NATS server URL")
		ollamaURL   = flag.String("ollama", "http://localhost:11434", "Ollama base URL")
		ollamaModel = flag.String("model", "all-minilm", "Ollama embedding model")
		qdrantAddr  = flag.String("qdrant", "localhost:6334", "Qdrant gRPC address")
		collection  = flag.String("collection", "infrasage", "Qdrant collection name")
		indexDir    = flag.String("index-dir", "./data/index", "sparse index snapshot directory")
		chunkSize   = flag.Int("chunk-size", ingest.DefaultChunkSize, "target words per chunk")
		overlap     = flag.Int("overlap", ingest.DefaultOverlap, "words of overlap between chunks")
		metricsPort = flag.String("metrics-port", "9091", "Prometheus metrics port")
	)
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	// Connect Qdrant
	denseIdx, err := store.NewQdrantIndex(*qdrantAddr, *collection)
	if err != nil {
		logger.Error("qdrant connect failed", "error", err)
		os.Exit(1)
	}
	defer denseIdx.Close()

	// Open the document store
	embedder := ollama.NewEmbedClient(*ollamaURL, *ollamaModel)
	docStore, err := store.Open(ctx, denseIdx, embedder, store.DefaultOptions(*indexDir), logger)
	if err != nil {
		logger.Error("open store failed", "error", err)
		os.Exit(1)
	}
	logger.Info("document store ready", "collection", *collection, "index_dir", *indexDir)

	// Connect NATS
	nc, err := nats.Connect(*natsURL,
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		logger.Error("nats connect failed", "error", err)
		os.Exit(1)
	}
	defer nc.Drain()
	logger.Info("connected to NATS", "url", *natsURL)

	// In-process dedup for this consumer's lifetime. A source counts as seen
	// only once its pipeline run succeeds, so failed documents stay eligible
	// for retry. Redelivery across restarts is handled by re-indexing being
	// idempotent at the store.
	var mu sync.Mutex
	seen := make(map[string]bool)

	deps := ingest.Deps{
		Store:     docStore,
		ChunkSize: *chunkSize,
		Overlap:   *overlap,
		DeduplicateF: func(_ context.Context, source string) (bool, error) {
			mu.Lock()
			defer mu.Unlock()
			return seen[source], nil
		},
		MarkIngestedF: func(_ context.Context, source string) {
			mu.Lock()
			defer mu.Unlock()
			seen[source] = true
		},
		Logger: logger,
	}

	sub, err := ingest.StartConsumer(nc, deps)
	if err != nil {
		logger.Error("subscribe failed", "error", err)
		os.Exit(1)
	}
	defer sub.Unsubscribe()
	logger.Info("consuming", "subject", ingest.IngestSubject)

	// Metrics endpoint
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler())
		if err := http.ListenAndServe(":"+*metricsPort, mux); err != nil {
			logger.Error("metrics server exited", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")
}
