// Package ingest processes parsed documents through validation, chunking and
// indexing stages, consuming from NATS with retry and dead-letter support.
package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/InfraSageAI/infrasage-mvp/engine/domain"
	"github.com/InfraSageAI/infrasage-mvp/pkg/fn"
	"github.com/InfraSageAI/infrasage-mvp/pkg/metrics"
)

const (
	// IngestSubject is the NATS subject for incoming parsed documents.
	IngestSubject = "engine.ingest"
	// DLQSubject is the dead letter queue subject for failed messages.
	DLQSubject = "engine.ingest.dlq"
	// MaxRetries before sending to DLQ.
	MaxRetries = 3
)

// Indexer writes chunks into the document store.
type Indexer interface {
	Index(ctx context.Context, chunks []domain.Chunk) error
}

// Deps holds the external dependencies for the ingestion pipeline.
// DeduplicateF must only report sources whose pipeline run succeeded;
// marking happens through MarkIngestedF after success, so a failed document
// stays eligible for message-level retry.
type Deps struct {
	Store         Indexer
	ChunkSize     int
	Overlap       int
	DeduplicateF  func(ctx context.Context, source string) (bool, error) // true if already ingested successfully
	MarkIngestedF func(ctx context.Context, source string)
	Logger        *slog.Logger
}

// --- Pipeline Stages ---

// Validate rejects documents without source or content.
var Validate fn.Stage[ParsedDoc, ParsedDoc] = func(_ context.Context, doc ParsedDoc) fn.Result[ParsedDoc] {
	if err := validateDoc(doc); err != nil {
		return fn.Err[ParsedDoc](err)
	}
	return fn.Ok(doc)
}

// NewChunk creates the chunking stage.
func NewChunk(chunkSize, overlap int) fn.Stage[ParsedDoc, ChunkedDoc] {
	return func(_ context.Context, doc ParsedDoc) fn.Result[ChunkedDoc] {
		return fn.Ok(ChunkedDoc{
			ParsedDoc: doc,
			Chunks:    chunkDoc(doc, chunkSize, overlap),
		})
	}
}

// NewIndex creates the indexing stage. Embedding happens inside the store so
// each chunk is embedded exactly once.
func NewIndex(store Indexer) fn.Stage[ChunkedDoc, string] {
	return func(ctx context.Context, doc ChunkedDoc) fn.Result[string] {
		if err := store.Index(ctx, doc.Chunks); err != nil {
			return fn.Err[string](fmt.Errorf("index: %w", err))
		}
		metrics.IngestedChunks.Add(float64(len(doc.Chunks)))
		return fn.Ok(doc.Source)
	}
}

// LoggedTap returns a stage that logs entry/exit with duration.
func LoggedTap[T any](name string, log *slog.Logger) fn.Stage[T, T] {
	return func(ctx context.Context, t T) fn.Result[T] {
		log.Info("stage.enter", "stage", name)
		start := time.Now()
		defer func() {
			log.Info("stage.exit", "stage", name, "duration", time.Since(start))
		}()
		return fn.Ok(t)
	}
}

// NewPipeline constructs the full ingestion pipeline with all stages wired.
func NewPipeline(deps Deps) fn.Stage[ParsedDoc, string] {
	log := deps.Logger
	if log == nil {
		log = slog.Default()
	}

	// Transient store failures get a short in-process retry before the
	// message-level redelivery kicks in.
	index := fn.RetryStage(fn.RetryOpts{
		MaxAttempts: 2,
		InitialWait: 200 * time.Millisecond,
		MaxWait:     time.Second,
		Jitter:      true,
	}, NewIndex(deps.Store))

	// Compose: Validate → Chunk → Index with logging taps between stages.
	validated := fn.Then(LoggedTap[ParsedDoc]("validate", log), Validate)
	chunked := fn.Then(validated, fn.Then(LoggedTap[ParsedDoc]("chunk", log), NewChunk(deps.ChunkSize, deps.Overlap)))
	indexed := fn.Then(chunked, fn.Then(LoggedTap[ChunkedDoc]("index", log), index))

	return indexed
}

// dlqMessage is published to the DLQ on repeated failure.
type dlqMessage struct {
	Doc     ParsedDoc `json:"doc"`
	Error   string    `json:"error"`
	Retries int       `json:"retries"`
}

// StartConsumer starts a NATS consumer that runs parsed documents through
// the ingestion pipeline with retry and DLQ support.
func StartConsumer(nc *nats.Conn, deps Deps) (*nats.Subscription, error) {
	pipeline := NewPipeline(deps)
	log := deps.Logger
	if log == nil {
		log = slog.Default()
	}

	return nc.Subscribe(IngestSubject, func(msg *nats.Msg) {
		var doc ParsedDoc
		if err := json.Unmarshal(msg.Data, &doc); err != nil {
			log.Error("ingest: unmarshal failed", "error", err)
			return
		}

		ctx := context.Background()

		// Get retry count from header.
		retries := 0
		if msg.Header != nil {
			if v := msg.Header.Get("X-Retry-Count"); v != "" {
				fmt.Sscanf(v, "%d", &retries)
			}
		}

		// Deduplication check, first delivery only. A redelivery carries a
		// retry count, meaning the previous run failed and the source was
		// never marked ingested.
		if retries == 0 && deps.DeduplicateF != nil {
			exists, err := deps.DeduplicateF(ctx, doc.Source)
			if err != nil {
				log.Warn("ingest: dedup check failed", "error", err)
			} else if exists {
				log.Info("ingest: skipping duplicate", "source", doc.Source)
				if msg.Reply != "" {
					_ = msg.Ack()
				}
				return
			}
		}

		result := pipeline(ctx, doc)
		if result.IsErr() {
			_, pipeErr := result.Unwrap()
			retries++
			log.Error("ingest: pipeline failed",
				"error", pipeErr,
				"source", doc.Source,
				"retry", retries,
			)

			if retries >= MaxRetries {
				// Send to DLQ.
				dlq := dlqMessage{
					Doc:     doc,
					Error:   pipeErr.Error(),
					Retries: retries,
				}
				data, _ := json.Marshal(dlq)
				if err := nc.Publish(DLQSubject, data); err != nil {
					log.Error("ingest: DLQ publish failed", "error", err)
				}
			} else {
				// Re-publish with incremented retry count.
				retryMsg := nats.NewMsg(IngestSubject)
				retryMsg.Data = msg.Data
				retryMsg.Header = nats.Header{}
				retryMsg.Header.Set("X-Retry-Count", fmt.Sprintf("%d", retries))
				if err := nc.PublishMsg(retryMsg); err != nil {
					log.Error("ingest: retry publish failed", "error", err)
				}
			}
		} else {
			source, _ := result.Unwrap()
			if deps.MarkIngestedF != nil {
				deps.MarkIngestedF(ctx, doc.Source)
			}
			log.Info("ingest: success", "source", source)
		}

		// Ack if JetStream.
		if msg.Reply != "" {
			_ = msg.Ack()
		}
	})
}
