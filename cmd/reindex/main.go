// Command reindex walks a documentation tree and publishes every readable
// document to the ingest subject. Run it after dropping new docs into the
// corpus directory, or with -purge to rebuild the collection from scratch.
package main

import (
	"context"
	"flag"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/InfraSageAI/infrasage-mvp/engine/ingest"
	"github.com/InfraSageAI/infrasage-mvp/engine/store"
	"github.com/InfraSageAI/infrasage-mvp/pkg/natsutil"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
)

// Extensions the corpus is expected to contain. Anything else is skipped
// silently so stray editor files don't end up in the index.
var allowedExts = map[string]string{
	".md":   "markdown",
	".txt":  "text",
	".adoc": "asciidoc",
	".yaml": "yaml",
	".yml":  "yaml",
	".sh":   "shell",
}

func main() {
	var (
		docsDir    = flag.String("dir", "./data/docs", "documentation corpus root")
		natsURL    = flag.String("nats", nats.DefaultURL, "NATS server URL")
		qdrantAddr = flag.String("qdrant", "localhost:6334", "Qdrant gRPC address")
		collection = flag.String("collection", "infrasage", "Qdrant collection name")
		purge      = flag.Bool("purge", false, "drop the dense collection before publishing")
	)
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	ctx := context.Background()

	if *purge {
		denseIdx, err := store.NewQdrantIndex(*qdrantAddr, *collection)
		if err != nil {
			logger.Error("qdrant connect failed", "error", err)
			os.Exit(1)
		}
		if err := denseIdx.DeleteCollection(ctx); err != nil {
			logger.Error("purge failed", "error", err)
			os.Exit(1)
		}
		denseIdx.Close()
		logger.Info("collection purged", "collection", *collection)
	}

	nc, err := nats.Connect(*natsURL)
	if err != nil {
		logger.Error("nats connect failed", "error", err)
		os.Exit(1)
	}
	defer nc.Drain()

	published, skipped := 0, 0
	err = filepath.WalkDir(*docsDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || strings.HasPrefix(d.Name(), ".") {
			return nil
		}
		fileType, ok := allowedExts[strings.ToLower(filepath.Ext(d.Name()))]
		if !ok {
			skipped++
			return nil
		}

		doc, err := parseFile(*docsDir, path, fileType)
		if err != nil {
			logger.Warn("skipping unreadable file", "path", path, "error", err)
			skipped++
			return nil
		}

		if err := natsutil.Publish(ctx, nc, ingest.IngestSubject, doc); err != nil {
			return fmt.Errorf("publish %s: %w", doc.Source, err)
		}
		published++
		return nil
	})
	if err != nil {
		logger.Error("reindex failed", "error", err)
		os.Exit(1)
	}

	// Give the async publishes a moment to leave the client buffer.
	nc.FlushTimeout(5 * time.Second)
	logger.Info("reindex complete", "published", published, "skipped", skipped)
}

func parseFile(root, path, fileType string) (ingest.ParsedDoc, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return ingest.ParsedDoc{}, err
	}

	rel, err := filepath.Rel(root, path)
	if err != nil {
		rel = path
	}

	return ingest.ParsedDoc{
		ID:        uuid.NewString(),
		Source:    filepath.ToSlash(rel),
		Title:     docTitle(string(data), filepath.Base(path)),
		FileType:  fileType,
		Directory: filepath.ToSlash(filepath.Dir(rel)),
		Content:   string(data),
	}, nil
}

// docTitle takes the first markdown heading when there is one, otherwise the
// filename without extension.
func docTitle(content, filename string) string {
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if after, ok := strings.CutPrefix(line, "# "); ok {
			return strings.TrimSpace(after)
		}
	}
	return strings.TrimSuffix(filename, filepath.Ext(filename))
}
