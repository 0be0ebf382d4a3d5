package webfetch

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/InfraSageAI/infrasage-mvp/engine/domain"
)

// CommandRunner executes allowlisted CLI commands for command locators, so
// live API references (oc explain) can join fetched documentation. Anything
// outside the allowlist is refused before it reaches the shell.
type CommandRunner struct {
	allowed map[string]bool
	timeout time.Duration
}

// NewCommandRunner allows exactly the given binaries (e.g. "oc").
func NewCommandRunner(allowed []string, timeout time.Duration) *CommandRunner {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	m := make(map[string]bool, len(allowed))
	for _, a := range allowed {
		m[a] = true
	}
	return &CommandRunner{allowed: m, timeout: timeout}
}

// Run executes the locator's command line and wraps its output as a
// document. The first token must be an allowlisted binary.
func (r *CommandRunner) Run(ctx context.Context, loc domain.Locator) (*domain.WebDocument, error) {
	fields := strings.Fields(loc.Value)
	if len(fields) == 0 {
		return nil, fmt.Errorf("webfetch: empty command")
	}
	if !r.allowed[fields[0]] {
		return nil, fmt.Errorf("webfetch: command %q not allowed", fields[0])
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, fields[0], fields[1:]...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("webfetch: run %q: %w: %s", loc.Value, err, strings.TrimSpace(stderr.String()))
	}

	content := strings.TrimSpace(stdout.String())
	if content == "" {
		return nil, fmt.Errorf("webfetch: %q produced no output", loc.Value)
	}

	return &domain.WebDocument{
		URL:       loc.Value,
		Title:     loc.Value,
		Content:   content,
		DocType:   "API Reference",
		FetchedAt: time.Now().UTC(),
	}, nil
}
