// Package crossenc is an HTTP client for a cross-encoder scoring service:
// it rates how relevant a document is to a query as a single float. Higher
// is more relevant; no fixed range is guaranteed.
package crossenc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Client scores (query, document) pairs against a reranker service.
type Client struct {
	baseURL string
	model   string
	client  *http.Client
}

// New creates a scoring client.
func New(baseURL, model string) *Client {
	return &Client{
		baseURL: baseURL,
		model:   model,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

type scoreReq struct {
	Model    string `json:"model,omitempty"`
	Query    string `json:"query"`
	Document string `json:"document"`
}

type scoreResp struct {
	Score float64 `json:"score"`
}

// Score rates document relevance to query.
func (c *Client) Score(ctx context.Context, query, document string) (float64, error) {
	body, _ := json.Marshal(scoreReq{Model: c.model, Query: query, Document: document})
	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/score", bytes.NewReader(body))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("crossenc: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		return 0, fmt.Errorf("crossenc: status %d", resp.StatusCode)
	}

	var result scoreResp
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return 0, fmt.Errorf("crossenc decode: %w", err)
	}
	return result.Score, nil
}
