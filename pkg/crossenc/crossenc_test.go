package crossenc

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestScore(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/score" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var req scoreReq
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatal(err)
		}
		if req.Query == "" || req.Document == "" {
			t.Errorf("incomplete request: %+v", req)
		}
		json.NewEncoder(w).Encode(scoreResp{Score: 0.87})
	}))
	defer srv.Close()

	c := New(srv.URL, "ms-marco-minilm")
	got, err := c.Score(context.Background(), "check selinux", "SELinux enforces MAC.")
	if err != nil {
		t.Fatal(err)
	}
	if got != 0.87 {
		t.Fatalf("unexpected score: %f", got)
	}
}

func TestScore_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := New(srv.URL, "m")
	if _, err := c.Score(context.Background(), "q", "d"); err == nil {
		t.Fatal("expected error on non-200 status")
	}
}
