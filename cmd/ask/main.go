// Command ask is a terminal client for the API server: it sends one question
// to POST /api/ask and prints the answer with its sources.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

type askRequest struct {
	Question string `json:"question"`
}

type askResponse struct {
	Answer  string `json:"answer"`
	Sources []struct {
		Type     string `json:"type"`
		Title    string `json:"title"`
		Resource string `json:"resource"`
	} `json:"sources"`
	Categories []string `json:"categories"`
}

func main() {
	var (
		apiURL  = flag.String("api", "http://localhost:8080", "API server base URL")
		timeout = flag.Duration("timeout", 2*time.Minute, "request timeout")
	)
	flag.Parse()

	question := strings.TrimSpace(strings.Join(flag.Args(), " "))
	if question == "" {
		fmt.Fprintln(os.Stderr, "usage: ask [-api URL] <question>")
		os.Exit(2)
	}

	if err := run(*apiURL, question, *timeout); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run(apiURL, question string, timeout time.Duration) error {
	body, err := json.Marshal(askRequest{Question: question})
	if err != nil {
		return err
	}

	client := &http.Client{Timeout: timeout}
	resp, err := client.Post(apiURL+"/api/ask", "application/json", bytes.NewReader(body))
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("server returned %s: %s", resp.Status, strings.TrimSpace(string(msg)))
	}

	var answer askResponse
	if err := json.NewDecoder(resp.Body).Decode(&answer); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}

	fmt.Println(answer.Answer)
	if len(answer.Sources) > 0 {
		fmt.Println("\nSources:")
		for _, s := range answer.Sources {
			if s.Resource != "" && s.Resource != s.Title {
				fmt.Printf("  - %s (%s) %s\n", s.Title, s.Type, s.Resource)
			} else {
				fmt.Printf("  - %s (%s)\n", s.Title, s.Type)
			}
		}
	}
	return nil
}
