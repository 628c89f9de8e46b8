package index

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"scholarbot/internal/config"
)

// Dimension matches the embedding model output; the index is created
// with this dimensionality and cosine metric.
const Dimension = 1536

// Vector is one upsert unit: id, values and arbitrary metadata.
type Vector struct {
	ID       string         `json:"id"`
	Values   []float64      `json:"values"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Match is one similarity-search hit, ordered by decreasing score.
type Match struct {
	ID       string         `json:"id"`
	Score    float64        `json:"score"`
	Metadata map[string]any `json:"metadata"`
}

// Client is a minimal REST client to a Pinecone serverless index.
// Control-plane calls (create/describe/delete) go to the base URL; data
// plane calls go to the per-index host discovered on first use.
type Client struct {
	baseURL string
	apiKey  string
	name    string
	client  *http.Client

	// host is discovered lazily and cleared on Drop; ingestion and
	// queries touch it from different goroutines.
	mu   sync.Mutex
	host string
}

const (
	defaultBaseURL = "https://api.pinecone.io"
	defaultTimeout = 15 * time.Second
	readyPollEvery = time.Second
)

func NewClient(cfg config.IndexConfig) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("index api key is required")
	}
	if cfg.Name == "" {
		return nil, errors.New("index name is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		name:    cfg.Name,
		host:    cfg.Host,
		client:  &http.Client{Timeout: timeout},
	}, nil
}

type indexDescription struct {
	Name   string `json:"name"`
	Host   string `json:"host"`
	Status struct {
		Ready bool   `json:"ready"`
		State string `json:"state"`
	} `json:"status"`
}

// Ensure creates the index when missing and polls until it reports
// ready. Safe to call repeatedly; an existing index is left untouched.
func (c *Client) Ensure(ctx context.Context) error {
	desc, err := c.describe(ctx)
	if err == nil {
		return c.awaitReady(ctx, desc)
	}
	if !errors.Is(err, errIndexNotFound) {
		return err
	}

	body := map[string]any{
		"name":      c.name,
		"dimension": Dimension,
		"metric":    "cosine",
		"spec": map[string]any{
			"serverless": map[string]any{
				"cloud":  "aws",
				"region": "us-east-1",
			},
		},
	}
	if err := c.doJSON(ctx, http.MethodPost, c.baseURL+"/indexes", body, nil); err != nil {
		return fmt.Errorf("create index %s: %w", c.name, err)
	}
	return c.awaitReady(ctx, nil)
}

// Drop deletes the index. Missing index is treated as success.
func (c *Client) Drop(ctx context.Context) error {
	err := c.doJSON(ctx, http.MethodDelete, c.baseURL+"/indexes/"+c.name, nil, nil)
	if err != nil && !errors.Is(err, errIndexNotFound) {
		return fmt.Errorf("delete index %s: %w", c.name, err)
	}
	c.storeHost("")
	return nil
}

// Upsert writes vectors to the index.
func (c *Client) Upsert(ctx context.Context, vectors []Vector) error {
	if len(vectors) == 0 {
		return nil
	}
	host, err := c.dataHost(ctx)
	if err != nil {
		return err
	}
	body := map[string]any{"vectors": vectors}
	if err := c.doJSON(ctx, http.MethodPost, host+"/vectors/upsert", body, nil); err != nil {
		return fmt.Errorf("upsert %d vectors: %w", len(vectors), err)
	}
	return nil
}

// Query returns the topK nearest matches with metadata.
func (c *Client) Query(ctx context.Context, vector []float64, topK int) ([]Match, error) {
	if topK <= 0 {
		topK = 5
	}
	host, err := c.dataHost(ctx)
	if err != nil {
		return nil, err
	}
	body := map[string]any{
		"vector":          vector,
		"topK":            topK,
		"includeMetadata": true,
	}
	var out struct {
		Matches []Match `json:"matches"`
	}
	if err := c.doJSON(ctx, http.MethodPost, host+"/query", body, &out); err != nil {
		return nil, fmt.Errorf("query index: %w", err)
	}
	return out.Matches, nil
}

var errIndexNotFound = errors.New("index not found")

func (c *Client) describe(ctx context.Context) (*indexDescription, error) {
	var desc indexDescription
	err := c.doJSON(ctx, http.MethodGet, c.baseURL+"/indexes/"+c.name, nil, &desc)
	if err != nil {
		return nil, err
	}
	return &desc, nil
}

func (c *Client) awaitReady(ctx context.Context, desc *indexDescription) error {
	for {
		if desc != nil && desc.Status.Ready {
			if c.cachedHost() == "" {
				c.storeHost(normalizeHost(desc.Host))
			}
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(readyPollEvery):
		}
		var err error
		desc, err = c.describe(ctx)
		if err != nil {
			return err
		}
	}
}

func (c *Client) dataHost(ctx context.Context) (string, error) {
	if host := c.cachedHost(); host != "" {
		return host, nil
	}
	desc, err := c.describe(ctx)
	if err != nil {
		return "", err
	}
	if desc.Host == "" {
		return "", fmt.Errorf("index %s has no host yet", c.name)
	}
	host := normalizeHost(desc.Host)
	c.storeHost(host)
	return host, nil
}

func (c *Client) cachedHost() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.host
}

func (c *Client) storeHost(host string) {
	c.mu.Lock()
	c.host = host
	c.mu.Unlock()
}

func normalizeHost(host string) string {
	if host == "" {
		return ""
	}
	if strings.HasPrefix(host, "http://") || strings.HasPrefix(host, "https://") {
		return strings.TrimRight(host, "/")
	}
	return "https://" + strings.TrimRight(host, "/")
}

func (c *Client) doJSON(ctx context.Context, method, url string, body, out any) error {
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Api-Key", c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return errIndexNotFound
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("%s %s failed: %s", method, url, resp.Status)
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}
