package index

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"

	"scholarbot/internal/config"
)

// fakeControlPlane serves both the control plane and the data plane of
// a single index from one server.
type fakeControlPlane struct {
	name     string
	created  atomic.Bool
	upserted atomic.Int64
	matches  []Match
	server   *httptest.Server
}

func newFakeControlPlane(t *testing.T, name string, preexisting bool) *fakeControlPlane {
	t.Helper()
	f := &fakeControlPlane{name: name}
	f.created.Store(preexisting)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /indexes/"+name, func(w http.ResponseWriter, r *http.Request) {
		if !f.created.Load() {
			http.NotFound(w, r)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"name":   name,
			"host":   f.server.URL,
			"status": map[string]any{"ready": true, "state": "Ready"},
		})
	})
	mux.HandleFunc("POST /indexes", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Name      string `json:"name"`
			Dimension int    `json:"dimension"`
			Metric    string `json:"metric"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if body.Name != name || body.Dimension != Dimension || body.Metric != "cosine" {
			http.Error(w, "unexpected index spec", http.StatusBadRequest)
			return
		}
		f.created.Store(true)
		w.WriteHeader(http.StatusCreated)
	})
	mux.HandleFunc("DELETE /indexes/"+name, func(w http.ResponseWriter, r *http.Request) {
		if !f.created.Load() {
			http.NotFound(w, r)
			return
		}
		f.created.Store(false)
		w.WriteHeader(http.StatusAccepted)
	})
	mux.HandleFunc("POST /vectors/upsert", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Vectors []Vector `json:"vectors"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		f.upserted.Add(int64(len(body.Vectors)))
		_ = json.NewEncoder(w).Encode(map[string]any{"upsertedCount": len(body.Vectors)})
	})
	mux.HandleFunc("POST /query", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			TopK            int  `json:"topK"`
			IncludeMetadata bool `json:"includeMetadata"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if !body.IncludeMetadata {
			http.Error(w, "metadata must be requested", http.StatusBadRequest)
			return
		}
		matches := f.matches
		if body.TopK < len(matches) {
			matches = matches[:body.TopK]
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"matches": matches})
	})

	f.server = httptest.NewServer(mux)
	t.Cleanup(f.server.Close)
	return f
}

func (f *fakeControlPlane) client(t *testing.T) *Client {
	t.Helper()
	c, err := NewClient(config.IndexConfig{
		BaseURL: f.server.URL,
		APIKey:  "test-key",
		Name:    f.name,
	})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return c
}

func TestEnsureExistingIndex(t *testing.T) {
	plane := newFakeControlPlane(t, "kb", true)
	c := plane.client(t)

	if err := c.Ensure(context.Background()); err != nil {
		t.Fatalf("ensure: %v", err)
	}
	// Repeat calls are no-ops against a ready index.
	if err := c.Ensure(context.Background()); err != nil {
		t.Fatalf("second ensure: %v", err)
	}
}

func TestEnsureCreatesMissingIndex(t *testing.T) {
	plane := newFakeControlPlane(t, "kb", false)
	c := plane.client(t)

	if err := c.Ensure(context.Background()); err != nil {
		t.Fatalf("ensure: %v", err)
	}
	if !plane.created.Load() {
		t.Fatalf("expected index creation")
	}
}

func TestDropIsIdempotent(t *testing.T) {
	plane := newFakeControlPlane(t, "kb", true)
	c := plane.client(t)

	if err := c.Drop(context.Background()); err != nil {
		t.Fatalf("drop: %v", err)
	}
	if plane.created.Load() {
		t.Fatalf("expected index deletion")
	}
	if err := c.Drop(context.Background()); err != nil {
		t.Fatalf("dropping a missing index must succeed: %v", err)
	}
}

func TestUpsertAndQuery(t *testing.T) {
	plane := newFakeControlPlane(t, "kb", true)
	plane.matches = []Match{
		{ID: "a", Score: 0.9, Metadata: map[string]any{"text": "first"}},
		{ID: "b", Score: 0.8, Metadata: map[string]any{"text": "second"}},
	}
	c := plane.client(t)

	vectors := []Vector{
		{ID: "a", Values: make([]float64, Dimension)},
		{ID: "b", Values: make([]float64, Dimension)},
	}
	if err := c.Upsert(context.Background(), vectors); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if got := plane.upserted.Load(); got != 2 {
		t.Fatalf("expected 2 upserted vectors, got %d", got)
	}

	matches, err := c.Query(context.Background(), make([]float64, Dimension), 5)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(matches) != 2 {
		t.Fatalf("expected 2 matches, got %d", len(matches))
	}
	if matches[0].Metadata["text"] != "first" {
		t.Fatalf("unexpected match metadata %v", matches[0].Metadata)
	}
}

func TestConcurrentDropAndQuery(t *testing.T) {
	plane := newFakeControlPlane(t, "kb", true)
	plane.matches = []Match{{ID: "a", Score: 0.9, Metadata: map[string]any{"text": "first"}}}
	c := plane.client(t)

	// Reindexing clears the cached data host while chat queries
	// rediscover it; the two must be safe to interleave.
	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 25; i++ {
				_, _ = c.Query(context.Background(), make([]float64, 3), 1)
			}
		}()
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 25; i++ {
			plane.created.Store(true)
			if err := c.Drop(context.Background()); err != nil {
				t.Errorf("drop: %v", err)
			}
		}
	}()
	wg.Wait()
}

func TestUpsertEmptyIsNoop(t *testing.T) {
	plane := newFakeControlPlane(t, "kb", true)
	c := plane.client(t)

	if err := c.Upsert(context.Background(), nil); err != nil {
		t.Fatalf("empty upsert: %v", err)
	}
	if got := plane.upserted.Load(); got != 0 {
		t.Fatalf("no vectors should reach the server, got %d", got)
	}
}
