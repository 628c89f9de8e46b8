package rag

import (
	"context"

	"scholarbot/internal/index"
	"scholarbot/internal/models"
)

// Embedder converts a query into its vector representation.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float64, error)
}

// VectorIndex is the similarity-search surface of the remote index.
type VectorIndex interface {
	Query(ctx context.Context, vector []float64, topK int) ([]index.Match, error)
}

// Retriever embeds a query and fetches the closest passages from the
// vector index. Any failure surfaces as *RetrievalError so callers can
// tell "index broken" apart from "nothing relevant".
type Retriever struct {
	embedder Embedder
	idx      VectorIndex
}

func NewRetriever(embedder Embedder, idx VectorIndex) *Retriever {
	return &Retriever{embedder: embedder, idx: idx}
}

func (r *Retriever) Retrieve(ctx context.Context, query string, k int) ([]models.Passage, error) {
	vector, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, &RetrievalError{Err: err}
	}
	matches, err := r.idx.Query(ctx, vector, k)
	if err != nil {
		return nil, &RetrievalError{Err: err}
	}

	passages := make([]models.Passage, 0, len(matches))
	for _, m := range matches {
		content, _ := m.Metadata["text"].(string)
		metadata := make(map[string]any, len(m.Metadata))
		for key, val := range m.Metadata {
			if key == "text" {
				continue
			}
			metadata[key] = val
		}
		passages = append(passages, models.Passage{
			PageContent: content,
			Metadata:    metadata,
			Score:       m.Score,
		})
	}
	return passages, nil
}
