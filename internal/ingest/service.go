package ingest

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cloudwego/eino-ext/components/document/loader/file"
	"github.com/cloudwego/eino/components/document"
	"github.com/cloudwego/eino/components/document/parser"
	"github.com/google/uuid"

	"scholarbot/internal/index"
	"scholarbot/internal/models"
	"scholarbot/internal/worker"
)

// ErrNoText reports a document that yielded no indexable text.
var ErrNoText = errors.New("document has no readable text content")

// Embedder converts one chunk into its vector representation.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float64, error)
}

// Index is the write surface of the remote vector index.
type Index interface {
	Drop(ctx context.Context) error
	Ensure(ctx context.Context) error
	Upsert(ctx context.Context, vectors []index.Vector) error
}

const upsertBatchSize = 100

// Service turns uploaded documents into index vectors. Each ingestion
// replaces the knowledge base wholesale: the index is dropped,
// recreated and repopulated from the new document alone.
type Service struct {
	loader   *file.FileLoader
	chunker  *Chunker
	embedder Embedder
	idx      Index
	pool     *worker.Pool
	db       *sql.DB
}

func NewService(embedder Embedder, idx Index, pool *worker.Pool, db *sql.DB) (*Service, error) {
	parserExt, err := parser.NewExtParser(context.Background(), &parser.ExtParserConfig{
		FallbackParser: parser.TextParser{},
	})
	if err != nil {
		return nil, fmt.Errorf("init document parser: %w", err)
	}
	loader, err := file.NewFileLoader(context.Background(), &file.FileLoaderConfig{
		UseNameAsID: true,
		Parser:      parserExt,
	})
	if err != nil {
		return nil, fmt.Errorf("init file loader: %w", err)
	}
	return &Service{
		loader:   loader,
		chunker:  NewChunker(),
		embedder: embedder,
		idx:      idx,
		pool:     pool,
		db:       db,
	}, nil
}

// IngestFile extracts text from the stored file, chunks it, embeds the
// chunks concurrently and rebuilds the index with the result.
func (s *Service) IngestFile(ctx context.Context, storedPath, fileName, mimeType string, size int64) (*models.IngestResponse, error) {
	text, err := s.extractText(ctx, storedPath)
	if err != nil {
		return nil, err
	}

	chunks := s.chunker.Split(text)
	if len(chunks) == 0 {
		return nil, ErrNoText
	}

	vectors, err := s.embedChunks(ctx, fileName, chunks)
	if err != nil {
		return nil, fmt.Errorf("embed document: %w", err)
	}

	// Wipe-and-reindex keeps the index a mirror of the latest upload.
	if err := s.idx.Drop(ctx); err != nil {
		return nil, fmt.Errorf("drop index: %w", err)
	}
	if err := s.idx.Ensure(ctx); err != nil {
		return nil, fmt.Errorf("recreate index: %w", err)
	}
	for start := 0; start < len(vectors); start += upsertBatchSize {
		end := start + upsertBatchSize
		if end > len(vectors) {
			end = len(vectors)
		}
		if err := s.idx.Upsert(ctx, vectors[start:end]); err != nil {
			return nil, fmt.Errorf("upsert vectors: %w", err)
		}
	}

	s.recordDocument(ctx, fileName, storedPath, mimeType, size, len(chunks))

	return &models.IngestResponse{
		Status:     "success",
		Message:    fmt.Sprintf("Indexed %s", fileName),
		ChunkCount: len(chunks),
	}, nil
}

// InitializeKnowledgeBase seeds the index from a bundled document,
// typically shipped under the static directory.
func (s *Service) InitializeKnowledgeBase(ctx context.Context, seedPath string) (*models.IngestResponse, error) {
	info, err := os.Stat(seedPath)
	if err != nil {
		return nil, fmt.Errorf("seed document %s: %w", seedPath, err)
	}
	return s.IngestFile(ctx, seedPath, filepath.Base(seedPath), mime.TypeByExtension(filepath.Ext(seedPath)), info.Size())
}

func (s *Service) extractText(ctx context.Context, storedPath string) (string, error) {
	docs, err := s.loader.Load(ctx, document.Source{URI: storedPath})
	if err != nil {
		return "", fmt.Errorf("load file: %w", err)
	}
	var builder strings.Builder
	for _, doc := range docs {
		content := strings.TrimSpace(doc.Content)
		if content == "" {
			continue
		}
		builder.WriteString(content)
		builder.WriteString("\n\n")
	}
	text := strings.TrimSpace(builder.String())
	if text == "" {
		return "", ErrNoText
	}
	return text, nil
}

// embedChunks fans chunk embedding out over the worker pool. Vector IDs
// carry the source file and chunk ordinal; chunk text rides along as
// metadata so retrieval can reconstruct the passage.
func (s *Service) embedChunks(ctx context.Context, fileName string, chunks []string) ([]index.Vector, error) {
	docID := uuid.NewString()
	vectors := make([]index.Vector, len(chunks))
	err := s.pool.Run(ctx, len(chunks), func(ctx context.Context, i int) error {
		values, err := s.embedder.Embed(ctx, chunks[i])
		if err != nil {
			return err
		}
		vectors[i] = index.Vector{
			ID:     fmt.Sprintf("%s-%d", docID, i),
			Values: values,
			Metadata: map[string]any{
				"text":   chunks[i],
				"source": fileName,
				"chunk":  i,
			},
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return vectors, nil
}

// recordDocument writes the registry row. Registry failures never fail
// an ingestion that already reached the index.
func (s *Service) recordDocument(ctx context.Context, fileName, storedPath, mimeType string, size int64, chunkCount int) {
	if s.db == nil {
		return
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO documents (file_name, stored_path, mime_type, size, chunk_count, status, created_at)
		 VALUES (?, ?, ?, ?, ?, 'indexed', ?)`,
		fileName, storedPath, mimeType, size, chunkCount, time.Now().UTC(),
	)
	if err != nil {
		log.Printf("[ingest] record document %s: %v", fileName, err)
	}
}
