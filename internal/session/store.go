package session

import (
	"context"
	"sync"

	"scholarbot/internal/models"

	"github.com/google/uuid"
)

// Store keeps per-session transcripts. Implementations must be safe for
// concurrent use; ordering across concurrent appends to the same session
// is not guaranteed beyond atomicity of each operation.
type Store interface {
	// GetOrCreate resolves the session for id, creating one when id is
	// empty or unseen. An empty id yields a freshly generated identifier.
	GetOrCreate(ctx context.Context, id string) (string, []models.Turn, error)
	// Append records a completed turn at the end of the transcript.
	Append(ctx context.Context, id string, turn models.Turn) error
	// Delete removes the session. Deleting an absent session is not an
	// error; the bool reports whether anything existed.
	Delete(ctx context.Context, id string) (bool, error)
}

// MemoryStore is the default process-local backing.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string][]models.Turn
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string][]models.Turn)}
}

func (s *MemoryStore) GetOrCreate(_ context.Context, id string) (string, []models.Turn, error) {
	if id == "" {
		id = uuid.NewString()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	transcript, ok := s.sessions[id]
	if !ok {
		s.sessions[id] = nil
		return id, nil, nil
	}
	// Copy so callers never observe later appends mid-request.
	snapshot := make([]models.Turn, len(transcript))
	copy(snapshot, transcript)
	return id, snapshot, nil
}

func (s *MemoryStore) Append(_ context.Context, id string, turn models.Turn) error {
	s.mu.Lock()
	s.sessions[id] = append(s.sessions[id], turn)
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.sessions[id]
	delete(s.sessions, id)
	return ok, nil
}

// Len reports the number of live sessions.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}
