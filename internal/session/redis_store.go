package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"scholarbot/internal/models"
	"scholarbot/internal/redis"

	"github.com/google/uuid"
)

// RedisStore keeps transcripts in redis so multiple processes can share
// sessions. Transcripts are stored as one JSON blob per session; the
// read-modify-write in Append carries the same interleaving caveat as
// the in-memory store.
type RedisStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

const defaultSessionTTL = 24 * time.Hour

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client, prefix: "chat:session:", ttl: defaultSessionTTL}
}

func (s *RedisStore) key(id string) string {
	return s.prefix + id
}

func (s *RedisStore) load(ctx context.Context, id string) ([]models.Turn, bool, error) {
	raw, err := s.client.Get(ctx, s.key(id))
	if err != nil {
		if errors.Is(err, redis.ErrCacheMiss) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("load session %s: %w", id, err)
	}
	var transcript []models.Turn
	if err := json.Unmarshal([]byte(raw), &transcript); err != nil {
		return nil, false, fmt.Errorf("decode session %s: %w", id, err)
	}
	return transcript, true, nil
}

func (s *RedisStore) GetOrCreate(ctx context.Context, id string) (string, []models.Turn, error) {
	if id == "" {
		id = uuid.NewString()
	}
	transcript, ok, err := s.load(ctx, id)
	if err != nil {
		return "", nil, err
	}
	if !ok {
		return id, nil, nil
	}
	return id, transcript, nil
}

func (s *RedisStore) Append(ctx context.Context, id string, turn models.Turn) error {
	transcript, _, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	transcript = append(transcript, turn)
	data, err := json.Marshal(transcript)
	if err != nil {
		return fmt.Errorf("encode session %s: %w", id, err)
	}
	return s.client.Set(ctx, s.key(id), data, s.ttl)
}

func (s *RedisStore) Delete(ctx context.Context, id string) (bool, error) {
	removed, err := s.client.Del(ctx, s.key(id))
	if err != nil {
		return false, fmt.Errorf("delete session %s: %w", id, err)
	}
	return removed > 0, nil
}
