package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"gemini-batch-ocr/internal/domain/ports/repository"
)

var _ repository.CursorStore = (*CursorStore)(nil)

// CursorStore keeps the rotation cursor under <prefix>:cursor.
type CursorStore struct {
	client RedisClient
	key    string
}

func NewCursorStore(client RedisClient, prefix string) *CursorStore {
	return &CursorStore{client: client, key: key(prefix, "cursor")}
}

func (s *CursorStore) Load(ctx context.Context) (int, error) {
	raw, err := s.client.Get(ctx, s.key)
	if errors.Is(err, ErrNil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("redis get %s: %w", s.key, err)
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("parse cursor %q: %w", raw, err)
	}
	return n, nil
}

func (s *CursorStore) Store(ctx context.Context, cursor int) error {
	return s.client.Set(ctx, s.key, strconv.Itoa(cursor), 0)
}
