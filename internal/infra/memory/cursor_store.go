package memory

import (
	"context"
	"sync/atomic"

	"gemini-batch-ocr/internal/domain/ports/repository"
)

var _ repository.CursorStore = (*CursorStore)(nil)

// CursorStore holds the rotation cursor for the life of the process.
type CursorStore struct {
	v atomic.Int64
}

func (s *CursorStore) Load(ctx context.Context) (int, error) { return int(s.v.Load()), nil }

func (s *CursorStore) Store(ctx context.Context, cursor int) error {
	s.v.Store(int64(cursor))
	return nil
}
