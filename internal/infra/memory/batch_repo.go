// File: internal/infra/memory/batch_repo.go
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"gemini-batch-ocr/internal/domain"
	"gemini-batch-ocr/internal/domain/model"
	"gemini-batch-ocr/internal/domain/ports/repository"
)

// Compile-time check
var _ repository.BatchRepository = (*BatchRepo)(nil)

// BatchRepo keeps batch runs in memory. Stored runs never carry image bytes
// and callers always receive copies.
type BatchRepo struct {
	mu   sync.RWMutex
	runs map[string]*model.BatchRun
}

func NewBatchRepo() *BatchRepo {
	return &BatchRepo{runs: make(map[string]*model.BatchRun)}
}

func (r *BatchRepo) Save(ctx context.Context, run *model.BatchRun) error {
	if run == nil || run.ID == "" {
		return domain.ErrInvalidArgument
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runs[run.ID] = run.Snapshot()
	return nil
}

func (r *BatchRepo) FindByID(ctx context.Context, id string) (*model.BatchRun, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	run, ok := r.runs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return run.Snapshot(), nil
}

// List returns summaries, newest first.
func (r *BatchRepo) List(ctx context.Context) ([]model.BatchSummary, error) {
	r.mu.RLock()
	runs := make([]*model.BatchRun, 0, len(r.runs))
	for _, run := range r.runs {
		runs = append(runs, run)
	}
	r.mu.RUnlock()

	sort.Slice(runs, func(i, j int) bool {
		if runs[i].CreatedAt.Equal(runs[j].CreatedAt) {
			return runs[i].ID > runs[j].ID
		}
		return runs[i].CreatedAt.After(runs[j].CreatedAt)
	})
	out := make([]model.BatchSummary, len(runs))
	for i, run := range runs {
		out[i] = run.Summary()
	}
	return out, nil
}

func (r *BatchRepo) UpdateStatus(ctx context.Context, id string, status model.BatchStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	run, ok := r.runs[id]
	if !ok {
		return domain.ErrNotFound
	}
	run.Status = status
	if status == model.BatchStatusComplete && run.CompletedAt == nil {
		now := time.Now()
		run.CompletedAt = &now
	}
	return nil
}

func (r *BatchRepo) UpdateResult(ctx context.Context, id string, res model.ItemResult) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	run, ok := r.runs[id]
	if !ok {
		return domain.ErrNotFound
	}
	if res.Position < 0 || res.Position >= len(run.Results) {
		return fmt.Errorf("result position %d: %w", res.Position, domain.ErrInvalidArgument)
	}
	run.Results[res.Position] = res
	return nil
}

func (r *BatchRepo) DeleteCompletedBefore(ctx context.Context, t time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for id, run := range r.runs {
		if run.Status == model.BatchStatusComplete && run.CompletedAt != nil && run.CompletedAt.Before(t) {
			delete(r.runs, id)
			n++
		}
	}
	return n, nil
}
