package repository

import (
	"context"
	"time"

	"gemini-batch-ocr/internal/domain/model"
)

// BatchRepository keeps batch runs for status queries while the process lives.
type BatchRepository interface {
	Save(ctx context.Context, run *model.BatchRun) error
	// FindByID returns a snapshot or domain.ErrNotFound.
	FindByID(ctx context.Context, id string) (*model.BatchRun, error)
	List(ctx context.Context) ([]model.BatchSummary, error)
	UpdateStatus(ctx context.Context, id string, status model.BatchStatus) error
	UpdateResult(ctx context.Context, id string, result model.ItemResult) error
	// DeleteCompletedBefore removes complete runs older than t and returns how many.
	DeleteCompletedBefore(ctx context.Context, t time.Time) (int, error)
}
