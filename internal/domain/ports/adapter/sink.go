package adapter

import (
	"context"

	"gemini-batch-ocr/internal/domain/model"
)

// ResultSink receives status transitions while a batch runs. Calls arrive
// from the single batch loop, in order.
type ResultSink interface {
	OnBatchStarted(ctx context.Context, run model.BatchSummary)
	OnItemStatusChanged(ctx context.Context, batchID string, result model.ItemResult)
	// OnRetrying is a transient batch-level signal: the credential was rate
	// limited and the same image is retried with the next one.
	OnRetrying(ctx context.Context, batchID string, result model.ItemResult, attempt int)
	OnBatchComplete(ctx context.Context, run model.BatchSummary)
}

// NoopSink ignores every event.
type NoopSink struct{}

func (NoopSink) OnBatchStarted(context.Context, model.BatchSummary)            {}
func (NoopSink) OnItemStatusChanged(context.Context, string, model.ItemResult) {}
func (NoopSink) OnRetrying(context.Context, string, model.ItemResult, int)     {}
func (NoopSink) OnBatchComplete(context.Context, model.BatchSummary)           {}
