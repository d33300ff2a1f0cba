package sink

import (
	"context"

	"gemini-batch-ocr/internal/domain/model"
	"gemini-batch-ocr/internal/domain/ports/adapter"
)

var _ adapter.ResultSink = (Multi)(nil)

// Multi forwards every event to each sink in order.
type Multi []adapter.ResultSink

// NewMulti drops nil sinks.
func NewMulti(sinks ...adapter.ResultSink) Multi {
	out := make(Multi, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			out = append(out, s)
		}
	}
	return out
}

func (m Multi) OnBatchStarted(ctx context.Context, run model.BatchSummary) {
	for _, s := range m {
		s.OnBatchStarted(ctx, run)
	}
}

func (m Multi) OnItemStatusChanged(ctx context.Context, batchID string, res model.ItemResult) {
	for _, s := range m {
		s.OnItemStatusChanged(ctx, batchID, res)
	}
}

func (m Multi) OnRetrying(ctx context.Context, batchID string, res model.ItemResult, attempt int) {
	for _, s := range m {
		s.OnRetrying(ctx, batchID, res, attempt)
	}
}

func (m Multi) OnBatchComplete(ctx context.Context, run model.BatchSummary) {
	for _, s := range m {
		s.OnBatchComplete(ctx, run)
	}
}
