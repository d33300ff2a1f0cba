package sink

import (
	"context"

	"gemini-batch-ocr/internal/domain/model"
	"gemini-batch-ocr/internal/domain/ports/adapter"
	"gemini-batch-ocr/internal/infra/logging"

	"github.com/rs/zerolog"
)

var _ adapter.ResultSink = (*LogSink)(nil)

// LogSink writes every transition as a structured log line.
type LogSink struct {
	log *zerolog.Logger
}

func NewLogSink(log *zerolog.Logger) *LogSink { return &LogSink{log: log} }

func (s *LogSink) OnBatchStarted(ctx context.Context, run model.BatchSummary) {
	logging.With(ctx, s.log).Info().Str("batch_id", run.ID).Str("model", run.Model).
		Int("total", run.Total).Msg("batch processing")
}

func (s *LogSink) OnItemStatusChanged(ctx context.Context, batchID string, res model.ItemResult) {
	l := logging.With(ctx, s.log)
	ev := l.Debug()
	if res.Status == model.ItemStatusFailed {
		ev = l.Warn().Str("failure_kind", string(res.Kind)).Str("reason", res.Reason)
	}
	ev.Str("batch_id", batchID).Str("item_id", res.ItemID).Int("position", res.Position).
		Str("status", string(res.Status)).Int("attempts", res.Attempts).Msg("item status")
}

func (s *LogSink) OnRetrying(ctx context.Context, batchID string, res model.ItemResult, attempt int) {
	logging.With(ctx, s.log).Info().Str("batch_id", batchID).Str("item_id", res.ItemID).
		Int("attempt", attempt).Msg("rate limited; switching to next credential")
}

func (s *LogSink) OnBatchComplete(ctx context.Context, run model.BatchSummary) {
	logging.With(ctx, s.log).Info().Str("batch_id", run.ID).Int("succeeded", run.Succeeded).
		Int("failed", run.Failed).Int("total", run.Total).Msg("batch finished")
}
