package usecase

import (
	"context"
	"errors"
	"time"

	"gemini-batch-ocr/internal/domain"
	"gemini-batch-ocr/internal/domain/model"
	"gemini-batch-ocr/internal/domain/ports/adapter"
	"gemini-batch-ocr/internal/infra/logging"
	"gemini-batch-ocr/internal/infra/metrics"

	"github.com/rs/zerolog"
)

// BatchProcessor runs the images of a batch one at a time against the OCR
// adapter, rotating credentials on rate limits.
type BatchProcessor struct {
	pool *CredentialPool
	ocr  adapter.OCRServiceAdapter
	sink adapter.ResultSink
	log  *zerolog.Logger
	dev  bool
}

func NewBatchProcessor(pool *CredentialPool, ocr adapter.OCRServiceAdapter, sink adapter.ResultSink, log *zerolog.Logger, dev bool) *BatchProcessor {
	if sink == nil {
		sink = adapter.NoopSink{}
	}
	return &BatchProcessor{pool: pool, ocr: ocr, sink: sink, log: log, dev: dev}
}

// Process drives run to completion. It returns domain.ErrEmptyPool, before
// any item leaves Pending, when no credential is configured. Item failures
// are recorded on the run and never returned.
//
// Once ctx is cancelled the in-flight call fails and every remaining item is
// marked failed as canceled; the batch is still completed.
func (p *BatchProcessor) Process(ctx context.Context, run *model.BatchRun) error {
	defer logging.TraceDuration(p.log, "BatchProcessor.Process")()
	l := p.log.With().Str("batch_id", run.ID).Logger()

	if _, err := p.pool.ActiveCredentials(ctx); err != nil {
		if errors.Is(err, domain.ErrEmptyPool) {
			metrics.IncBatch("rejected")
		}
		return err
	}

	run.Status = model.BatchStatusProcessing
	metrics.IncBatch(string(model.BatchStatusProcessing))
	p.sink.OnBatchStarted(ctx, run.Summary())
	for i := range run.Results {
		p.sink.OnItemStatusChanged(ctx, run.ID, run.Results[i])
	}
	l.Info().Int("items", len(run.Items)).Str("model", run.Model).Msg("batch started")

	for i := range run.Items {
		if ctx.Err() != nil {
			p.finish(ctx, run, i, model.FailureCanceled, domain.ErrBatchCanceled.Error())
			continue
		}
		p.processItem(ctx, &l, run, i)
	}

	now := time.Now()
	run.Status = model.BatchStatusComplete
	run.CompletedAt = &now
	metrics.IncBatch(string(model.BatchStatusComplete))
	sum := run.Summary()
	p.sink.OnBatchComplete(ctx, sum)
	l.Info().Int("succeeded", sum.Succeeded).Int("failed", sum.Failed).Msg("batch complete")
	return nil
}

func (p *BatchProcessor) processItem(ctx context.Context, l *zerolog.Logger, run *model.BatchRun, i int) {
	item := run.Items[i]
	res := &run.Results[i]

	// The pool is read again for every image so edits made while the batch
	// runs apply from the next image on.
	creds, err := p.pool.ActiveCredentials(ctx)
	if err != nil {
		kind := model.FailureNoCredentials
		if !errors.Is(err, domain.ErrEmptyPool) {
			kind = model.FailureRemote
		}
		p.finish(ctx, run, i, kind, err.Error())
		return
	}

	if err := res.Transition(model.ItemStatusInProgress); err != nil {
		l.Error().Err(err).Str("item_id", item.ID).Msg("item already processed")
		return
	}
	p.sink.OnItemStatusChanged(ctx, run.ID, *res)

	attempts := 0
	done := false
	for !done && attempts < len(creds) {
		cred, err := p.pool.Current()
		if err != nil {
			break
		}

		start := time.Now()
		text, err := p.ocr.ExtractText(ctx, run.Model, item, cred)
		latency := time.Since(start)
		res.Attempts++

		switch {
		case err == nil:
			metrics.ObserveOCRCall(p.ocr.Provider(), run.Model, metrics.OutcomeSuccess, latency)
			_ = res.Succeed(text)
			done = true
			l.Info().Str("item_id", item.ID).Int("position", item.Position).
				Int("attempts", res.Attempts).Dur("latency", latency).Msg("item succeeded")

		case domain.IsRateLimited(err):
			metrics.ObserveOCRCall(p.ocr.Provider(), run.Model, metrics.OutcomeRateLimited, latency)
			next := p.pool.Advance(ctx)
			attempts++
			l.Warn().Str("item_id", item.ID).
				Str("credential", logging.Redact(cred.String(), p.dev)).
				Int("attempt", attempts).Int("next_cursor", next).
				Msg("rate limited; rotating credential")
			p.sink.OnRetrying(ctx, run.ID, *res, attempts)

		default:
			metrics.ObserveOCRCall(p.ocr.Provider(), run.Model, metrics.OutcomeError, latency)
			_ = res.Fail(model.FailureRemote, err.Error())
			done = true
			l.Error().Err(err).Str("item_id", item.ID).Int("position", item.Position).Msg("item failed")
		}
	}

	if !done {
		_ = res.Fail(model.FailureCredentialsExhausted, domain.ErrCredentialsExhausted.Error())
		l.Warn().Str("item_id", item.ID).Int("attempts", attempts).Msg("all credentials rate limited")
	}
	metrics.IncItem(string(res.Status), string(res.Kind))
	p.sink.OnItemStatusChanged(ctx, run.ID, *res)
}

// finish fails item i without calling the provider.
func (p *BatchProcessor) finish(ctx context.Context, run *model.BatchRun, i int, kind model.FailureKind, reason string) {
	res := &run.Results[i]
	if err := res.Fail(kind, reason); err != nil {
		return
	}
	metrics.IncItem(string(res.Status), string(res.Kind))
	p.sink.OnItemStatusChanged(ctx, run.ID, *res)
}
