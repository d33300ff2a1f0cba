package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"gemini-batch-ocr/internal/domain"
	"gemini-batch-ocr/internal/domain/model"
	"gemini-batch-ocr/internal/domain/ports/adapter"
	"gemini-batch-ocr/internal/domain/ports/repository"
	"gemini-batch-ocr/internal/infra/logging"
	"gemini-batch-ocr/internal/infra/metrics"
	"gemini-batch-ocr/internal/infra/worker"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"
)

// Compile-time check
var _ BatchUseCase = (*batchUC)(nil)

// BatchUseCase is the entry point for submitting images and reading results.
type BatchUseCase interface {
	// Submit validates uploads, stores a pending run and queues it. The
	// returned snapshot has every item Pending.
	Submit(ctx context.Context, modelName string, uploads []model.Upload) (*model.BatchRun, error)
	// Run is Submit processed on the caller's goroutine; it returns the
	// completed run.
	Run(ctx context.Context, modelName string, uploads []model.Upload) (*model.BatchRun, error)
	Get(ctx context.Context, id string) (*model.BatchRun, error)
	List(ctx context.Context) ([]model.BatchSummary, error)
	Cancel(ctx context.Context, id string) error
	CombinedText(ctx context.Context, id string) (string, error)
	Prune(ctx context.Context, olderThan time.Duration) (int, error)
}

type BatchOptions struct {
	MaxImages    int
	DefaultModel string
}

type batchUC struct {
	repo      repository.BatchRepository
	pool      *CredentialPool
	processor *BatchProcessor
	preparer  adapter.ImagePreparer
	workers   *worker.Pool
	opts      BatchOptions
	log       *zerolog.Logger

	mu      sync.Mutex
	running string // ID of the batch being processed, "" when idle
	cancel  context.CancelFunc
}

// NewBatchUseCase wires the processor with a sink that mirrors every event
// into repo before forwarding it to sink.
func NewBatchUseCase(
	repo repository.BatchRepository,
	pool *CredentialPool,
	ocr adapter.OCRServiceAdapter,
	preparer adapter.ImagePreparer,
	sink adapter.ResultSink,
	workers *worker.Pool,
	opts BatchOptions,
	logger *zerolog.Logger,
	dev bool,
) *batchUC {
	if opts.MaxImages <= 0 {
		opts.MaxImages = 15
	}
	rec := &recordingSink{repo: repo, next: sink, log: logger}
	return &batchUC{
		repo:      repo,
		pool:      pool,
		processor: NewBatchProcessor(pool, ocr, rec, logger, dev),
		preparer:  preparer,
		workers:   workers,
		opts:      opts,
		log:       logger,
	}
}

func (u *batchUC) Submit(ctx context.Context, modelName string, uploads []model.Upload) (*model.BatchRun, error) {
	defer logging.TraceDuration(u.log, "BatchUC.Submit")()

	if u.workers == nil {
		return nil, fmt.Errorf("no worker pool: %w", domain.ErrInvalidArgument)
	}
	run, err := u.intake(ctx, modelName, uploads)
	if err != nil {
		return nil, err
	}

	runCtx, cancel := context.WithCancel(context.Background())
	if err := u.claim(run.ID, cancel); err != nil {
		cancel()
		return nil, err
	}
	if err := u.repo.Save(ctx, run); err != nil {
		u.release(run.ID)
		return nil, fmt.Errorf("save batch: %w", err)
	}
	pending := run.Snapshot()

	err = u.workers.Submit(func(wctx context.Context) error {
		stop := context.AfterFunc(wctx, cancel)
		defer stop()
		defer cancel()
		u.process(logging.WithBatchID(runCtx, run.ID), run)
		return nil
	})
	if err != nil {
		cancel()
		closeRun(run, model.FailureCanceled, err.Error())
		_ = u.repo.Save(ctx, run)
		u.release(run.ID)
		return nil, fmt.Errorf("enqueue batch: %w", err)
	}

	u.log.Info().Str("batch_id", run.ID).Int("items", len(run.Items)).Str("model", run.Model).Msg("batch queued")
	return pending, nil
}

func (u *batchUC) Run(ctx context.Context, modelName string, uploads []model.Upload) (*model.BatchRun, error) {
	run, err := u.intake(ctx, modelName, uploads)
	if err != nil {
		return nil, err
	}
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	if err := u.claim(run.ID, cancel); err != nil {
		return nil, err
	}
	if err := u.repo.Save(ctx, run); err != nil {
		u.release(run.ID)
		return nil, fmt.Errorf("save batch: %w", err)
	}
	if err := u.process(logging.WithBatchID(runCtx, run.ID), run); err != nil {
		return nil, err
	}
	return run.Snapshot(), nil
}

func (u *batchUC) Get(ctx context.Context, id string) (*model.BatchRun, error) {
	return u.repo.FindByID(ctx, id)
}

func (u *batchUC) List(ctx context.Context) ([]model.BatchSummary, error) {
	return u.repo.List(ctx)
}

// Cancel stops the batch if it is running. Cancelling a finished batch is a
// no-op.
func (u *batchUC) Cancel(ctx context.Context, id string) error {
	if _, err := u.repo.FindByID(ctx, id); err != nil {
		return err
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.running == id && u.cancel != nil {
		u.cancel()
		u.log.Info().Str("batch_id", id).Msg("batch cancel requested")
	}
	return nil
}

func (u *batchUC) CombinedText(ctx context.Context, id string) (string, error) {
	run, err := u.repo.FindByID(ctx, id)
	if err != nil {
		return "", err
	}
	return run.CombinedText(nil), nil
}

func (u *batchUC) Prune(ctx context.Context, olderThan time.Duration) (int, error) {
	n, err := u.repo.DeleteCompletedBefore(ctx, time.Now().Add(-olderThan))
	if err != nil {
		return 0, err
	}
	if n > 0 {
		u.log.Info().Int("removed", n).Dur("older_than", olderThan).Msg("pruned batches")
	}
	return n, nil
}

// intake validates the uploads and builds a queued run. Nothing is stored.
func (u *batchUC) intake(ctx context.Context, modelName string, uploads []model.Upload) (*model.BatchRun, error) {
	if len(uploads) == 0 {
		return nil, domain.ErrNoImages
	}
	if len(uploads) > u.opts.MaxImages {
		return nil, fmt.Errorf("%d images, at most %d: %w", len(uploads), u.opts.MaxImages, domain.ErrTooManyImages)
	}
	if _, err := u.pool.ActiveCredentials(ctx); err != nil {
		return nil, err
	}
	if modelName == "" {
		modelName = u.opts.DefaultModel
	}
	if modelName == "" {
		return nil, fmt.Errorf("no model selected: %w", domain.ErrInvalidArgument)
	}

	items := make([]model.ImageItem, len(uploads))
	for i, up := range uploads {
		mt, data, err := u.preparer.Prepare(up)
		if err != nil {
			return nil, fmt.Errorf("image %d (%s): %w", i+1, up.Name, err)
		}
		items[i] = model.ImageItem{
			ID:       uuid.NewString(),
			Position: i,
			Name:     up.Name,
			MIMEType: mt,
			Data:     data,
		}
	}
	return model.NewBatchRun(ulid.Make().String(), modelName, items), nil
}

// claim marks id as the running batch.
func (u *batchUC) claim(id string, cancel context.CancelFunc) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.running != "" {
		return domain.ErrBatchInProgress
	}
	u.running = id
	u.cancel = cancel
	return nil
}

func (u *batchUC) release(id string) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.running == id {
		u.running = ""
		u.cancel = nil
	}
}

// process runs the batch and stores its final state. The slot is released
// before the complete status becomes visible to readers.
func (u *batchUC) process(ctx context.Context, run *model.BatchRun) error {
	err := u.processor.Process(ctx, run)
	if err != nil {
		// Close the run so readers do not wait on it.
		closeRun(run, processFailureKind(ctx, err), err.Error())
	}
	u.release(run.ID)
	if saveErr := u.repo.Save(context.Background(), run); saveErr != nil {
		u.log.Error().Err(saveErr).Str("batch_id", run.ID).Msg("save finished batch failed")
	}
	return err
}

// processFailureKind picks the item failure for a batch that stopped early.
func processFailureKind(ctx context.Context, err error) model.FailureKind {
	switch {
	case errors.Is(err, domain.ErrEmptyPool):
		return model.FailureNoCredentials
	case ctx.Err() != nil || errors.Is(err, context.Canceled):
		return model.FailureCanceled
	default:
		return model.FailureRemote
	}
}

// closeRun fails every unfinished item and completes run.
func closeRun(run *model.BatchRun, kind model.FailureKind, reason string) {
	for i := range run.Results {
		if !run.Results[i].Status.IsTerminal() {
			_ = run.Results[i].Fail(kind, reason)
		}
	}
	now := time.Now()
	run.Status = model.BatchStatusComplete
	run.CompletedAt = &now
	metrics.IncBatch(string(model.BatchStatusComplete))
}

// recordingSink mirrors processor events into the batch repository.
type recordingSink struct {
	repo repository.BatchRepository
	next adapter.ResultSink
	log  *zerolog.Logger
}

func (s *recordingSink) OnBatchStarted(ctx context.Context, run model.BatchSummary) {
	if err := s.repo.UpdateStatus(context.WithoutCancel(ctx), run.ID, run.Status); err != nil {
		s.log.Warn().Err(err).Str("batch_id", run.ID).Msg("record batch status failed")
	}
	if s.next != nil {
		s.next.OnBatchStarted(ctx, run)
	}
}

func (s *recordingSink) OnItemStatusChanged(ctx context.Context, batchID string, res model.ItemResult) {
	if err := s.repo.UpdateResult(context.WithoutCancel(ctx), batchID, res); err != nil {
		s.log.Warn().Err(err).Str("batch_id", batchID).Str("item_id", res.ItemID).Msg("record item status failed")
	}
	if s.next != nil {
		s.next.OnItemStatusChanged(ctx, batchID, res)
	}
}

func (s *recordingSink) OnRetrying(ctx context.Context, batchID string, res model.ItemResult, attempt int) {
	if err := s.repo.UpdateResult(context.WithoutCancel(ctx), batchID, res); err != nil {
		s.log.Warn().Err(err).Str("batch_id", batchID).Msg("record retry failed")
	}
	if s.next != nil {
		s.next.OnRetrying(ctx, batchID, res, attempt)
	}
}

// OnBatchComplete only forwards; batchUC.process saves the final run.
func (s *recordingSink) OnBatchComplete(ctx context.Context, run model.BatchSummary) {
	if s.next != nil {
		s.next.OnBatchComplete(ctx, run)
	}
}
