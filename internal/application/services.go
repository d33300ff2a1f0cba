package application

import (
	"context"
	"errors"
	"fmt"

	"gemini-batch-ocr/internal/config"
	"gemini-batch-ocr/internal/domain/ports/adapter"
	"gemini-batch-ocr/internal/domain/ports/repository"
	"gemini-batch-ocr/internal/infra/adapters/ocr"
	"gemini-batch-ocr/internal/infra/imagecheck"
	"gemini-batch-ocr/internal/infra/memory"
	red "gemini-batch-ocr/internal/infra/redis"
	"gemini-batch-ocr/internal/infra/security"
	"gemini-batch-ocr/internal/infra/worker"
	"gemini-batch-ocr/internal/usecase"

	"github.com/rs/zerolog"
)

// Services composes the use cases both commands run on. Build it once per
// process and Close it on shutdown.
type Services struct {
	Pool        *usecase.CredentialPool
	Credentials usecase.CredentialUseCase
	Models      usecase.ModelUseCase
	Batches     usecase.BatchUseCase

	// Limiter is nil unless credentials live in Redis.
	Limiter *red.RateLimiter

	workers *worker.Pool
	closers []func() error
	log     *zerolog.Logger
}

// Build wires stores, the OCR provider and the use cases from cfg. sink
// receives every batch event; it may be nil.
func Build(ctx context.Context, cfg *config.Config, sink adapter.ResultSink, logger *zerolog.Logger) (*Services, error) {
	ocrAdapter, err := NewOCRAdapter(cfg.AI)
	if err != nil {
		return nil, err
	}

	s := &Services{log: logger}
	credRepo, cursor, err := s.stores(ctx, cfg)
	if err != nil {
		_ = s.Close()
		return nil, err
	}

	s.Pool = usecase.NewCredentialPool(credRepo, cursor, logger)
	if err := s.Pool.Restore(ctx); err != nil {
		logger.Warn().Err(err).Msg("cursor not restored; starting at the first credential")
	}

	// one worker: batches never interleave
	s.workers = worker.NewPool(1, logger)
	s.workers.Start(ctx)

	s.Credentials = usecase.NewCredentialUseCase(credRepo, logger)
	s.Models = usecase.NewModelUseCase(s.Pool, ocrAdapter, cfg.AI.DefaultModel, logger)
	s.Batches = usecase.NewBatchUseCase(
		memory.NewBatchRepo(),
		s.Pool,
		ocrAdapter,
		imagecheck.NewPreparer(cfg.Batch),
		sink,
		s.workers,
		usecase.BatchOptions{MaxImages: cfg.Batch.MaxImages, DefaultModel: cfg.AI.DefaultModel},
		logger,
		cfg.Runtime.Dev,
	)

	logger.Info().
		Str("provider", ocrAdapter.Provider()).
		Str("store", cfg.Credentials.Store).
		Str("model", cfg.AI.DefaultModel).
		Msg("services ready")
	return s, nil
}

func (s *Services) stores(ctx context.Context, cfg *config.Config) (repository.CredentialRepository, repository.CursorStore, error) {
	switch cfg.Credentials.Store {
	case "memory":
		return memory.NewCredentialRepo(cfg.Credentials.Keys), &memory.CursorStore{}, nil
	case "redis":
		client, err := red.NewClient(ctx, &cfg.Redis)
		if err != nil {
			return nil, nil, fmt.Errorf("redis: %w", err)
		}
		s.closers = append(s.closers, client.Close)

		sealer, err := security.NewSealer(cfg.Security.EncryptionKey)
		if err != nil {
			return nil, nil, fmt.Errorf("encryption: %w", err)
		}
		s.Limiter = red.NewRateLimiter(client, cfg.Redis.Prefix)
		return red.NewCredentialRepo(client, sealer, cfg.Redis.Prefix, cfg.Credentials.Keys),
			red.NewCursorStore(client, cfg.Redis.Prefix), nil
	default:
		return nil, nil, fmt.Errorf("credentials.store %q is not supported", cfg.Credentials.Store)
	}
}

// NewOCRAdapter picks the provider named in cfg and bounds every call by
// cfg.CallTimeout.
func NewOCRAdapter(cfg config.AIConfig) (adapter.OCRServiceAdapter, error) {
	var a adapter.OCRServiceAdapter
	switch cfg.Provider {
	case "gemini":
		a = ocr.NewGeminiAdapter(cfg.GeminiURL)
	case "openai":
		a = ocr.NewOpenAIAdapter(cfg.OpenAIBaseURL)
	case "noop":
		a = ocr.NewNoopOCRAdapter()
	default:
		return nil, fmt.Errorf("ai.provider %q is not supported", cfg.Provider)
	}
	if cfg.CallTimeout > 0 {
		a = ocr.NewTimeoutOCR(a, cfg.CallTimeout)
	}
	return a, nil
}

// Close stops the worker and releases store connections.
func (s *Services) Close() error {
	if s.workers != nil {
		s.workers.Stop()
	}
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	s.closers = nil
	return errors.Join(errs...)
}
