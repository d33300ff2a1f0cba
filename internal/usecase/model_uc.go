package usecase

import (
	"context"
	"strings"

	"gemini-batch-ocr/internal/domain/ports/adapter"

	"github.com/rs/zerolog"
)

// Compile-time check
var _ ModelUseCase = (*modelUC)(nil)

type ModelUseCase interface {
	ListModels(ctx context.Context) ([]adapter.ModelInfo, error)
	DefaultModel() string
}

type modelUC struct {
	pool         *CredentialPool
	ocr          adapter.OCRServiceAdapter
	defaultModel string
	log          *zerolog.Logger
}

func NewModelUseCase(pool *CredentialPool, ocr adapter.OCRServiceAdapter, defaultModel string, logger *zerolog.Logger) *modelUC {
	return &modelUC{pool: pool, ocr: ocr, defaultModel: defaultModel, log: logger}
}

// ListModels asks the provider with the first active credential. It does not
// touch the rotation cursor.
func (u *modelUC) ListModels(ctx context.Context) ([]adapter.ModelInfo, error) {
	creds, err := u.pool.ActiveCredentials(ctx)
	if err != nil {
		return nil, err
	}
	models, err := u.ocr.ListModels(ctx, creds[0])
	if err != nil {
		u.log.Warn().Err(err).Str("provider", u.ocr.Provider()).Msg("list models failed")
		return nil, err
	}
	out := make([]adapter.ModelInfo, 0, len(models))
	for _, m := range models {
		m.Name = strings.TrimPrefix(m.Name, "models/")
		if m.Name == "" {
			continue
		}
		if m.DisplayName == "" {
			m.DisplayName = m.Name
		}
		out = append(out, m)
	}
	return out, nil
}

func (u *modelUC) DefaultModel() string { return u.defaultModel }
