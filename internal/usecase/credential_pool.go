package usecase

import (
	"context"
	"fmt"
	"sync"

	"gemini-batch-ocr/internal/domain"
	"gemini-batch-ocr/internal/domain/model"
	"gemini-batch-ocr/internal/domain/ports/repository"
	"gemini-batch-ocr/internal/infra/metrics"

	"github.com/rs/zerolog"
)

// CredentialPool owns the rotation cursor over the active credentials.
//
// The cursor lives as long as the pool. It is not reset between images or
// batches, so a credential seen rate limited stays behind the cursor for the
// images that follow.
type CredentialPool struct {
	mu     sync.Mutex
	source repository.CredentialRepository
	store  repository.CursorStore // optional
	active []model.Credential     // snapshot taken by ActiveCredentials
	cursor int
	log    *zerolog.Logger
}

// NewCredentialPool builds a pool over source. store may be nil.
func NewCredentialPool(source repository.CredentialRepository, store repository.CursorStore, log *zerolog.Logger) *CredentialPool {
	return &CredentialPool{source: source, store: store, log: log}
}

// Restore loads a persisted cursor. The value is normalized on the next
// ActiveCredentials call.
func (p *CredentialPool) Restore(ctx context.Context) error {
	if p.store == nil {
		return nil
	}
	c, err := p.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("load cursor: %w", err)
	}
	if c < 0 {
		c = 0
	}
	p.mu.Lock()
	p.cursor = c
	p.mu.Unlock()
	return nil
}

// ActiveCredentials reads the source, drops empty entries and makes the
// result the snapshot Current and Advance work on.
func (p *CredentialPool) ActiveCredentials(ctx context.Context) ([]model.Credential, error) {
	all, err := p.source.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list credentials: %w", err)
	}
	active := model.ActiveCredentials(all)
	metrics.SetActiveCredentials(len(active))

	p.mu.Lock()
	defer p.mu.Unlock()
	p.active = active
	if len(active) == 0 {
		return nil, domain.ErrEmptyPool
	}
	p.cursor %= len(active)
	return append([]model.Credential(nil), active...), nil
}

// Current returns the credential under the cursor.
func (p *CredentialPool) Current() (model.Credential, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.active) == 0 {
		return "", domain.ErrEmptyPool
	}
	return p.active[p.cursor%len(p.active)], nil
}

// Advance moves the cursor to the next credential and returns the new index.
func (p *CredentialPool) Advance(ctx context.Context) int {
	p.mu.Lock()
	if len(p.active) == 0 {
		p.mu.Unlock()
		return 0
	}
	p.cursor = (p.cursor + 1) % len(p.active)
	c := p.cursor
	p.mu.Unlock()

	metrics.IncCredentialRotation()
	if p.store != nil {
		if err := p.store.Store(ctx, c); err != nil {
			p.log.Warn().Err(err).Int("cursor", c).Msg("persist rotation cursor failed")
		}
	}
	return c
}

// Cursor returns the raw cursor value.
func (p *CredentialPool) Cursor() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cursor
}
