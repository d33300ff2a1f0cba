// File: internal/infra/memory/credential_repo.go
package memory

import (
	"context"
	"sync"

	"gemini-batch-ocr/internal/domain/model"
	"gemini-batch-ocr/internal/domain/ports/repository"
)

// Compile-time check
var _ repository.CredentialRepository = (*CredentialRepo)(nil)

// CredentialRepo keeps the key list in process memory. It is seeded from
// configuration and lost on restart.
type CredentialRepo struct {
	mu    sync.RWMutex
	creds []model.Credential
}

func NewCredentialRepo(seed []string) *CredentialRepo {
	r := &CredentialRepo{}
	for _, k := range seed {
		r.creds = append(r.creds, model.Credential(k))
	}
	return r
}

func (r *CredentialRepo) List(ctx context.Context) ([]model.Credential, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]model.Credential(nil), r.creds...), nil
}

func (r *CredentialRepo) Replace(ctx context.Context, creds []model.Credential) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.creds = append([]model.Credential(nil), creds...)
	return nil
}
