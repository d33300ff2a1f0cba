// File: internal/infra/redis/credential_repo.go
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"gemini-batch-ocr/internal/domain/model"
	"gemini-batch-ocr/internal/domain/ports/repository"
	"gemini-batch-ocr/internal/infra/security"
)

// Compile-time check
var _ repository.CredentialRepository = (*CredentialRepo)(nil)

// CredentialRepo stores the key list as one sealed JSON array so every
// instance pointing at the same Redis shares it.
type CredentialRepo struct {
	client RedisClient
	sealer *security.Sealer
	key    string
	seed   []model.Credential
}

// NewCredentialRepo returns a repo under prefix. seed is served until the
// first Replace when nothing is stored yet.
func NewCredentialRepo(client RedisClient, sealer *security.Sealer, prefix string, seed []string) *CredentialRepo {
	r := &CredentialRepo{client: client, sealer: sealer, key: key(prefix, "credentials")}
	for _, s := range seed {
		r.seed = append(r.seed, model.Credential(s))
	}
	return r
}

func (r *CredentialRepo) List(ctx context.Context) ([]model.Credential, error) {
	raw, err := r.client.Get(ctx, r.key)
	if errors.Is(err, ErrNil) {
		return append([]model.Credential(nil), r.seed...), nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis get %s: %w", r.key, err)
	}
	pt, err := r.sealer.Open(raw, r.key)
	if err != nil {
		return nil, fmt.Errorf("open credentials: %w", err)
	}
	var keys []string
	if err := json.Unmarshal(pt, &keys); err != nil {
		return nil, fmt.Errorf("decode credentials: %w", err)
	}
	out := make([]model.Credential, len(keys))
	for i, k := range keys {
		out[i] = model.Credential(k)
	}
	return out, nil
}

func (r *CredentialRepo) Replace(ctx context.Context, creds []model.Credential) error {
	keys := make([]string, len(creds))
	for i, c := range creds {
		keys[i] = c.String()
	}
	b, err := json.Marshal(keys)
	if err != nil {
		return err
	}
	sealed, err := r.sealer.Seal(b, r.key)
	if err != nil {
		return err
	}
	if err := r.client.Set(ctx, r.key, sealed, 0); err != nil {
		return fmt.Errorf("redis set %s: %w", r.key, err)
	}
	return nil
}
