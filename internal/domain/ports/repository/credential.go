package repository

import (
	"context"

	"gemini-batch-ocr/internal/domain/model"
)

// CredentialRepository stores the ordered credential list managed by users.
// Entries may be empty; the pool filters them.
type CredentialRepository interface {
	List(ctx context.Context) ([]model.Credential, error)
	Replace(ctx context.Context, creds []model.Credential) error
}

// CursorStore persists the rotation cursor between restarts.
type CursorStore interface {
	Load(ctx context.Context) (int, error)
	Store(ctx context.Context, cursor int) error
}
