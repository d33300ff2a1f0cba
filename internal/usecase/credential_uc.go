package usecase

import (
	"context"
	"fmt"
	"strings"

	"gemini-batch-ocr/internal/domain"
	"gemini-batch-ocr/internal/domain/model"
	"gemini-batch-ocr/internal/domain/ports/repository"
	"gemini-batch-ocr/internal/infra/logging"

	"github.com/rs/zerolog"
)

// Compile-time check
var _ CredentialUseCase = (*credentialUC)(nil)

// CredentialView is a credential as shown in listings.
type CredentialView struct {
	Index  int    `json:"index"`
	Masked string `json:"masked"`
}

// CredentialUseCase manages the ordered key list users edit.
type CredentialUseCase interface {
	List(ctx context.Context) ([]CredentialView, error)
	Add(ctx context.Context, value string) (int, error)
	Update(ctx context.Context, index int, value string) error
	Delete(ctx context.Context, index int) error
	Reveal(ctx context.Context, index int) (model.Credential, error)
}

type credentialUC struct {
	repo repository.CredentialRepository
	log  *zerolog.Logger
}

func NewCredentialUseCase(repo repository.CredentialRepository, logger *zerolog.Logger) *credentialUC {
	return &credentialUC{repo: repo, log: logger}
}

func (u *credentialUC) List(ctx context.Context) ([]CredentialView, error) {
	creds, err := u.load(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]CredentialView, len(creds))
	for i, c := range creds {
		out[i] = CredentialView{Index: i, Masked: logging.Redact(c.String(), false)}
	}
	return out, nil
}

// Add appends value and returns its index.
func (u *credentialUC) Add(ctx context.Context, value string) (int, error) {
	defer logging.TraceDuration(u.log, "CredentialUC.Add")()

	c := model.Credential(strings.TrimSpace(value))
	if c.IsEmpty() {
		return 0, fmt.Errorf("empty credential: %w", domain.ErrInvalidArgument)
	}
	creds, err := u.load(ctx)
	if err != nil {
		return 0, err
	}
	creds = append(creds, c)
	if err := u.save(ctx, creds); err != nil {
		return 0, err
	}
	u.log.Info().Int("index", len(creds)-1).Int("total", len(creds)).Msg("credential added")
	return len(creds) - 1, nil
}

// Update replaces the credential at index. An empty value removes it.
func (u *credentialUC) Update(ctx context.Context, index int, value string) error {
	creds, err := u.load(ctx)
	if err != nil {
		return err
	}
	if index < 0 || index >= len(creds) {
		return domain.ErrNotFound
	}
	creds[index] = model.Credential(strings.TrimSpace(value))
	if err := u.save(ctx, creds); err != nil {
		return err
	}
	u.log.Info().Int("index", index).Msg("credential updated")
	return nil
}

func (u *credentialUC) Delete(ctx context.Context, index int) error {
	creds, err := u.load(ctx)
	if err != nil {
		return err
	}
	if index < 0 || index >= len(creds) {
		return domain.ErrNotFound
	}
	creds = append(creds[:index], creds[index+1:]...)
	if err := u.save(ctx, creds); err != nil {
		return err
	}
	u.log.Info().Int("index", index).Int("total", len(creds)).Msg("credential deleted")
	return nil
}

// Reveal returns the full value, for copying.
func (u *credentialUC) Reveal(ctx context.Context, index int) (model.Credential, error) {
	creds, err := u.load(ctx)
	if err != nil {
		return "", err
	}
	if index < 0 || index >= len(creds) {
		return "", domain.ErrNotFound
	}
	return creds[index], nil
}

// load returns the stored list without empty entries so indexes match what
// List shows.
func (u *credentialUC) load(ctx context.Context) ([]model.Credential, error) {
	all, err := u.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list credentials: %w", err)
	}
	return model.ActiveCredentials(all), nil
}

func (u *credentialUC) save(ctx context.Context, creds []model.Credential) error {
	if err := u.repo.Replace(ctx, model.ActiveCredentials(creds)); err != nil {
		return fmt.Errorf("save credentials: %w", err)
	}
	return nil
}
