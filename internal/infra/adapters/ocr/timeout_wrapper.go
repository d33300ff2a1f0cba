package ocr

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gemini-batch-ocr/internal/domain"
	"gemini-batch-ocr/internal/domain/model"
	"gemini-batch-ocr/internal/domain/ports/adapter"
)

// Compile-time check
var _ adapter.OCRServiceAdapter = (*timeoutOCR)(nil)

type timeoutOCR struct {
	inner adapter.OCRServiceAdapter
	d     time.Duration
}

// NewTimeoutOCR bounds every remote call by d. A timed out call is a terminal
// failure for the image; it is not retried with another credential.
func NewTimeoutOCR(inner adapter.OCRServiceAdapter, d time.Duration) adapter.OCRServiceAdapter {
	if d <= 0 {
		return inner
	}
	return &timeoutOCR{inner: inner, d: d}
}

func (t *timeoutOCR) Provider() string { return t.inner.Provider() }

func (t *timeoutOCR) ExtractText(ctx context.Context, modelName string, image model.ImageItem, cred model.Credential) (string, error) {
	cctx, cancel := context.WithTimeout(ctx, t.d)
	defer cancel()
	text, err := t.inner.ExtractText(cctx, modelName, image, cred)
	if err != nil && ctx.Err() == nil && errors.Is(cctx.Err(), context.DeadlineExceeded) {
		return "", &domain.RemoteError{Message: fmt.Sprintf("request timed out after %s", t.d)}
	}
	return text, err
}

func (t *timeoutOCR) ListModels(ctx context.Context, cred model.Credential) ([]adapter.ModelInfo, error) {
	cctx, cancel := context.WithTimeout(ctx, t.d)
	defer cancel()
	return t.inner.ListModels(cctx, cred)
}
