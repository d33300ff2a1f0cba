package ocr

import (
	"context"
	"fmt"
	"time"

	"gemini-batch-ocr/internal/domain/model"
	"gemini-batch-ocr/internal/domain/ports/adapter"
)

var _ adapter.OCRServiceAdapter = (*NoopOCRAdapter)(nil)

// NoopOCRAdapter is used for local runs without a provider. It answers
// every image with a placeholder after a short delay.
type NoopOCRAdapter struct {
	Delay time.Duration
}

func NewNoopOCRAdapter() *NoopOCRAdapter {
	return &NoopOCRAdapter{Delay: 100 * time.Millisecond}
}

func (a *NoopOCRAdapter) Provider() string { return "noop" }

func (a *NoopOCRAdapter) ExtractText(ctx context.Context, modelName string, image model.ImageItem, cred model.Credential) (string, error) {
	select {
	case <-time.After(a.Delay):
	case <-ctx.Done():
		return "", ctx.Err()
	}
	return fmt.Sprintf("[noop] %s (%s, %d bytes)", image.Name, image.MIMEType, len(image.Data)), nil
}

func (a *NoopOCRAdapter) ListModels(ctx context.Context, cred model.Credential) ([]adapter.ModelInfo, error) {
	return []adapter.ModelInfo{{Name: "noop-ocr", DisplayName: "Noop OCR"}}, nil
}
