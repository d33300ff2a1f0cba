package adapter

import (
	"context"

	"gemini-batch-ocr/internal/domain/model"
)

// ExtractionPrompt is sent with every image. It asks for all text in the
// image, in order, keeping its structure, and nothing else.
const ExtractionPrompt = "لطفا تمام متن‌های موجود در این تصویر را به دقت استخراج کن و به صورت مرتب و با حفظ ساختار نمایش بده. فقط متن استخراج شده را برگردان."

// ModelInfo describes a model that can be used for extraction.
type ModelInfo struct {
	Name        string `json:"name"`
	DisplayName string `json:"display_name"`
}

// OCRServiceAdapter is the port for the remote OCR call.
//
// ExtractText makes exactly one request for one image with one credential.
// A rate-limit response must be returned as an error matching
// domain.ErrRateLimited; every other failure as *domain.RemoteError.
type OCRServiceAdapter interface {
	Provider() string
	ExtractText(ctx context.Context, modelName string, image model.ImageItem, cred model.Credential) (string, error)
	// ListModels returns models that can generate content from an image.
	ListModels(ctx context.Context, cred model.Credential) ([]ModelInfo, error)
}
