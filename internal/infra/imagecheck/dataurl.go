package imagecheck

import (
	"encoding/base64"
	"fmt"
	"strings"

	"gemini-batch-ocr/internal/domain"
	"gemini-batch-ocr/internal/domain/model"
)

// DecodeDataURL parses "data:<mime>;base64,<payload>" into an Upload.
func DecodeDataURL(s string) (model.Upload, error) {
	rest, ok := strings.CutPrefix(strings.TrimSpace(s), "data:")
	if !ok {
		return model.Upload{}, fmt.Errorf("not a data URL: %w", domain.ErrInvalidArgument)
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return model.Upload{}, fmt.Errorf("data URL has no payload: %w", domain.ErrInvalidArgument)
	}
	mt, isBase64 := strings.CutSuffix(meta, ";base64")
	if !isBase64 {
		return model.Upload{}, fmt.Errorf("data URL must be base64 encoded: %w", domain.ErrInvalidArgument)
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		if data, err = base64.RawStdEncoding.DecodeString(payload); err != nil {
			return model.Upload{}, fmt.Errorf("decode data URL: %v: %w", err, domain.ErrInvalidArgument)
		}
	}
	return model.Upload{MIMEType: baseType(mt), Data: data}, nil
}
