// File: internal/infra/imagecheck/preparer.go
package imagecheck

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/gabriel-vasile/mimetype"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"gemini-batch-ocr/internal/config"
	"gemini-batch-ocr/internal/domain"
	"gemini-batch-ocr/internal/domain/model"
	"gemini-batch-ocr/internal/domain/ports/adapter"
)

const (
	DefaultMaxFileSize = 10 << 20 // 10MB
	jpegQuality        = 90
)

var _ adapter.ImagePreparer = (*Preparer)(nil)

// Preparer checks uploads before they are queued. The declared type is not
// trusted; the type is sniffed from the bytes.
type Preparer struct {
	maxSize int64
	maxDim  int
	allowed map[string]bool
}

func NewPreparer(cfg config.BatchConfig) *Preparer {
	p := &Preparer{maxSize: cfg.MaxFileSize, maxDim: cfg.MaxDimension, allowed: map[string]bool{}}
	if p.maxSize <= 0 {
		p.maxSize = DefaultMaxFileSize
	}
	for _, t := range cfg.AllowedTypes {
		p.allowed[strings.ToLower(strings.TrimSpace(t))] = true
	}
	return p
}

// Prepare validates u and returns the MIME type and bytes to send. Images
// larger than the configured dimension are downscaled.
func (p *Preparer) Prepare(u model.Upload) (string, []byte, error) {
	if len(u.Data) == 0 {
		return "", nil, fmt.Errorf("empty file: %w", domain.ErrUnsupportedImage)
	}
	if int64(len(u.Data)) > p.maxSize {
		return "", nil, fmt.Errorf("file size %d exceeds maximum allowed size %d: %w", len(u.Data), p.maxSize, domain.ErrUnsupportedImage)
	}

	mt := baseType(mimetype.Detect(u.Data).String())
	if !strings.HasPrefix(mt, "image/") {
		return "", nil, fmt.Errorf("%s is not an image: %w", mt, domain.ErrUnsupportedImage)
	}
	if len(p.allowed) > 0 && !p.allowed[mt] {
		return "", nil, fmt.Errorf("type %s is not allowed: %w", mt, domain.ErrUnsupportedImage)
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(u.Data))
	if err != nil {
		return "", nil, fmt.Errorf("invalid image format: %v: %w", err, domain.ErrUnsupportedImage)
	}
	if p.maxDim <= 0 || (cfg.Width <= p.maxDim && cfg.Height <= p.maxDim) {
		return mt, u.Data, nil
	}
	return p.downscale(u.Data, mt)
}

// downscale fits the image inside maxDim x maxDim. JPEG stays JPEG; every
// other format is re-encoded as PNG since not all of them can be written.
func (p *Preparer) downscale(data []byte, mt string) (string, []byte, error) {
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return "", nil, fmt.Errorf("failed to decode image: %v: %w", err, domain.ErrUnsupportedImage)
	}
	img = imaging.Fit(img, p.maxDim, p.maxDim, imaging.Lanczos)

	format, outType := imaging.PNG, "image/png"
	if mt == "image/jpeg" {
		format, outType = imaging.JPEG, "image/jpeg"
	}
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, format, imaging.JPEGQuality(jpegQuality)); err != nil {
		return "", nil, fmt.Errorf("failed to encode image: %w", err)
	}
	return outType, buf.Bytes(), nil
}

func baseType(mt string) string {
	if i := strings.IndexByte(mt, ';'); i >= 0 {
		mt = mt[:i]
	}
	return strings.ToLower(strings.TrimSpace(mt))
}
