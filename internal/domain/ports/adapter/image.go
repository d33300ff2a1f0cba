package adapter

import "gemini-batch-ocr/internal/domain/model"

// ImagePreparer validates an upload and returns the bytes and MIME type to
// enqueue.
type ImagePreparer interface {
	Prepare(upload model.Upload) (mimeType string, data []byte, err error)
}
