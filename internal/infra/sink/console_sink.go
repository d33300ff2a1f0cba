// File: internal/infra/sink/console_sink.go
package sink

import (
	"context"
	"fmt"
	"io"
	"sync"

	"gemini-batch-ocr/internal/domain/model"
	"gemini-batch-ocr/internal/domain/ports/adapter"
)

var _ adapter.ResultSink = (*ConsoleSink)(nil)

// Translator formats a localized message.
type Translator interface {
	T(key string, args ...interface{}) string
}

// ConsoleSink prints localized progress lines, one per event, for the CLI.
// Pending transitions are not printed.
type ConsoleSink struct {
	mu sync.Mutex
	w  io.Writer
	tr Translator
}

func NewConsoleSink(w io.Writer, tr Translator) *ConsoleSink {
	return &ConsoleSink{w: w, tr: tr}
}

func (s *ConsoleSink) println(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, _ = fmt.Fprintln(s.w, msg)
}

func (s *ConsoleSink) OnBatchStarted(ctx context.Context, run model.BatchSummary) {
	s.println(s.tr.T("batch_started", run.Total, run.Model))
}

func (s *ConsoleSink) OnItemStatusChanged(ctx context.Context, batchID string, res model.ItemResult) {
	n := res.Position + 1
	switch res.Status {
	case model.ItemStatusInProgress:
		s.println(s.tr.T("item_in_progress", n))
	case model.ItemStatusSucceeded:
		s.println(s.tr.T("item_succeeded", n))
	case model.ItemStatusFailed:
		if res.Kind == model.FailureCredentialsExhausted {
			s.println(s.tr.T("item_exhausted", n))
			return
		}
		s.println(s.tr.T("item_failed", n, res.Reason))
	}
}

func (s *ConsoleSink) OnRetrying(ctx context.Context, batchID string, res model.ItemResult, attempt int) {
	s.println(s.tr.T("item_retrying", attempt))
}

func (s *ConsoleSink) OnBatchComplete(ctx context.Context, run model.BatchSummary) {
	s.println(s.tr.T("batch_complete", run.Succeeded, run.Failed, run.Total))
}
