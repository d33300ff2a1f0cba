package model

import (
	"fmt"
	"strings"
	"time"
)

type BatchStatus string

const (
	BatchStatusQueued     BatchStatus = "queued"
	BatchStatusProcessing BatchStatus = "processing"
	BatchStatusComplete   BatchStatus = "complete"
)

// BatchRun is the ordered set of images submitted together. Results[i]
// belongs to Items[i] and only the batch processor writes them.
type BatchRun struct {
	ID          string       `json:"id"`
	Model       string       `json:"model"`
	Status      BatchStatus  `json:"status"`
	Items       []ImageItem  `json:"items"`
	Results     []ItemResult `json:"results"`
	CreatedAt   time.Time    `json:"created_at"`
	CompletedAt *time.Time   `json:"completed_at,omitempty"`
}

// NewBatchRun builds a queued run with every item Pending.
func NewBatchRun(id, modelName string, items []ImageItem) *BatchRun {
	results := make([]ItemResult, len(items))
	for i, it := range items {
		results[i] = NewItemResult(it)
	}
	return &BatchRun{
		ID:        id,
		Model:     modelName,
		Status:    BatchStatusQueued,
		Items:     items,
		Results:   results,
		CreatedAt: time.Now(),
	}
}

// Snapshot returns a copy safe to hand to readers. Image bytes are dropped.
func (b *BatchRun) Snapshot() *BatchRun {
	cp := *b
	cp.Items = make([]ImageItem, len(b.Items))
	for i, it := range b.Items {
		it.Data = nil
		cp.Items[i] = it
	}
	cp.Results = append([]ItemResult(nil), b.Results...)
	if b.CompletedAt != nil {
		t := *b.CompletedAt
		cp.CompletedAt = &t
	}
	return &cp
}

// Summary counts results by status.
func (b *BatchRun) Summary() BatchSummary {
	s := BatchSummary{ID: b.ID, Model: b.Model, Status: b.Status, Total: len(b.Results)}
	for _, r := range b.Results {
		switch r.Status {
		case ItemStatusSucceeded:
			s.Succeeded++
		case ItemStatusFailed:
			s.Failed++
		}
	}
	return s
}

// CombinedText joins every result the way "copy all" does:
// a header per image followed by its text or failure reason.
func (b *BatchRun) CombinedText(header func(n int) string) string {
	if header == nil {
		header = func(n int) string { return fmt.Sprintf("--- Image %d ---", n) }
	}
	parts := make([]string, 0, len(b.Results))
	for _, r := range b.Results {
		body := r.Text
		if r.Status == ItemStatusFailed {
			body = r.Reason
		}
		parts = append(parts, header(r.Position+1)+"\n"+body)
	}
	return strings.Join(parts, "\n\n")
}

type BatchSummary struct {
	ID        string      `json:"id"`
	Model     string      `json:"model"`
	Status    BatchStatus `json:"status"`
	Total     int         `json:"total"`
	Succeeded int         `json:"succeeded"`
	Failed    int         `json:"failed"`
}
