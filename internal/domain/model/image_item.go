package model

import (
	"time"

	"gemini-batch-ocr/internal/domain"
)

// ImageItem is one unit of work. It is not modified after it is enqueued.
type ImageItem struct {
	ID       string `json:"id"`
	Position int    `json:"position"` // 0-based display order
	Name     string `json:"name"`
	MIMEType string `json:"mime_type"`
	Data     []byte `json:"-"`
}

// Upload is a raw image handed to the service before validation.
type Upload struct {
	Name     string
	MIMEType string // declared type, may be empty
	Data     []byte
}

type ItemStatus string

const (
	ItemStatusPending    ItemStatus = "pending"
	ItemStatusInProgress ItemStatus = "in_progress"
	ItemStatusSucceeded  ItemStatus = "succeeded"
	ItemStatusFailed     ItemStatus = "failed"
)

// IsTerminal reports whether no further transition is possible.
func (s ItemStatus) IsTerminal() bool {
	return s == ItemStatusSucceeded || s == ItemStatusFailed
}

func (s ItemStatus) rank() int {
	switch s {
	case ItemStatusPending:
		return 0
	case ItemStatusInProgress:
		return 1
	case ItemStatusSucceeded, ItemStatusFailed:
		return 2
	default:
		return -1
	}
}

// FailureKind tells apart the reasons an item can fail.
type FailureKind string

const (
	FailureNone                 FailureKind = ""
	FailureRemote               FailureKind = "remote"
	FailureCredentialsExhausted FailureKind = "credentials_exhausted"
	FailureNoCredentials        FailureKind = "no_credentials"
	FailureCanceled             FailureKind = "canceled"
)

// ItemResult is the outcome of one ImageItem inside a batch.
type ItemResult struct {
	ItemID    string      `json:"item_id"`
	Position  int         `json:"position"`
	Name      string      `json:"name"`
	Status    ItemStatus  `json:"status"`
	Text      string      `json:"text,omitempty"`
	Reason    string      `json:"reason,omitempty"`
	Kind      FailureKind `json:"failure_kind,omitempty"`
	Attempts  int         `json:"attempts"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// NewItemResult returns the Pending result for item.
func NewItemResult(item ImageItem) ItemResult {
	return ItemResult{
		ItemID:    item.ID,
		Position:  item.Position,
		Name:      item.Name,
		Status:    ItemStatusPending,
		UpdatedAt: time.Now(),
	}
}

// Transition moves the result forward. Outcomes never go backwards and a
// terminal outcome is final.
func (r *ItemResult) Transition(to ItemStatus) error {
	if to.rank() < 0 || r.Status.IsTerminal() || to.rank() <= r.Status.rank() {
		return domain.ErrInvalidTransition
	}
	r.Status = to
	r.UpdatedAt = time.Now()
	return nil
}

// Succeed records the extracted text.
func (r *ItemResult) Succeed(text string) error {
	if err := r.Transition(ItemStatusSucceeded); err != nil {
		return err
	}
	r.Text = text
	return nil
}

// Fail records why the item could not be processed.
func (r *ItemResult) Fail(kind FailureKind, reason string) error {
	if err := r.Transition(ItemStatusFailed); err != nil {
		return err
	}
	r.Kind = kind
	r.Reason = reason
	return nil
}
