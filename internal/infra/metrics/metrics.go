// File: internal/infra/metrics/metrics.go
package metrics

import "strings"

// Outcome labels for OCR calls.
const (
	OutcomeSuccess     = "success"
	OutcomeRateLimited = "rate_limited"
	OutcomeError       = "error"
)

func norm(s string) string { return strings.ToLower(strings.TrimSpace(s)) }
