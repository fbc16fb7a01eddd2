package entity

import "dgsync/internal/domain/errors/domain"

// Outcome is the per-item result of a resolution.
type Outcome string

// Outcomes.
const (
	OutcomeCreated Outcome = "created"
	OutcomeFound   Outcome = "found"
	OutcomeInvalid Outcome = "invalid"
	OutcomeFailed  Outcome = "failed"
)

// Succeeded reports whether the outcome carries a row.
func (o Outcome) Succeeded() bool {
	return o == OutcomeCreated || o == OutcomeFound
}

// Resolution is the result of resolving one candidate.
type Resolution struct {
	Row     *Row
	Created bool
}

// Outcome returns created or found.
func (r *Resolution) Outcome() Outcome {
	if r.Created {
		return OutcomeCreated
	}
	return OutcomeFound
}

// BatchItem is the result for the candidate at Index.
type BatchItem struct {
	Index   int
	Outcome Outcome
	Row     *Row
	Err     error
}

// BatchStatus summarises a batch.
type BatchStatus string

// Batch statuses.
const (
	// BatchCreated: every item was created.
	BatchCreated BatchStatus = "created"
	// BatchResolved: every item succeeded and at least one was found.
	BatchResolved BatchStatus = "resolved"
	// BatchPartial: some items succeeded and some did not.
	BatchPartial BatchStatus = "partial"
	// BatchFailed: no item succeeded.
	BatchFailed BatchStatus = "failed"
)

// BatchResult holds one item per input candidate, in input order.
type BatchResult struct {
	Items  []BatchItem
	Status BatchStatus
}

// Failures returns the items that did not succeed.
func (b *BatchResult) Failures() []BatchItem {
	var out []BatchItem
	for _, item := range b.Items {
		if !item.Outcome.Succeeded() {
			out = append(out, item)
		}
	}
	return out
}

// ClientFault reports whether every failure is attributable to the request.
func (b *BatchResult) ClientFault() bool {
	for _, item := range b.Failures() {
		if !domain.IsClientError(item.Err) {
			return false
		}
	}
	return true
}

// Summarize computes the batch status from the item outcomes.
func Summarize(items []BatchItem) BatchStatus {
	created, found, failed := 0, 0, 0
	for _, item := range items {
		switch item.Outcome {
		case OutcomeCreated:
			created++
		case OutcomeFound:
			found++
		default:
			failed++
		}
	}
	switch {
	case created+found == 0:
		return BatchFailed
	case failed > 0:
		return BatchPartial
	case found > 0:
		return BatchResolved
	default:
		return BatchCreated
	}
}

// SimilarityQuery asks for content similar to Text within a space.
type SimilarityQuery struct {
	SpaceID   int64
	Text      string
	Limit     int
	Threshold float64
	// SourceLocalIDs restricts the search when non-nil.
	SourceLocalIDs []string
}
