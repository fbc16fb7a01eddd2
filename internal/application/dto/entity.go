package dto

// ResolveEntityRequest is the body of a single get-or-create request.
type ResolveEntityRequest struct {
	Candidate map[string]any `json:"candidate"`
	UniqueOn  []string       `json:"unique_on,omitempty"`
}

// ResolveEntityResponse carries the resolved row and whether it was created.
type ResolveEntityResponse struct {
	Data    map[string]any `json:"data"`
	Created bool           `json:"created"`
}

// ResolveBatchRequest is the body of a batch get-or-create request.
type ResolveBatchRequest struct {
	Candidates []map[string]any `json:"candidates"`
	UniqueOn   []string         `json:"unique_on,omitempty"`
}

// BatchItemResponse is the outcome of one batch candidate.
type BatchItemResponse struct {
	Index   int            `json:"index"`
	Outcome string         `json:"outcome"`
	Data    map[string]any `json:"data,omitempty"`
	Error   string         `json:"error,omitempty"`
}

// PartialError names a failing batch index.
type PartialError struct {
	Index int    `json:"index"`
	Error string `json:"error"`
}

// Batch statuses.
const (
	BatchStatusCreated  = "created"
	BatchStatusResolved = "resolved"
	BatchStatusPartial  = "partial"
	BatchStatusFailed   = "failed"
)

// ResolveBatchResponse aggregates per-item outcomes.
type ResolveBatchResponse struct {
	Status        string              `json:"status"`
	Data          []BatchItemResponse `json:"data"`
	PartialErrors []PartialError      `json:"partial_errors,omitempty"`

	// ClientFault is set on a failed batch whose failures are all caused by
	// the request contents.
	ClientFault bool `json:"-"`
}
