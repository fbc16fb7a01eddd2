package outbound

import (
	"context"
	"time"
)

// EmbeddingService generates embedding vectors for content text.
type EmbeddingService interface {
	GenerateEmbedding(ctx context.Context, text string, options EmbeddingOptions) (*EmbeddingResult, error)

	// GenerateBatchEmbeddings returns one result per text, in input order.
	GenerateBatchEmbeddings(ctx context.Context, texts []string, options EmbeddingOptions) ([]*EmbeddingResult, error)

	GetModelInfo(ctx context.Context) (*ModelInfo, error)
}

// EmbeddingOptions overrides provider defaults for one call.
type EmbeddingOptions struct {
	Model          string        `json:"model"`
	Dimensionality int           `json:"dimensionality,omitempty"`
	Timeout        time.Duration `json:"timeout"`
}

// EmbeddingResult is one generated vector.
type EmbeddingResult struct {
	Vector      []float64 `json:"vector"`
	Dimensions  int       `json:"dimensions"`
	TokenCount  int       `json:"token_count,omitempty"`
	Model       string    `json:"model"`
	GeneratedAt time.Time `json:"generated_at"`
}

// ModelInfo describes the provider model.
type ModelInfo struct {
	Name             string `json:"name"`
	Dimensions       int    `json:"dimensions"`
	MaxTokens        int    `json:"max_tokens"`
	SupportsBatching bool   `json:"supports_batching"`
}

// EmbeddingFailure classifies embedding provider errors.
type EmbeddingFailure string

const (
	FailureAuth       EmbeddingFailure = "auth"
	FailureQuota      EmbeddingFailure = "quota"
	FailureValidation EmbeddingFailure = "validation"
	FailureNetwork    EmbeddingFailure = "network"
	FailureServer     EmbeddingFailure = "server"
)

// EmbeddingError is a classified provider failure. Quota, network and server
// failures are usually marked retryable.
type EmbeddingError struct {
	Code      string           `json:"code"`
	Message   string           `json:"message"`
	Type      EmbeddingFailure `json:"type"`
	Retryable bool             `json:"retryable"`
	Cause     error            `json:"-"`
}

func (e *EmbeddingError) Error() string {
	msg := "embedding " + string(e.Type) + " error [" + e.Code + "]: " + e.Message
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *EmbeddingError) Unwrap() error { return e.Cause }

// IsRetryable lets retry.DefaultChecker honour the classification.
func (e *EmbeddingError) IsRetryable() bool { return e.Retryable }
