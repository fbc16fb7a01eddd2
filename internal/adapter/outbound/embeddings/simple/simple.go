// Package simple provides a deterministic, offline embedding generator.
package simple

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"math"
	"time"

	"dgsync/internal/port/outbound"
)

// Defaults match the content_embedding_openai_text_embedding_3_small_1536 table.
const (
	DefaultDimensions = 1536
	DefaultModel      = "openai_text_embedding_3_small_1536"
)

// Generator produces unit vectors seeded by the SHA-256 of the text, so equal
// texts always embed identically without network calls.
type Generator struct {
	dimensions int
	model      string
	now        func() time.Time
}

// New creates a generator. Zero values select the defaults.
func New(dimensions int, model string) *Generator {
	if dimensions <= 0 {
		dimensions = DefaultDimensions
	}
	if model == "" {
		model = DefaultModel
	}
	return &Generator{dimensions: dimensions, model: model, now: time.Now}
}

// GenerateEmbedding returns the deterministic embedding of text.
func (g *Generator) GenerateEmbedding(
	ctx context.Context,
	text string,
	_ outbound.EmbeddingOptions,
) (*outbound.EmbeddingResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if text == "" {
		return nil, &outbound.EmbeddingError{
			Code:    "empty_input",
			Type:    outbound.FailureValidation,
			Message: "text cannot be empty",
		}
	}

	vector := vectorFor(text, g.dimensions)
	return &outbound.EmbeddingResult{
		Vector:      vector,
		Dimensions:  len(vector),
		TokenCount:  max(1, len(text)/4),
		Model:       g.model,
		GeneratedAt: g.now(),
	}, nil
}

// GenerateBatchEmbeddings embeds each text in order.
func (g *Generator) GenerateBatchEmbeddings(
	ctx context.Context,
	texts []string,
	options outbound.EmbeddingOptions,
) ([]*outbound.EmbeddingResult, error) {
	if len(texts) == 0 {
		return nil, errors.New("texts cannot be empty")
	}
	results := make([]*outbound.EmbeddingResult, len(texts))
	for i, text := range texts {
		result, err := g.GenerateEmbedding(ctx, text, options)
		if err != nil {
			return nil, err
		}
		results[i] = result
	}
	return results, nil
}

// GetModelInfo describes the generator.
func (g *Generator) GetModelInfo(context.Context) (*outbound.ModelInfo, error) {
	return &outbound.ModelInfo{
		Name:             g.model,
		Dimensions:       g.dimensions,
		MaxTokens:        8191,
		SupportsBatching: true,
	}, nil
}

// vectorFor draws dims values in [-1, 1) from an xorshift64* generator seeded
// by the text hash and scales them to unit length.
func vectorFor(text string, dims int) []float64 {
	sum := sha256.Sum256([]byte(text))
	x := binary.LittleEndian.Uint64(sum[:8])
	if x == 0 {
		x = 0x9e3779b97f4a7c15
	}

	out := make([]float64, dims)
	var norm float64
	for i := range out {
		x ^= x >> 12
		x ^= x << 25
		x ^= x >> 27
		x *= 0x2545F4914F6CDD1D

		// upper 53 bits as a float in [0,1)
		f := float64(x>>11) / float64(1<<53)
		out[i] = 2*f - 1
		norm += out[i] * out[i]
	}

	norm = math.Sqrt(norm)
	if norm > 0 {
		for i := range out {
			out[i] /= norm
		}
	}
	return out
}
