// Package openai calls an OpenAI-compatible embeddings endpoint.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"dgsync/internal/application/common/retry"
	"dgsync/internal/application/common/slogger"
	"dgsync/internal/port/outbound"
)

// Defaults for text-embedding-3-small.
const (
	DefaultBaseURL    = "https://api.openai.com/v1"
	DefaultModel      = "text-embedding-3-small"
	DefaultDimensions = 1536
	maxBatchInputs    = 2048
	maxErrorBody      = 64 << 10
)

// ClientConfig holds the configuration for the embeddings client.
type ClientConfig struct {
	APIKey     string
	BaseURL    string
	Model      string
	Dimensions int
	Timeout    time.Duration
	MaxRetries int
	// InitialBackoff is the first retry delay; later delays double.
	InitialBackoff time.Duration
}

// Validate validates the client configuration.
func (c *ClientConfig) Validate() error {
	if strings.TrimSpace(c.APIKey) == "" {
		return errors.New("API key cannot be empty")
	}
	if c.BaseURL != "" {
		u, err := url.Parse(c.BaseURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return errors.New("invalid base URL")
		}
	}
	if c.Dimensions < 0 {
		return errors.New("dimensions cannot be negative")
	}
	if c.Timeout < 0 {
		return errors.New("timeout must be positive")
	}
	if c.MaxRetries < 0 {
		return errors.New("max retries cannot be negative")
	}
	return nil
}

func (c ClientConfig) withDefaults() ClientConfig {
	c.APIKey = strings.TrimSpace(c.APIKey)
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	c.BaseURL = strings.TrimSuffix(c.BaseURL, "/")
	if c.Model == "" {
		c.Model = DefaultModel
	}
	if c.Dimensions == 0 {
		c.Dimensions = DefaultDimensions
	}
	if c.Timeout == 0 {
		c.Timeout = 30 * time.Second
	}
	if c.InitialBackoff == 0 {
		c.InitialBackoff = 500 * time.Millisecond
	}
	return c
}

// Client implements outbound.EmbeddingService over HTTP.
type Client struct {
	config     ClientConfig
	httpClient *http.Client
	retry      *retry.Executor
}

// NewClient creates a client.
func NewClient(config ClientConfig) (*Client, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	config = config.withDefaults()
	return &Client{
		config: config,
		httpClient: &http.Client{
			Timeout: config.Timeout,
			Transport: &http.Transport{
				MaxIdleConns:          100,
				MaxIdleConnsPerHost:   10,
				IdleConnTimeout:       90 * time.Second,
				TLSHandshakeTimeout:   10 * time.Second,
				ResponseHeaderTimeout: config.Timeout,
				ForceAttemptHTTP2:     true,
			},
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		retry: retry.NewExecutor(retry.Config{
			MaxRetries:    config.MaxRetries,
			InitialDelay:  config.InitialBackoff,
			MaxDelay:      30 * time.Second,
			BackoffFactor: 2,
			Jitter:        true,
		}, nil),
	}, nil
}

type embeddingRequest struct {
	Input      []string `json:"input"`
	Model      string   `json:"model"`
	Dimensions int      `json:"dimensions,omitempty"`
}

type embeddingResponse struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float64 `json:"embedding"`
	} `json:"data"`
	Model string `json:"model"`
	Usage struct {
		TotalTokens int `json:"total_tokens"`
	} `json:"usage"`
}

type errorResponse struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    string `json:"code"`
	} `json:"error"`
}

// GenerateEmbedding embeds a single text.
func (c *Client) GenerateEmbedding(
	ctx context.Context,
	text string,
	options outbound.EmbeddingOptions,
) (*outbound.EmbeddingResult, error) {
	results, err := c.GenerateBatchEmbeddings(ctx, []string{text}, options)
	if err != nil {
		return nil, err
	}
	return results[0], nil
}

// GenerateBatchEmbeddings embeds texts in one request, retrying transient failures.
func (c *Client) GenerateBatchEmbeddings(
	ctx context.Context,
	texts []string,
	options outbound.EmbeddingOptions,
) ([]*outbound.EmbeddingResult, error) {
	if len(texts) == 0 {
		return nil, errors.New("texts cannot be empty")
	}
	if len(texts) > maxBatchInputs {
		return nil, fmt.Errorf("at most %d texts per request, got %d", maxBatchInputs, len(texts))
	}
	for i, text := range texts {
		if strings.TrimSpace(text) == "" {
			return nil, &outbound.EmbeddingError{
				Code:    "empty_input",
				Type:    outbound.FailureValidation,
				Message: fmt.Sprintf("text %d is empty", i),
			}
		}
	}

	// options.Model names the stored embedding table, not an API model.
	request := embeddingRequest{Input: texts, Model: c.config.Model, Dimensions: c.config.Dimensions}
	if options.Dimensionality > 0 {
		request.Dimensions = options.Dimensionality
	}
	if options.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, options.Timeout)
		defer cancel()
	}

	var response *embeddingResponse
	err := c.retry.Execute(ctx, func(ctx context.Context) error {
		var err error
		response, err = c.post(ctx, request)
		return err
	})
	if err != nil {
		return nil, err
	}
	return c.toResults(response, len(texts), request.Dimensions)
}

// GetModelInfo describes the configured model.
func (c *Client) GetModelInfo(context.Context) (*outbound.ModelInfo, error) {
	return &outbound.ModelInfo{
		Name:             c.config.Model,
		Dimensions:       c.config.Dimensions,
		MaxTokens:        8191,
		SupportsBatching: true,
	}, nil
}

func (c *Client) post(ctx context.Context, request embeddingRequest) (*embeddingResponse, error) {
	body, err := json.Marshal(request)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.BaseURL+"/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "dgsync-embeddings/1.0")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &outbound.EmbeddingError{
			Code:      "network_error",
			Type:      outbound.FailureNetwork,
			Message:   "request to embeddings endpoint failed",
			Retryable: true,
			Cause:     err,
		}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, httpError(ctx, resp)
	}

	var decoded embeddingResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, &outbound.EmbeddingError{
			Code:    "invalid_response",
			Type:    outbound.FailureServer,
			Message: "failed to decode embeddings response",
			Cause:   err,
		}
	}
	return &decoded, nil
}

func (c *Client) toResults(response *embeddingResponse, want, dims int) ([]*outbound.EmbeddingResult, error) {
	if len(response.Data) != want {
		return nil, &outbound.EmbeddingError{
			Code:    "invalid_response",
			Type:    outbound.FailureServer,
			Message: fmt.Sprintf("expected %d embeddings, got %d", want, len(response.Data)),
		}
	}
	now := time.Now()
	results := make([]*outbound.EmbeddingResult, want)
	for _, item := range response.Data {
		if item.Index < 0 || item.Index >= want || results[item.Index] != nil {
			return nil, &outbound.EmbeddingError{
				Code:    "invalid_response",
				Type:    outbound.FailureServer,
				Message: fmt.Sprintf("unexpected embedding index %d", item.Index),
			}
		}
		if dims > 0 && len(item.Embedding) != dims {
			return nil, &outbound.EmbeddingError{
				Code:    "invalid_response",
				Type:    outbound.FailureServer,
				Message: fmt.Sprintf("expected %d dimensions, got %d", dims, len(item.Embedding)),
			}
		}
		results[item.Index] = &outbound.EmbeddingResult{
			Vector:      item.Embedding,
			Dimensions:  len(item.Embedding),
			TokenCount:  response.Usage.TotalTokens / want,
			Model:       response.Model,
			GeneratedAt: now,
		}
	}
	return results, nil
}

// httpError converts a non-200 response into an EmbeddingError.
func httpError(ctx context.Context, resp *http.Response) *outbound.EmbeddingError {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	var decoded errorResponse
	apiMessage := ""
	if json.Unmarshal(body, &decoded) == nil {
		apiMessage = decoded.Error.Message
	}

	slogger.Error(ctx, "HTTP error received from embeddings API", slogger.Fields{
		"status_code": resp.StatusCode,
		"api_message": apiMessage,
	})

	e := &outbound.EmbeddingError{Message: fmt.Sprintf("HTTP %d", resp.StatusCode)}
	if apiMessage != "" {
		e.Message += ": " + apiMessage
	}
	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		e.Code, e.Type = "invalid_api_key", outbound.FailureAuth
	case resp.StatusCode == http.StatusForbidden:
		e.Code, e.Type = "access_denied", outbound.FailureAuth
	case resp.StatusCode == http.StatusTooManyRequests:
		e.Code, e.Type, e.Retryable = "rate_limit_exceeded", outbound.FailureQuota, true
		if retryAfter := resp.Header.Get("Retry-After"); retryAfter != "" {
			e.Message += " (retry after " + retryAfter + "s)"
		}
	case resp.StatusCode >= 500:
		e.Code, e.Type, e.Retryable = "server_error", outbound.FailureServer, true
	default:
		e.Code, e.Type = "invalid_request", outbound.FailureValidation
	}
	return e
}
