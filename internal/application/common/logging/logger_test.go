package logging

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestApplicationLogger_CreateStructuredLogger tests creation of structured logger.
func TestApplicationLogger_CreateStructuredLogger(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr bool
	}{
		{
			name:   "create logger with JSON format",
			config: Config{Level: "INFO", Format: "json", Output: "stdout"},
		},
		{
			name:   "create logger with text format",
			config: Config{Level: "debug", Format: "text", Output: "stderr"},
		},
		{
			name:    "create logger with invalid level",
			config:  Config{Level: "INVALID", Format: "json", Output: "stdout"},
			wantErr: true,
		},
		{
			name:    "create logger with invalid format",
			config:  Config{Level: "INFO", Format: "xml", Output: "stdout"},
			wantErr: true,
		},
		{
			name:    "create logger with invalid output",
			config:  Config{Level: "INFO", Format: "json", Output: "syslog"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, err := NewApplicationLogger(tt.config)
			if tt.wantErr {
				assert.Error(t, err)
				assert.Nil(t, logger)
				return
			}
			require.NoError(t, err)
			assert.Implements(t, (*ApplicationLogger)(nil), logger)
		})
	}
}

func TestApplicationLogger_LevelsAndFields(t *testing.T) {
	logger, err := NewApplicationLogger(Config{Level: "INFO", Format: "json", Output: "buffer"})
	require.NoError(t, err)

	ctx := WithRequestID(WithCorrelationID(context.Background(), "corr-1"), "req-1")
	logger.Debug(ctx, "hidden", nil)
	logger.Info(ctx, "resolved entity", Fields{"kind": "Document", "operation": "resolve"})
	logger.WithComponent("lease").ErrorWithError(ctx, errors.New("boom"), "end failed", Fields{"cause": errors.New("inner")})

	entries := BufferedEntries(logger)
	require.Len(t, entries, 2)

	info := entries[0]
	assert.Equal(t, "INFO", info.Level)
	assert.Equal(t, "resolved entity", info.Message)
	assert.Equal(t, "corr-1", info.CorrelationID)
	assert.Equal(t, "default", info.Component)
	assert.Equal(t, "resolve", info.Operation)
	assert.Equal(t, "Document", info.Metadata["kind"])
	assert.Equal(t, "req-1", info.Context["request_id"])

	failure := entries[1]
	assert.Equal(t, "ERROR", failure.Level)
	assert.Equal(t, "lease", failure.Component)
	assert.Equal(t, "boom", failure.Error)
	assert.Equal(t, "inner", failure.Metadata["cause"])
}

func TestApplicationLogger_GeneratesCorrelationID(t *testing.T) {
	logger, err := NewApplicationLogger(Config{Level: "DEBUG", Format: "json", Output: "buffer"})
	require.NoError(t, err)

	logger.Debug(context.Background(), "first", nil)
	logger.Debug(context.Background(), "second", nil)

	entries := BufferedEntries(logger)
	require.Len(t, entries, 2)
	assert.NotEmpty(t, entries[0].CorrelationID)
	assert.NotEqual(t, entries[0].CorrelationID, entries[1].CorrelationID)
}

func TestApplicationLogger_LogPerformance(t *testing.T) {
	logger, err := NewApplicationLogger(Config{Level: "INFO", Format: "json", Output: "buffer"})
	require.NoError(t, err)

	fields := Fields{"items": 3}
	logger.LogPerformance(context.Background(), "resolve_batch", 1500*time.Millisecond, fields)

	entries := BufferedEntries(logger)
	require.Len(t, entries, 1)
	assert.Equal(t, "resolve_batch", entries[0].Operation)
	assert.Equal(t, "1.5s", entries[0].Duration)
	assert.NotContains(t, fields, "operation", "caller fields must not be mutated")
}

func TestApplicationLogger_TextFormat(t *testing.T) {
	logger, err := NewApplicationLogger(Config{Level: "INFO", Format: "text", Output: "buffer"})
	require.NoError(t, err)

	logger.WithComponent("worker").Warn(context.Background(), "lease busy", Fields{"target": 7, "function": "embedding"})

	out := BufferedOutput(logger)
	assert.True(t, strings.Contains(out, "WARN worker: lease busy function=embedding target=7"), out)
	assert.Empty(t, BufferedEntries(logger))
}

func TestParseLevel(t *testing.T) {
	level, err := ParseLevel(" warn ")
	require.NoError(t, err)
	assert.Equal(t, LevelWarn, level)
	assert.Equal(t, "WARN", level.String())

	_, err = ParseLevel("trace")
	assert.Error(t, err)
	assert.Equal(t, "LEVEL(9)", Level(9).String())
}
