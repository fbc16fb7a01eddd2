// Package logging provides the structured JSON logger used across the service.
package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ApplicationLogger is the structured logger every component writes through.
type ApplicationLogger interface {
	Debug(ctx context.Context, message string, fields Fields)
	Info(ctx context.Context, message string, fields Fields)
	Warn(ctx context.Context, message string, fields Fields)
	Error(ctx context.Context, message string, fields Fields)
	ErrorWithError(ctx context.Context, err error, message string, fields Fields)
	LogPerformance(ctx context.Context, operation string, duration time.Duration, fields Fields)
	WithComponent(component string) ApplicationLogger
}

// Fields are the structured key/value pairs of one entry.
type Fields map[string]any

// Config selects level, format (json or text) and output (stdout, stderr, or
// buffer for tests).
type Config struct {
	Level  string
	Format string
	Output string
}

// LogEntry is one JSON log line.
type LogEntry struct {
	Timestamp     string         `json:"timestamp"`
	Level         string         `json:"level"`
	Message       string         `json:"message"`
	CorrelationID string         `json:"correlation_id"`
	Component     string         `json:"component"`
	Operation     string         `json:"operation,omitempty"`
	Duration      string         `json:"duration,omitempty"`
	Error         string         `json:"error,omitempty"`
	Metadata      map[string]any `json:"metadata,omitempty"`
	Context       map[string]any `json:"context,omitempty"`
}

const defaultComponent = "default"

// output is shared by a logger and every WithComponent child.
type output struct {
	mu     sync.Mutex
	w      io.Writer
	buffer *bytes.Buffer
}

func newOutput(name string) (*output, error) {
	switch name {
	case "stdout":
		return &output{w: os.Stdout}, nil
	case "stderr":
		return &output{w: os.Stderr}, nil
	case "buffer":
		buf := &bytes.Buffer{}
		return &output{w: buf, buffer: buf}, nil
	}
	return nil, fmt.Errorf("invalid log output: %s", name)
}

func (o *output) write(line []byte) {
	o.mu.Lock()
	_, _ = o.w.Write(append(line, '\n'))
	o.mu.Unlock()
}

type encoder func(*LogEntry) ([]byte, error)

type logger struct {
	min       Level
	component string
	encode    encoder
	out       *output
}

// NewApplicationLogger validates config and builds a logger.
func NewApplicationLogger(config Config) (ApplicationLogger, error) {
	threshold, err := ParseLevel(config.Level)
	if err != nil {
		return nil, err
	}
	var enc encoder
	switch config.Format {
	case "json":
		enc = func(e *LogEntry) ([]byte, error) { return json.Marshal(e) }
	case "text":
		enc = encodeText
	default:
		return nil, fmt.Errorf("invalid log format: %s", config.Format)
	}
	out, err := newOutput(config.Output)
	if err != nil {
		return nil, err
	}
	return &logger{min: threshold, component: defaultComponent, encode: enc, out: out}, nil
}

func (l *logger) Debug(ctx context.Context, message string, fields Fields) {
	l.log(ctx, LevelDebug, message, nil, fields)
}

func (l *logger) Info(ctx context.Context, message string, fields Fields) {
	l.log(ctx, LevelInfo, message, nil, fields)
}

func (l *logger) Warn(ctx context.Context, message string, fields Fields) {
	l.log(ctx, LevelWarn, message, nil, fields)
}

func (l *logger) Error(ctx context.Context, message string, fields Fields) {
	l.log(ctx, LevelError, message, nil, fields)
}

func (l *logger) ErrorWithError(ctx context.Context, err error, message string, fields Fields) {
	l.log(ctx, LevelError, message, err, fields)
}

// LogPerformance logs operation and its duration at INFO. fields is not modified.
func (l *logger) LogPerformance(ctx context.Context, operation string, duration time.Duration, fields Fields) {
	merged := maps.Clone(fields)
	if merged == nil {
		merged = Fields{}
	}
	merged["operation"] = operation
	merged["duration"] = duration.String()
	l.log(ctx, LevelInfo, "Performance metrics for "+operation, nil, merged)
}

func (l *logger) WithComponent(component string) ApplicationLogger {
	child := *l
	child.component = component
	return &child
}

func (l *logger) log(ctx context.Context, level Level, message string, err error, fields Fields) {
	if level < l.min {
		return
	}
	entry := &LogEntry{
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		Level:         level.String(),
		Message:       message,
		CorrelationID: GetCorrelationID(ctx),
		Component:     l.component,
	}
	if entry.CorrelationID == "" {
		entry.CorrelationID = uuid.NewString()
	}
	if err != nil {
		entry.Error = err.Error()
	}
	if len(fields) > 0 {
		entry.Metadata = make(map[string]any, len(fields))
		for k, v := range fields {
			if e, ok := v.(error); ok {
				v = e.Error()
			}
			entry.Metadata[k] = v
		}
		entry.Operation, _ = fields["operation"].(string)
		entry.Duration, _ = fields["duration"].(string)
	}
	if id := stringValue(ctx, RequestIDKey); id != "" {
		entry.Context = map[string]any{"request_id": id}
	}

	line, encErr := l.encode(entry)
	if encErr != nil {
		return
	}
	l.out.write(line)
}

// encodeText renders "[ts] LEVEL component: message key=value ..." with
// metadata keys sorted.
func encodeText(e *LogEntry) ([]byte, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s %s: %s", e.Timestamp, e.Level, e.Component, e.Message)
	if e.Error != "" {
		fmt.Fprintf(&b, " error=%q", e.Error)
	}
	for _, k := range slices.Sorted(maps.Keys(e.Metadata)) {
		fmt.Fprintf(&b, " %s=%v", k, e.Metadata[k])
	}
	return []byte(b.String()), nil
}

// BufferedOutput returns everything written by a logger created with the
// "buffer" output, or "" for other outputs.
func BufferedOutput(l ApplicationLogger) string {
	impl, ok := l.(*logger)
	if !ok || impl.out.buffer == nil {
		return ""
	}
	impl.out.mu.Lock()
	defer impl.out.mu.Unlock()
	return impl.out.buffer.String()
}

// BufferedEntries decodes the JSON entries written to a buffer logger.
// Non-JSON lines are skipped.
func BufferedEntries(l ApplicationLogger) []LogEntry {
	var entries []LogEntry
	for line := range strings.Lines(BufferedOutput(l)) {
		var entry LogEntry
		if json.Unmarshal([]byte(line), &entry) == nil {
			entries = append(entries, entry)
		}
	}
	return entries
}
