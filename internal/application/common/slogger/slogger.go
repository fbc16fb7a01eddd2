// Package slogger is the process-wide logging facade. Packages log through it
// instead of holding a logger, so cmd can reconfigure output in one place.
package slogger

import (
	"context"
	"sync"
	"sync/atomic"

	"dgsync/internal/application/common/logging"
)

// Fields is logging.Fields.
type Fields = logging.Fields

type holder struct {
	logger logging.ApplicationLogger
}

var (
	current     atomic.Pointer[holder] //nolint:gochecknoglobals // process-wide logger
	defaultOnce sync.Once              //nolint:gochecknoglobals // lazy default
	fallback    logging.ApplicationLogger
)

func defaultLogger() logging.ApplicationLogger {
	defaultOnce.Do(func() {
		logger, err := logging.NewApplicationLogger(logging.Config{Level: "INFO", Format: "json", Output: "stdout"})
		if err != nil {
			panic("slogger: default logger: " + err.Error())
		}
		fallback = logger
	})
	return fallback
}

func get() logging.ApplicationLogger {
	if h := current.Load(); h != nil {
		return h.logger
	}
	return defaultLogger()
}

// SetGlobalLogger replaces the process logger. nil restores the default
// INFO/json/stdout logger.
func SetGlobalLogger(logger logging.ApplicationLogger) {
	if logger == nil {
		current.Store(nil)
		return
	}
	current.Store(&holder{logger: logger})
}

// Configure builds a logger from config and installs it.
func Configure(config logging.Config) error {
	logger, err := logging.NewApplicationLogger(config)
	if err != nil {
		return err
	}
	SetGlobalLogger(logger)
	return nil
}

// WithComponent returns the process logger tagged with component.
func WithComponent(component string) logging.ApplicationLogger {
	return get().WithComponent(component)
}

func Debug(ctx context.Context, msg string, fields Fields) { get().Debug(ctx, msg, fields) }
func Info(ctx context.Context, msg string, fields Fields)  { get().Info(ctx, msg, fields) }
func Warn(ctx context.Context, msg string, fields Fields)  { get().Warn(ctx, msg, fields) }
func Error(ctx context.Context, msg string, fields Fields) { get().Error(ctx, msg, fields) }

// ErrorWithError logs msg at ERROR with err attached.
func ErrorWithError(ctx context.Context, err error, msg string, fields Fields) {
	get().ErrorWithError(ctx, err, msg, fields)
}

// The NoCtx variants log without request correlation, for background work
// that has no request context.

func DebugNoCtx(msg string, fields Fields) { Debug(context.Background(), msg, fields) }
func InfoNoCtx(msg string, fields Fields)  { Info(context.Background(), msg, fields) }
func WarnNoCtx(msg string, fields Fields)  { Warn(context.Background(), msg, fields) }
func ErrorNoCtx(msg string, fields Fields) { Error(context.Background(), msg, fields) }

// Field builds a one-entry Fields.
func Field(key string, value any) Fields {
	return Fields{key: value}
}

// Fields2 builds a two-entry Fields.
func Fields2(k1 string, v1 any, k2 string, v2 any) Fields {
	return Fields{k1: v1, k2: v2}
}

// Fields3 builds a three-entry Fields.
func Fields3(k1 string, v1 any, k2 string, v2 any, k3 string, v3 any) Fields {
	return Fields{k1: v1, k2: v2, k3: v3}
}
