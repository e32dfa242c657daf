// Package logger provides a context-aware logrus entry shared across the app.
package logger

import (
	"context"

	"github.com/sirupsen/logrus"
)

type key string

const loggerContextKey key = "logger.entry"

var defaultLogger = logrus.New()

// SetLoggerOptions configures the process-wide default logger.
func SetLoggerOptions(fn func(*logrus.Logger)) {
	fn(defaultLogger)
}

// For returns the logrus entry stored in ctx, or a default entry if ctx is
// nil or carries none.
func For(ctx context.Context) *logrus.Entry {
	if ctx == nil {
		return logrus.NewEntry(defaultLogger)
	}
	if entry, ok := ctx.Value(loggerContextKey).(*logrus.Entry); ok {
		return entry
	}
	return logrus.NewEntry(defaultLogger)
}

// NewContext returns a ctx whose For entry carries the given fields in
// addition to any fields already present.
func NewContext(ctx context.Context, fields logrus.Fields) context.Context {
	entry := For(ctx).WithFields(fields)
	return context.WithValue(ctx, loggerContextKey, entry)
}
