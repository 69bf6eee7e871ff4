// Package logger carries structured logging fields on a context so that
// every log line of a request shares its request id and trace id.
package logger

import (
	"context"
	"sort"

	"go.opentelemetry.io/otel/trace"

	"github.com/kart-io/logger"
	"github.com/kart-io/logger/core"
)

type contextKey int

const loggerFieldsKey contextKey = iota

// loggerFields is immutable once stored on a context.
type loggerFields struct {
	fields map[string]interface{}
}

func getLoggerFields(ctx context.Context) *loggerFields {
	if lf, ok := ctx.Value(loggerFieldsKey).(*loggerFields); ok {
		return lf
	}
	return &loggerFields{}
}

func (lf *loggerFields) with(keysAndValues ...interface{}) *loggerFields {
	out := &loggerFields{fields: make(map[string]interface{}, len(lf.fields)+len(keysAndValues)/2)}
	for k, v := range lf.fields {
		out.fields[k] = v
	}
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		if key, ok := keysAndValues[i].(string); ok {
			out.fields[key] = keysAndValues[i+1]
		}
	}
	return out
}

// toSlice returns key-value pairs ordered by key.
func (lf *loggerFields) toSlice() []interface{} {
	if len(lf.fields) == 0 {
		return nil
	}
	keys := make([]string, 0, len(lf.fields))
	for k := range lf.fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	slice := make([]interface{}, 0, len(keys)*2)
	for _, k := range keys {
		slice = append(slice, k, lf.fields[k])
	}
	return slice
}

// WithRequestID adds request_id to the context logger fields.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	if requestID == "" {
		return ctx
	}
	return WithFields(ctx, "request_id", requestID)
}

// WithFields adds key-value pairs to the context. A trailing key without
// a value and non-string keys are ignored.
func WithFields(ctx context.Context, keysAndValues ...interface{}) context.Context {
	if len(keysAndValues) < 2 {
		return ctx
	}
	return context.WithValue(ctx, loggerFieldsKey, getLoggerFields(ctx).with(keysAndValues...))
}

// GetContextFields returns the context fields plus trace_id and span_id of a
// valid OpenTelemetry span, or nil when there are none.
func GetContextFields(ctx context.Context) []interface{} {
	lf := getLoggerFields(ctx)

	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		lf = lf.with("trace_id", sc.TraceID().String(), "span_id", sc.SpanID().String())
	}
	return lf.toSlice()
}

// FromContext returns the global logger enriched with the context fields.
func FromContext(ctx context.Context) core.Logger {
	base := logger.Global()
	if fields := GetContextFields(ctx); len(fields) > 0 {
		return base.With(fields...)
	}
	return base
}
