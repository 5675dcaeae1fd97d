package log

import (
	"context"

	"github.com/rs/zerolog"
)

type ctxKey string

const (
	cycleIDKey ctxKey = "cycle_id"
	sourceIDKey ctxKey = "source_id"
)

// IntoContext stores logger into ctx, the way downstream calls recover it
// via FromContext instead of threading a logger parameter everywhere.
func IntoContext(ctx context.Context, logger zerolog.Logger) context.Context {
	return logger.WithContext(ctx)
}

// ContextWithCycleID tags ctx with the current scheduler cycle ID.
func ContextWithCycleID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, cycleIDKey, id)
}

// ContextWithSourceID tags ctx with the source currently being processed.
func ContextWithSourceID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, sourceIDKey, id)
}

// CycleIDFromContext extracts the cycle ID, if any.
func CycleIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(cycleIDKey).(string); ok {
		return v
	}
	return ""
}

// SourceIDFromContext extracts the source ID, if any.
func SourceIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(sourceIDKey).(string); ok {
		return v
	}
	return ""
}

// FromContext returns the logger carried by ctx, enriched with any
// cycle/source correlation fields, or the base logger if none is present.
func FromContext(ctx context.Context) zerolog.Logger {
	if ctx == nil {
		return Base()
	}
	l := zerolog.Ctx(ctx)
	var logger zerolog.Logger
	if l.GetLevel() == zerolog.Disabled {
		logger = Base()
	} else {
		logger = *l
	}

	builder := logger.With()
	changed := false
	if cid := CycleIDFromContext(ctx); cid != "" {
		builder = builder.Str("cycle_id", cid)
		changed = true
	}
	if sid := SourceIDFromContext(ctx); sid != "" {
		builder = builder.Str("source_id", sid)
		changed = true
	}
	if !changed {
		return logger
	}
	return builder.Logger()
}
