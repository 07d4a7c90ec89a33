package authsession

import (
	"context"

	"github.com/swipewise/authsession/internal/observability"
)

// Logger is the structured logger the engine writes operational events to.
// *observability.SlogLogger satisfies it.
type Logger interface {
	Info(ctx context.Context, msg string, args ...any)
	Warn(ctx context.Context, msg string, args ...any)
	Error(ctx context.Context, msg string, args ...any)
}

func discardLogger() Logger {
	return observability.Discard()
}
