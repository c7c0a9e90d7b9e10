package logging

import (
	"context"
	"io"
	"log/slog"
	"strings"

	"bibliogoya-backend/internal/platform/identity"
)

// Logger is the subset of *slog.Logger the services depend on.
type Logger interface {
	DebugContext(ctx context.Context, msg string, args ...any)
	InfoContext(ctx context.Context, msg string, args ...any)
	WarnContext(ctx context.Context, msg string, args ...any)
	ErrorContext(ctx context.Context, msg string, args ...any)
}

// New builds the process logger. format is "json" or "text".
func New(w io.Writer, level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(level)}
	var h slog.Handler
	if strings.EqualFold(format, "json") {
		h = slog.NewJSONHandler(w, opts)
	} else {
		h = slog.NewTextHandler(w, opts)
	}
	return slog.New(h)
}

// Discard is used by tests and by callers that did not configure logging.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError + 1}))
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Actor returns log attributes describing the caller on ctx.
func Actor(ctx context.Context) []any {
	id, ok := identity.From(ctx)
	if !ok {
		return []any{slog.String("actor", "system")}
	}
	return []any{slog.Int64("actor_id", id.MemberID), slog.String("actor_role", string(id.Role))}
}
