package middleware

import (
	"context"
	"log/slog"
	"time"

	"gueststay/internal/app/commands"
	"gueststay/internal/app/queries"
)

// Logging records every dispatched command with its duration and outcome.
func Logging(logger *slog.Logger) CommandMiddleware {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next commands.Bus) commands.Bus {
		nextFn := wrapCommand(next)
		return commandFunc(func(ctx context.Context, cmd commands.Command) (any, error) {
			start := time.Now()
			res, err := nextFn(ctx, cmd)
			logOutcome(ctx, logger, "command", cmd.Key(), start, err)
			return res, err
		})
	}
}

func QueryLogging(logger *slog.Logger) QueryMiddleware {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next queries.Bus) queries.Bus {
		nextFn := wrapQuery(next)
		return queryFunc(func(ctx context.Context, q queries.Query) (any, error) {
			start := time.Now()
			res, err := nextFn(ctx, q)
			logOutcome(ctx, logger, "query", q.Key(), start, err)
			return res, err
		})
	}
}

func logOutcome(ctx context.Context, logger *slog.Logger, kind, key string, start time.Time, err error) {
	attrs := []any{kind, key, "duration", time.Since(start)}
	if err != nil {
		logger.InfoContext(ctx, kind+" failed", append(attrs, "error", err)...)
		return
	}
	logger.DebugContext(ctx, kind+" handled", attrs...)
}
