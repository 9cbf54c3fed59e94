package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/codeduel/live-delivery/internal/domain/model"
)

// ResolverMiddleware implements [DECORATOR_PATTERN] to add observability
// to match resolution without touching the lookup itself.
type ResolverMiddleware struct {
	Next   Resolver
	Logger *slog.Logger
}

// NewResolverMiddleware creates a new logging decorator for the Resolver.
func NewResolverMiddleware(next Resolver, logger *slog.Logger) Resolver {
	return &ResolverMiddleware{
		Next:   next,
		Logger: logger,
	}
}

func (m *ResolverMiddleware) Resolve(ctx context.Context, matchID int64, me string) (model.MatchFound, error) {
	start := time.Now()

	found, err := m.Next.Resolve(ctx, matchID, me)

	duration := time.Since(start)
	if err != nil {
		m.Logger.Error("MATCH_RESOLUTION_FAILED",
			"err", err,
			"match_id", matchID,
			"duration_ms", duration.Milliseconds(),
		)
	} else {
		m.Logger.Debug("MATCH_RESOLUTION_COMPLETED",
			"match_id", matchID,
			"opponent", found.Player2.Username,
			"duration_ms", duration.Milliseconds(),
		)
	}

	return found, err
}
