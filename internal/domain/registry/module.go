package registry

import (
	"context"
	"log/slog"

	"go.uber.org/fx"

	"github.com/codeduel/live-delivery/config"
)

var Module = fx.Module("registry",
	fx.Provide(
		// [CLEAN_INJECTION] Configure Hub using Functional Options
		func(cfg *config.Config, logger *slog.Logger) *Hub {
			return NewHub(
				WithMailboxSize(cfg.Hub.MailboxSize),
				WithLogger(logger),
			)
		},
		fx.Annotate(
			func(h *Hub) Hubber { return h },
			fx.As(new(Hubber)),
		),
	),
	fx.Invoke(func(lc fx.Lifecycle, h Hubber) {
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				h.Shutdown() // [GRACEFUL_SHUTDOWN] Stop all consumer goroutines
				return nil
			},
		})
	}),
)
