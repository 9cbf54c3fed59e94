package service

import (
	"context"
	"log/slog"

	"go.uber.org/fx"

	"github.com/codeduel/live-delivery/config"
	"github.com/codeduel/live-delivery/infra/client/arena"
	"github.com/codeduel/live-delivery/infra/credential"
	"github.com/codeduel/live-delivery/internal/domain/store"
)

// ResetterGroup collects the session values cleared on logout.
const ResetterGroup = `group:"session_resetters"`

var Module = fx.Module(
	"service",

	fx.Provide(
		fx.Annotate(
			func(cfg *config.Config, t Transport, creds credential.Store, st *store.Store, exp Exporter, logger *slog.Logger, resetters []Resetter) *Session {
				return NewSession(cfg.Transport, t, creds, st,
					WithExporter(exp),
					WithResetters(resetters...),
					WithSessionLogger(logger),
				)
			},
			fx.ParamTags(``, ``, ``, ``, ``, ``, ResetterGroup),
		),
		func(s *Session) Sessioner { return s },
		fx.Annotate(
			func(api arena.MatchAPI) *MatchResolver { return NewMatchResolver(api) },
			fx.As(new(Resolver)),
		),
	),

	fx.Invoke(func(lc fx.Lifecycle, s *Session) {
		lc.Append(fx.Hook{
			OnStart: s.Start,
			OnStop: func(ctx context.Context) error {
				s.Stop()
				return nil
			},
		})
	}),
)

// Decorators must be installed at the application root: fx scopes a decoration to the
// module declaring it, and the consumers live in a sibling module.
var Decorators = fx.Options(
	// [DECORATION_LAYER] Intercept Resolver to add cross-cutting concerns
	fx.Decorate(func(orig Resolver, logger *slog.Logger) Resolver {
		return NewResolverMiddleware(orig, logger)
	}),
)
