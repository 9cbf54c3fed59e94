package consumer

import (
	"context"
	"log/slog"

	"go.uber.org/fx"

	"github.com/codeduel/live-delivery/config"
	"github.com/codeduel/live-delivery/infra/client/arena"
	"github.com/codeduel/live-delivery/internal/domain/registry"
	"github.com/codeduel/live-delivery/internal/domain/store"
	"github.com/codeduel/live-delivery/internal/service"
)

var Module = fx.Module("consumer",
	fx.Provide(
		NewActiveMatch,
		fx.Annotate(
			func(a *ActiveMatch) service.Resetter { return a },
			fx.ResultTags(service.ResetterGroup),
		),
		fx.Annotate(
			func(p *MatchPage) service.Resetter { return p },
			fx.ResultTags(service.ResetterGroup),
		),

		func(cfg *config.Config, st *store.Store, logger *slog.Logger) *ToastFeed {
			return NewToastFeed(st,
				WithVisible(cfg.Toast.Visible),
				WithDismissAfter(cfg.Toast.DismissAfter),
				WithToastLogger(logger),
			)
		},
		func(st *store.Store) *Badge { return NewBadge(st) },
		// [HAND_OFF] a found match opens the match page and becomes the active match
		func(api arena.MatchAPI, r service.Resolver, st *store.Store, s service.Sessioner, page *MatchPage, logger *slog.Logger) *Matchmaking {
			return NewMatchmaking(api, r, st, s.Username,
				WithMatchEntrant(page),
				WithMatchmakingLogger(logger),
			)
		},
		func(cfg *config.Config, api arena.MatchAPI, active *ActiveMatch, logger *slog.Logger) *MatchPage {
			return NewMatchPage(api, active,
				WithResultsDelay(cfg.Match.ResultsDelay),
				WithMatchPageLogger(logger),
			)
		},
	),

	// [FAN_OUT] every store mutation reaches the hub, the hub reaches each consumer
	fx.Invoke(func(st *store.Store, hub registry.Hubber) {
		st.AddListener(hub)
	}),

	fx.Invoke(func(lc fx.Lifecycle, hub registry.Hubber, sess *service.Session, toast *ToastFeed, badge *Badge, mm *Matchmaking, page *MatchPage) error {
		// matchmaking depends on the session, so it cannot join the resetter group
		sess.AddResetter(mm)

		for _, c := range []registry.Consumer{toast, badge, mm, page} {
			if err := hub.Register(c); err != nil {
				return err
			}
		}

		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				toast.Close()
				page.Close()
				return mm.Close(ctx)
			},
		})
		return nil
	}),
)
