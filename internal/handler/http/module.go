package httpapi

import (
	"context"
	"log/slog"

	"go.uber.org/fx"

	"github.com/codeduel/live-delivery/config"
	"github.com/codeduel/live-delivery/infra/metrics"
	"github.com/codeduel/live-delivery/internal/domain/registry"
	"github.com/codeduel/live-delivery/internal/domain/store"
	"github.com/codeduel/live-delivery/internal/handler/lp"
	"github.com/codeduel/live-delivery/internal/handler/ws"
	"github.com/codeduel/live-delivery/internal/service"
	"github.com/codeduel/live-delivery/internal/service/consumer"
)

var Module = fx.Module("status-api",
	fx.Provide(
		service.NewWatcher,
		func(w *service.Watcher) *lp.LPHandler { return lp.NewLPHandler(w, lp.DefaultPollTimeout) },
		func(w *service.Watcher, logger *slog.Logger) *ws.WSHandler { return ws.NewWSHandler(logger, w) },
		func(
			s service.Sessioner,
			st *store.Store,
			hub registry.Hubber,
			active *consumer.ActiveMatch,
			m *metrics.Metrics,
			poll *lp.LPHandler,
			stream *ws.WSHandler,
			logger *slog.Logger,
		) *API {
			return NewAPI(s, st, hub, active, m, poll, stream, logger)
		},
		func(cfg *config.Config, api *API, logger *slog.Logger) *Server {
			return NewServer(cfg.HTTP.Addr, api.Routes(), logger)
		},
	),
	fx.Invoke(func(st *store.Store, w *service.Watcher) {
		st.AddListener(w)
	}),
	fx.Invoke(func(lc fx.Lifecycle, s *Server) {
		lc.Append(fx.Hook{
			OnStart: func(context.Context) error { return s.Start() },
			OnStop:  s.Stop,
		})
	}),
)
