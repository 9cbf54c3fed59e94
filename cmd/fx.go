package cmd

import (
	"log/slog"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"

	"github.com/codeduel/live-delivery/config"
	clientdi "github.com/codeduel/live-delivery/infra/client/di"
	"github.com/codeduel/live-delivery/internal/adapter/pubsub"
	"github.com/codeduel/live-delivery/internal/domain/registry"
	amqpdi "github.com/codeduel/live-delivery/internal/handler/amqp"
	httpapi "github.com/codeduel/live-delivery/internal/handler/http"
	"github.com/codeduel/live-delivery/internal/service"
	"github.com/codeduel/live-delivery/internal/service/consumer"
)

// base is shared by every command: config, logging, tracing and the REST clients.
func base(cfg *config.Config, out LogOutput) fx.Option {
	return fx.Options(
		fx.Provide(
			func() *config.Config { return cfg },
			func() LogOutput { return out },
			ProvideLogger,
			ProvideTracer,
		),
		fx.WithLogger(func(logger *slog.Logger) fxevent.Logger {
			if logger == nil {
				// graph validation runs constructors dry
				return fxevent.NopLogger
			}
			l := &fxevent.SlogLogger{Logger: logger}
			l.UseLogLevel(slog.LevelDebug)
			return l
		}),
		clientdi.Module,
	)
}

// NewApp wires the live session with its consumers, the export feed and the status api.
func NewApp(cfg *config.Config, out LogOutput, opts ...fx.Option) *fx.App {
	return fx.New(appOptions(cfg, out, opts...))
}

func appOptions(cfg *config.Config, out LogOutput, opts ...fx.Option) fx.Option {
	return fx.Options(
		base(cfg, out),
		fx.Provide(
			ProvideWatermillLogger,
			ProvideMetrics,
			ProvideStore,
			ProvideTransport,
			ProvidePubSub,
			ProvideDispatcher,
			func(d pubsub.EventDispatcher) service.Exporter { return d },
		),
		registry.Module,
		service.Module,
		service.Decorators,
		consumer.Module,
		amqpdi.Module,
		httpapi.Module,
		fx.Options(opts...),
	)
}

// NewClientApp only wires the REST clients, for one-shot commands.
func NewClientApp(cfg *config.Config, out LogOutput, opts ...fx.Option) *fx.App {
	return fx.New(
		base(cfg, out),
		fx.Options(opts...),
	)
}
