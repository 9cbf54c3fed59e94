package cmd

import (
	"context"
	"io"
	"log/slog"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"

	"github.com/codeduel/live-delivery/config"
	"github.com/codeduel/live-delivery/infra/metrics"
	"github.com/codeduel/live-delivery/infra/transport/stomp"
	"github.com/codeduel/live-delivery/internal/adapter/pubsub"
	"github.com/codeduel/live-delivery/internal/domain/store"
	"github.com/codeduel/live-delivery/internal/service"
)

// LogOutput is where the text and json handlers write. The dashboard points it away
// from the terminal it draws on.
type LogOutput struct {
	io.Writer
}

// ProvideLogger builds the process logger; its level follows cfg.LogLevel.
func ProvideLogger(cfg *config.Config, out LogOutput) *slog.Logger {
	var h slog.Handler
	opts := &slog.HandlerOptions{Level: cfg.LogLevel}

	switch {
	case cfg.Log.Otel:
		h = otelslog.NewHandler(ServiceName)
	case cfg.Log.Format == "json":
		h = slog.NewJSONHandler(out, opts)
	default:
		h = slog.NewTextHandler(out, opts)
	}

	logger := slog.New(h).With(
		slog.String("service", ServiceName),
		slog.String("version", version),
	)
	slog.SetDefault(logger)
	return logger
}

// ProvideTracer installs the SDK tracer provider used by the REST client spans.
func ProvideTracer(lc fx.Lifecycle) trace.TracerProvider {
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithResource(resource.NewSchemaless(
			attribute.String("service.name", ServiceName),
			attribute.String("service.namespace", ServiceNamespace),
			attribute.String("service.version", version),
		)),
	)
	otel.SetTracerProvider(tp)

	lc.Append(fx.Hook{
		OnStop: tp.Shutdown,
	})
	return tp
}

func ProvideWatermillLogger(logger *slog.Logger) watermill.LoggerAdapter {
	return watermill.NewSlogLogger(logger)
}

func ProvideMetrics() *metrics.Metrics {
	return metrics.New("codeduel")
}

func ProvideStore(cfg *config.Config, m *metrics.Metrics, logger *slog.Logger) *store.Store {
	return store.New(
		store.WithMaxNotifications(cfg.Store.MaxNotifications),
		store.WithDedupWindow(cfg.Store.DedupWindowSize, cfg.Store.DedupBucket),
		store.WithRecentDuplicateWindow(cfg.Store.RecentDuplicateWindow),
		store.WithMetrics(m),
		store.WithLogger(logger),
	)
}

// ProvideTransport builds the STOMP connection behind the session's transport port.
func ProvideTransport(cfg *config.Config, m *metrics.Metrics, logger *slog.Logger) service.Transport {
	t := cfg.Transport
	conn := stomp.NewConnection(t.URL, stomp.Settings{
		ReconnectDelay:       t.ReconnectDelay,
		MaxReconnectAttempts: t.MaxReconnectAttempts,
		HeartbeatIncoming:    t.HeartbeatIncoming,
		HeartbeatOutgoing:    t.HeartbeatOutgoing,
		HandshakeTimeout:     t.HandshakeTimeout,
		WriteTimeout:         t.WriteTimeout,
	},
		stomp.WithLogger(logger),
		stomp.WithMetrics(m),
	)
	return service.NewStompTransport(conn)
}

// ProvidePubSub returns the export publisher. Without a broker url the export feed
// stays in-process and the local channel doubles as the feed subscriber.
func ProvidePubSub(lc fx.Lifecycle, cfg *config.Config, logger watermill.LoggerAdapter) (message.Publisher, *pubsub.SubscriberProvider, error) {
	pub, local, err := pubsub.NewPublisherProvider(cfg.Export, logger).Build()
	if err != nil {
		return nil, nil, err
	}

	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return pub.Close()
		},
	})
	return pub, pubsub.NewSubscriberProvider(cfg.Export, logger, local), nil
}

func ProvideDispatcher(pub message.Publisher, cfg *config.Config, logger *slog.Logger) pubsub.EventDispatcher {
	return pubsub.NewEventDispatcher(pub, cfg.Export.Topic, logger)
}
