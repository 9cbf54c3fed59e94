package amqp

import (
	"context"
	"log/slog"

	"github.com/ThreeDotsLabs/watermill/message"
	"go.uber.org/fx"

	"github.com/codeduel/live-delivery/internal/adapter/pubsub"
)

// SinkGroup collects the sinks fed by the export topic.
const SinkGroup = `group:"feed_sinks"`

var Module = fx.Module("feed-handler",
	fx.Provide(
		fx.Annotate(
			NewLogSink,
			fx.ResultTags(SinkGroup),
		),
		fx.Annotate(
			func(logger *slog.Logger, sinks []Sink) *FeedHandler { return NewFeedHandler(logger, sinks...) },
			fx.ParamTags(``, SinkGroup),
		),
		NewWatermillRouter,
	),

	fx.Invoke(func(h *FeedHandler, router *message.Router, subs *pubsub.SubscriberProvider, d pubsub.EventDispatcher) error {
		return h.RegisterHandlers(router, subs, d)
	}),

	fx.Invoke(func(lc fx.Lifecycle, router *message.Router, logger *slog.Logger) {
		lc.Append(fx.Hook{
			OnStart: func(ctx context.Context) error {
				go func() {
					if err := router.Run(context.Background()); err != nil {
						logger.Error("FEED_ROUTER_STOPPED", "err", err)
					}
				}()
				select {
				case <-router.Running():
					return nil
				case <-ctx.Done():
					return ctx.Err()
				}
			},
			OnStop: func(ctx context.Context) error {
				return router.Close()
			},
		})
	}),
)
