package amqp

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"

	"github.com/codeduel/live-delivery/internal/adapter/pubsub"
	"github.com/codeduel/live-delivery/internal/domain/model"
)

const (
	// FeedConsumer names the durable queue of this process on a shared broker.
	FeedConsumer = "live-delivery.feed"

	handlerName  = "ON_NOTIFICATION_EXPORTED"
	poisonSuffix = ".poison"
)

// Sink receives every exported notification.
type Sink interface {
	Handle(ctx context.Context, ev *model.OutboundEvent) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, ev *model.OutboundEvent) error

func (f SinkFunc) Handle(ctx context.Context, ev *model.OutboundEvent) error { return f(ctx, ev) }

// FeedHandler follows the export topic and hands every notification to its sinks.
type FeedHandler struct {
	logger *slog.Logger
	sinks  []Sink
}

func NewFeedHandler(logger *slog.Logger, sinks ...Sink) *FeedHandler {
	return &FeedHandler{logger: logger, sinks: sinks}
}

// NewWatermillRouter creates a router sharing the application logger.
func NewWatermillRouter(logger watermill.LoggerAdapter) (*message.Router, error) {
	return message.NewRouter(message.RouterConfig{CloseTimeout: 5 * time.Second}, logger)
}

// [REGISTRATION_PIPELINE]
func (h *FeedHandler) RegisterHandlers(router *message.Router, subProvider *pubsub.SubscriberProvider, dispatcher pubsub.EventDispatcher) error {
	poison, err := middleware.PoisonQueue(dispatcher.Publisher(), dispatcher.Topic()+poisonSuffix)
	if err != nil {
		return fmt.Errorf("POISON_SETUP_FAILED: %w", err)
	}

	sub, err := subProvider.Build(FeedConsumer)
	if err != nil {
		return err
	}

	router.AddConsumerHandler(handlerName, dispatcher.Topic(), sub, Bind(h, h.OnNotificationExported)).AddMiddleware(
		TraceIDMiddleware,
		LoggingMiddleware(h.logger),
		poison,
		NewRetryMiddleware(h.logger).Middleware,
		middleware.Timeout(10*time.Second),
	)

	h.logger.Info("FEED_PIPELINE_READY", "topic", dispatcher.Topic())
	return nil
}
