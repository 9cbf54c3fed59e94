package pubsub

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/codeduel/live-delivery/internal/domain/model"
)

const (
	metaKind     = "kind"
	metaUsername = "username"
	metaSource   = "source"
)

// EventDispatcher defines the high-level contract for outgoing events.
// This allows the session to stay agnostic of the transport implementation.
type EventDispatcher interface {
	Publish(ctx context.Context, ev *model.OutboundEvent) error
	Publisher() message.Publisher
	Topic() string
}

// eventDispatcher is the concrete implementation (private).
type eventDispatcher struct {
	publisher message.Publisher
	topic     string
	logger    *slog.Logger
}

// NewEventDispatcher returns the interface instead of the pointer to the struct.
func NewEventDispatcher(pub message.Publisher, topic string, logger *slog.Logger) EventDispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &eventDispatcher{
		publisher: pub,
		topic:     topic,
		logger:    logger,
	}
}

func (d *eventDispatcher) Publish(ctx context.Context, ev *model.OutboundEvent) error {
	if ev == nil {
		return fmt.Errorf("event dispatcher: cannot publish nil event")
	}

	payload, err := ev.ToJSON()
	if err != nil {
		return fmt.Errorf("event dispatcher: marshal failure: %w", err)
	}

	msg := message.NewMessage(ev.ID, payload)
	msg.SetContext(ctx)
	msg.Metadata.Set(metaKind, ev.Kind)
	msg.Metadata.Set(metaUsername, ev.Username)
	msg.Metadata.Set(metaSource, ev.Source)

	if err := d.publisher.Publish(d.topic, msg); err != nil {
		return fmt.Errorf("event dispatcher: failed to publish to topic %s: %w", d.topic, err)
	}

	d.logger.Debug("NOTIFICATION_EXPORTED", slog.String("topic", d.topic), slog.String("id", ev.ID), slog.String("kind", ev.Kind))
	return nil
}

func (d *eventDispatcher) Publisher() message.Publisher {
	return d.publisher
}

func (d *eventDispatcher) Topic() string {
	return d.topic
}
