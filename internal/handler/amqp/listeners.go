package amqp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/codeduel/live-delivery/internal/domain/model"
)

// [ON_NOTIFICATION_EXPORTED]
// Fans the notification out to every sink. A sink failure NACKs the message.
func (h *FeedHandler) OnNotificationExported(ctx context.Context, ev *model.OutboundEvent) error {
	if ev.Payload == nil {
		h.logger.Warn("FEED_EVENT_EMPTY", "id", ev.ID)
		return nil
	}

	var errs []error
	for _, s := range h.sinks {
		if err := s.Handle(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("feed sink: %w", err)
	}
	return nil
}

// NewLogSink writes an audit line per notification.
func NewLogSink(logger *slog.Logger) Sink {
	return SinkFunc(func(ctx context.Context, ev *model.OutboundEvent) error {
		logger.Info("NOTIFICATION_AUDIT",
			"trace_id", TraceIDFrom(ctx),
			"username", ev.Username,
			"kind", ev.Kind,
			"title", ev.Payload.Title,
			"message", ev.Payload.Message,
		)
		return nil
	})
}
