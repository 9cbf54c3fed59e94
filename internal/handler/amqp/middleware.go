package amqp

import (
	"context"
	"log/slog"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
	"github.com/google/uuid"
)

const traceIDKey = "trace_id"

type traceIDCtxKey struct{}

// TraceIDFrom returns the trace id attached by TraceIDMiddleware.
func TraceIDFrom(ctx context.Context) string {
	v, _ := ctx.Value(traceIDCtxKey{}).(string)
	return v
}

// [TRACE_ID_MIDDLEWARE]
// Ensures TraceID persistence through the call chain.
func TraceIDMiddleware(h message.HandlerFunc) message.HandlerFunc {
	return func(msg *message.Message) ([]*message.Message, error) {
		traceID := msg.Metadata.Get(traceIDKey)
		if traceID == "" {
			traceID = uuid.NewString()
			msg.Metadata.Set(traceIDKey, traceID)
		}

		msg.SetContext(context.WithValue(msg.Context(), traceIDCtxKey{}, traceID))

		return h(msg)
	}
}

// [LOGGING_MIDDLEWARE]
// Structured logging with latency and TraceID.
func LoggingMiddleware(logger *slog.Logger) message.HandlerMiddleware {
	return func(h message.HandlerFunc) message.HandlerFunc {
		return func(msg *message.Message) ([]*message.Message, error) {
			start := time.Now()
			msgs, err := h(msg)

			logger.Debug("MESSAGE_HANDLED",
				"msg_id", msg.UUID,
				"trace_id", msg.Metadata.Get(traceIDKey),
				"duration_ms", time.Since(start).Milliseconds(),
				"success", err == nil,
			)
			return msgs, err
		}
	}
}

// [RETRY_MIDDLEWARE]
func NewRetryMiddleware(logger *slog.Logger) middleware.Retry {
	return middleware.Retry{
		MaxRetries:      3,
		InitialInterval: 100 * time.Millisecond,
		MaxInterval:     2 * time.Second,
		Multiplier:      2.0,
		OnRetryHook: func(retryNum int, delay time.Duration) {
			logger.Warn("FEED_HANDLER_RETRY", "attempt", retryNum, "delay_ms", delay.Milliseconds())
		},
	}
}
