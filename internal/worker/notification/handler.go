package notification

import (
	"context"
	"encoding/json"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/agritrade/stockyard/internal/config"
	"github.com/agritrade/stockyard/internal/event"
	"github.com/agritrade/stockyard/internal/gateway"
	"github.com/agritrade/stockyard/internal/messaging"
	"github.com/agritrade/stockyard/internal/worker"
)

var workerTracer = otel.Tracer("github.com/agritrade/stockyard/worker/notification")

// Module registers the notification fanout handler.
var Module = fx.Module("worker_notification",
	fx.Provide(
		fx.Annotate(
			NewNotificationHandler,
			fx.ResultTags(`group:"worker.handlers"`),
		),
	),
)

// NewNotificationHandler forwards drained notification events to the
// delivery gateway. Delivery failures are logged and dropped rather than
// retried; notifications are fire-and-forget.
func NewNotificationHandler(notifier gateway.Notifier, logger *zap.Logger, cfg config.Config) worker.HandlerRegistration {
	handler := func(ctx context.Context, msg messaging.Message) error {
		ctx, span := workerTracer.Start(ctx, "worker.notification.deliver", trace.WithAttributes(
			attribute.String("messaging.topic", msg.Topic),
		))
		defer span.End()

		var ev event.Notification
		if err := json.Unmarshal(msg.Value, &ev); err != nil {
			logger.Error("failed to decode notification", zap.Error(err))

			span.RecordError(err)
			span.SetStatus(codes.Error, "decode error")
			return err
		}

		if err := notifier.Notify(ctx, ev.Audience, ev.EventType, ev.Payload); err != nil {
			logger.Warn("notification delivery failed",
				zap.String("audience", ev.Audience),
				zap.String("event_type", ev.EventType),
				zap.Error(err),
			)
		}

		return nil
	}

	return worker.HandlerRegistration{
		Topic:   cfg.Messaging.Kafka.NotificationsTopic,
		Handler: handler,
	}
}
