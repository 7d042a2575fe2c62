package services

import (
	"context"
	"encoding/json"
	"time"

	"checkout-service/models"

	"go.uber.org/zap"
)

// EventPublisher delivers a keyed message to the order events channel.
// Implementations exist for SNS and Kafka.
type EventPublisher interface {
	Publish(ctx context.Context, key string, payload []byte) error
}

// OrderEvents publishes order lifecycle events best-effort: failures are
// logged and never returned.
type OrderEvents struct {
	publisher EventPublisher
	logger    *zap.Logger
	now       func() time.Time
}

// NewOrderEvents returns an OrderEvents. A nil publisher disables publishing.
func NewOrderEvents(publisher EventPublisher, logger *zap.Logger) *OrderEvents {
	return &OrderEvents{publisher: publisher, logger: logger, now: time.Now}
}

func (e *OrderEvents) Emit(ctx context.Context, eventType string, order *models.Order, email string) {
	if e == nil || e.publisher == nil {
		return
	}

	payload, err := json.Marshal(models.NewOrderEvent(eventType, order, email, e.now()))
	if err != nil {
		e.logger.Error("Failed to marshal order event", zap.String("event_type", eventType), zap.Error(err))
		return
	}

	if err := e.publisher.Publish(ctx, order.ID.String(), payload); err != nil {
		e.logger.Error("Failed to publish order event",
			zap.String("event_type", eventType),
			zap.String("order_id", order.ID.String()),
			zap.Error(err),
		)
		return
	}

	e.logger.Info("Published order event",
		zap.String("event_type", eventType),
		zap.String("order_id", order.ID.String()),
	)
}
