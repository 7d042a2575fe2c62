package services

import (
	"context"
	"encoding/json"

	"checkout-service/models"
	awspkg "checkout-service/pkg/aws"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v80"
	"go.uber.org/zap"
)

// Webhook outcomes reported to the processor.
const (
	WebhookProcessed = "processed"
	WebhookDuplicate = "duplicate"
	WebhookIgnored   = "ignored"
)

const eventPaymentIntentSucceeded = "payment_intent.succeeded"

type WebhookResult struct {
	Status  string `json:"status"`
	EventID string `json:"eventId,omitempty"`
	OrderID string `json:"orderId,omitempty"`
}

// WebhookService ingests signed payment processor events.
type WebhookService struct {
	provider  PaymentProvider
	orderRepo orderFinder
	lifecycle *LifecycleManager
	notifier  *Notifier
	metrics   MetricsRecorder
	logger    *zap.Logger
}

type orderFinder interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
}

func NewWebhookService(provider PaymentProvider, orderRepo orderFinder, lifecycle *LifecycleManager, notifier *Notifier, metrics MetricsRecorder, logger *zap.Logger) *WebhookService {
	return &WebhookService{
		provider:  provider,
		orderRepo: orderRepo,
		lifecycle: lifecycle,
		notifier:  notifier,
		metrics:   metrics,
		logger:    logger,
	}
}

// HandlePaymentEvent verifies and applies one webhook delivery. Deliveries
// may repeat; a repeated payment confirmation reports WebhookDuplicate.
func (s *WebhookService) HandlePaymentEvent(ctx context.Context, payload []byte, signature string) (*WebhookResult, error) {
	event, err := s.provider.ConstructEvent(payload, signature)
	if err != nil {
		s.logger.Warn("Stripe webhook signature verification failed", zap.Error(err))
		return nil, ErrInvalidSignature.with("", err)
	}

	s.logger.Info("Processing Stripe webhook",
		zap.String("event_type", string(event.Type)),
		zap.String("event_id", event.ID),
	)

	switch string(event.Type) {
	case eventPaymentIntentSucceeded:
		return s.handlePaymentSucceeded(ctx, event)
	default:
		s.logger.Info("Unhandled webhook event type", zap.String("event_type", string(event.Type)))
		return &WebhookResult{Status: WebhookIgnored, EventID: event.ID}, nil
	}
}

func (s *WebhookService) handlePaymentSucceeded(ctx context.Context, event stripe.Event) (*WebhookResult, error) {
	if event.Data == nil {
		return nil, ErrMetadataMissing.with("Payment event has no data", nil)
	}
	var pi stripe.PaymentIntent
	if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
		s.logger.Error("Failed to unmarshal payment intent", zap.String("event_id", event.ID), zap.Error(err))
		return nil, ErrMetadataMissing.with("Payment event data is malformed", err)
	}

	rawOrderID := pi.Metadata[MetadataOrderID]
	userID := pi.Metadata[MetadataUserID]
	if rawOrderID == "" || userID == "" {
		s.logger.Warn("Missing metadata in payment intent",
			zap.String("payment_intent_id", pi.ID),
			zap.Any("metadata", pi.Metadata),
		)
		return nil, ErrMetadataMissing
	}
	orderID, err := uuid.Parse(rawOrderID)
	if err != nil {
		return nil, ErrMetadataMissing.with("Payment event has an invalid order id", err)
	}

	order, err := loadOrder(ctx, s.orderRepo, orderID)
	if err != nil {
		return nil, err
	}
	if order.UserID != userID {
		s.logger.Warn("Payment intent user does not own the order",
			zap.String("order_id", rawOrderID),
			zap.String("user_id", userID),
		)
		return nil, ErrOrderNotFound
	}
	if pi.Amount != order.Total {
		s.logger.Error("Paid amount does not match order total",
			zap.String("order_id", rawOrderID),
			zap.String("payment_intent_id", pi.ID),
			zap.Int64("paid", pi.Amount),
			zap.Int64("total", order.Total),
		)
		return nil, ErrTotalMismatch
	}

	res, err := s.lifecycle.ConfirmPayment(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !res.Applied {
		s.logger.Info("Skipping duplicate payment webhook",
			zap.String("order_id", rawOrderID),
			zap.String("status", res.Order.Status),
		)
		return &WebhookResult{Status: WebhookDuplicate, EventID: event.ID, OrderID: rawOrderID}, nil
	}

	s.logger.Info("Order paid",
		zap.String("order_id", rawOrderID),
		zap.String("payment_intent_id", pi.ID),
	)
	recordCount(s.metrics, awspkg.MetricPaymentSucceeded, nil)
	if s.notifier != nil {
		s.notifier.PaymentConfirmed(res.Order, pi.Metadata[MetadataEmail])
	}
	return &WebhookResult{Status: WebhookProcessed, EventID: event.ID, OrderID: rawOrderID}, nil
}
