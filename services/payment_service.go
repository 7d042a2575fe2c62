package services

import (
	"context"
	"fmt"

	"checkout-service/models"
	awspkg "checkout-service/pkg/aws"
	repositories "checkout-service/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Payment intent metadata keys, read back by the webhook.
const (
	MetadataOrderID = "order_id"
	MetadataUserID  = "user_id"
	MetadataEmail   = "email"
)

type PaymentIntentResult struct {
	ClientSecret    string `json:"clientSecret"`
	PaymentIntentID string `json:"paymentIntentId"`
	Amount          int64  `json:"amount"`
	Currency        string `json:"currency"`
}

type PaymentService struct {
	orderRepo repositories.OrderRepository
	provider  PaymentProvider
	tolerance int64
	metrics   MetricsRecorder
	logger    *zap.Logger
}

// NewPaymentService returns the payment intent bridge. tolerance is the
// largest accepted difference, in minor units, between the stored total and
// the total recomputed from the items.
func NewPaymentService(orderRepo repositories.OrderRepository, provider PaymentProvider, tolerance int64, metrics MetricsRecorder, logger *zap.Logger) *PaymentService {
	return &PaymentService{
		orderRepo: orderRepo,
		provider:  provider,
		tolerance: tolerance,
		metrics:   metrics,
		logger:    logger,
	}
}

// CreatePaymentIntent starts payment of a pending order. It never changes
// the order's status; with recheck set it first repairs item quantities that
// disagree with their color breakdown.
func (s *PaymentService) CreatePaymentIntent(ctx context.Context, identity Identity, orderID uuid.UUID, recheck bool) (*PaymentIntentResult, error) {
	order, err := loadOrder(ctx, s.orderRepo, orderID)
	if err != nil {
		return nil, err
	}
	if !identity.canActOn(order.UserID, CapPayAnyOrder) {
		s.logger.Warn("Payment intent requested for another user's order",
			zap.String("order_id", orderID.String()),
			zap.String("user_id", identity.UserID),
		)
		return nil, ErrUnauthorized
	}
	if order.Status != models.StatusPendingPayment {
		return nil, ErrInvalidTransition.with(fmt.Sprintf("Order is %s and has nothing left to pay", order.Status), nil)
	}

	if recheck {
		if err := s.reconcileQuantities(ctx, order); err != nil {
			return nil, err
		}
	}

	recomputed := order.ItemsSubTotal() + order.ShippingFee
	if diff := recomputed - order.Total; diff > s.tolerance || -diff > s.tolerance {
		s.logger.Error("Order total does not match its items",
			zap.String("order_id", orderID.String()),
			zap.Int64("stored_total", order.Total),
			zap.Int64("recomputed_total", recomputed),
		)
		recordCount(s.metrics, awspkg.MetricPaymentFailed, map[string]string{"Reason": "total_mismatch"})
		return nil, ErrTotalMismatch
	}

	metadata := map[string]string{
		MetadataOrderID: order.ID.String(),
		MetadataUserID:  order.UserID,
	}
	if identity.Owns(order.UserID) && identity.Email != "" {
		metadata[MetadataEmail] = identity.Email
	}

	intent, err := s.provider.CreatePaymentIntent(ctx, IntentParams{
		Amount:         order.Total,
		Currency:       order.Currency,
		Metadata:       metadata,
		IdempotencyKey: paymentIdempotencyKey(order),
	})
	if err != nil {
		s.logger.Error("Failed to create payment intent",
			zap.String("order_id", orderID.String()),
			zap.Error(err),
		)
		recordCount(s.metrics, awspkg.MetricPaymentFailed, map[string]string{"Reason": "provider_error"})
		return nil, ErrPaymentProvider.with("", err)
	}

	s.logger.Info("Payment intent created",
		zap.String("order_id", orderID.String()),
		zap.String("payment_intent_id", intent.ID),
		zap.Int64("amount", order.Total),
	)
	return &PaymentIntentResult{
		ClientSecret:    intent.ClientSecret,
		PaymentIntentID: intent.ID,
		Amount:          order.Total,
		Currency:        order.Currency,
	}, nil
}

// reconcileQuantities persists Σ color quantities as the item quantity
// wherever the two disagree.
func (s *PaymentService) reconcileQuantities(ctx context.Context, order *models.Order) error {
	corrections := make(map[uuid.UUID]int)
	for i := range order.Items {
		item := &order.Items[i]
		if qty := item.ColorQuantity(); qty != item.Quantities {
			s.logger.Warn("Correcting order item quantity",
				zap.String("order_id", order.ID.String()),
				zap.String("item_id", item.ID.String()),
				zap.Int("stored", item.Quantities),
				zap.Int("colors", qty),
			)
			corrections[item.ID] = qty
			item.Quantities = qty
		}
	}
	if len(corrections) == 0 {
		return nil
	}
	if err := s.orderRepo.UpdateItemQuantities(ctx, corrections); err != nil {
		return ErrInternal.with("Failed to reconcile order items", err)
	}
	return nil
}

// paymentIdempotencyKey is shared by every caller paying the same order at the
// same amount, so Stripe never opens a second intent for it.
func paymentIdempotencyKey(order *models.Order) string {
	return fmt.Sprintf("order_%s_%d", order.ID, order.Total)
}
