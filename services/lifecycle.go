package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"checkout-service/models"
	awspkg "checkout-service/pkg/aws"
	repositories "checkout-service/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Trigger is what caused a status change.
type Trigger string

const (
	TriggerPayment     Trigger = "payment"
	TriggerFulfillment Trigger = "fulfillment"
	TriggerCancel      Trigger = "cancel"
)

// transitions lists every allowed from → to edge and the one trigger that
// may take it.
var transitions = map[string]map[string]Trigger{
	models.StatusPendingPayment: {
		models.StatusShipping:        TriggerPayment,
		models.StatusProcessingOrder: TriggerFulfillment,
		models.StatusOrderCanceled:   TriggerCancel,
	},
	models.StatusProcessingOrder: {
		models.StatusShipping:      TriggerFulfillment,
		models.StatusOrderCanceled: TriggerCancel,
	},
	models.StatusShipping: {
		models.StatusCompleted: TriggerFulfillment,
	},
}

// maxTransitionAttempts bounds reload-and-retry after a lost conditional update.
const maxTransitionAttempts = 3

// CheckTransition validates moving an order from one status to another.
func CheckTransition(from, to string, trigger Trigger) error {
	if trigger == TriggerCancel && to == models.StatusOrderCanceled {
		switch from {
		case models.StatusCompleted, models.StatusShipping, models.StatusOrderCanceled:
			return ErrCancellationNotAllowed.with(fmt.Sprintf("Order cannot be canceled because it is %s", from), nil)
		}
	}
	if allowed, ok := transitions[from][to]; ok && allowed == trigger {
		return nil
	}
	return ErrInvalidTransition.with(fmt.Sprintf("Order cannot move from %s to %s", from, to), nil)
}

// timestampColumn is the lifecycle timestamp stamped by a transition.
func timestampColumn(to string, trigger Trigger) string {
	switch {
	case trigger == TriggerPayment:
		return "paid_at"
	case to == models.StatusOrderCanceled:
		return "canceled_at"
	case to == models.StatusCompleted:
		return "completed_at"
	}
	return ""
}

// TransitionResult is the order after a transition attempt. Applied is false
// when the order was already past the requested state.
type TransitionResult struct {
	Order   *models.Order
	Applied bool
}

// LifecycleManager is the only path that changes an order's status.
type LifecycleManager struct {
	repo    repositories.OrderRepository
	events  *OrderEvents
	metrics MetricsRecorder
	logger  *zap.Logger
	now     func() time.Time
}

func NewLifecycleManager(repo repositories.OrderRepository, events *OrderEvents, metrics MetricsRecorder, logger *zap.Logger) *LifecycleManager {
	return &LifecycleManager{
		repo:    repo,
		events:  events,
		metrics: metrics,
		logger:  logger,
		now:     time.Now,
	}
}

// Cancel moves an order to orderCanceled for its owner or an identity
// holding cancel_any_order.
func (m *LifecycleManager) Cancel(ctx context.Context, identity Identity, orderID uuid.UUID) (*models.Order, error) {
	res, err := m.transition(ctx, orderID, models.StatusOrderCanceled, TriggerCancel, func(o *models.Order) error {
		if !identity.canActOn(o.UserID, CapCancelAnyOrder) {
			return ErrOrderNotFound
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	m.logger.Info("Order canceled",
		zap.String("order_id", orderID.String()),
		zap.String("user_id", identity.UserID),
	)
	m.events.Emit(ctx, models.EventOrderCanceled, res.Order, identity.Email)
	recordCount(m.metrics, awspkg.MetricOrdersCanceled, nil)
	return res.Order, nil
}

// Advance performs an admin fulfillment step.
func (m *LifecycleManager) Advance(ctx context.Context, identity Identity, orderID uuid.UUID, to string) (*models.Order, error) {
	if !identity.Can(CapAdvanceStatus) {
		return nil, ErrUnauthorized.with("Not allowed to change order status", nil)
	}

	res, err := m.transition(ctx, orderID, to, TriggerFulfillment, nil)
	if err != nil {
		return nil, err
	}

	m.logger.Info("Order status advanced",
		zap.String("order_id", orderID.String()),
		zap.String("status", to),
		zap.String("by", identity.UserID),
	)
	m.events.Emit(ctx, models.EventOrderStatusChanged, res.Order, "")
	if to == models.StatusCompleted {
		recordCount(m.metrics, awspkg.MetricOrdersCompleted, nil)
	}
	return res.Order, nil
}

// ConfirmPayment moves a paid order from pendingPayment to shipping. An order
// already past pendingPayment is returned unchanged with Applied false.
func (m *LifecycleManager) ConfirmPayment(ctx context.Context, orderID uuid.UUID) (*TransitionResult, error) {
	res, err := m.transition(ctx, orderID, models.StatusShipping, TriggerPayment, nil)
	if err != nil {
		return nil, err
	}
	if !res.Applied && res.Order.Status == models.StatusOrderCanceled {
		m.logger.Warn("Payment confirmed for canceled order",
			zap.String("order_id", orderID.String()),
		)
	}
	return res, nil
}

func (m *LifecycleManager) transition(ctx context.Context, orderID uuid.UUID, to string, trigger Trigger, authorize func(*models.Order) error) (*TransitionResult, error) {
	for attempt := 0; attempt < maxTransitionAttempts; attempt++ {
		order, err := loadOrder(ctx, m.repo, orderID)
		if err != nil {
			return nil, err
		}
		if authorize != nil {
			if err := authorize(order); err != nil {
				return nil, err
			}
		}

		if trigger == TriggerPayment && order.Status != models.StatusPendingPayment {
			return &TransitionResult{Order: order}, nil
		}
		if err := CheckTransition(order.Status, to, trigger); err != nil {
			return nil, err
		}

		now := m.now()
		change := repositories.StatusChange{
			OrderID:         order.ID,
			From:            order.Status,
			To:              to,
			At:              now,
			TimestampColumn: timestampColumn(to, trigger),
		}
		applied, err := m.repo.UpdateStatus(ctx, change)
		if err != nil {
			m.logger.Error("Failed to update order status",
				zap.String("order_id", orderID.String()),
				zap.String("from", change.From),
				zap.String("to", to),
				zap.Error(err),
			)
			return nil, ErrInternal.with("Failed to update order status", err)
		}
		if applied {
			applyChange(order, change)
			return &TransitionResult{Order: order, Applied: true}, nil
		}

		m.logger.Debug("Order status changed concurrently, re-evaluating",
			zap.String("order_id", orderID.String()),
			zap.Int("attempt", attempt+1),
		)
	}
	return nil, ErrInternal.with("Order is being updated concurrently, please retry", nil)
}

func applyChange(order *models.Order, change repositories.StatusChange) {
	order.Status = change.To
	order.UpdatedAt = change.At
	at := change.At
	switch change.TimestampColumn {
	case "paid_at":
		order.PaidAt = &at
	case "canceled_at":
		order.CanceledAt = &at
	case "completed_at":
		order.CompletedAt = &at
	}
}

// loadOrder maps a missing row to ErrOrderNotFound and anything else to
// ErrInternal.
func loadOrder(ctx context.Context, repo orderFinder, id uuid.UUID) (*models.Order, error) {
	order, err := repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, ErrInternal.with("Failed to load order", err)
	}
	return order, nil
}
