package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"checkout-service/models"
	awspkg "checkout-service/pkg/aws"
	repositories "checkout-service/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type OrderResponse struct {
	Orders []models.Order `json:"orders"`
	Meta   MetaData       `json:"meta"`
}

type MetaData struct {
	Page        int   `json:"page"`
	Limit       int   `json:"limit"`
	TotalOrders int64 `json:"totalOrders"`
	TotalPages  int64 `json:"totalPages"`
	HasMore     bool  `json:"hasMore"`
}

// OrderServiceConfig holds the pricing settings applied at order creation.
type OrderServiceConfig struct {
	Currency string
	Shipping ShippingPolicy
}

type OrderService struct {
	orderRepo   repositories.OrderRepository
	pricing     *PricingValidator
	idempotency repositories.IdempotencyStore
	events      *OrderEvents
	metrics     MetricsRecorder
	cfg         OrderServiceConfig
	logger      *zap.Logger
	now         func() time.Time
}

// NewOrderService wires the order builder. idempotency and metrics may be nil.
func NewOrderService(
	orderRepo repositories.OrderRepository,
	pricing *PricingValidator,
	idempotency repositories.IdempotencyStore,
	events *OrderEvents,
	metrics MetricsRecorder,
	cfg OrderServiceConfig,
	logger *zap.Logger,
) *OrderService {
	if cfg.Shipping == nil {
		cfg.Shipping = FlatRate(0)
	}
	return &OrderService{
		orderRepo:   orderRepo,
		pricing:     pricing,
		idempotency: idempotency,
		events:      events,
		metrics:     metrics,
		cfg:         cfg,
		logger:      logger,
		now:         time.Now,
	}
}

// CreateOrder prices the cart against the catalog and persists the order
// with its items in one transaction. A repeated idempotencyKey from the same
// user returns the order created by the first request.
func (s *OrderService) CreateOrder(ctx context.Context, identity Identity, req *models.CreateOrderRequest, idempotencyKey string) (*models.Order, error) {
	if identity.UserID == "" {
		return nil, ErrUnauthorized.with("Authentication required", nil)
	}
	req.BillingAddress = strings.TrimSpace(req.BillingAddress)
	req.ShippingAddress = strings.TrimSpace(req.ShippingAddress)
	if err := validateStruct(req); err != nil {
		return nil, err
	}

	if idempotencyKey == "" || s.idempotency == nil {
		return s.buildOrder(ctx, identity, req)
	}

	existingID, err := s.idempotency.Reserve(ctx, identity.UserID, idempotencyKey)
	switch {
	case errors.Is(err, repositories.ErrIdempotencyInProgress):
		return nil, ErrIdempotencyConflict
	case err != nil:
		s.logger.Warn("Idempotency store unavailable, creating order without it",
			zap.String("user_id", identity.UserID),
			zap.Error(err),
		)
		return s.buildOrder(ctx, identity, req)
	case existingID != "":
		return s.replayOrder(ctx, identity, existingID)
	}

	order, err := s.buildOrder(ctx, identity, req)
	if err != nil {
		if relErr := s.idempotency.Release(ctx, identity.UserID, idempotencyKey); relErr != nil {
			s.logger.Warn("Failed to release idempotency key", zap.Error(relErr))
		}
		return nil, err
	}
	if err := s.idempotency.Complete(ctx, identity.UserID, idempotencyKey, order.ID.String()); err != nil {
		s.logger.Warn("Failed to record idempotency key",
			zap.String("order_id", order.ID.String()),
			zap.Error(err),
		)
	}
	return order, nil
}

func (s *OrderService) replayOrder(ctx context.Context, identity Identity, rawID string) (*models.Order, error) {
	id, err := uuid.Parse(rawID)
	if err != nil {
		return nil, ErrInternal.with("Corrupt idempotency record", err)
	}
	order, err := loadOrder(ctx, s.orderRepo, id)
	if err != nil {
		return nil, err
	}
	if !identity.Owns(order.UserID) {
		return nil, ErrIdempotencyConflict
	}
	s.logger.Info("Returning order for repeated idempotency key",
		zap.String("order_id", rawID),
		zap.String("user_id", identity.UserID),
	)
	return order, nil
}

func (s *OrderService) buildOrder(ctx context.Context, identity Identity, req *models.CreateOrderRequest) (*models.Order, error) {
	cart, err := s.pricing.ValidateAndPrice(ctx, req.Products)
	if err != nil {
		recordCount(s.metrics, awspkg.MetricOrdersFailed, nil)
		return nil, err
	}

	now := s.now()
	fee := s.cfg.Shipping.Fee(cart.SubTotal)
	order := &models.Order{
		ID:              uuid.New(),
		UserID:          identity.UserID,
		SubTotal:        cart.SubTotal,
		ShippingFee:     fee,
		Total:           cart.SubTotal + fee,
		Currency:        s.cfg.Currency,
		BillingAddress:  req.BillingAddress,
		ShippingAddress: req.ShippingAddress,
		Status:          models.StatusPendingPayment,
		CreatedAt:       now,
		UpdatedAt:       now,
		Items:           make([]models.OrderItem, 0, len(cart.Items)),
	}

	for _, line := range cart.Items {
		item := models.OrderItem{
			ID:         uuid.New(),
			OrderID:    order.ID,
			ProductID:  line.ProductID,
			SalePrice:  line.UnitPrice,
			Quantities: line.Quantities,
			Colors:     make([]models.OrderItemColor, 0, len(line.Colors)),
		}
		for _, c := range line.Colors {
			item.Colors = append(item.Colors, models.OrderItemColor{
				ID:          uuid.New(),
				OrderItemID: item.ID,
				Color:       c.Color,
				Quantity:    c.Quantity,
			})
		}
		if item.ColorQuantity() != item.Quantities {
			return nil, ErrInternal.with(fmt.Sprintf("Item quantity mismatch for product %s", item.ProductID), nil)
		}
		order.Items = append(order.Items, item)
	}

	if err := s.orderRepo.CreateWithItems(ctx, order); err != nil {
		s.logger.Error("Failed to persist order",
			zap.String("user_id", identity.UserID),
			zap.Error(err),
		)
		recordCount(s.metrics, awspkg.MetricOrdersFailed, nil)
		return nil, ErrInternal.with("Failed to create order", err)
	}

	s.logger.Info("Order created",
		zap.String("order_id", order.ID.String()),
		zap.String("user_id", order.UserID),
		zap.Int64("total", order.Total),
		zap.Int("items", len(order.Items)),
	)
	s.events.Emit(ctx, models.EventOrderCreated, order, identity.Email)
	recordCount(s.metrics, awspkg.MetricOrdersCreated, nil)
	return order, nil
}

// GetUserOrders retrieves paginated orders for the caller
func (s *OrderService) GetUserOrders(ctx context.Context, identity Identity, page, limit int) (*OrderResponse, error) {
	orders, total, err := s.orderRepo.FindByUserID(ctx, identity.UserID, page, limit)
	if err != nil {
		s.logger.Error("Failed to fetch orders", zap.String("user_id", identity.UserID), zap.Error(err))
		return nil, ErrInternal.with("Failed to fetch orders", err)
	}
	return newOrderResponse(orders, total, page, limit), nil
}

// GetAllOrders retrieves paginated orders for all users
func (s *OrderService) GetAllOrders(ctx context.Context, identity Identity, page, limit int) (*OrderResponse, error) {
	if !identity.Can(CapViewAnyOrder) {
		return nil, ErrUnauthorized.with("Admin access required", nil)
	}

	s.logger.Info("Listing all orders", zap.String("admin_id", identity.UserID))
	orders, total, err := s.orderRepo.FindAll(ctx, page, limit)
	if err != nil {
		s.logger.Error("Failed to fetch all orders", zap.Error(err))
		return nil, ErrInternal.with("Failed to fetch orders", err)
	}
	return newOrderResponse(orders, total, page, limit), nil
}

// GetOrderByID returns an order visible to identity. Orders of other users
// are reported as not found.
func (s *OrderService) GetOrderByID(ctx context.Context, identity Identity, orderID uuid.UUID) (*models.Order, error) {
	order, err := loadOrder(ctx, s.orderRepo, orderID)
	if err != nil {
		return nil, err
	}
	if !identity.canActOn(order.UserID, CapViewAnyOrder) {
		return nil, ErrOrderNotFound
	}
	return order, nil
}

// DeleteOrder soft-deletes an order. Its items stay in place.
func (s *OrderService) DeleteOrder(ctx context.Context, identity Identity, orderID uuid.UUID) error {
	if !identity.Can(CapDeleteOrder) {
		return ErrUnauthorized.with("Not allowed to delete orders", nil)
	}

	deleted, err := s.orderRepo.SoftDelete(ctx, orderID, s.now())
	if err != nil {
		s.logger.Error("Failed to delete order", zap.String("order_id", orderID.String()), zap.Error(err))
		return ErrInternal.with("Failed to delete order", err)
	}
	if !deleted {
		return ErrOrderNotFound
	}

	s.logger.Info("Order deleted",
		zap.String("order_id", orderID.String()),
		zap.String("by", identity.UserID),
	)
	return nil
}

func newOrderResponse(orders []models.Order, total int64, page, limit int) *OrderResponse {
	if orders == nil {
		orders = []models.Order{}
	}
	return &OrderResponse{
		Orders: orders,
		Meta: MetaData{
			Page:        page,
			Limit:       limit,
			TotalOrders: total,
			TotalPages:  calculateTotalPages(total, limit),
			HasMore:     total > int64(page*limit),
		},
	}
}

func calculateTotalPages(total int64, limit int) int64 {
	if limit == 0 {
		return 0
	}
	return (total + int64(limit) - 1) / int64(limit)
}
