package controllers

import (
	"context"
	"net/http"
	"strings"

	"checkout-service/models"
	"checkout-service/services"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// IdempotencyKeyHeader lets clients retry order creation safely.
const IdempotencyKeyHeader = "Idempotency-Key"

const maxIdempotencyKeyLength = 255

// OrderService is what the order endpoints need from the service layer.
type OrderService interface {
	CreateOrder(ctx context.Context, identity services.Identity, req *models.CreateOrderRequest, idempotencyKey string) (*models.Order, error)
	GetUserOrders(ctx context.Context, identity services.Identity, page, limit int) (*services.OrderResponse, error)
	GetAllOrders(ctx context.Context, identity services.Identity, page, limit int) (*services.OrderResponse, error)
	GetOrderByID(ctx context.Context, identity services.Identity, orderID uuid.UUID) (*models.Order, error)
	DeleteOrder(ctx context.Context, identity services.Identity, orderID uuid.UUID) error
}

// OrderLifecycle is what the status endpoints need from the lifecycle manager.
type OrderLifecycle interface {
	Cancel(ctx context.Context, identity services.Identity, orderID uuid.UUID) (*models.Order, error)
	Advance(ctx context.Context, identity services.Identity, orderID uuid.UUID, to string) (*models.Order, error)
}

type OrderController struct {
	orderService OrderService
	lifecycle    OrderLifecycle
	logger       *zap.Logger
}

func NewOrderController(orderService OrderService, lifecycle OrderLifecycle, logger *zap.Logger) *OrderController {
	return &OrderController{
		orderService: orderService,
		lifecycle:    lifecycle,
		logger:       logger,
	}
}

// CreateOrder handles order creation requests
func (oc *OrderController) CreateOrder(c *gin.Context) {
	identity, ok := requireIdentity(c)
	if !ok {
		return
	}

	var req models.CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	key := strings.TrimSpace(c.GetHeader(IdempotencyKeyHeader))
	if len(key) > maxIdempotencyKeyLength {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Idempotency-Key is too long", "code": services.ErrValidation.Code})
		return
	}

	order, err := oc.orderService.CreateOrder(c.Request.Context(), identity, &req, key)
	if err != nil {
		respondError(c, oc.logger, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"order": order})
}

// GetOrders returns paginated orders for the authenticated user
func (oc *OrderController) GetOrders(c *gin.Context) {
	identity, ok := requireIdentity(c)
	if !ok {
		return
	}

	page, limit := parsePaginationParams(c)
	result, err := oc.orderService.GetUserOrders(c.Request.Context(), identity, page, limit)
	if err != nil {
		respondError(c, oc.logger, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// GetAllOrders returns paginated orders for all users (admin only)
func (oc *OrderController) GetAllOrders(c *gin.Context) {
	identity, ok := requireIdentity(c)
	if !ok {
		return
	}

	page, limit := parsePaginationParams(c)
	result, err := oc.orderService.GetAllOrders(c.Request.Context(), identity, page, limit)
	if err != nil {
		respondError(c, oc.logger, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// GetOrderByID returns a specific order visible to the caller
func (oc *OrderController) GetOrderByID(c *gin.Context) {
	identity, ok := requireIdentity(c)
	if !ok {
		return
	}
	orderID, ok := parseOrderID(c)
	if !ok {
		return
	}

	order, err := oc.orderService.GetOrderByID(c.Request.Context(), identity, orderID)
	if err != nil {
		respondError(c, oc.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"order": order})
}

// CancelOrder cancels an order that has not shipped yet
func (oc *OrderController) CancelOrder(c *gin.Context) {
	identity, ok := requireIdentity(c)
	if !ok {
		return
	}
	orderID, ok := parseOrderID(c)
	if !ok {
		return
	}

	order, err := oc.lifecycle.Cancel(c.Request.Context(), identity, orderID)
	if err != nil {
		respondError(c, oc.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"order": order})
}

// UpdateOrderStatus performs an admin fulfillment step
func (oc *OrderController) UpdateOrderStatus(c *gin.Context) {
	identity, ok := requireIdentity(c)
	if !ok {
		return
	}
	orderID, ok := parseOrderID(c)
	if !ok {
		return
	}

	var req models.UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	order, err := oc.lifecycle.Advance(c.Request.Context(), identity, orderID, req.Status)
	if err != nil {
		respondError(c, oc.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"order": order})
}

// DeleteOrder soft-deletes an order (admin only)
func (oc *OrderController) DeleteOrder(c *gin.Context) {
	identity, ok := requireIdentity(c)
	if !ok {
		return
	}
	orderID, ok := parseOrderID(c)
	if !ok {
		return
	}

	if err := oc.orderService.DeleteOrder(c.Request.Context(), identity, orderID); err != nil {
		respondError(c, oc.logger, err)
		return
	}

	c.Status(http.StatusNoContent)
}
