package controllers

import (
	"context"
	"net/http"
	"strconv"

	"checkout-service/models"
	"checkout-service/services"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type PaymentService interface {
	CreatePaymentIntent(ctx context.Context, identity services.Identity, orderID uuid.UUID, recheck bool) (*services.PaymentIntentResult, error)
}

type PaymentController struct {
	paymentService PaymentService
	logger         *zap.Logger
}

func NewPaymentController(paymentService PaymentService, logger *zap.Logger) *PaymentController {
	return &PaymentController{paymentService: paymentService, logger: logger}
}

// CreatePaymentIntent starts payment of a pending order. The recheck flag may
// come from the JSON body or the query string.
func (pc *PaymentController) CreatePaymentIntent(c *gin.Context) {
	identity, ok := requireIdentity(c)
	if !ok {
		return
	}
	orderID, ok := parseOrderID(c)
	if !ok {
		return
	}

	var req models.PaymentIntentRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			respondBindError(c, err)
			return
		}
	}
	if q := c.Query("recheck"); q != "" {
		if v, err := strconv.ParseBool(q); err == nil {
			req.Recheck = req.Recheck || v
		}
	}

	result, err := pc.paymentService.CreatePaymentIntent(c.Request.Context(), identity, orderID, req.Recheck)
	if err != nil {
		respondError(c, pc.logger, err)
		return
	}

	c.JSON(http.StatusOK, result)
}
