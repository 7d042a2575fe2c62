package controllers

import (
	"errors"
	"net/http"
	"strconv"

	"checkout-service/logger"
	"checkout-service/middleware"
	"checkout-service/services"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// RegisterValidatorTagNames makes gin's binding errors name fields the way
// clients send them.
func RegisterValidatorTagNames() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		v.RegisterTagNameFunc(services.JSONFieldName)
	}
}

// respondError writes {"error", "code"} with the error's status. Server-side
// failures are logged with their cause; clients only see the message.
func respondError(c *gin.Context, log *zap.Logger, err error) {
	se := services.AsServiceError(err)
	if se.StatusCode >= http.StatusInternalServerError {
		logger.FromContext(c.Request.Context(), log).Error("Request failed",
			zap.String("code", se.Code),
			zap.String("path", c.FullPath()),
			zap.Error(err),
		)
	}
	c.JSON(se.StatusCode, gin.H{"error": se.Message, "code": se.Code})
}

func respondBindError(c *gin.Context, err error) {
	msg := "Invalid request body"
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		msg = services.ValidationMessage(err)
	}
	c.JSON(http.StatusBadRequest, gin.H{"error": msg, "code": services.ErrValidation.Code})
}

func requireIdentity(c *gin.Context) (services.Identity, bool) {
	identity, err := middleware.GetIdentity(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized", "code": "unauthenticated"})
		return services.Identity{}, false
	}
	return identity, true
}

func parseOrderID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid order ID format", "code": services.ErrValidation.Code})
		return uuid.Nil, false
	}
	return id, true
}

// parsePaginationParams extracts and validates pagination parameters
func parsePaginationParams(c *gin.Context) (int, int) {
	const MaxLimit = 100
	const DefaultPage = 1
	const DefaultLimit = 10

	pageInt := DefaultPage
	limitInt := DefaultLimit

	if p, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil && p > 0 {
		pageInt = p
	}
	if l, err := strconv.Atoi(c.DefaultQuery("limit", "10")); err == nil && l > 0 {
		limitInt = l
		if limitInt > MaxLimit {
			limitInt = MaxLimit
		}
	}

	return pageInt, limitInt
}
