package routes

import (
	"checkout-service/controllers"
	"checkout-service/middleware"
	"checkout-service/services"

	"github.com/gin-gonic/gin"
)

// Controllers groups the handlers mounted by RegisterRoutes.
type Controllers struct {
	Orders   *controllers.OrderController
	Payments *controllers.PaymentController
	Webhooks *controllers.WebhookController
}

// RegisterRoutes mounts the checkout API. auth resolves the caller and
// limiter guards the customer-facing routes; the webhook is authenticated by
// its signature only.
func RegisterRoutes(r *gin.Engine, c Controllers, auth gin.HandlerFunc, limiter gin.HandlerFunc) {
	orders := r.Group("/orders")
	if limiter != nil {
		orders.Use(limiter)
	}
	orders.Use(auth)
	{
		orders.POST("", c.Orders.CreateOrder)
		orders.GET("", c.Orders.GetOrders)
		orders.GET("/:id", c.Orders.GetOrderByID)
		orders.POST("/:id/cancel", c.Orders.CancelOrder)
		orders.POST("/:id/payment-intent", c.Payments.CreatePaymentIntent)
	}

	admin := r.Group("/admin/orders")
	admin.Use(auth)
	{
		admin.GET("", middleware.RequireCapability(services.CapViewAnyOrder), c.Orders.GetAllOrders)
		admin.PATCH("/:id/status", middleware.RequireCapability(services.CapAdvanceStatus), c.Orders.UpdateOrderStatus)
		admin.DELETE("/:id", middleware.RequireCapability(services.CapDeleteOrder), c.Orders.DeleteOrder)
	}

	r.POST("/stripe/webhook", c.Webhooks.StripeWebhook)
}
