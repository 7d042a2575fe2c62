package controllers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"checkout-service/middleware"
	"checkout-service/models"
	"checkout-service/services"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func init() {
	gin.SetMode(gin.TestMode)
	RegisterValidatorTagNames()
}

type stubOrderService struct {
	createErr  error
	gotKey     string
	gotRequest *models.CreateOrderRequest
	order      *models.Order
	err        error
}

func (s *stubOrderService) CreateOrder(ctx context.Context, identity services.Identity, req *models.CreateOrderRequest, key string) (*models.Order, error) {
	s.gotKey = key
	s.gotRequest = req
	if s.createErr != nil {
		return nil, s.createErr
	}
	return &models.Order{ID: uuid.New(), UserID: identity.UserID, Status: models.StatusPendingPayment, Total: 220000}, nil
}

func (s *stubOrderService) GetUserOrders(ctx context.Context, identity services.Identity, page, limit int) (*services.OrderResponse, error) {
	return &services.OrderResponse{Orders: []models.Order{}, Meta: services.MetaData{Page: page, Limit: limit}}, s.err
}

func (s *stubOrderService) GetAllOrders(ctx context.Context, identity services.Identity, page, limit int) (*services.OrderResponse, error) {
	return &services.OrderResponse{Orders: []models.Order{}, Meta: services.MetaData{Page: page, Limit: limit}}, s.err
}

func (s *stubOrderService) GetOrderByID(ctx context.Context, identity services.Identity, id uuid.UUID) (*models.Order, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.order, nil
}

func (s *stubOrderService) DeleteOrder(ctx context.Context, identity services.Identity, id uuid.UUID) error {
	return s.err
}

type stubLifecycle struct {
	err    error
	target string
}

func (s *stubLifecycle) Cancel(ctx context.Context, identity services.Identity, id uuid.UUID) (*models.Order, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &models.Order{ID: id, Status: models.StatusOrderCanceled}, nil
}

func (s *stubLifecycle) Advance(ctx context.Context, identity services.Identity, id uuid.UUID, to string) (*models.Order, error) {
	s.target = to
	if s.err != nil {
		return nil, s.err
	}
	return &models.Order{ID: id, Status: to}, nil
}

type stubPaymentService struct {
	recheck bool
	err     error
}

func (s *stubPaymentService) CreatePaymentIntent(ctx context.Context, identity services.Identity, id uuid.UUID, recheck bool) (*services.PaymentIntentResult, error) {
	s.recheck = recheck
	if s.err != nil {
		return nil, s.err
	}
	return &services.PaymentIntentResult{ClientSecret: "secret_1", PaymentIntentID: "pi_1", Amount: 220000, Currency: "vnd"}, nil
}

type stubWebhookService struct {
	result    *services.WebhookResult
	err       error
	signature string
}

func (s *stubWebhookService) HandlePaymentEvent(ctx context.Context, payload []byte, signature string) (*services.WebhookResult, error) {
	s.signature = signature
	return s.result, s.err
}

func newOrderRouter(orders OrderService, lifecycle OrderLifecycle, payments PaymentService) *gin.Engine {
	r := gin.New()
	r.Use(middleware.AuthMiddleware(nil))
	oc := NewOrderController(orders, lifecycle, zap.NewNop())
	pc := NewPaymentController(payments, zap.NewNop())
	r.POST("/orders", oc.CreateOrder)
	r.GET("/orders", oc.GetOrders)
	r.GET("/orders/:id", oc.GetOrderByID)
	r.POST("/orders/:id/cancel", oc.CancelOrder)
	r.POST("/orders/:id/payment-intent", pc.CreatePaymentIntent)
	r.PATCH("/admin/orders/:id/status", oc.UpdateOrderStatus)
	r.DELETE("/admin/orders/:id", oc.DeleteOrder)
	return r
}

func doRequest(r http.Handler, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User-ID", "user-1")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func validCreateBody() map[string]any {
	return map[string]any{
		"billingAddress":  "1 Billing St",
		"shippingAddress": "2 Shipping Rd",
		"products": []map[string]any{
			{"productId": "P1", "color": "#ff0000", "quantities": 2},
		},
	}
}

func TestCreateOrder_Created(t *testing.T) {
	orders := &stubOrderService{}
	r := newOrderRouter(orders, &stubLifecycle{}, &stubPaymentService{})

	w := doRequest(r, http.MethodPost, "/orders", validCreateBody(), map[string]string{IdempotencyKeyHeader: " key-1 "})
	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "key-1", orders.gotKey)

	body := decode(t, w)
	order := body["order"].(map[string]any)
	assert.Equal(t, models.StatusPendingPayment, order["status"])
	assert.Equal(t, "user-1", order["userId"])
}

func TestCreateOrder_BindErrorNamesField(t *testing.T) {
	orders := &stubOrderService{}
	r := newOrderRouter(orders, &stubLifecycle{}, &stubPaymentService{})

	body := validCreateBody()
	delete(body, "shippingAddress")
	w := doRequest(r, http.MethodPost, "/orders", body, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	res := decode(t, w)
	assert.Equal(t, "validation_error", res["code"])
	assert.Contains(t, res["error"], "shippingAddress is required")
	assert.Nil(t, orders.gotRequest)
}

func TestCreateOrder_ServiceErrorMapping(t *testing.T) {
	tests := []struct {
		err    error
		status int
		code   string
	}{
		{services.ErrInsufficientStock, http.StatusConflict, "insufficient_stock"},
		{services.ErrProductNotFound, http.StatusNotFound, "product_not_found"},
		{services.ErrInvalidColorVariant, http.StatusUnprocessableEntity, "invalid_color_variant"},
		{services.ErrIdempotencyConflict, http.StatusConflict, "idempotency_conflict"},
		{services.ErrInternal, http.StatusInternalServerError, "internal_error"},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			r := newOrderRouter(&stubOrderService{createErr: tt.err}, &stubLifecycle{}, &stubPaymentService{})
			w := doRequest(r, http.MethodPost, "/orders", validCreateBody(), nil)
			assert.Equal(t, tt.status, w.Code)
			assert.Equal(t, tt.code, decode(t, w)["code"])
		})
	}
}

func TestCreateOrder_Unauthenticated(t *testing.T) {
	r := newOrderRouter(&stubOrderService{}, &stubLifecycle{}, &stubPaymentService{})

	req := httptest.NewRequest(http.MethodPost, "/orders", bytes.NewBufferString("{}"))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestGetOrders_Pagination(t *testing.T) {
	r := newOrderRouter(&stubOrderService{}, &stubLifecycle{}, &stubPaymentService{})

	w := doRequest(r, http.MethodGet, "/orders?page=2&limit=500", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	meta := decode(t, w)["meta"].(map[string]any)
	assert.Equal(t, float64(2), meta["page"])
	assert.Equal(t, float64(100), meta["limit"])
}

func TestGetOrderByID(t *testing.T) {
	id := uuid.New()
	orders := &stubOrderService{order: &models.Order{ID: id, UserID: "user-1"}}
	r := newOrderRouter(orders, &stubLifecycle{}, &stubPaymentService{})

	w := doRequest(r, http.MethodGet, "/orders/"+id.String(), nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = doRequest(r, http.MethodGet, "/orders/not-a-uuid", nil, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	orders.err = services.ErrOrderNotFound
	w = doRequest(r, http.MethodGet, "/orders/"+id.String(), nil, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "not_found", decode(t, w)["code"])
}

func TestCancelOrder(t *testing.T) {
	lifecycle := &stubLifecycle{}
	r := newOrderRouter(&stubOrderService{}, lifecycle, &stubPaymentService{})

	w := doRequest(r, http.MethodPost, "/orders/"+uuid.NewString()+"/cancel", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	lifecycle.err = services.ErrCancellationNotAllowed
	w = doRequest(r, http.MethodPost, "/orders/"+uuid.NewString()+"/cancel", nil, nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "cancellation_not_allowed", decode(t, w)["code"])
}

func TestUpdateOrderStatus(t *testing.T) {
	lifecycle := &stubLifecycle{}
	r := newOrderRouter(&stubOrderService{}, lifecycle, &stubPaymentService{})

	w := doRequest(r, http.MethodPatch, "/admin/orders/"+uuid.NewString()+"/status", map[string]string{"status": models.StatusShipping}, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.StatusShipping, lifecycle.target)

	w = doRequest(r, http.MethodPatch, "/admin/orders/"+uuid.NewString()+"/status", map[string]string{}, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "status is required", decode(t, w)["error"])
}

func TestDeleteOrder(t *testing.T) {
	orders := &stubOrderService{}
	r := newOrderRouter(orders, &stubLifecycle{}, &stubPaymentService{})

	w := doRequest(r, http.MethodDelete, "/admin/orders/"+uuid.NewString(), nil, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	orders.err = services.ErrUnauthorized
	w = doRequest(r, http.MethodDelete, "/admin/orders/"+uuid.NewString(), nil, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestCreatePaymentIntent(t *testing.T) {
	payments := &stubPaymentService{}
	r := newOrderRouter(&stubOrderService{}, &stubLifecycle{}, payments)

	w := doRequest(r, http.MethodPost, "/orders/"+uuid.NewString()+"/payment-intent", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, "secret_1", body["clientSecret"])
	assert.Equal(t, "pi_1", body["paymentIntentId"])
	assert.False(t, payments.recheck)

	w = doRequest(r, http.MethodPost, "/orders/"+uuid.NewString()+"/payment-intent", map[string]bool{"recheck": true}, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, payments.recheck)

	payments.recheck = false
	w = doRequest(r, http.MethodPost, "/orders/"+uuid.NewString()+"/payment-intent?recheck=true", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, payments.recheck)

	payments.err = services.ErrTotalMismatch
	w = doRequest(r, http.MethodPost, "/orders/"+uuid.NewString()+"/payment-intent", nil, nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "total_mismatch", decode(t, w)["code"])
}

func TestStripeWebhook_StatusMapping(t *testing.T) {
	tests := []struct {
		name   string
		result *services.WebhookResult
		err    error
		status int
		want   string
	}{
		{"processed", &services.WebhookResult{Status: services.WebhookProcessed, EventID: "evt_1"}, nil, http.StatusOK, services.WebhookProcessed},
		{"duplicate", &services.WebhookResult{Status: services.WebhookDuplicate}, nil, http.StatusOK, services.WebhookDuplicate},
		{"bad signature", nil, services.ErrInvalidSignature, http.StatusBadRequest, ""},
		{"missing metadata", nil, services.ErrMetadataMissing, http.StatusOK, services.WebhookIgnored},
		{"amount mismatch", nil, services.ErrTotalMismatch, http.StatusOK, services.WebhookIgnored},
		{"store failure", nil, services.ErrInternal, http.StatusInternalServerError, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &stubWebhookService{result: tt.result, err: tt.err}
			wc := NewWebhookController(svc, zap.NewNop())
			r := gin.New()
			r.POST("/stripe/webhook", wc.StripeWebhook)

			req := httptest.NewRequest(http.MethodPost, "/stripe/webhook", bytes.NewBufferString(`{"id":"evt_1"}`))
			req.Header.Set("Stripe-Signature", "t=1,v1=abc")
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			assert.Equal(t, tt.status, w.Code)
			assert.Equal(t, "t=1,v1=abc", svc.signature)
			if tt.want != "" {
				assert.Equal(t, tt.want, decode(t, w)["status"])
			}
		})
	}
}

func TestStripeWebhook_RejectsOversizedBody(t *testing.T) {
	svc := &stubWebhookService{result: &services.WebhookResult{Status: services.WebhookProcessed}}
	wc := NewWebhookController(svc, zap.NewNop())
	r := gin.New()
	r.POST("/stripe/webhook", wc.StripeWebhook)

	body := bytes.Repeat([]byte("a"), maxWebhookBodyBytes+1)
	req := httptest.NewRequest(http.MethodPost, "/stripe/webhook", bytes.NewReader(body))
	req.Header.Set("Stripe-Signature", "t=1,v1=abc")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	assert.Empty(t, svc.signature)
}
