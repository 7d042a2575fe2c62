package models

import "time"

// Order event types published to the order events topic.
const (
	EventOrderCreated       = "order.created"
	EventOrderPaid          = "order.paid"
	EventOrderCanceled      = "order.canceled"
	EventOrderStatusChanged = "order.status_changed"
)

// OrderEvent is the payload published for downstream consumers
// (notification, fulfillment).
type OrderEvent struct {
	Type      string    `json:"event_type"`
	OrderID   string    `json:"order_id"`
	UserID    string    `json:"user_id"`
	Email     string    `json:"email,omitempty"`
	Status    string    `json:"status"`
	Total     int64     `json:"total"`
	Currency  string    `json:"currency"`
	Timestamp time.Time `json:"timestamp"`
}

// NewOrderEvent builds an event snapshot of order.
func NewOrderEvent(eventType string, order *Order, email string, at time.Time) OrderEvent {
	return OrderEvent{
		Type:      eventType,
		OrderID:   order.ID.String(),
		UserID:    order.UserID,
		Email:     email,
		Status:    order.Status,
		Total:     order.Total,
		Currency:  order.Currency,
		Timestamp: at.UTC(),
	}
}
