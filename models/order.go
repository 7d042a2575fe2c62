package models

import (
	"time"

	"github.com/google/uuid"
)

// Order lifecycle states.
const (
	StatusPendingPayment  = "pendingPayment"
	StatusProcessingOrder = "processingOrder"
	StatusShipping        = "shipping"
	StatusCompleted       = "completed"
	StatusOrderCanceled   = "orderCanceled"
)

// Order is one checkout transaction. Money fields are in the smallest
// currency unit and never change after creation.
type Order struct {
	ID              uuid.UUID   `gorm:"type:uuid;primaryKey" json:"id"`
	UserID          string      `gorm:"type:varchar(128);not null;index" json:"userId"`
	SubTotal        int64       `gorm:"not null" json:"subTotal"`
	ShippingFee     int64       `gorm:"not null" json:"shippingFee"`
	Total           int64       `gorm:"not null" json:"total"`
	Currency        string      `gorm:"type:varchar(10);not null" json:"currency"`
	BillingAddress  string      `gorm:"type:text;not null" json:"billingAddress"`
	ShippingAddress string      `gorm:"type:text;not null" json:"shippingAddress"`
	Status          string      `gorm:"type:varchar(32);not null;index" json:"status"`
	PaidAt          *time.Time  `json:"paidAt,omitempty"`
	CanceledAt      *time.Time  `json:"canceledAt,omitempty"`
	CompletedAt     *time.Time  `json:"completedAt,omitempty"`
	CreatedAt       time.Time   `gorm:"autoCreateTime" json:"createdDate"`
	UpdatedAt       time.Time   `gorm:"autoUpdateTime" json:"updatedDate"`
	DeletedAt       *time.Time  `gorm:"index" json:"-"`
	Items           []OrderItem `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE" json:"items"`
}

// ItemsSubTotal re-sums salePrice × quantities over the persisted items.
func (o *Order) ItemsSubTotal() int64 {
	var sum int64
	for i := range o.Items {
		sum += o.Items[i].LineTotal()
	}
	return sum
}

// OrderItem is one product's aggregated line within an order.
type OrderItem struct {
	ID         uuid.UUID        `gorm:"type:uuid;primaryKey" json:"id"`
	OrderID    uuid.UUID        `gorm:"type:uuid;not null;index" json:"orderId"`
	ProductID  string           `gorm:"type:varchar(128);not null;index" json:"productId"`
	SalePrice  int64            `gorm:"not null" json:"salePrice"`
	Quantities int              `gorm:"not null" json:"quantities"`
	Colors     []OrderItemColor `gorm:"foreignKey:OrderItemID;constraint:OnDelete:CASCADE" json:"color"`
}

// ColorQuantity sums the per-variant quantities.
func (i *OrderItem) ColorQuantity() int {
	sum := 0
	for _, c := range i.Colors {
		sum += c.Quantity
	}
	return sum
}

// LineTotal is salePrice × quantities.
func (i *OrderItem) LineTotal() int64 {
	return i.SalePrice * int64(i.Quantities)
}

// OrderItemColor is a {color, quantity} pair of an OrderItem.
type OrderItemColor struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey" json:"-"`
	OrderItemID uuid.UUID `gorm:"type:uuid;not null;index" json:"-"`
	Color       string    `gorm:"type:varchar(16);not null" json:"colorId"`
	Quantity    int       `gorm:"not null" json:"quantities"`
}

// MaxLineQuantity caps a single cart line.
const MaxLineQuantity = 10000

// CartLineItem is a cart line as submitted by the client. Price is accepted
// for compatibility with older clients and never used.
type CartLineItem struct {
	ProductID  string `json:"productId" binding:"required"`
	Color      string `json:"color" binding:"required,hexcolor"`
	Quantities int    `json:"quantities" binding:"required,min=1,max=10000"`
	Price      *int64 `json:"price,omitempty"`
}

// CreateOrderRequest is the payload of POST /orders.
type CreateOrderRequest struct {
	BillingAddress  string         `json:"billingAddress" binding:"required,max=500"`
	ShippingAddress string         `json:"shippingAddress" binding:"required,max=500"`
	Products        []CartLineItem `json:"products" binding:"required,min=1,dive"`
}

// UpdateStatusRequest is the payload of PATCH /admin/orders/:id/status.
type UpdateStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

// PaymentIntentRequest is the optional payload of POST /orders/:id/payment-intent.
type PaymentIntentRequest struct {
	Recheck bool `json:"recheck"`
}
