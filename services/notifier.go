package services

import (
	"context"
	"fmt"
	"html"
	"sync"
	"time"

	"checkout-service/models"
	"checkout-service/sender"

	"go.uber.org/zap"
)

// Notifier tells the customer and downstream consumers that an order was
// paid. Delivery runs in the background; failures are only logged.
type Notifier struct {
	email   sender.EmailSender
	events  *OrderEvents
	timeout time.Duration
	logger  *zap.Logger
	wg      sync.WaitGroup
}

// NewNotifier returns a Notifier. email may be nil when SMTP is not
// configured.
func NewNotifier(email sender.EmailSender, events *OrderEvents, timeout time.Duration, logger *zap.Logger) *Notifier {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Notifier{email: email, events: events, timeout: timeout, logger: logger}
}

// PaymentConfirmed schedules the confirmation email and order.paid event
// and returns immediately.
func (n *Notifier) PaymentConfirmed(order *models.Order, email string) {
	snapshot := *order
	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), n.timeout)
		defer cancel()

		n.events.Emit(ctx, models.EventOrderPaid, &snapshot, email)
		n.sendConfirmation(ctx, &snapshot, email)
	}()
}

// Wait blocks until every scheduled notification has finished.
func (n *Notifier) Wait() {
	n.wg.Wait()
}

func (n *Notifier) sendConfirmation(ctx context.Context, order *models.Order, to string) {
	if n.email == nil {
		return
	}
	if to == "" {
		n.logger.Info("No email on payment, skipping confirmation",
			zap.String("order_id", order.ID.String()),
		)
		return
	}

	subject, body := paymentConfirmationEmail(order)
	res, err := n.email.SendEmail(ctx, to, subject, body)
	if err != nil {
		n.logger.Error("Failed to send payment confirmation",
			zap.String("order_id", order.ID.String()),
			zap.Error(err),
		)
		return
	}
	n.logger.Info("Payment confirmation sent",
		zap.String("order_id", order.ID.String()),
		zap.String("message_id", res.MessageID),
	)
}

func paymentConfirmationEmail(order *models.Order) (string, string) {
	id := order.ID.String()
	subject := fmt.Sprintf("Order %s confirmed", id[:8])
	body := fmt.Sprintf(
		"<p>Thank you for your order.</p>"+
			"<p>Order <b>%s</b> has been paid and is on its way.</p>"+
			"<p>Total: %d %s</p>"+
			"<p>Shipping to: %s</p>",
		html.EscapeString(id),
		order.Total,
		html.EscapeString(order.Currency),
		html.EscapeString(order.ShippingAddress),
	)
	return subject, body
}
