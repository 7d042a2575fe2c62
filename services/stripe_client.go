package services

import (
	"context"
	"time"

	"github.com/stripe/stripe-go/v80"
	"github.com/stripe/stripe-go/v80/client"
	"github.com/stripe/stripe-go/v80/webhook"
)

// IntentParams describes a payment intent to create.
type IntentParams struct {
	Amount         int64
	Currency       string
	Metadata       map[string]string
	IdempotencyKey string
}

// ProviderIntent is the processor's handle for a created payment intent.
type ProviderIntent struct {
	ID           string
	ClientSecret string
	Amount       int64
	Currency     string
}

// PaymentProvider is the external payment processor.
type PaymentProvider interface {
	CreatePaymentIntent(ctx context.Context, params IntentParams) (*ProviderIntent, error)
	ConstructEvent(payload []byte, signature string) (stripe.Event, error)
}

type StripeService struct {
	api        *client.API
	webhookKey string
	timeout    time.Duration
}

// NewStripeService returns a Stripe-backed PaymentProvider. Each API call is
// bounded by timeout.
func NewStripeService(secretKey, webhookKey string, timeout time.Duration) *StripeService {
	api := &client.API{}
	api.Init(secretKey, nil)
	return &StripeService{api: api, webhookKey: webhookKey, timeout: timeout}
}

func (s *StripeService) CreatePaymentIntent(ctx context.Context, in IntentParams) (*ProviderIntent, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(in.Amount),
		Currency: stripe.String(in.Currency),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	params.Context = ctx
	for k, v := range in.Metadata {
		params.AddMetadata(k, v)
	}
	if in.IdempotencyKey != "" {
		params.SetIdempotencyKey(in.IdempotencyKey)
	}

	pi, err := s.api.PaymentIntents.New(params)
	if err != nil {
		return nil, err
	}
	return &ProviderIntent{
		ID:           pi.ID,
		ClientSecret: pi.ClientSecret,
		Amount:       pi.Amount,
		Currency:     string(pi.Currency),
	}, nil
}

// ConstructEvent verifies the Stripe-Signature header and parses the event.
func (s *StripeService) ConstructEvent(payload []byte, signature string) (stripe.Event, error) {
	return webhook.ConstructEventWithOptions(payload, signature, s.webhookKey, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
}
