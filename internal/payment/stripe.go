package payment

import (
	"context" // Request-scoped cancellation

	"github.com/google/uuid"                  // Idempotency keys
	"github.com/sirupsen/logrus"              // Logging library
	"github.com/stripe/stripe-go/v79"         // Stripe SDK
	"github.com/stripe/stripe-go/v79/client"  // Stripe API client

	"authpay/internal/apperr" // Error taxonomy
)

// StripeGateway drives the hosted-intent (card) flow: a single synchronous
// call creates a provider-side PaymentIntent whose id and client secret must
// be persisted against the local record immediately.
type StripeGateway struct {
	api       *client.API
	secretKey string
}

// NewStripeGateway builds the gateway from the configured API key. A missing
// key is not fatal at startup; the card flow fails with ConfigurationMissing.
func NewStripeGateway(secretKey string) *StripeGateway {
	api := &client.API{}
	api.Init(secretKey, nil)
	return &StripeGateway{api: api, secretKey: secretKey}
}

// IntentResult carries both references the local record must persist so the
// later webhook can correlate.
type IntentResult struct {
	IntentID     string // Provider transaction id
	ClientSecret string // Client-usable secret for the hosted payment UI
}

// CreateIntent creates a provider-side payment intent. The amount arrives in
// whole currency units and is converted to the smallest unit (cents) here,
// matching Stripe's amount semantics.
func (g *StripeGateway) CreateIntent(ctx context.Context, amount int64, currency string) (*IntentResult, error) {
	if g.secretKey == "" {
		return nil, apperr.New(apperr.ConfigurationMissing, "card payments not configured")
	}
	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(amount * 100),
		Currency: stripe.String(currency),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	params.Context = ctx
	params.IdempotencyKey = stripe.String(uuid.NewString())

	intent, err := g.api.PaymentIntents.New(params)
	if err != nil {
		// Provider detail stays in the logs, not in the client response
		logrus.WithError(err).Error("stripe payment intent creation failed")
		return nil, apperr.Wrap(apperr.ProviderInitiationFailed, "payment initiation failed", err)
	}
	return &IntentResult{IntentID: intent.ID, ClientSecret: intent.ClientSecret}, nil
}
