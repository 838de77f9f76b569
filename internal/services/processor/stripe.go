package processor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/stripe/stripe-go/v72"
	"github.com/stripe/stripe-go/v72/checkout/session"
	"github.com/stripe/stripe-go/v72/webhook"
)

type StripeConfig struct {
	SecretKey     string
	WebhookSecret string
	SuccessURL    string
	CancelURL     string
	Timeout       time.Duration
}

// StripeProcessor creates and reads Stripe Checkout sessions.
type StripeProcessor struct {
	config StripeConfig
}

func NewStripeProcessor(cfg StripeConfig) *StripeProcessor {
	stripe.Key = cfg.SecretKey
	return &StripeProcessor{config: cfg}
}

func (p *StripeProcessor) CreateCheckout(ctx context.Context, req SessionRequest) (*Session, error) {
	if req.LineItem.AmountMinorUnits <= 0 || req.LineItem.Currency == "" {
		return nil, fmt.Errorf("%w: amount %d %s", ErrInvalidRequest, req.LineItem.AmountMinorUnits, req.LineItem.Currency)
	}

	ctx, cancel := p.withTimeout(ctx)
	defer cancel()

	methods := req.PaymentMethodTypes
	if len(methods) == 0 {
		methods = []string{"card"}
	}

	params := &stripe.CheckoutSessionParams{
		Mode:               stripe.String(string(stripe.CheckoutSessionModePayment)),
		PaymentMethodTypes: stripe.StringSlice(methods),
		SuccessURL:         stripe.String(p.config.SuccessURL),
		CancelURL:          stripe.String(p.config.CancelURL),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency:   stripe.String(req.LineItem.Currency),
					UnitAmount: stripe.Int64(req.LineItem.AmountMinorUnits),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name:        stripe.String(req.LineItem.Name),
						Description: stripe.String(req.LineItem.Description),
					},
				},
				Quantity: stripe.Int64(1),
			},
		},
	}
	if req.ClientReferenceID != "" {
		params.ClientReferenceID = stripe.String(req.ClientReferenceID)
	}
	if req.CustomerEmail != "" {
		params.CustomerEmail = stripe.String(req.CustomerEmail)
	}
	for k, v := range req.Metadata {
		params.AddMetadata(k, v)
	}
	if req.IdempotencyKey != "" {
		params.SetIdempotencyKey(req.IdempotencyKey)
	}
	params.Context = ctx

	s, err := session.New(params)
	if err != nil {
		return nil, p.translate("create", err)
	}
	return toSession(s), nil
}

func (p *StripeProcessor) RetrieveCheckout(ctx context.Context, sessionID string) (*Session, error) {
	ctx, cancel := p.withTimeout(ctx)
	defer cancel()

	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx
	params.AddExpand("payment_intent")

	s, err := session.Get(sessionID, params)
	if err != nil {
		return nil, p.translate("retrieve", err)
	}
	return toSession(s), nil
}

// ParseWebhook verifies the Stripe-Signature header and extracts the checkout
// session id from checkout events.
func (p *StripeProcessor) ParseWebhook(payload []byte, signature string) (*WebhookEvent, error) {
	event, err := webhook.ConstructEvent(payload, signature, p.config.WebhookSecret)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	out := &WebhookEvent{ID: event.ID, Type: event.Type}
	if event.Data == nil || !out.Settles() {
		return out, nil
	}

	var s stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &s); err != nil {
		return nil, fmt.Errorf("decode %s payload: %w", event.Type, err)
	}
	out.SessionID = s.ID
	return out, nil
}

func (p *StripeProcessor) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if p.config.Timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, p.config.Timeout)
}

func (p *StripeProcessor) translate(op string, err error) error {
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		if stripeErr.Code == stripe.ErrorCodeResourceMissing || stripeErr.HTTPStatusCode == 404 {
			return fmt.Errorf("%w: %s", ErrSessionNotFound, stripeErr.Msg)
		}
		if stripeErr.Type == stripe.ErrorTypeInvalidRequest {
			return fmt.Errorf("%w: %s", ErrInvalidRequest, stripeErr.Msg)
		}
	}
	log.Printf("[processor] stripe %s failed: %v", op, err)
	return fmt.Errorf("%w: %s: %v", ErrProcessorUnavailable, op, err)
}

func toSession(s *stripe.CheckoutSession) *Session {
	out := &Session{
		ID:            s.ID,
		RedirectURL:   s.URL,
		PaymentStatus: string(s.PaymentStatus),
		Paid:          s.PaymentStatus == stripe.CheckoutSessionPaymentStatusPaid,
		AmountTotal:   s.AmountTotal,
		Currency:      string(s.Currency),
		Metadata:      s.Metadata,
	}
	if s.PaymentIntent != nil {
		out.PaymentIntentRef = s.PaymentIntent.ID
	}
	return out
}
