package processor

import "context"

// Processor is the hosted-checkout API the builder and verifier talk to.
type Processor interface {
	CreateCheckout(ctx context.Context, req SessionRequest) (*Session, error)
	// RetrieveCheckout returns ErrSessionNotFound for unknown ids.
	RetrieveCheckout(ctx context.Context, sessionID string) (*Session, error)
}

type LineItem struct {
	Name             string
	Description      string
	AmountMinorUnits int64
	Currency         string
}

type SessionRequest struct {
	LineItem           LineItem
	PaymentMethodTypes []string
	ClientReferenceID  string
	CustomerEmail      string
	Metadata           map[string]string
	// IdempotencyKey lets the processor collapse retried submissions.
	IdempotencyKey string
}

type Session struct {
	ID               string
	RedirectURL      string
	Paid             bool
	PaymentStatus    string
	AmountTotal      int64
	Currency         string
	Metadata         map[string]string
	PaymentIntentRef string
}

// WebhookEvent is the subset of a processor event the verifier needs.
type WebhookEvent struct {
	ID        string
	Type      string
	SessionID string
}

const (
	EventCheckoutCompleted             = "checkout.session.completed"
	EventCheckoutAsyncPaymentSucceeded = "checkout.session.async_payment_succeeded"
)

// Settles reports whether the event may complete a checkout.
func (e *WebhookEvent) Settles() bool {
	return e.Type == EventCheckoutCompleted || e.Type == EventCheckoutAsyncPaymentSucceeded
}
