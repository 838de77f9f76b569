// Package notification tells every party involved in a settled payment
// about it.
package notification

import (
	"context"
	"errors"
	"fmt"
	"log"

	"scholarpay/internal/models"

	"github.com/shopspring/decimal"
)

const EventPaymentSettled = "payment.settled"

// Payment is the settled payment being announced.
type Payment struct {
	SessionID        string             `json:"session_id"`
	UserID           uint               `json:"user_id"`
	FeeType          models.FeeType     `json:"fee_type"`
	Rail             models.PaymentRail `json:"rail"`
	NetAmountUSD     decimal.Decimal    `json:"net_amount_usd"`
	GrossAmount      decimal.Decimal    `json:"gross_amount"`
	Currency         string             `json:"currency"`
	ApplicationID    *uint              `json:"application_id,omitempty"`
	PaymentIntentRef string             `json:"payment_intent_ref"`
}

type Message struct {
	Event     string           `json:"event"`
	Recipient models.Recipient `json:"recipient"`
	Payment   Payment          `json:"payment"`
}

type RecipientDirectory interface {
	Recipients(ctx context.Context, userID uint, applicationID *uint) ([]models.Recipient, error)
}

// Sink delivers one message to one recipient.
type Sink interface {
	Notify(ctx context.Context, msg Message) error
}

type Service interface {
	// Dispatch notifies every recipient. A failing recipient does not stop
	// the others; all failures are joined into the returned error.
	Dispatch(ctx context.Context, p Payment) error
}

type service struct {
	directory RecipientDirectory
	sinks     []Sink
}

// NewService creates a new notification service.
func NewService(directory RecipientDirectory, sinks ...Sink) Service {
	return &service{directory: directory, sinks: sinks}
}

func (s *service) Dispatch(ctx context.Context, p Payment) error {
	recipients, err := s.directory.Recipients(ctx, p.UserID, p.ApplicationID)
	if err != nil {
		return fmt.Errorf("resolve recipients: %w", err)
	}

	var errs []error
	for _, r := range recipients {
		msg := Message{Event: EventPaymentSettled, Recipient: r, Payment: p}
		for _, sink := range s.sinks {
			if err := sink.Notify(ctx, msg); err != nil {
				errs = append(errs, fmt.Errorf("%s %d: %w", r.Role, r.UserID, err))
			}
		}
	}
	return errors.Join(errs...)
}

// LogSink writes notifications to the process log.
type LogSink struct{}

func (LogSink) Notify(ctx context.Context, msg Message) error {
	log.Printf("[notify] %s -> %s %d <%s>: %s %s %s", msg.Event, msg.Recipient.Role, msg.Recipient.UserID,
		msg.Recipient.Email, msg.Payment.FeeType, msg.Payment.GrossAmount, msg.Payment.Currency)
	return nil
}
