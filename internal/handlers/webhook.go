package handlers

import (
	"errors"
	"log"

	"scholarpay/internal/services/processor"
	"scholarpay/internal/services/settlement"
	"scholarpay/internal/utils/response"

	"github.com/gofiber/fiber/v2"
)

// WebhookParser authenticates a raw processor event.
type WebhookParser interface {
	ParseWebhook(payload []byte, signature string) (*processor.WebhookEvent, error)
}

// WebhookHandler feeds processor events into the same verifier the success
// page uses, so whichever arrives first settles the payment.
type WebhookHandler struct {
	parser   WebhookParser
	verifier settlement.Verifier
}

func NewWebhookHandler(parser WebhookParser, verifier settlement.Verifier) *WebhookHandler {
	return &WebhookHandler{parser: parser, verifier: verifier}
}

// HandleStripe acknowledges every authentic event. It only answers with a
// 5xx when a retry could succeed, since the processor redelivers on failure.
func (h *WebhookHandler) HandleStripe(c *fiber.Ctx) error {
	event, err := h.parser.ParseWebhook(c.Body(), c.Get("Stripe-Signature"))
	if err != nil {
		if errors.Is(err, processor.ErrInvalidSignature) {
			log.Printf("[webhook] rejected event from %s: %v", c.IP(), err)
			return response.BadRequest(c, "invalid signature")
		}
		return response.BadRequest(c, "invalid payload")
	}

	if !event.Settles() || event.SessionID == "" {
		return c.JSON(fiber.Map{"received": true})
	}

	result, err := h.verifier.Verify(c.UserContext(), settlement.VerifyRequest{SessionID: event.SessionID})
	switch {
	case err == nil:
		return c.JSON(fiber.Map{"received": true, "status": result.Status})
	case errors.Is(err, settlement.ErrMalformedSession),
		errors.Is(err, settlement.ErrSessionNotFound):
		// Not ours or not recoverable; redelivery would fail the same way.
		log.Printf("[webhook] event %s for %s ignored: %v", event.ID, event.SessionID, err)
		return c.JSON(fiber.Map{"received": true, "ignored": true})
	default:
		log.Printf("[webhook] event %s for %s failed: %v", event.ID, event.SessionID, err)
		return response.Retryable(c, "settlement failed")
	}
}
