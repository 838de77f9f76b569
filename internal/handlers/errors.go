package handlers

import (
	"errors"
	"log"

	"scholarpay/internal/models"
	"scholarpay/internal/services/checkout"
	"scholarpay/internal/services/exchange"
	"scholarpay/internal/services/fee"
	"scholarpay/internal/services/processor"
	"scholarpay/internal/services/settlement"
	"scholarpay/internal/utils/response"
	"scholarpay/internal/validation"

	"github.com/gofiber/fiber/v2"
)

var (
	badRequestErrors = []error{
		models.ErrInvalidFeeType,
		models.ErrInvalidRail,
		checkout.ErrInvalidDependents,
		checkout.ErrScholarshipRequired,
		checkout.ErrApplicationMismatch,
		fee.ErrInvalidAmount,
		processor.ErrInvalidRequest,
		settlement.ErrMissingSessionID,
	}
	notFoundErrors = []error{
		checkout.ErrUserNotFound,
		checkout.ErrScholarshipNotFound,
		checkout.ErrApplicationNotFound,
		settlement.ErrSessionNotFound,
	}
	forbiddenErrors = []error{
		checkout.ErrApplicationNotOwned,
		settlement.ErrSessionMismatch,
	}
	retryableErrors = []error{
		processor.ErrProcessorUnavailable,
		exchange.ErrRateUnavailable,
	}
)

func isAny(err error, targets []error) bool {
	for _, t := range targets {
		if errors.Is(err, t) {
			return true
		}
	}
	return false
}

// writeError maps service errors onto HTTP statuses. Anything unrecognised is
// logged and hidden behind a 500.
func writeError(c *fiber.Ctx, err error) error {
	var verrs validation.Errors
	switch {
	case errors.As(err, &verrs):
		return response.ValidationError(c, "invalid request", verrs.Fields())
	case isAny(err, badRequestErrors):
		return response.BadRequest(c, err.Error())
	case isAny(err, notFoundErrors):
		return response.NotFound(c, err.Error())
	case isAny(err, forbiddenErrors):
		return response.Forbidden(c, err.Error())
	case isAny(err, retryableErrors):
		return response.Retryable(c, "payment provider temporarily unavailable, please retry")
	case errors.Is(err, settlement.ErrMalformedSession):
		return response.Error(c, fiber.StatusUnprocessableEntity, err.Error())
	default:
		log.Printf("[http] %s %s failed: %v", c.Method(), c.Path(), err)
		return response.ServerError(c, "internal error")
	}
}
