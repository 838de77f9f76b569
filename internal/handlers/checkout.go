package handlers

import (
	"scholarpay/internal/models"
	"scholarpay/internal/services/checkout"
	"scholarpay/internal/services/settlement"
	"scholarpay/internal/utils/response"
	"scholarpay/internal/validation"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
)

type CheckoutHandler struct {
	checkout checkout.Service
	verifier settlement.Verifier
}

func NewCheckoutHandler(checkoutService checkout.Service, verifier settlement.Verifier) *CheckoutHandler {
	return &CheckoutHandler{
		checkout: checkoutService,
		verifier: verifier,
	}
}

type checkoutInput struct {
	FeeType       string `json:"fee_type" validate:"required,fee_type"`
	Rail          string `json:"rail" validate:"omitempty,rail"`
	CouponCode    string `json:"coupon_code" validate:"omitempty,max=64"`
	ApplicationID *uint  `json:"application_id"`
	ScholarshipID *uint  `json:"scholarship_id"`
	Dependents    *int   `json:"dependents" validate:"omitempty,min=0,max=20"`
	// Amount is what the client displayed; the server never charges it.
	Amount          decimal.NullDecimal `json:"amount"`
	ReferralApplied bool                `json:"referral_applied"`
	Metadata        map[string]string   `json:"metadata" validate:"omitempty,max=20"`
}

func (in *checkoutInput) request(userID uint, idempotencyKey string) checkout.Request {
	return checkout.Request{
		UserID:                  userID,
		FeeType:                 models.FeeType(in.FeeType),
		Rail:                    models.PaymentRail(in.Rail),
		CouponCode:              in.CouponCode,
		ApplicationID:           in.ApplicationID,
		ScholarshipID:           in.ScholarshipID,
		Dependents:              in.Dependents,
		ProposedAmount:          in.Amount.Decimal,
		ReferralAppliedUpstream: in.ReferralApplied,
		Metadata:                in.Metadata,
		IdempotencyKey:          idempotencyKey,
	}
}

// CreateCheckout opens a hosted checkout for the fee in the path.
func (h *CheckoutHandler) CreateCheckout(c *fiber.Ctx) error {
	claims := c.Locals("claims").(*models.UserClaims)

	var input checkoutInput
	if err := c.BodyParser(&input); err != nil {
		return response.BadRequest(c, "Invalid request format")
	}
	input.FeeType = c.Params("feeType")
	if err := validation.Struct(&input); err != nil {
		return writeError(c, err)
	}

	result, err := h.checkout.BuildAndSubmit(c.UserContext(), input.request(claims.UserID, c.Get("Idempotency-Key")))
	if err != nil {
		return writeError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": "Checkout created",
		"data": fiber.Map{
			"redirect_url":     result.RedirectURL,
			"session_id":       result.SessionID,
			"intent":           result.Intent,
			"amount":           result.Intent.GrossAmount(),
			"coupon_rejection": result.CouponRejection,
		},
	})
}

// QuoteCheckout prices a fee without contacting the processor.
func (h *CheckoutHandler) QuoteCheckout(c *fiber.Ctx) error {
	claims := c.Locals("claims").(*models.UserClaims)

	input := checkoutInput{
		FeeType:         c.Params("feeType"),
		Rail:            c.Query("rail"),
		CouponCode:      c.Query("coupon_code"),
		ReferralApplied: c.QueryBool("referral_applied"),
	}
	if v := c.QueryInt("application_id"); v > 0 {
		id := uint(v)
		input.ApplicationID = &id
	}
	if v := c.QueryInt("scholarship_id"); v > 0 {
		id := uint(v)
		input.ScholarshipID = &id
	}
	if c.Query("dependents") != "" {
		n := c.QueryInt("dependents", -1)
		input.Dependents = &n
	}
	if err := validation.Struct(&input); err != nil {
		return writeError(c, err)
	}

	quote, err := h.checkout.Quote(c.UserContext(), input.request(claims.UserID, ""))
	if err != nil {
		return writeError(c, err)
	}
	return response.Success(c, "Quote computed", fiber.Map{
		"quote":        quote,
		"gross_amount": quote.GrossAmount(),
	})
}

type verifyInput struct {
	SessionID string `json:"external_session_id" validate:"required,max=255"`
	FeeType   string `json:"fee_type" validate:"omitempty,fee_type"`
}

// VerifyCheckout is called from the success page. Students may only verify
// their own sessions; admins may verify any. The fee type comes from the path
// when the route carries one.
func (h *CheckoutHandler) VerifyCheckout(c *fiber.Ctx) error {
	claims := c.Locals("claims").(*models.UserClaims)

	var input verifyInput
	if err := c.BodyParser(&input); err != nil {
		return response.BadRequest(c, "Invalid request format")
	}
	if ft := c.Params("feeType"); ft != "" {
		input.FeeType = ft
	}
	if err := validation.Struct(&input); err != nil {
		return writeError(c, err)
	}

	req := settlement.VerifyRequest{
		SessionID:       input.SessionID,
		ExpectedFeeType: models.FeeType(input.FeeType),
	}
	if claims.Role != "admin" {
		req.ExpectedUserID = claims.UserID
	}

	result, err := h.verifier.Verify(c.UserContext(), req)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(result)
}
