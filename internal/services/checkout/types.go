package checkout

import (
	"scholarpay/internal/models"
	"scholarpay/internal/services/discount"

	"github.com/shopspring/decimal"
)

type Request struct {
	UserID        uint
	FeeType       models.FeeType
	Rail          models.PaymentRail
	CouponCode    string
	ApplicationID *uint
	ScholarshipID *uint
	// Dependents overrides the count stored on the user when set.
	Dependents *int
	// ProposedAmount is what the client displayed, if anything.
	ProposedAmount          decimal.Decimal
	ReferralAppliedUpstream bool
	// Metadata is copied into the processor bag under the intent's keys.
	Metadata       map[string]string
	IdempotencyKey string
}

type Quote struct {
	FeeType               models.FeeType            `json:"fee_type"`
	Rail                  models.PaymentRail        `json:"rail"`
	PricingMode           models.PricingMode        `json:"pricing_mode"`
	BaseAmount            decimal.Decimal           `json:"base_amount"`
	NetAmount             decimal.Decimal           `json:"net_amount"`
	Currency              string                    `json:"currency"`
	ExchangeRate          decimal.Decimal           `json:"exchange_rate"`
	GrossAmountMinorUnits int64                     `json:"gross_amount_minor_units"`
	Discount              *models.Discount          `json:"discount,omitempty"`
	CouponRejection       *discount.CouponRejection `json:"coupon_rejection,omitempty"`
	ApplicationID         *uint                     `json:"application_id,omitempty"`
	ScholarshipID         *uint                     `json:"scholarship_id,omitempty"`
}

// GrossAmount is the charge in major units of Currency.
func (q *Quote) GrossAmount() decimal.Decimal {
	return decimal.New(q.GrossAmountMinorUnits, -2)
}

type Result struct {
	RedirectURL     string                    `json:"redirect_url"`
	SessionID       string                    `json:"session_id"`
	Intent          *models.CheckoutIntent    `json:"intent"`
	CouponRejection *discount.CouponRejection `json:"coupon_rejection,omitempty"`
}
