package discount

import (
	"scholarpay/internal/models"

	"github.com/shopspring/decimal"
)

type ResolveInput struct {
	UserID  uint
	FeeType models.FeeType
	// ProposedAmount is what the client displayed. Informational only.
	ProposedAmount decimal.Decimal
	// CanonicalAmount is the server-resolved base amount in USD. Discounts
	// are always computed from it.
	CanonicalAmount decimal.Decimal
	CouponCode      string
	// ReferralAppliedUpstream is set when the caller already priced the
	// referral discount into the base amount.
	ReferralAppliedUpstream bool
	Rail                    models.PaymentRail
	// ExchangeRate converts USD into the charge currency. Only read for
	// instant transfer.
	ExchangeRate decimal.Decimal
}

// CouponRejection explains why a supplied coupon was not applied.
type CouponRejection struct {
	Code   string `json:"code"`
	Reason string `json:"reason"`
	err    error
}

func (r *CouponRejection) Error() string { return r.Code + ": " + r.Reason }
func (r *CouponRejection) Unwrap() error { return r.err }

type ResolvedAmount struct {
	Amount          decimal.Decimal
	Discount        *models.Discount
	CouponRejection *CouponRejection
}
