package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// DiscountKind tags which discount variant was applied to a checkout.
type DiscountKind string

const (
	DiscountKindCoupon   DiscountKind = "coupon"
	DiscountKindReferral DiscountKind = "referral"
)

// CouponDiscountType is how a coupon's value is interpreted.
type CouponDiscountType string

const (
	CouponPercentage CouponDiscountType = "percentage"
	CouponFixed      CouponDiscountType = "fixed"
)

type CouponDiscount struct {
	Code           string             `json:"code"`
	DiscountType   CouponDiscountType `json:"discount_type"`
	DiscountValue  decimal.Decimal    `json:"discount_value"`
	OriginalAmount decimal.Decimal    `json:"original_amount"`
	DiscountAmount decimal.Decimal    `json:"discount_amount"`
	FinalAmount    decimal.Decimal    `json:"final_amount"`
}

type ReferralDiscount struct {
	ReferrerID     uint            `json:"referrer_id"`
	AffiliateCode  string          `json:"affiliate_code"`
	DiscountAmount decimal.Decimal `json:"discount_amount"`
	// ChargeAmount is DiscountAmount expressed in the charge currency.
	ChargeAmount decimal.Decimal `json:"charge_amount"`
}

// Discount holds at most one of the two variants.
type Discount struct {
	Kind     DiscountKind      `json:"kind"`
	Coupon   *CouponDiscount   `json:"coupon,omitempty"`
	Referral *ReferralDiscount `json:"referral,omitempty"`
}

// CheckoutIntent is one attempt to collect a fee.
type CheckoutIntent struct {
	UserID                uint            `json:"user_id"`
	FeeType               FeeType         `json:"fee_type"`
	Rail                  PaymentRail     `json:"rail"`
	NetAmount             decimal.Decimal `json:"net_amount"`
	Currency              string          `json:"currency"`
	GrossAmountMinorUnits int64           `json:"gross_amount_minor_units"`
	ExchangeRate          decimal.Decimal `json:"exchange_rate"`
	Discount              *Discount       `json:"discount,omitempty"`
	ExternalSessionID     string          `json:"external_session_id"`
	ApplicationID         *uint           `json:"application_id,omitempty"`
	CreatedAt             time.Time       `json:"created_at"`
}

// GrossAmount is the charged amount in major units.
func (i *CheckoutIntent) GrossAmount() decimal.Decimal {
	return decimal.New(i.GrossAmountMinorUnits, -2)
}
