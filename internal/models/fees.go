package models

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidFeeType = errors.New("unknown fee type")
	ErrInvalidRail    = errors.New("unknown payment rail")
)

// FeeType identifies one of the staged fees a student pays.
type FeeType string

const (
	FeeTypeSelectionProcess FeeType = "selection_process"
	FeeTypeApplicationFee   FeeType = "application_fee"
	FeeTypeScholarshipFee   FeeType = "scholarship_fee"
	FeeTypeI20ControlFee    FeeType = "i20_control_fee"
)

// FeeTypes lists every supported fee type in pipeline order.
var FeeTypes = []FeeType{
	FeeTypeSelectionProcess,
	FeeTypeApplicationFee,
	FeeTypeScholarshipFee,
	FeeTypeI20ControlFee,
}

// ParseFeeType accepts the wire form used in routes and metadata.
func ParseFeeType(s string) (FeeType, error) {
	for _, ft := range FeeTypes {
		if string(ft) == s {
			return ft, nil
		}
	}
	return "", fmt.Errorf("%w %q", ErrInvalidFeeType, s)
}

// RequiresApplication reports whether paying this fee must be linked to an
// application record.
func (f FeeType) RequiresApplication() bool {
	return f == FeeTypeApplicationFee || f == FeeTypeScholarshipFee
}

// Description is the human readable line item label.
func (f FeeType) Description() string {
	switch f {
	case FeeTypeSelectionProcess:
		return "Selection Process Fee"
	case FeeTypeApplicationFee:
		return "Application Fee"
	case FeeTypeScholarshipFee:
		return "Scholarship Fee"
	case FeeTypeI20ControlFee:
		return "I-20 Control Fee"
	default:
		return string(f)
	}
}

// PaymentRail is the processor rail a checkout settles through.
type PaymentRail string

const (
	// RailCard settles in USD.
	RailCard PaymentRail = "card"
	// RailInstantTransfer settles in BRL over PIX and needs an exchange rate.
	RailInstantTransfer PaymentRail = "instant_transfer"
)

func ParsePaymentRail(s string) (PaymentRail, error) {
	switch PaymentRail(s) {
	case RailCard, RailInstantTransfer:
		return PaymentRail(s), nil
	case "":
		return RailCard, nil
	default:
		return "", fmt.Errorf("%w %q", ErrInvalidRail, s)
	}
}

// Currency returns the ISO currency the rail charges in.
func (r PaymentRail) Currency() string {
	if r == RailInstantTransfer {
		return CurrencyBRL
	}
	return CurrencyUSD
}

const (
	CurrencyUSD = "usd"
	CurrencyBRL = "brl"
)

// PricingMode selects which platform price table applies to a user.
type PricingMode string

const (
	PricingLegacy     PricingMode = "legacy"
	PricingSimplified PricingMode = "simplified"
)

func (m PricingMode) Valid() bool {
	return m == PricingLegacy || m == PricingSimplified
}
