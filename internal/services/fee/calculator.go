// Package fee converts between the net amount the platform must receive and
// the gross amount charged to the payer on each payment rail.
//
// Card rates are deliberately conservative (they cover international card
// surcharges). Instant transfer rates combine the processor's PIX processing
// fee and its currency conversion fee.
package fee

import (
	"errors"
	"fmt"

	"scholarpay/internal/models"

	"github.com/shopspring/decimal"
)

var (
	ErrInvalidAmount = errors.New("amount must be positive")
	ErrInvalidRate   = errors.New("exchange rate must be positive")
	ErrUnknownRail   = errors.New("unknown payment rail")
)

var (
	CardPercentFee = decimal.RequireFromString("0.039")
	CardFixedFee   = decimal.RequireFromString("0.30")

	PixProcessingFee = decimal.RequireFromString("0.0119")
	PixConversionFee = decimal.RequireFromString("0.006")
	PixPercentFee    = PixProcessingFee.Add(PixConversionFee)

	one     = decimal.NewFromInt(1)
	hundred = decimal.NewFromInt(100)
)

// Calculator is stateless; the exchange rate is always passed in.
type Calculator struct{}

func NewCalculator() *Calculator {
	return &Calculator{}
}

// GrossForNet returns the amount to charge, in minor units of the rail's
// currency, so that net USD remains after the processor's fees. The gross is
// rounded up to the cent so the platform never under-recovers.
func (c *Calculator) GrossForNet(net decimal.Decimal, rail models.PaymentRail, exchangeRate decimal.Decimal) (int64, error) {
	if !net.IsPositive() {
		return 0, ErrInvalidAmount
	}

	var gross decimal.Decimal
	switch rail {
	case models.RailCard:
		gross = net.Add(CardFixedFee).Div(one.Sub(CardPercentFee))
	case models.RailInstantTransfer:
		if !exchangeRate.IsPositive() {
			return 0, ErrInvalidRate
		}
		netLocal := net.Mul(exchangeRate)
		gross = netLocal.Div(one.Sub(PixPercentFee))
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownRail, rail)
	}

	return gross.RoundCeil(2).Mul(hundred).IntPart(), nil
}

// ExtractFee returns the processor fee contained in a gross amount (major
// units of the rail's currency). Used for reporting.
func (c *Calculator) ExtractFee(gross decimal.Decimal, rail models.PaymentRail) (decimal.Decimal, error) {
	switch rail {
	case models.RailCard:
		return gross.Mul(CardPercentFee).Add(CardFixedFee), nil
	case models.RailInstantTransfer:
		return gross.Mul(PixPercentFee), nil
	default:
		return decimal.Zero, fmt.Errorf("%w: %q", ErrUnknownRail, rail)
	}
}

// ApplyMinimum clamps a net amount to the platform minimum charge. Callers
// run it before GrossForNet; the calculator itself never clamps.
func ApplyMinimum(net, minimum decimal.Decimal) decimal.Decimal {
	if net.LessThan(minimum) {
		return minimum
	}
	return net
}

// MinorToMajor converts minor units back to a two-decimal amount.
func MinorToMajor(minor int64) decimal.Decimal {
	return decimal.New(minor, -2)
}
