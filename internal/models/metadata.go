package models

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"
)

// Processor metadata keys. The bag is the only state carried from checkout
// to settlement, so every key here must survive a round trip through the
// processor as a plain string.
const (
	MetaUserID        = "user_id"
	MetaFeeType       = "fee_type"
	MetaApplicationID = "application_id"
	MetaNetAmount     = "net_amount"
	MetaGrossAmount   = "gross_amount"
	MetaRail          = "rail"
	MetaExchangeRate  = "exchange_rate"
	MetaCurrency      = "currency"

	MetaDiscountKind         = "discount_kind"
	MetaCouponCode           = "coupon_code"
	MetaCouponDiscountType   = "coupon_discount_type"
	MetaCouponDiscountValue  = "coupon_discount_value"
	MetaCouponOriginalAmount = "coupon_original_amount"
	MetaCouponDiscount       = "coupon_discount"
	MetaReferralCode         = "referral_code"
	MetaReferrerID           = "referrer_id"
	MetaReferralDiscount     = "referral_discount"
	MetaReferralChargeAmount = "referral_charge_discount"
)

var ErrMalformedMetadata = errors.New("malformed checkout metadata")

// EncodeMetadata writes the intent into a processor metadata bag. extra
// entries are copied first so they can never shadow the intent's own keys.
func (i *CheckoutIntent) EncodeMetadata(extra map[string]string) map[string]string {
	m := make(map[string]string, len(extra)+16)
	for k, v := range extra {
		m[k] = v
	}

	m[MetaUserID] = strconv.FormatUint(uint64(i.UserID), 10)
	m[MetaFeeType] = string(i.FeeType)
	m[MetaRail] = string(i.Rail)
	m[MetaCurrency] = i.Currency
	m[MetaNetAmount] = i.NetAmount.StringFixed(2)
	m[MetaGrossAmount] = strconv.FormatInt(i.GrossAmountMinorUnits, 10)
	m[MetaExchangeRate] = i.ExchangeRate.String()
	if i.ApplicationID != nil {
		m[MetaApplicationID] = strconv.FormatUint(uint64(*i.ApplicationID), 10)
	}

	if i.Discount == nil {
		return m
	}
	m[MetaDiscountKind] = string(i.Discount.Kind)
	if c := i.Discount.Coupon; c != nil {
		m[MetaCouponCode] = c.Code
		m[MetaCouponDiscountType] = string(c.DiscountType)
		m[MetaCouponDiscountValue] = c.DiscountValue.String()
		m[MetaCouponOriginalAmount] = c.OriginalAmount.StringFixed(2)
		m[MetaCouponDiscount] = c.DiscountAmount.StringFixed(2)
	}
	if r := i.Discount.Referral; r != nil {
		m[MetaReferralCode] = r.AffiliateCode
		m[MetaReferrerID] = strconv.FormatUint(uint64(r.ReferrerID), 10)
		m[MetaReferralDiscount] = r.DiscountAmount.StringFixed(2)
		m[MetaReferralChargeAmount] = r.ChargeAmount.StringFixed(2)
	}
	return m
}

// DecodeIntentMetadata rebuilds the intent from a metadata bag written by
// EncodeMetadata.
func DecodeIntentMetadata(sessionID string, m map[string]string) (*CheckoutIntent, error) {
	userID, err := metaUint(m, MetaUserID, true)
	if err != nil {
		return nil, err
	}
	ft, err := ParseFeeType(m[MetaFeeType])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedMetadata, err)
	}
	rail, err := ParsePaymentRail(m[MetaRail])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedMetadata, err)
	}
	net, err := metaDecimal(m, MetaNetAmount, true)
	if err != nil {
		return nil, err
	}
	gross, err := strconv.ParseInt(m[MetaGrossAmount], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformedMetadata, MetaGrossAmount, err)
	}
	rate, err := metaDecimal(m, MetaExchangeRate, false)
	if err != nil {
		return nil, err
	}
	if rate.IsZero() {
		rate = decimal.NewFromInt(1)
	}

	intent := &CheckoutIntent{
		UserID:                userID,
		FeeType:               ft,
		Rail:                  rail,
		NetAmount:             net,
		Currency:              m[MetaCurrency],
		GrossAmountMinorUnits: gross,
		ExchangeRate:          rate,
		ExternalSessionID:     sessionID,
	}
	if intent.Currency == "" {
		intent.Currency = rail.Currency()
	}

	appID, err := metaUint(m, MetaApplicationID, false)
	if err != nil {
		return nil, err
	}
	if appID != 0 {
		intent.ApplicationID = &appID
	}

	switch DiscountKind(m[MetaDiscountKind]) {
	case DiscountKindCoupon:
		value, err := metaDecimal(m, MetaCouponDiscountValue, false)
		if err != nil {
			return nil, err
		}
		original, err := metaDecimal(m, MetaCouponOriginalAmount, false)
		if err != nil {
			return nil, err
		}
		off, err := metaDecimal(m, MetaCouponDiscount, true)
		if err != nil {
			return nil, err
		}
		intent.Discount = &Discount{Kind: DiscountKindCoupon, Coupon: &CouponDiscount{
			Code:           m[MetaCouponCode],
			DiscountType:   CouponDiscountType(m[MetaCouponDiscountType]),
			DiscountValue:  value,
			OriginalAmount: original,
			DiscountAmount: off,
			FinalAmount:    decimal.Max(original.Sub(off), decimal.Zero),
		}}
	case DiscountKindReferral:
		referrer, err := metaUint(m, MetaReferrerID, true)
		if err != nil {
			return nil, err
		}
		off, err := metaDecimal(m, MetaReferralDiscount, false)
		if err != nil {
			return nil, err
		}
		charge, err := metaDecimal(m, MetaReferralChargeAmount, false)
		if err != nil {
			return nil, err
		}
		intent.Discount = &Discount{Kind: DiscountKindReferral, Referral: &ReferralDiscount{
			ReferrerID:     referrer,
			AffiliateCode:  m[MetaReferralCode],
			DiscountAmount: off,
			ChargeAmount:   charge,
		}}
	}
	return intent, nil
}

func metaUint(m map[string]string, key string, required bool) (uint, error) {
	v, ok := m[key]
	if !ok || v == "" {
		if required {
			return 0, fmt.Errorf("%w: missing %s", ErrMalformedMetadata, key)
		}
		return 0, nil
	}
	n, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %v", ErrMalformedMetadata, key, err)
	}
	return uint(n), nil
}

func metaDecimal(m map[string]string, key string, required bool) (decimal.Decimal, error) {
	v, ok := m[key]
	if !ok || v == "" {
		if required {
			return decimal.Zero, fmt.Errorf("%w: missing %s", ErrMalformedMetadata, key)
		}
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(v)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %s: %v", ErrMalformedMetadata, key, err)
	}
	return d, nil
}
