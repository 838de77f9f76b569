// Package discount decides which single discount, if any, applies to a
// checkout. Coupons take precedence over referral discounts. Resolution has no
// side effects.
package discount

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"scholarpay/internal/models"
	"scholarpay/internal/repositories"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

type resolver struct {
	coupons   CouponStore
	referrals ReferralStore
	now       func() time.Time
}

func NewResolver(coupons CouponStore, referrals ReferralStore) Resolver {
	return &resolver{coupons: coupons, referrals: referrals, now: time.Now}
}

func (r *resolver) Resolve(ctx context.Context, in ResolveInput) (*ResolvedAmount, error) {
	amount := in.CanonicalAmount
	if amount.IsNegative() {
		return nil, ErrInvalidAmount
	}
	if !in.ProposedAmount.IsZero() && !in.ProposedAmount.Equal(amount) {
		log.Printf("[discount] user %d proposed %s for %s, using server amount %s",
			in.UserID, in.ProposedAmount, in.FeeType, amount)
	}

	out := &ResolvedAmount{Amount: amount}

	if code := strings.TrimSpace(in.CouponCode); code != "" {
		coupon, err := r.validateCoupon(ctx, code, in)
		if err == nil {
			cd := applyCoupon(coupon, amount)
			out.Amount = cd.FinalAmount
			out.Discount = &models.Discount{Kind: models.DiscountKindCoupon, Coupon: cd}
			return out, nil
		}
		if !isRejection(err) {
			return nil, err
		}
		log.Printf("[discount] coupon %q rejected for user %d (%s): %v", code, in.UserID, in.FeeType, err)
		out.CouponRejection = &CouponRejection{Code: code, Reason: err.Error(), err: err}
	}

	if in.ReferralAppliedUpstream {
		return out, nil
	}

	ref, err := r.referrals.FindActiveReferralForUser(ctx, in.UserID)
	if err != nil {
		return nil, fmt.Errorf("lookup referral: %w", err)
	}
	if ref == nil || !ref.Active || ref.OwnerUserID == in.UserID || !ref.DiscountAmount.IsPositive() {
		return out, nil
	}

	off := decimal.Min(ref.DiscountAmount, amount)
	charge := off
	if in.Rail == models.RailInstantTransfer && in.ExchangeRate.IsPositive() {
		charge = off.Mul(in.ExchangeRate).Round(2)
	}
	out.Amount = amount.Sub(off)
	out.Discount = &models.Discount{
		Kind: models.DiscountKindReferral,
		Referral: &models.ReferralDiscount{
			ReferrerID:     ref.OwnerUserID,
			AffiliateCode:  ref.Code,
			DiscountAmount: off,
			ChargeAmount:   charge,
		},
	}
	return out, nil
}

func (r *resolver) validateCoupon(ctx context.Context, code string, in ResolveInput) (*models.Coupon, error) {
	coupon, err := r.coupons.FindCouponByCode(ctx, code)
	if err != nil {
		if errors.Is(err, repositories.ErrCouponNotFound) {
			return nil, ErrCouponNotFound
		}
		return nil, err
	}

	now := r.now()
	switch {
	case !coupon.Active:
		return nil, ErrCouponInactive
	case coupon.ValidFrom != nil && now.Before(*coupon.ValidFrom):
		return nil, ErrCouponNotYetValid
	case coupon.ValidUntil != nil && now.After(*coupon.ValidUntil):
		return nil, ErrCouponExpired
	case coupon.MaxUses > 0 && coupon.UsedCount >= coupon.MaxUses:
		return nil, ErrCouponExhausted
	case coupon.Excludes(in.FeeType):
		return nil, ErrCouponExcluded
	}

	switch coupon.DiscountType {
	case models.CouponPercentage:
		if !coupon.DiscountValue.IsPositive() || coupon.DiscountValue.GreaterThan(hundred) {
			return nil, ErrCouponMalformed
		}
	case models.CouponFixed:
		if !coupon.DiscountValue.IsPositive() {
			return nil, ErrCouponMalformed
		}
	default:
		return nil, ErrCouponMalformed
	}

	if coupon.MaxUsesPerUser > 0 {
		used, err := r.coupons.CountCouponUsesByUser(ctx, coupon.ID, in.UserID)
		if err != nil {
			return nil, fmt.Errorf("count coupon uses: %w", err)
		}
		if used >= int64(coupon.MaxUsesPerUser) {
			return nil, ErrCouponUserLimit
		}
	}
	return coupon, nil
}

// applyCoupon never produces a negative final amount.
func applyCoupon(c *models.Coupon, amount decimal.Decimal) *models.CouponDiscount {
	var final decimal.Decimal
	if c.DiscountType == models.CouponPercentage {
		final = amount.Mul(decimal.NewFromInt(1).Sub(c.DiscountValue.Div(hundred))).Round(2)
	} else {
		final = amount.Sub(c.DiscountValue)
	}
	if final.IsNegative() {
		final = decimal.Zero
	}
	return &models.CouponDiscount{
		Code:           c.Code,
		DiscountType:   c.DiscountType,
		DiscountValue:  c.DiscountValue,
		OriginalAmount: amount,
		DiscountAmount: amount.Sub(final),
		FinalAmount:    final,
	}
}

func isRejection(err error) bool {
	for _, target := range []error{
		ErrCouponNotFound, ErrCouponInactive, ErrCouponNotYetValid, ErrCouponExpired,
		ErrCouponExhausted, ErrCouponUserLimit, ErrCouponExcluded, ErrCouponMalformed,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
