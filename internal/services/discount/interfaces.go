package discount

import (
	"context"

	"scholarpay/internal/models"
)

// CouponStore is read-only; usage is recorded by the settlement verifier.
type CouponStore interface {
	// FindCouponByCode returns repositories.ErrCouponNotFound when no coupon
	// matches.
	FindCouponByCode(ctx context.Context, code string) (*models.Coupon, error)
	CountCouponUsesByUser(ctx context.Context, couponID, userID uint) (int64, error)
}

type ReferralStore interface {
	// FindActiveReferralForUser returns the active affiliate code the user
	// signed up with, or nil when there is none.
	FindActiveReferralForUser(ctx context.Context, userID uint) (*models.AffiliateCode, error)
}

type Resolver interface {
	Resolve(ctx context.Context, in ResolveInput) (*ResolvedAmount, error)
}
