package discount

import "errors"

var (
	ErrInvalidAmount = errors.New("amount must not be negative")

	// Coupon rejections. The resolver never returns these; they are reported
	// through CouponRejection so checkout can continue without the coupon.
	ErrCouponNotFound    = errors.New("coupon not found")
	ErrCouponInactive    = errors.New("coupon is inactive")
	ErrCouponNotYetValid = errors.New("coupon is not valid yet")
	ErrCouponExpired     = errors.New("coupon has expired")
	ErrCouponExhausted   = errors.New("coupon usage limit reached")
	ErrCouponUserLimit   = errors.New("coupon already used the maximum number of times by this user")
	ErrCouponExcluded    = errors.New("coupon does not apply to this fee")
	ErrCouponMalformed   = errors.New("coupon has an invalid discount value")
)
