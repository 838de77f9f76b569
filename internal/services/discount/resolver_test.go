package discount

import (
	"context"
	"errors"
	"testing"
	"time"

	"scholarpay/internal/models"
	"scholarpay/internal/repositories"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockCouponStore struct {
	mock.Mock
}

func (m *MockCouponStore) FindCouponByCode(ctx context.Context, code string) (*models.Coupon, error) {
	args := m.Called(ctx, code)
	c, _ := args.Get(0).(*models.Coupon)
	return c, args.Error(1)
}

func (m *MockCouponStore) CountCouponUsesByUser(ctx context.Context, couponID, userID uint) (int64, error) {
	args := m.Called(ctx, couponID, userID)
	return args.Get(0).(int64), args.Error(1)
}

type MockReferralStore struct {
	mock.Mock
}

func (m *MockReferralStore) FindActiveReferralForUser(ctx context.Context, userID uint) (*models.AffiliateCode, error) {
	args := m.Called(ctx, userID)
	a, _ := args.Get(0).(*models.AffiliateCode)
	return a, args.Error(1)
}

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

var fixedNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func newTestResolver(c *MockCouponStore, r *MockReferralStore) *resolver {
	return &resolver{coupons: c, referrals: r, now: func() time.Time { return fixedNow }}
}

func referral() *models.AffiliateCode {
	return &models.AffiliateCode{Code: "MATR50", OwnerUserID: 77, Active: true, DiscountAmount: d("50")}
}

func TestResolve_Precedence(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name      string
		coupon    *models.Coupon
		couponErr error
		code      string
		upstream  bool
		wantKind  models.DiscountKind
		wantTotal string
		rejected  bool
	}{
		{
			name:      "valid coupon wins over referral",
			code:      "SPRING",
			coupon:    &models.Coupon{Code: "SPRING", Active: true, DiscountType: models.CouponFixed, DiscountValue: d("100")},
			wantKind:  models.DiscountKindCoupon,
			wantTotal: "300",
		},
		{
			name:      "rejected coupon falls through to referral",
			code:      "OLD",
			coupon:    &models.Coupon{Code: "OLD", Active: false, DiscountType: models.CouponFixed, DiscountValue: d("100")},
			wantKind:  models.DiscountKindReferral,
			wantTotal: "350",
			rejected:  true,
		},
		{
			name:      "unknown coupon falls through to referral",
			code:      "NOPE",
			couponErr: repositories.ErrCouponNotFound,
			wantKind:  models.DiscountKindReferral,
			wantTotal: "350",
			rejected:  true,
		},
		{
			name:      "no coupon uses referral",
			wantKind:  models.DiscountKindReferral,
			wantTotal: "350",
		},
		{
			name:      "referral already applied upstream",
			upstream:  true,
			wantTotal: "400",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			coupons := new(MockCouponStore)
			referrals := new(MockReferralStore)
			if tt.code != "" {
				coupons.On("FindCouponByCode", mock.Anything, tt.code).Return(tt.coupon, tt.couponErr)
			}
			referrals.On("FindActiveReferralForUser", mock.Anything, uint(1)).Return(referral(), nil).Maybe()

			out, err := newTestResolver(coupons, referrals).Resolve(ctx, ResolveInput{
				UserID:                  1,
				FeeType:                 models.FeeTypeSelectionProcess,
				CanonicalAmount:         d("400"),
				CouponCode:              tt.code,
				ReferralAppliedUpstream: tt.upstream,
				Rail:                    models.RailCard,
			})
			require.NoError(t, err)
			assert.True(t, out.Amount.Equal(d(tt.wantTotal)), "amount %s", out.Amount)
			assert.Equal(t, tt.rejected, out.CouponRejection != nil)

			if tt.wantKind == "" {
				assert.Nil(t, out.Discount)
				referrals.AssertNotCalled(t, "FindActiveReferralForUser", mock.Anything, mock.Anything)
				return
			}
			require.NotNil(t, out.Discount)
			assert.Equal(t, tt.wantKind, out.Discount.Kind)
			if tt.wantKind == models.DiscountKindCoupon {
				assert.Nil(t, out.Discount.Referral)
				referrals.AssertNotCalled(t, "FindActiveReferralForUser", mock.Anything, mock.Anything)
			} else {
				assert.Nil(t, out.Discount.Coupon)
			}
		})
	}
}

func TestResolve_CouponRules(t *testing.T) {
	ctx := context.Background()
	past := fixedNow.Add(-24 * time.Hour)
	future := fixedNow.Add(24 * time.Hour)

	tests := []struct {
		name     string
		coupon   models.Coupon
		userUses int64
		wantErr  error
	}{
		{"not yet valid", models.Coupon{ValidFrom: &future}, 0, ErrCouponNotYetValid},
		{"expired", models.Coupon{ValidUntil: &past}, 0, ErrCouponExpired},
		{"global cap reached", models.Coupon{MaxUses: 10, UsedCount: 10}, 0, ErrCouponExhausted},
		{"excluded fee", models.Coupon{ExcludedFeeTypes: "i20_control_fee, scholarship_fee"}, 0, ErrCouponExcluded},
		{"per user cap", models.Coupon{MaxUsesPerUser: 1}, 1, ErrCouponUserLimit},
		{"within window", models.Coupon{ValidFrom: &past, ValidUntil: &future, MaxUses: 10, UsedCount: 9, MaxUsesPerUser: 2}, 1, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := tt.coupon
			c.ID = 5
			c.Code = "TEST"
			c.Active = true
			c.DiscountType = models.CouponPercentage
			c.DiscountValue = d("10")

			coupons := new(MockCouponStore)
			coupons.On("FindCouponByCode", mock.Anything, "TEST").Return(&c, nil)
			coupons.On("CountCouponUsesByUser", mock.Anything, uint(5), uint(1)).Return(tt.userUses, nil).Maybe()
			referrals := new(MockReferralStore)
			referrals.On("FindActiveReferralForUser", mock.Anything, uint(1)).Return(nil, nil).Maybe()

			out, err := newTestResolver(coupons, referrals).Resolve(ctx, ResolveInput{
				UserID:          1,
				FeeType:         models.FeeTypeScholarshipFee,
				CanonicalAmount: d("550"),
				CouponCode:      "TEST",
				Rail:            models.RailCard,
			})
			require.NoError(t, err)

			if tt.wantErr == nil {
				require.NotNil(t, out.Discount)
				assert.True(t, out.Amount.Equal(d("495")), "amount %s", out.Amount)
				return
			}
			require.NotNil(t, out.CouponRejection)
			assert.True(t, errors.Is(out.CouponRejection, tt.wantErr))
			assert.Nil(t, out.Discount)
			assert.True(t, out.Amount.Equal(d("550")))
		})
	}
}

func TestApplyCoupon_Floor(t *testing.T) {
	tests := []struct {
		name      string
		kind      models.CouponDiscountType
		value     string
		amount    string
		wantFinal string
		wantOff   string
	}{
		{"fixed larger than amount", models.CouponFixed, "500", "350", "0", "350"},
		{"fixed partial", models.CouponFixed, "25.50", "350", "324.50", "25.50"},
		{"percentage", models.CouponPercentage, "15", "900", "765", "135"},
		{"full percentage", models.CouponPercentage, "100", "900", "0", "900"},
		{"percentage rounds to cents", models.CouponPercentage, "33", "10", "6.70", "3.30"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cd := applyCoupon(&models.Coupon{Code: "X", DiscountType: tt.kind, DiscountValue: d(tt.value)}, d(tt.amount))
			assert.True(t, cd.FinalAmount.Equal(d(tt.wantFinal)), "final %s", cd.FinalAmount)
			assert.True(t, cd.DiscountAmount.Equal(d(tt.wantOff)), "off %s", cd.DiscountAmount)
			assert.False(t, cd.FinalAmount.IsNegative())
			assert.True(t, cd.OriginalAmount.Sub(cd.DiscountAmount).Equal(cd.FinalAmount))
		})
	}
}

func TestResolve_Referral(t *testing.T) {
	ctx := context.Background()

	t.Run("reported in charge currency for instant transfer", func(t *testing.T) {
		referrals := new(MockReferralStore)
		referrals.On("FindActiveReferralForUser", mock.Anything, uint(1)).Return(referral(), nil)

		out, err := newTestResolver(new(MockCouponStore), referrals).Resolve(ctx, ResolveInput{
			UserID:          1,
			FeeType:         models.FeeTypeSelectionProcess,
			CanonicalAmount: d("350"),
			Rail:            models.RailInstantTransfer,
			ExchangeRate:    d("5.6"),
		})
		require.NoError(t, err)
		assert.True(t, out.Amount.Equal(d("300")))
		require.NotNil(t, out.Discount.Referral)
		assert.Equal(t, uint(77), out.Discount.Referral.ReferrerID)
		assert.True(t, out.Discount.Referral.DiscountAmount.Equal(d("50")))
		assert.True(t, out.Discount.Referral.ChargeAmount.Equal(d("280")))
	})

	t.Run("never below zero", func(t *testing.T) {
		referrals := new(MockReferralStore)
		referrals.On("FindActiveReferralForUser", mock.Anything, uint(1)).Return(referral(), nil)

		out, err := newTestResolver(new(MockCouponStore), referrals).Resolve(ctx, ResolveInput{
			UserID:          1,
			CanonicalAmount: d("20"),
			Rail:            models.RailCard,
		})
		require.NoError(t, err)
		assert.True(t, out.Amount.IsZero())
		assert.True(t, out.Discount.Referral.DiscountAmount.Equal(d("20")))
	})

	t.Run("self referral ignored", func(t *testing.T) {
		own := referral()
		own.OwnerUserID = 1
		referrals := new(MockReferralStore)
		referrals.On("FindActiveReferralForUser", mock.Anything, uint(1)).Return(own, nil)

		out, err := newTestResolver(new(MockCouponStore), referrals).Resolve(ctx, ResolveInput{
			UserID:          1,
			CanonicalAmount: d("350"),
			Rail:            models.RailCard,
		})
		require.NoError(t, err)
		assert.Nil(t, out.Discount)
	})

	t.Run("store failure is surfaced", func(t *testing.T) {
		referrals := new(MockReferralStore)
		referrals.On("FindActiveReferralForUser", mock.Anything, uint(1)).Return(nil, errors.New("db down"))

		_, err := newTestResolver(new(MockCouponStore), referrals).Resolve(ctx, ResolveInput{
			UserID:          1,
			CanonicalAmount: d("350"),
		})
		assert.Error(t, err)
	})
}
