package repositories

import (
	"context"
	"errors"
	"fmt"

	"scholarpay/internal/models"

	"gorm.io/gorm"
)

type CouponRepository interface {
	FindCouponByCode(ctx context.Context, code string) (*models.Coupon, error)
	CountCouponUsesByUser(ctx context.Context, couponID, userID uint) (int64, error)
}

type couponRepository struct {
	db *gorm.DB
}

func NewCouponRepository(db *gorm.DB) CouponRepository {
	return &couponRepository{db: db}
}

// FindCouponByCode matches codes case-insensitively; stored codes are
// normalized on save.
func (r *couponRepository) FindCouponByCode(ctx context.Context, code string) (*models.Coupon, error) {
	var c models.Coupon
	err := r.db.WithContext(ctx).Where("code = ?", models.NormalizeCouponCode(code)).First(&c).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCouponNotFound
		}
		return nil, fmt.Errorf("failed to get coupon: %w", err)
	}
	return &c, nil
}

func (r *couponRepository) CountCouponUsesByUser(ctx context.Context, couponID, userID uint) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&models.CouponUsage{}).
		Where("coupon_id = ? AND user_id = ?", couponID, userID).
		Count(&n).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count coupon usage: %w", err)
	}
	return n, nil
}
