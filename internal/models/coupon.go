package models

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type Coupon struct {
	gorm.Model
	// Code is stored upper case; see NormalizeCouponCode.
	Code          string             `gorm:"uniqueIndex;not null"`
	Active        bool               `gorm:"default:true"`
	DiscountType  CouponDiscountType `gorm:"not null"`
	DiscountValue decimal.Decimal    `gorm:"type:numeric(12,2);not null"`
	ValidFrom     *time.Time
	ValidUntil    *time.Time
	// Zero means unlimited.
	MaxUses        int `gorm:"default:0"`
	UsedCount      int `gorm:"not null;default:0"`
	MaxUsesPerUser int `gorm:"default:0"`
	// Comma separated fee types the coupon cannot be used for.
	ExcludedFeeTypes string
}

// NormalizeCouponCode is the stored form of a code. Lookups and writes both
// go through it so the unique index on code is case-insensitive in effect.
func NormalizeCouponCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func (c *Coupon) BeforeSave(tx *gorm.DB) error {
	c.Code = NormalizeCouponCode(c.Code)
	return nil
}

// Excludes reports whether the coupon is barred from the fee type.
func (c *Coupon) Excludes(ft FeeType) bool {
	if c.ExcludedFeeTypes == "" {
		return false
	}
	for _, part := range strings.Split(c.ExcludedFeeTypes, ",") {
		if strings.TrimSpace(part) == string(ft) {
			return true
		}
	}
	return false
}

// CouponUsage is written once per settled checkout that redeemed a coupon.
type CouponUsage struct {
	ID                uint            `gorm:"primarykey"`
	CouponID          uint            `gorm:"index;not null"`
	UserID            uint            `gorm:"index;not null"`
	FeeType           FeeType         `gorm:"not null"`
	ExternalSessionID string          `gorm:"uniqueIndex;not null"`
	DiscountAmount    decimal.Decimal `gorm:"type:numeric(12,2)"`
	CreatedAt         time.Time
}
