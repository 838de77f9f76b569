package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// AffiliateCode is a referral code owned by a referrer. Students who sign up
// with an active code get DiscountAmount (USD) off their checkout.
type AffiliateCode struct {
	gorm.Model
	Code           string          `gorm:"uniqueIndex;not null"`
	OwnerUserID    uint            `gorm:"index;not null"`
	Active         bool            `gorm:"default:true"`
	DiscountAmount decimal.Decimal `gorm:"type:numeric(12,2);not null"`
}

// ReferralCredit rewards a referrer once per referred student.
type ReferralCredit struct {
	ID                uint   `gorm:"primarykey"`
	ReferredUserID    uint   `gorm:"uniqueIndex;not null"`
	ReferrerID        uint   `gorm:"index;not null"`
	AffiliateCode     string `gorm:"not null"`
	Points            int64  `gorm:"not null"`
	ExternalSessionID string `gorm:"not null"`
	CreatedAt         time.Time
}
