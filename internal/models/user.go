package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type User struct {
	gorm.Model
	Email       string      `gorm:"uniqueIndex;not null"`
	Name        string      `gorm:"not null"`
	Role        string      `gorm:"default:'student'"`
	PricingMode PricingMode `gorm:"default:''"` // empty means the configured default
	Dependents  int         `gorm:"default:0"`
	PackageID   *uint
	Package     *FeePackage `gorm:"foreignKey:PackageID"`

	// Affiliate code the student signed up with, if any.
	UsedReferralCode string `gorm:"index"`
	// Seller code the student was brought in by, if any.
	SellerReferralCode string `gorm:"index"`
	RewardPoints       int64  `gorm:"not null;default:0"`

	HasPaidSelectionProcessFee bool `gorm:"default:false"`
	HasPaidApplicationFee      bool `gorm:"default:false"`
	HasPaidScholarshipFee      bool `gorm:"default:false"`
	HasPaidI20ControlFee       bool `gorm:"default:false"`
}

// FeePaidColumn is the users column flipped when the given fee settles.
func FeePaidColumn(ft FeeType) string {
	switch ft {
	case FeeTypeSelectionProcess:
		return "has_paid_selection_process_fee"
	case FeeTypeApplicationFee:
		return "has_paid_application_fee"
	case FeeTypeScholarshipFee:
		return "has_paid_scholarship_fee"
	case FeeTypeI20ControlFee:
		return "has_paid_i20_control_fee"
	default:
		return ""
	}
}

// FeePackage overrides platform fees for the users assigned to it.
type FeePackage struct {
	gorm.Model
	Name                string              `gorm:"uniqueIndex;not null"`
	SelectionProcessFee decimal.NullDecimal `gorm:"type:numeric(12,2)"`
	ScholarshipFee      decimal.NullDecimal `gorm:"type:numeric(12,2)"`
	I20ControlFee       decimal.NullDecimal `gorm:"type:numeric(12,2)"`
}

// Override returns the package amount for a fee type, if it sets one.
func (p *FeePackage) Override(ft FeeType) (decimal.Decimal, bool) {
	var v decimal.NullDecimal
	switch ft {
	case FeeTypeSelectionProcess:
		v = p.SelectionProcessFee
	case FeeTypeScholarshipFee:
		v = p.ScholarshipFee
	case FeeTypeI20ControlFee:
		v = p.I20ControlFee
	}
	if !v.Valid {
		return decimal.Zero, false
	}
	return v.Decimal, true
}

type Scholarship struct {
	gorm.Model
	Title            string `gorm:"not null"`
	UniversityUserID uint   `gorm:"index"`
	// ApplicationFeeAmount overrides the platform application fee.
	ApplicationFeeAmount decimal.NullDecimal `gorm:"type:numeric(12,2)"`
}

type Seller struct {
	gorm.Model
	Code             string `gorm:"uniqueIndex;not null"`
	UserID           uint   `gorm:"not null"`
	AffiliateAdminID *uint
	Active           bool `gorm:"default:true"`
}

type CartItem struct {
	ID            uint `gorm:"primarykey"`
	UserID        uint `gorm:"index;not null"`
	ScholarshipID uint `gorm:"not null"`
	CreatedAt     time.Time
}
