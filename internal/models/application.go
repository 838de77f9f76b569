package models

import "gorm.io/gorm"

type ApplicationStatus string

const (
	ApplicationPending     ApplicationStatus = "pending"
	ApplicationUnderReview ApplicationStatus = "under_review"
	ApplicationApproved    ApplicationStatus = "approved"
	ApplicationEnrolled    ApplicationStatus = "enrolled"
	ApplicationRejected    ApplicationStatus = "rejected"
)

var applicationStatusRank = map[ApplicationStatus]int{
	ApplicationPending:     1,
	ApplicationUnderReview: 2,
	ApplicationApproved:    3,
	ApplicationEnrolled:    4,
}

// AdvanceStatus returns the status an application should hold after moving
// toward target. It never moves backwards and never leaves a terminal
// rejection.
func AdvanceStatus(current, target ApplicationStatus) ApplicationStatus {
	if current == ApplicationRejected {
		return current
	}
	if applicationStatusRank[target] > applicationStatusRank[current] {
		return target
	}
	return current
}

// Application links a student to a scholarship. (StudentID, ScholarshipID) is
// the natural key used for idempotent creation.
type Application struct {
	gorm.Model
	StudentID            uint              `gorm:"not null;uniqueIndex:idx_application_student_scholarship"`
	ScholarshipID        uint              `gorm:"not null;uniqueIndex:idx_application_student_scholarship"`
	Status               ApplicationStatus `gorm:"not null;default:'pending'"`
	IsApplicationFeePaid bool              `gorm:"default:false"`
	IsScholarshipFeePaid bool              `gorm:"default:false"`
}

// ApplicationPaymentTransition describes how an application changes when a fee
// settles. ok is false for fees that do not touch applications.
func ApplicationPaymentTransition(ft FeeType) (column string, target ApplicationStatus, ok bool) {
	switch ft {
	case FeeTypeApplicationFee:
		return "is_application_fee_paid", ApplicationUnderReview, true
	case FeeTypeScholarshipFee:
		return "is_scholarship_fee_paid", ApplicationPending, true
	default:
		return "", "", false
	}
}
