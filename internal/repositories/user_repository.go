package repositories

import (
	"context"

	"scholarpay/internal/models"
)

// UserRepository reads the student side of a checkout.
type UserRepository interface {
	// GetByID retrieves a user by their ID
	GetByID(ctx context.Context, id uint) (*models.User, error)

	// GetUserWithPackage retrieves a user with its fee package preloaded
	GetUserWithPackage(ctx context.Context, id uint) (*models.User, error)

	// FindActiveReferralForUser returns the active affiliate code the user
	// signed up with, or nil
	FindActiveReferralForUser(ctx context.Context, userID uint) (*models.AffiliateCode, error)

	// Recipients lists everyone notified when the user settles a payment
	Recipients(ctx context.Context, userID uint, applicationID *uint) ([]models.Recipient, error)
}
