package checkout

import (
	"context"

	"scholarpay/internal/models"
)

// Service prices fees and opens processor checkouts for them.
type Service interface {
	Quote(ctx context.Context, req Request) (*Quote, error)
	BuildAndSubmit(ctx context.Context, req Request) (*Result, error)
}

type UserStore interface {
	// GetUserWithPackage returns repositories.ErrUserNotFound when the user
	// does not exist.
	GetUserWithPackage(ctx context.Context, userID uint) (*models.User, error)
}

type ScholarshipStore interface {
	GetScholarship(ctx context.Context, id uint) (*models.Scholarship, error)
}

type ApplicationStore interface {
	GetApplication(ctx context.Context, id uint) (*models.Application, error)
	// UpsertPendingApplication returns the existing application for the
	// (student, scholarship) pair or creates a pending one.
	UpsertPendingApplication(ctx context.Context, studentID, scholarshipID uint) (*models.Application, error)
}
