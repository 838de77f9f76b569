package repositories

import (
	"context"
	"errors"
	"fmt"

	"scholarpay/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ApplicationRepository interface {
	GetScholarship(ctx context.Context, id uint) (*models.Scholarship, error)
	GetApplication(ctx context.Context, id uint) (*models.Application, error)
	UpsertPendingApplication(ctx context.Context, studentID, scholarshipID uint) (*models.Application, error)
}

type applicationRepository struct {
	db *gorm.DB
}

func NewApplicationRepository(db *gorm.DB) ApplicationRepository {
	return &applicationRepository{db: db}
}

func (r *applicationRepository) GetScholarship(ctx context.Context, id uint) (*models.Scholarship, error) {
	var s models.Scholarship
	if err := r.db.WithContext(ctx).First(&s, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrScholarshipNotFound
		}
		return nil, fmt.Errorf("failed to get scholarship: %w", err)
	}
	return &s, nil
}

func (r *applicationRepository) GetApplication(ctx context.Context, id uint) (*models.Application, error) {
	var app models.Application
	if err := r.db.WithContext(ctx).First(&app, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrApplicationNotFound
		}
		return nil, fmt.Errorf("failed to get application: %w", err)
	}
	return &app, nil
}

// UpsertPendingApplication is safe under concurrent checkouts for the same
// pair: the insert is a no-op on conflict and the row is read back.
func (r *applicationRepository) UpsertPendingApplication(ctx context.Context, studentID, scholarshipID uint) (*models.Application, error) {
	db := r.db.WithContext(ctx)

	app := models.Application{
		StudentID:     studentID,
		ScholarshipID: scholarshipID,
		Status:        models.ApplicationPending,
	}
	err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "student_id"}, {Name: "scholarship_id"}},
		DoNothing: true,
	}).Create(&app).Error
	if err != nil {
		return nil, fmt.Errorf("failed to create application: %w", err)
	}
	if app.ID != 0 {
		return &app, nil
	}

	var existing models.Application
	err = db.Where("student_id = ? AND scholarship_id = ?", studentID, scholarshipID).First(&existing).Error
	if err != nil {
		return nil, fmt.Errorf("failed to read application: %w", err)
	}
	return &existing, nil
}
