package repositories

import (
	"context"
	"errors"
	"fmt"
	"log"

	"scholarpay/internal/models"

	"gorm.io/gorm"
)

type userRepository struct {
	db          *gorm.DB
	adminUserID uint
}

// NewUserRepository creates a new instance of UserRepository. adminUserID is
// the platform account copied on every settlement notice; zero disables it.
func NewUserRepository(db *gorm.DB, adminUserID uint) UserRepository {
	return &userRepository{
		db:          db,
		adminUserID: adminUserID,
	}
}

func (r *userRepository) GetByID(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).First(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &user, nil
}

func (r *userRepository) GetUserWithPackage(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).Preload("Package").First(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &user, nil
}

func (r *userRepository) FindActiveReferralForUser(ctx context.Context, userID uint) (*models.AffiliateCode, error) {
	user, err := r.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user.UsedReferralCode == "" {
		return nil, nil
	}

	var code models.AffiliateCode
	err = r.db.WithContext(ctx).
		Where("code = ? AND active = ?", user.UsedReferralCode, true).
		First(&code).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get affiliate code: %w", err)
	}
	return &code, nil
}

// Recipients resolves the student, the university behind the application's
// scholarship, the seller whose code the student used, that seller's
// affiliate admin and the platform admin. Parties that cannot be resolved are
// skipped.
func (r *userRepository) Recipients(ctx context.Context, userID uint, applicationID *uint) ([]models.Recipient, error) {
	student, err := r.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	out := []models.Recipient{toRecipient(models.RecipientStudent, student)}
	seen := map[uint]bool{student.ID: true}
	add := func(role models.RecipientRole, id uint) {
		if id == 0 || seen[id] {
			return
		}
		u, err := r.GetByID(ctx, id)
		if err != nil {
			log.Printf("[recipients] skipping %s %d: %v", role, id, err)
			return
		}
		seen[id] = true
		out = append(out, toRecipient(role, u))
	}

	if applicationID != nil {
		var universityID uint
		err := r.db.WithContext(ctx).
			Table("applications").
			Select("scholarships.university_user_id").
			Joins("JOIN scholarships ON scholarships.id = applications.scholarship_id").
			Where("applications.id = ?", *applicationID).
			Scan(&universityID).Error
		if err != nil {
			log.Printf("[recipients] university lookup for application %d failed: %v", *applicationID, err)
		}
		add(models.RecipientUniversity, universityID)
	}

	if student.SellerReferralCode != "" {
		var seller models.Seller
		err := r.db.WithContext(ctx).
			Where("code = ? AND active = ?", student.SellerReferralCode, true).
			First(&seller).Error
		switch {
		case err == nil:
			add(models.RecipientSeller, seller.UserID)
			if seller.AffiliateAdminID != nil {
				add(models.RecipientAffiliateAdmin, *seller.AffiliateAdminID)
			}
		case !errors.Is(err, gorm.ErrRecordNotFound):
			log.Printf("[recipients] seller lookup for %q failed: %v", student.SellerReferralCode, err)
		}
	}

	add(models.RecipientAdmin, r.adminUserID)
	return out, nil
}

func toRecipient(role models.RecipientRole, u *models.User) models.Recipient {
	return models.Recipient{Role: role, UserID: u.ID, Email: u.Email, Name: u.Name}
}
