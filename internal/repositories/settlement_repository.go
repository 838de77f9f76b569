package repositories

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"scholarpay/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SettlementRepository persists the claim lifecycle and every side effect of
// a settled payment. Each write is idempotent so a retried or taken-over
// settlement can replay all of them.
type SettlementRepository interface {
	FindSettled(ctx context.Context, sessionID string) (*models.SettledSession, error)
	AcquireClaim(ctx context.Context, claim *models.SettlementClaim) (bool, *models.SettlementClaim, error)
	TakeOverClaim(ctx context.Context, claimID uint, staleOwner, newOwner string, now time.Time) (bool, error)
	MarkNotificationsStarted(ctx context.Context, claimID uint, now time.Time) (bool, error)
	CompleteSettlement(ctx context.Context, claimID uint, record *models.SettlementRecord, now time.Time) error

	MarkFeePaid(ctx context.Context, userID uint, ft models.FeeType) error
	MarkApplicationPaid(ctx context.Context, applicationID uint, ft models.FeeType) error
	RecordLedgerEntry(ctx context.Context, entry *models.LedgerEntry) (bool, error)
	RecordCouponUsage(ctx context.Context, code string, usage *models.CouponUsage) (bool, error)
	CreditReferral(ctx context.Context, credit *models.ReferralCredit) (bool, error)
	ClearCart(ctx context.Context, userID uint) error
}

type settlementRepository struct {
	db *gorm.DB
}

func NewSettlementRepository(db *gorm.DB) SettlementRepository {
	return &settlementRepository{db: db}
}

// FindSettled looks for the settlement record first and then a completed
// claim. It returns nil when the session has not settled.
func (r *settlementRepository) FindSettled(ctx context.Context, sessionID string) (*models.SettledSession, error) {
	var record models.SettlementRecord
	err := r.db.WithContext(ctx).
		Where("external_session_id = ?", sessionID).
		First(&record).Error
	if err == nil {
		return &models.SettledSession{ExternalSessionID: sessionID, FeeType: record.FeeType, UserID: record.UserID}, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to check settlement record: %w", err)
	}

	var claim models.SettlementClaim
	err = r.db.WithContext(ctx).
		Where("external_session_id = ? AND status = ?", sessionID, models.ClaimComplete).
		First(&claim).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to check settlement claim: %w", err)
	}
	return &models.SettledSession{ExternalSessionID: sessionID, FeeType: claim.FeeType, UserID: claim.UserID}, nil
}

// AcquireClaim inserts the claim row. When another verifier already holds the
// (session, fee type) pair it returns false with the existing row.
func (r *settlementRepository) AcquireClaim(ctx context.Context, claim *models.SettlementClaim) (bool, *models.SettlementClaim, error) {
	db := r.db.WithContext(ctx)

	res := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "external_session_id"}, {Name: "fee_type"}},
		DoNothing: true,
	}).Create(claim)
	if res.Error != nil && !isUniqueViolation(res.Error) {
		return false, nil, fmt.Errorf("failed to insert claim: %w", res.Error)
	}
	if res.Error == nil && res.RowsAffected == 1 {
		return true, claim, nil
	}

	var existing models.SettlementClaim
	err := db.Where("external_session_id = ? AND fee_type = ?", claim.ExternalSessionID, claim.FeeType).
		First(&existing).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil, ErrClaimNotFound
		}
		return false, nil, fmt.Errorf("failed to read claim: %w", err)
	}
	return false, &existing, nil
}

// TakeOverClaim swaps the owner of a stale processing claim. Only one of
// several concurrent callers naming the same stale owner can win.
func (r *settlementRepository) TakeOverClaim(ctx context.Context, claimID uint, staleOwner, newOwner string, now time.Time) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.SettlementClaim{}).
		Where("id = ? AND owner = ? AND status = ?", claimID, staleOwner, models.ClaimProcessing).
		Updates(map[string]interface{}{"owner": newOwner, "claimed_at": now})
	if res.Error != nil {
		return false, fmt.Errorf("failed to take over claim: %w", res.Error)
	}
	return res.RowsAffected == 1, nil
}

func (r *settlementRepository) MarkNotificationsStarted(ctx context.Context, claimID uint, now time.Time) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.SettlementClaim{}).
		Where("id = ? AND notifications_started_at IS NULL", claimID).
		Update("notifications_started_at", now)
	if res.Error != nil {
		return false, fmt.Errorf("failed to checkpoint notifications: %w", res.Error)
	}
	return res.RowsAffected == 1, nil
}

// CompleteSettlement appends the settlement record and closes the claim in
// one transaction.
func (r *settlementRepository) CompleteSettlement(ctx context.Context, claimID uint, record *models.SettlementRecord, now time.Time) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "external_session_id"}, {Name: "fee_type"}, {Name: "user_id"}},
			DoNothing: true,
		}).Create(record).Error
		if err != nil {
			return fmt.Errorf("failed to append settlement record: %w", err)
		}

		res := tx.Model(&models.SettlementClaim{}).
			Where("id = ?", claimID).
			Updates(map[string]interface{}{"status": models.ClaimComplete, "completed_at": now})
		if res.Error != nil {
			return fmt.Errorf("failed to complete claim: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrClaimNotFound
		}
		return nil
	})
}

func (r *settlementRepository) MarkFeePaid(ctx context.Context, userID uint, ft models.FeeType) error {
	column := models.FeePaidColumn(ft)
	if column == "" {
		return fmt.Errorf("%w: %q", models.ErrInvalidFeeType, ft)
	}
	res := r.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", userID).Update(column, true)
	if res.Error != nil {
		return fmt.Errorf("failed to mark %s paid: %w", ft, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrUserNotFound
	}
	return nil
}

// MarkApplicationPaid sets the fee flag and advances the status under a row
// lock. The status never moves backwards.
func (r *settlementRepository) MarkApplicationPaid(ctx context.Context, applicationID uint, ft models.FeeType) error {
	column, target, ok := models.ApplicationPaymentTransition(ft)
	if !ok {
		return nil
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var app models.Application
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&app, applicationID).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrApplicationNotFound
			}
			return fmt.Errorf("failed to lock application: %w", err)
		}

		next := models.AdvanceStatus(app.Status, target)
		if next != app.Status {
			log.Printf("[settlement] application %d: %s -> %s", app.ID, app.Status, next)
		}
		return tx.Model(&app).Updates(map[string]interface{}{column: true, "status": next}).Error
	})
}

// RecordLedgerEntry returns false when the entry was already recorded.
func (r *settlementRepository) RecordLedgerEntry(ctx context.Context, entry *models.LedgerEntry) (bool, error) {
	db := r.db.WithContext(ctx)

	var n int64
	err := db.Model(&models.LedgerEntry{}).
		Where("user_id = ? AND fee_type = ? AND payment_intent_ref = ?", entry.UserID, entry.FeeType, entry.PaymentIntentRef).
		Count(&n).Error
	if err != nil {
		return false, fmt.Errorf("failed to check ledger: %w", err)
	}
	if n > 0 {
		return false, nil
	}

	if err := db.Create(entry).Error; err != nil {
		if isUniqueViolation(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to record ledger entry: %w", err)
	}
	return true, nil
}

// RecordCouponUsage writes the usage keyed by session and bumps the coupon's
// counter in the same transaction, only when the usage row is new. An
// unknown code is skipped.
func (r *settlementRepository) RecordCouponUsage(ctx context.Context, code string, usage *models.CouponUsage) (bool, error) {
	created := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var coupon models.Coupon
		err := tx.Where("code = ?", models.NormalizeCouponCode(code)).First(&coupon).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrCouponNotFound
			}
			return err
		}
		usage.CouponID = coupon.ID

		res := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "external_session_id"}},
			DoNothing: true,
		}).Create(usage)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}

		created = true
		return tx.Model(&models.Coupon{}).Where("id = ?", coupon.ID).
			Update("used_count", gorm.Expr("used_count + 1")).Error
	})
	if err != nil {
		if errors.Is(err, ErrCouponNotFound) {
			log.Printf("[settlement] coupon %q no longer exists, usage not recorded", code)
			return false, nil
		}
		return false, fmt.Errorf("failed to record coupon usage: %w", err)
	}
	return created, nil
}

// CreditReferral inserts the one-per-referred-user credit and awards the
// referrer's points in the same transaction, only when the credit is new.
func (r *settlementRepository) CreditReferral(ctx context.Context, credit *models.ReferralCredit) (bool, error) {
	created := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "referred_user_id"}},
			DoNothing: true,
		}).Create(credit)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}

		created = true
		return tx.Model(&models.User{}).Where("id = ?", credit.ReferrerID).
			Update("reward_points", gorm.Expr("reward_points + ?", credit.Points)).Error
	})
	if err != nil {
		return false, fmt.Errorf("failed to credit referral: %w", err)
	}
	return created, nil
}

func (r *settlementRepository) ClearCart(ctx context.Context, userID uint) error {
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&models.CartItem{}).Error; err != nil {
		return fmt.Errorf("failed to clear cart: %w", err)
	}
	return nil
}
