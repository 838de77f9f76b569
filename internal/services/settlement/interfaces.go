package settlement

import (
	"context"
	"time"

	"scholarpay/internal/models"
)

type Verifier interface {
	Verify(ctx context.Context, req VerifyRequest) (*VerifyResult, error)
}

// ClaimStore owns the processing marker. AcquireClaim relies on a unique
// (session, fee type) constraint; it is the only synchronization between
// verifiers.
type ClaimStore interface {
	// FindSettled returns nil when the session has not settled.
	FindSettled(ctx context.Context, sessionID string) (*models.SettledSession, error)
	AcquireClaim(ctx context.Context, claim *models.SettlementClaim) (bool, *models.SettlementClaim, error)
	TakeOverClaim(ctx context.Context, claimID uint, staleOwner, newOwner string, now time.Time) (bool, error)
	MarkNotificationsStarted(ctx context.Context, claimID uint, now time.Time) (bool, error)
	CompleteSettlement(ctx context.Context, claimID uint, record *models.SettlementRecord, now time.Time) error
}

// EffectStore applies the side effects of a settlement. Every method must be
// safe to call again for the same payment.
type EffectStore interface {
	MarkFeePaid(ctx context.Context, userID uint, ft models.FeeType) error
	MarkApplicationPaid(ctx context.Context, applicationID uint, ft models.FeeType) error
	RecordLedgerEntry(ctx context.Context, entry *models.LedgerEntry) (bool, error)
	RecordCouponUsage(ctx context.Context, code string, usage *models.CouponUsage) (bool, error)
	CreditReferral(ctx context.Context, credit *models.ReferralCredit) (bool, error)
	ClearCart(ctx context.Context, userID uint) error
}

type ReferralLookup interface {
	FindActiveReferralForUser(ctx context.Context, userID uint) (*models.AffiliateCode, error)
}

// SettledCache is an optional shortcut in front of ClaimStore.FindSettled.
type SettledCache interface {
	GetSettled(ctx context.Context, sessionID string) (*models.SettledSession, error)
	MarkSettled(ctx context.Context, settled *models.SettledSession) error
}
