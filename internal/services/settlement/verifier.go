// Package settlement confirms processor payments and applies their side
// effects exactly once, no matter how many times or how concurrently the same
// session is verified.
//
// A session moves Initiated -> ProcessorPaid -> ClaimAcquired -> Settled. The
// claim row is the only lock. Every side effect after it is idempotent, so a
// claim whose owner died can be taken over and replayed from the start.
package settlement

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"scholarpay/internal/models"
	"scholarpay/internal/services/fee"
	"scholarpay/internal/services/metrics"
	"scholarpay/internal/services/notification"
	"scholarpay/internal/services/processor"

	"github.com/google/uuid"
)

type Dependencies struct {
	Processor processor.Processor
	Claims    ClaimStore
	Effects   EffectStore
	Referrals ReferralLookup
	Notifier  notification.Service
	Cache     SettledCache
	Metrics   metrics.Collector
	Config    Config
}

type verifier struct {
	processor processor.Processor
	claims    ClaimStore
	effects   EffectStore
	referrals ReferralLookup
	notifier  notification.Service
	cache     SettledCache
	metrics   metrics.Collector
	config    Config
	now       func() time.Time
	newOwner  func() string
}

func NewVerifier(deps Dependencies) Verifier {
	if deps.Metrics == nil {
		deps.Metrics = &metrics.NoopCollector{}
	}
	return &verifier{
		processor: deps.Processor,
		claims:    deps.Claims,
		effects:   deps.Effects,
		referrals: deps.Referrals,
		notifier:  deps.Notifier,
		cache:     deps.Cache,
		metrics:   deps.Metrics,
		config:    deps.Config.withDefaults(),
		now:       time.Now,
		newOwner:  uuid.NewString,
	}
}

func (v *verifier) Verify(ctx context.Context, req VerifyRequest) (*VerifyResult, error) {
	start := v.now()
	res, err := v.verify(ctx, req)
	v.metrics.RecordOperationDuration("verify", v.now().Sub(start))

	feeType := string(req.ExpectedFeeType)
	if res != nil && res.Details != nil {
		feeType = string(res.Details.FeeType)
	}
	switch {
	case err != nil:
		v.metrics.RecordSettlement(feeType, "error")
	default:
		v.metrics.RecordSettlement(feeType, string(res.Status))
	}
	return res, err
}

func (v *verifier) verify(ctx context.Context, req VerifyRequest) (*VerifyResult, error) {
	if req.SessionID == "" {
		return nil, ErrMissingSessionID
	}

	if settled := v.alreadySettled(ctx, req.SessionID); settled != nil {
		if err := checkExpectations(req, settled.FeeType, settled.UserID); err != nil {
			return nil, err
		}
		return &VerifyResult{
			Status:  StatusComplete,
			State:   StateSettled,
			Details: &Details{FeeType: settled.FeeType},
		}, nil
	}

	sess, err := v.processor.RetrieveCheckout(ctx, req.SessionID)
	if err != nil {
		if errors.Is(err, processor.ErrSessionNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, req.SessionID)
		}
		return nil, err
	}
	if !sess.Paid {
		return &VerifyResult{Status: StatusNotReady, State: StateInitiated}, nil
	}

	intent, err := models.DecodeIntentMetadata(sess.ID, sess.Metadata)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedSession, err)
	}
	if err := checkExpectations(req, intent.FeeType, intent.UserID); err != nil {
		return nil, err
	}

	paymentRef := sess.PaymentIntentRef
	if paymentRef == "" {
		paymentRef = sess.ID
	}
	details := &Details{
		FeeType:          intent.FeeType,
		Rail:             intent.Rail,
		PaymentIntentRef: paymentRef,
		ApplicationID:    intent.ApplicationID,
	}

	claim, tookOver, err := v.claim(ctx, intent)
	if err != nil {
		return nil, err
	}
	if claim == nil {
		// Another verifier holds a live claim or already finished.
		return &VerifyResult{Status: StatusComplete, State: StateClaimAcquired, Details: details}, nil
	}
	details.TookOver = tookOver

	if err := v.apply(ctx, claim, intent, sess, paymentRef); err != nil {
		// The claim stays in processing and becomes stale; a later call
		// takes it over and replays.
		return nil, fmt.Errorf("settle %s: %w", sess.ID, err)
	}

	if v.cache != nil {
		settled := &models.SettledSession{ExternalSessionID: sess.ID, FeeType: intent.FeeType, UserID: intent.UserID}
		if err := v.cache.MarkSettled(ctx, settled); err != nil {
			log.Printf("[settlement] cache write for %s failed: %v", sess.ID, err)
		}
	}
	log.Printf("[settlement] session %s settled: user %d %s via %s", sess.ID, intent.UserID, intent.FeeType, intent.Rail)
	return &VerifyResult{Status: StatusComplete, State: StateSettled, Details: details}, nil
}

// checkExpectations holds settled and unsettled sessions to the same
// ownership rules.
func checkExpectations(req VerifyRequest, feeType models.FeeType, userID uint) error {
	if req.ExpectedFeeType != "" && req.ExpectedFeeType != feeType {
		return fmt.Errorf("%w: fee type %s, expected %s", ErrSessionMismatch, feeType, req.ExpectedFeeType)
	}
	if req.ExpectedUserID != 0 && req.ExpectedUserID != userID {
		return fmt.Errorf("%w: session belongs to another user", ErrSessionMismatch)
	}
	return nil
}

func (v *verifier) alreadySettled(ctx context.Context, sessionID string) *models.SettledSession {
	if v.cache != nil {
		settled, err := v.cache.GetSettled(ctx, sessionID)
		if err != nil {
			log.Printf("[settlement] cache read for %s failed: %v", sessionID, err)
		} else if settled != nil {
			v.metrics.RecordCacheHit("settled_session")
			return settled
		}
		v.metrics.RecordCacheMiss("settled_session")
	}

	settled, err := v.claims.FindSettled(ctx, sessionID)
	if err != nil {
		// Fall through to the claim path, which is authoritative.
		log.Printf("[settlement] settled check for %s failed: %v", sessionID, err)
		return nil
	}
	return settled
}

// claim returns the claim this call now owns, or nil when another verifier
// owns it or it is already complete.
func (v *verifier) claim(ctx context.Context, intent *models.CheckoutIntent) (*models.SettlementClaim, bool, error) {
	now := v.now()
	owner := v.newOwner()

	acquired, existing, err := v.claims.AcquireClaim(ctx, &models.SettlementClaim{
		ExternalSessionID: intent.ExternalSessionID,
		FeeType:           intent.FeeType,
		UserID:            intent.UserID,
		Owner:             owner,
		Status:            models.ClaimProcessing,
		ClaimedAt:         now,
	})
	if err != nil {
		return nil, false, fmt.Errorf("acquire claim: %w", err)
	}
	if acquired {
		return existing, false, nil
	}

	if existing.Status == models.ClaimComplete {
		return nil, false, nil
	}
	if existing.Age(now) < v.config.StaleAfter {
		v.metrics.RecordOperationResult("claim", "race_lost")
		return nil, false, nil
	}

	took, err := v.claims.TakeOverClaim(ctx, existing.ID, existing.Owner, owner, now)
	if err != nil {
		return nil, false, fmt.Errorf("take over claim: %w", err)
	}
	if !took {
		v.metrics.RecordOperationResult("claim", "race_lost")
		return nil, false, nil
	}

	log.Printf("[settlement] took over stale claim %d for %s (idle %s)",
		existing.ID, existing.ExternalSessionID, existing.Age(now).Round(time.Millisecond))
	v.metrics.RecordOperationResult("claim", "taken_over")
	existing.Owner = owner
	existing.ClaimedAt = now
	return existing, true, nil
}

func (v *verifier) apply(ctx context.Context, claim *models.SettlementClaim, intent *models.CheckoutIntent, sess *processor.Session, paymentRef string) error {
	if err := v.effects.MarkFeePaid(ctx, intent.UserID, intent.FeeType); err != nil {
		return fmt.Errorf("mark fee paid: %w", err)
	}
	if intent.FeeType.RequiresApplication() && intent.ApplicationID != nil {
		if err := v.effects.MarkApplicationPaid(ctx, *intent.ApplicationID, intent.FeeType); err != nil {
			return fmt.Errorf("mark application paid: %w", err)
		}
	}

	gross := intent.GrossAmount()
	if sess.AmountTotal > 0 {
		gross = fee.MinorToMajor(sess.AmountTotal)
	}
	if _, err := v.effects.RecordLedgerEntry(ctx, &models.LedgerEntry{
		UserID:           intent.UserID,
		FeeType:          intent.FeeType,
		PaymentIntentRef: paymentRef,
		NetAmountUSD:     intent.NetAmount,
		GrossAmount:      gross,
		Currency:         intent.Currency,
		Rail:             intent.Rail,
		ExchangeRate:     intent.ExchangeRate,
		Metadata:         models.JSON(sess.Metadata),
		RecordedAt:       v.now(),
	}); err != nil {
		return fmt.Errorf("record ledger entry: %w", err)
	}

	if d := intent.Discount; d != nil && d.Kind == models.DiscountKindCoupon && d.Coupon != nil {
		if _, err := v.effects.RecordCouponUsage(ctx, d.Coupon.Code, &models.CouponUsage{
			UserID:            intent.UserID,
			FeeType:           intent.FeeType,
			ExternalSessionID: intent.ExternalSessionID,
			DiscountAmount:    d.Coupon.DiscountAmount,
		}); err != nil {
			return fmt.Errorf("record coupon usage: %w", err)
		}
	}

	if intent.FeeType == models.FeeTypeSelectionProcess {
		if err := v.creditReferral(ctx, intent); err != nil {
			return fmt.Errorf("credit referral: %w", err)
		}
	}

	if err := v.effects.ClearCart(ctx, intent.UserID); err != nil {
		return fmt.Errorf("clear cart: %w", err)
	}

	started, err := v.claims.MarkNotificationsStarted(ctx, claim.ID, v.now())
	if err != nil {
		return fmt.Errorf("checkpoint notifications: %w", err)
	}
	if started && v.notifier != nil {
		err := v.notifier.Dispatch(ctx, notification.Payment{
			SessionID:        intent.ExternalSessionID,
			UserID:           intent.UserID,
			FeeType:          intent.FeeType,
			Rail:             intent.Rail,
			NetAmountUSD:     intent.NetAmount,
			GrossAmount:      gross,
			Currency:         intent.Currency,
			ApplicationID:    intent.ApplicationID,
			PaymentIntentRef: paymentRef,
		})
		if err != nil {
			v.metrics.RecordError("notify", "dispatch")
			log.Printf("[settlement] notifications for %s incomplete: %v", intent.ExternalSessionID, err)
		}
	}

	return v.claims.CompleteSettlement(ctx, claim.ID, &models.SettlementRecord{
		ExternalSessionID: intent.ExternalSessionID,
		FeeType:           intent.FeeType,
		UserID:            intent.UserID,
		PaymentIntentRef:  paymentRef,
		Rail:              intent.Rail,
	}, v.now())
}

// creditReferral rewards whoever referred the student. The referrer comes
// from the checkout's referral discount, or from the code the student signed
// up with.
func (v *verifier) creditReferral(ctx context.Context, intent *models.CheckoutIntent) error {
	var referrerID uint
	var code string
	if d := intent.Discount; d != nil && d.Referral != nil {
		referrerID, code = d.Referral.ReferrerID, d.Referral.AffiliateCode
	} else if v.referrals != nil {
		ref, err := v.referrals.FindActiveReferralForUser(ctx, intent.UserID)
		if err != nil {
			return err
		}
		if ref != nil {
			referrerID, code = ref.OwnerUserID, ref.Code
		}
	}
	if referrerID == 0 || referrerID == intent.UserID {
		return nil
	}

	created, err := v.effects.CreditReferral(ctx, &models.ReferralCredit{
		ReferredUserID:    intent.UserID,
		ReferrerID:        referrerID,
		AffiliateCode:     code,
		Points:            v.config.ReferralRewardPoints,
		ExternalSessionID: intent.ExternalSessionID,
	})
	if err != nil {
		return err
	}
	if created {
		log.Printf("[settlement] referrer %d credited %d points for user %d", referrerID, v.config.ReferralRewardPoints, intent.UserID)
	}
	return nil
}
