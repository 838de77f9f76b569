// Package checkout turns a fee request into a processor checkout session.
//
// Every fee type goes through the same pipeline: resolve the base amount,
// apply at most one discount, convert and gross up for the rail, then submit
// with a metadata bag that lets settlement rebuild the intent later.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"time"

	"scholarpay/internal/config"
	"scholarpay/internal/models"
	"scholarpay/internal/repositories"
	"scholarpay/internal/services/discount"
	"scholarpay/internal/services/exchange"
	"scholarpay/internal/services/fee"
	"scholarpay/internal/services/metrics"
	"scholarpay/internal/services/processor"

	"github.com/shopspring/decimal"
)

type service struct {
	users        UserStore
	scholarships ScholarshipStore
	applications ApplicationStore
	pricing      *config.Pricing
	calculator   *fee.Calculator
	discounts    discount.Resolver
	rates        exchange.Service
	processor    processor.Processor
	metrics      metrics.Collector
	now          func() time.Time
}

type Dependencies struct {
	Users        UserStore
	Scholarships ScholarshipStore
	Applications ApplicationStore
	Pricing      *config.Pricing
	Calculator   *fee.Calculator
	Discounts    discount.Resolver
	Rates        exchange.Service
	Processor    processor.Processor
	Metrics      metrics.Collector
}

func NewService(deps Dependencies) Service {
	if deps.Metrics == nil {
		deps.Metrics = &metrics.NoopCollector{}
	}
	if deps.Calculator == nil {
		deps.Calculator = fee.NewCalculator()
	}
	if deps.Pricing == nil {
		deps.Pricing = config.DefaultPricing()
	}
	return &service{
		users:        deps.Users,
		scholarships: deps.Scholarships,
		applications: deps.Applications,
		pricing:      deps.Pricing,
		calculator:   deps.Calculator,
		discounts:    deps.Discounts,
		rates:        deps.Rates,
		processor:    deps.Processor,
		metrics:      deps.Metrics,
		now:          time.Now,
	}
}

func (s *service) Quote(ctx context.Context, req Request) (*Quote, error) {
	q, _, err := s.quote(ctx, req)
	return q, err
}

func (s *service) BuildAndSubmit(ctx context.Context, req Request) (*Result, error) {
	start := s.now()
	defer func() { s.metrics.RecordOperationDuration("checkout", s.now().Sub(start)) }()

	q, user, err := s.quote(ctx, req)
	if err != nil {
		s.metrics.RecordOperationResult("checkout", "rejected")
		return nil, err
	}

	// The application must exist before submission so its id travels in the
	// metadata. The upsert is keyed by (student, scholarship) and safe to repeat.
	if req.FeeType.RequiresApplication() && q.ApplicationID == nil {
		app, err := s.applications.UpsertPendingApplication(ctx, user.ID, *q.ScholarshipID)
		if err != nil {
			return nil, fmt.Errorf("create application: %w", err)
		}
		q.ApplicationID = &app.ID
	}

	intent := &models.CheckoutIntent{
		UserID:                user.ID,
		FeeType:               q.FeeType,
		Rail:                  q.Rail,
		NetAmount:             q.NetAmount,
		Currency:              q.Currency,
		GrossAmountMinorUnits: q.GrossAmountMinorUnits,
		ExchangeRate:          q.ExchangeRate,
		Discount:              q.Discount,
		ApplicationID:         q.ApplicationID,
	}

	methods := []string{"card"}
	if q.Rail == models.RailInstantTransfer {
		methods = []string{"pix"}
	}

	sess, err := s.processor.CreateCheckout(ctx, processor.SessionRequest{
		LineItem: processor.LineItem{
			Name:             q.FeeType.Description(),
			Description:      lineItemDescription(q),
			AmountMinorUnits: q.GrossAmountMinorUnits,
			Currency:         q.Currency,
		},
		PaymentMethodTypes: methods,
		ClientReferenceID:  strconv.FormatUint(uint64(user.ID), 10),
		CustomerEmail:      user.Email,
		Metadata:           intent.EncodeMetadata(req.Metadata),
		IdempotencyKey:     req.IdempotencyKey,
	})
	if err != nil {
		s.metrics.RecordError("checkout", "processor")
		if errors.Is(err, processor.ErrInvalidRequest) {
			return nil, err
		}
		if !errors.Is(err, processor.ErrProcessorUnavailable) {
			err = fmt.Errorf("%w: %v", processor.ErrProcessorUnavailable, err)
		}
		return nil, err
	}

	intent.ExternalSessionID = sess.ID
	intent.CreatedAt = s.now()

	s.metrics.RecordCharge(string(q.FeeType), string(q.Rail), q.GrossAmountMinorUnits)
	s.metrics.RecordOperationResult("checkout", "submitted")
	log.Printf("[checkout] session %s for user %d: %s %s net %s gross %d %s",
		sess.ID, user.ID, q.FeeType, q.Rail, q.NetAmount, q.GrossAmountMinorUnits, q.Currency)

	return &Result{
		RedirectURL:     sess.RedirectURL,
		SessionID:       sess.ID,
		Intent:          intent,
		CouponRejection: q.CouponRejection,
	}, nil
}

func (s *service) quote(ctx context.Context, req Request) (*Quote, *models.User, error) {
	if _, err := models.ParseFeeType(string(req.FeeType)); err != nil {
		return nil, nil, err
	}
	rail, err := models.ParsePaymentRail(string(req.Rail))
	if err != nil {
		return nil, nil, err
	}
	if req.Dependents != nil && *req.Dependents < 0 {
		return nil, nil, ErrInvalidDependents
	}

	user, err := s.users.GetUserWithPackage(ctx, req.UserID)
	if err != nil {
		if errors.Is(err, repositories.ErrUserNotFound) {
			return nil, nil, ErrUserNotFound
		}
		return nil, nil, fmt.Errorf("load user: %w", err)
	}

	mode := user.PricingMode
	if !mode.Valid() {
		mode = s.pricing.DefaultMode
	}

	q := &Quote{FeeType: req.FeeType, Rail: rail, PricingMode: mode, Currency: rail.Currency()}

	var scholarship *models.Scholarship
	if req.FeeType.RequiresApplication() {
		scholarship, q.ApplicationID, err = s.resolveScholarship(ctx, user.ID, req)
		if err != nil {
			return nil, nil, err
		}
		q.ScholarshipID = &scholarship.ID
	}

	q.BaseAmount, err = s.baseAmount(user, mode, req, scholarship)
	if err != nil {
		return nil, nil, err
	}

	q.ExchangeRate = decimal.NewFromInt(1)
	if rail == models.RailInstantTransfer {
		q.ExchangeRate, err = s.rates.Rate(ctx, models.CurrencyUSD, models.CurrencyBRL)
		if err != nil {
			return nil, nil, fmt.Errorf("exchange rate: %w", err)
		}
	}

	resolved, err := s.discounts.Resolve(ctx, discount.ResolveInput{
		UserID:                  user.ID,
		FeeType:                 req.FeeType,
		ProposedAmount:          req.ProposedAmount,
		CanonicalAmount:         q.BaseAmount,
		CouponCode:              req.CouponCode,
		ReferralAppliedUpstream: req.ReferralAppliedUpstream,
		Rail:                    rail,
		ExchangeRate:            q.ExchangeRate,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("resolve discount: %w", err)
	}
	q.Discount = resolved.Discount
	q.CouponRejection = resolved.CouponRejection

	q.NetAmount = fee.ApplyMinimum(resolved.Amount, s.pricing.MinimumCharge)
	q.GrossAmountMinorUnits, err = s.calculator.GrossForNet(q.NetAmount, rail, q.ExchangeRate)
	if err != nil {
		return nil, nil, err
	}
	return q, user, nil
}

// baseAmount applies package override, then scholarship override (application
// fee only), then the pricing table default.
func (s *service) baseAmount(user *models.User, mode models.PricingMode, req Request, sch *models.Scholarship) (decimal.Decimal, error) {
	var amount decimal.Decimal
	resolved := false

	if user.Package != nil {
		amount, resolved = user.Package.Override(req.FeeType)
	}
	if !resolved && req.FeeType == models.FeeTypeApplicationFee && sch != nil && sch.ApplicationFeeAmount.Valid {
		amount, resolved = sch.ApplicationFeeAmount.Decimal, true
	}
	if !resolved {
		var err error
		amount, err = s.pricing.Default(mode, req.FeeType)
		if err != nil {
			return decimal.Zero, err
		}
	}

	if req.FeeType == models.FeeTypeApplicationFee && mode == models.PricingLegacy {
		dependents := user.Dependents
		if req.Dependents != nil {
			dependents = *req.Dependents
		}
		if dependents > 0 {
			amount = amount.Add(s.pricing.DependentSurcharge.Mul(decimal.NewFromInt(int64(dependents))))
		}
	}
	return amount, nil
}

func (s *service) resolveScholarship(ctx context.Context, userID uint, req Request) (*models.Scholarship, *uint, error) {
	scholarshipID := req.ScholarshipID
	var applicationID *uint

	if req.ApplicationID != nil {
		app, err := s.applications.GetApplication(ctx, *req.ApplicationID)
		if err != nil {
			if errors.Is(err, repositories.ErrApplicationNotFound) {
				return nil, nil, ErrApplicationNotFound
			}
			return nil, nil, fmt.Errorf("load application: %w", err)
		}
		if app.StudentID != userID {
			return nil, nil, ErrApplicationNotOwned
		}
		if scholarshipID != nil && *scholarshipID != app.ScholarshipID {
			return nil, nil, ErrApplicationMismatch
		}
		scholarshipID = &app.ScholarshipID
		applicationID = &app.ID
	}
	if scholarshipID == nil {
		return nil, nil, ErrScholarshipRequired
	}

	sch, err := s.scholarships.GetScholarship(ctx, *scholarshipID)
	if err != nil {
		if errors.Is(err, repositories.ErrScholarshipNotFound) {
			return nil, nil, ErrScholarshipNotFound
		}
		return nil, nil, fmt.Errorf("load scholarship: %w", err)
	}
	return sch, applicationID, nil
}

func lineItemDescription(q *Quote) string {
	if q.Discount == nil {
		return q.FeeType.Description()
	}
	switch q.Discount.Kind {
	case models.DiscountKindCoupon:
		return fmt.Sprintf("%s (coupon %s)", q.FeeType.Description(), q.Discount.Coupon.Code)
	case models.DiscountKindReferral:
		return fmt.Sprintf("%s (referral %s)", q.FeeType.Description(), q.Discount.Referral.AffiliateCode)
	}
	return q.FeeType.Description()
}
