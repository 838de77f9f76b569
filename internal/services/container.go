// Package services wires the checkout and settlement services to their
// stores and external providers.
package services

import (
	"log"

	"scholarpay/internal/config"
	"scholarpay/internal/models"
	"scholarpay/internal/repositories"
	"scholarpay/internal/repositories/cache"
	"scholarpay/internal/services/checkout"
	"scholarpay/internal/services/discount"
	"scholarpay/internal/services/exchange"
	"scholarpay/internal/services/fee"
	"scholarpay/internal/services/metrics"
	"scholarpay/internal/services/notification"
	"scholarpay/internal/services/processor"
	"scholarpay/internal/services/settlement"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Container holds the fully wired services.
type Container struct {
	Checkout  checkout.Service
	Verifier  settlement.Verifier
	Processor *processor.StripeProcessor
	Rates     exchange.Service
}

// NewContainer builds every service from settings. cacheService may be nil,
// in which case rates and settled sessions are not cached.
func NewContainer(db *gorm.DB, cacheService *cache.CacheService, settings *config.Settings, pricing *config.Pricing, collector metrics.Collector) *Container {
	if collector == nil {
		collector = &metrics.NoopCollector{}
	}

	userRepo := repositories.NewUserRepository(db, settings.AdminUserID)
	applicationRepo := repositories.NewApplicationRepository(db)
	couponRepo := repositories.NewCouponRepository(db)
	settlementRepo := repositories.NewSettlementRepository(db)

	// A nil *CacheService must not end up inside a non-nil interface.
	var rateCache exchange.RateCache
	var settledCache settlement.SettledCache
	if cacheService != nil {
		rateCache = cacheService
		settledCache = cacheService
	}

	rates := exchange.NewService(
		exchange.NewHTTPFetcher(settings.ExchangeRateURL, settings.ExchangeRateTimeout),
		rateCache,
		exchange.Config{
			CacheTTL:  settings.ExchangeRateCacheTTL,
			Margin:    settings.RateMargin,
			Fallbacks: map[string]decimal.Decimal{"BRL": settings.FallbackBRLRate},
		},
		collector,
	)

	stripeProcessor := processor.NewStripeProcessor(processor.StripeConfig{
		SecretKey:     settings.StripeSecretKey,
		WebhookSecret: settings.StripeWebhookSecret,
		SuccessURL:    settings.SuccessURL,
		CancelURL:     settings.CancelURL,
		Timeout:       settings.ProcessorTimeout,
	})

	sinks := []notification.Sink{notification.LogSink{}}
	if settings.NotificationWebhookURL != "" {
		sinks = append(sinks, notification.NewWebhookSink(settings.NotificationWebhookURL, settings.NotificationTimeout))
		log.Printf("notifications forwarded to %s", settings.NotificationWebhookURL)
	}

	checkoutService := checkout.NewService(checkout.Dependencies{
		Users:        userRepo,
		Scholarships: applicationRepo,
		Applications: applicationRepo,
		Pricing:      pricing,
		Calculator:   fee.NewCalculator(),
		Discounts:    discount.NewResolver(couponRepo, userRepo),
		Rates:        rates,
		Processor:    stripeProcessor,
		Metrics:      collector,
	})

	verifier := settlement.NewVerifier(settlement.Dependencies{
		Processor: stripeProcessor,
		Claims:    settlementRepo,
		Effects:   settlementRepo,
		Referrals: userRepo,
		Notifier:  notification.NewService(userRepo, sinks...),
		Cache:     settledCache,
		Metrics:   collector,
		Config: settlement.Config{
			StaleAfter:           settings.ClaimStaleAfter,
			ReferralRewardPoints: settings.ReferralRewardPoints,
		},
	})

	log.Printf("services ready: default pricing %s, %d fee types", pricing.DefaultMode, len(models.FeeTypes))
	return &Container{
		Checkout:  checkoutService,
		Verifier:  verifier,
		Processor: stripeProcessor,
		Rates:     rates,
	}
}
