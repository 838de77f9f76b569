// Package exchange supplies the USD to charge-currency rate used for instant
// transfer checkouts.
package exchange

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"scholarpay/internal/services/metrics"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
)

var ErrRateUnavailable = errors.New("exchange rate unavailable")

// Service returns the commercial rate to convert one unit of base into quote.
type Service interface {
	Rate(ctx context.Context, base, quote string) (decimal.Decimal, error)
}

// Fetcher returns a raw market rate without any margin.
type Fetcher interface {
	Fetch(ctx context.Context, base, quote string) (decimal.Decimal, error)
}

type RateCache interface {
	GetRate(ctx context.Context, base, quote string) (decimal.Decimal, bool, error)
	SetRate(ctx context.Context, base, quote string, rate decimal.Decimal, ttl time.Duration) error
}

type Config struct {
	CacheTTL time.Duration
	// Margin is added on top of the market rate, e.g. 0.04 for 4%.
	Margin decimal.Decimal
	// Fallbacks are used as-is, per quote currency, when the source fails.
	Fallbacks map[string]decimal.Decimal
}

type service struct {
	fetcher Fetcher
	cache   RateCache
	config  Config
	metrics metrics.Collector
}

// NewService builds the rate service. cache may be nil.
func NewService(fetcher Fetcher, cache RateCache, cfg Config, m metrics.Collector) Service {
	if m == nil {
		m = &metrics.NoopCollector{}
	}
	return &service{fetcher: fetcher, cache: cache, config: cfg, metrics: m}
}

func (s *service) Rate(ctx context.Context, base, quote string) (decimal.Decimal, error) {
	base, quote = strings.ToUpper(base), strings.ToUpper(quote)
	if base == quote {
		return decimal.NewFromInt(1), nil
	}

	if s.cache != nil {
		rate, found, err := s.cache.GetRate(ctx, base, quote)
		if err != nil {
			log.Printf("[exchange] cache read failed for %s/%s: %v", base, quote, err)
		} else if found {
			s.metrics.RecordCacheHit("exchange_rate")
			return rate, nil
		}
		s.metrics.RecordCacheMiss("exchange_rate")
	}

	raw, err := s.fetcher.Fetch(ctx, base, quote)
	if err == nil && !raw.IsPositive() {
		err = fmt.Errorf("non-positive rate %s", raw)
	}
	if err != nil {
		fallback, ok := s.config.Fallbacks[quote]
		if !ok {
			s.metrics.RecordError("exchange_rate", "unavailable")
			return decimal.Zero, fmt.Errorf("%w: %s/%s: %v", ErrRateUnavailable, base, quote, err)
		}
		s.metrics.RecordError("exchange_rate", "fallback")
		log.Printf("[exchange] rate source failed for %s/%s, using fallback %s: %v", base, quote, fallback, err)
		return fallback, nil
	}

	rate := raw.Mul(decimal.NewFromInt(1).Add(s.config.Margin))
	if s.cache != nil && s.config.CacheTTL > 0 {
		if err := s.cache.SetRate(ctx, base, quote, rate, s.config.CacheTTL); err != nil {
			log.Printf("[exchange] cache write failed for %s/%s: %v", base, quote, err)
		}
	}
	return rate, nil
}

// HTTPFetcher reads rates from an open.er-api.com compatible endpoint:
// GET {baseURL}/{BASE} -> {"result":"success","rates":{"BRL":5.38,...}}.
type HTTPFetcher struct {
	baseURL string
	timeout time.Duration
}

func NewHTTPFetcher(baseURL string, timeout time.Duration) *HTTPFetcher {
	return &HTTPFetcher{baseURL: strings.TrimRight(baseURL, "/"), timeout: timeout}
}

type ratesResponse struct {
	Result string                     `json:"result"`
	Rates  map[string]decimal.Decimal `json:"rates"`
}

func (f *HTTPFetcher) Fetch(ctx context.Context, base, quote string) (decimal.Decimal, error) {
	timeout := f.timeout
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining < timeout || timeout == 0 {
			timeout = remaining
		}
	}
	if timeout <= 0 {
		return decimal.Zero, context.DeadlineExceeded
	}

	var body ratesResponse
	code, _, errs := fiber.Get(f.baseURL + "/" + base).Timeout(timeout).Struct(&body)
	if len(errs) > 0 {
		return decimal.Zero, fmt.Errorf("fetch rates: %w", errors.Join(errs...))
	}
	if code != fiber.StatusOK {
		return decimal.Zero, fmt.Errorf("fetch rates: unexpected status %d", code)
	}
	if body.Result != "" && body.Result != "success" {
		return decimal.Zero, fmt.Errorf("fetch rates: result %q", body.Result)
	}

	rate, ok := body.Rates[quote]
	if !ok {
		return decimal.Zero, fmt.Errorf("fetch rates: %s missing from response", quote)
	}
	return rate, nil
}
