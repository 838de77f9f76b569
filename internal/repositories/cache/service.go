package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"scholarpay/internal/models"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
)

type CacheService struct {
	client *redis.Client
	ttl    time.Duration
}

func NewCacheService(client *redis.Client, defaultTTL time.Duration) *CacheService {
	return &CacheService{
		client: client,
		ttl:    defaultTTL,
	}
}

// Base operations
func (s *CacheService) Set(ctx context.Context, key string, value interface{}) error {
	return s.SetWithTTL(ctx, key, value, s.ttl)
}

func (s *CacheService) SetWithTTL(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal cache value: %w", err)
	}
	return s.client.Set(ctx, key, data, ttl).Err()
}

func (s *CacheService) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	data, err := s.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, fmt.Errorf("failed to get cache value: %w", err)
	}

	if err := json.Unmarshal(data, dest); err != nil {
		return false, fmt.Errorf("failed to unmarshal cache value: %w", err)
	}
	return true, nil
}

// Key generation
func (s *CacheService) GenerateKey(entityType, keyType string, value interface{}) string {
	return fmt.Sprintf("%s:%s:%v", entityType, keyType, value)
}

// Exchange rates
func (s *CacheService) GetRate(ctx context.Context, base, quote string) (decimal.Decimal, bool, error) {
	var rate decimal.Decimal
	found, err := s.Get(ctx, s.GenerateKey("fx", base, quote), &rate)
	if err != nil || !found {
		return decimal.Zero, false, err
	}
	return rate, true, nil
}

func (s *CacheService) SetRate(ctx context.Context, base, quote string, rate decimal.Decimal, ttl time.Duration) error {
	return s.SetWithTTL(ctx, s.GenerateKey("fx", base, quote), rate, ttl)
}

// Settled sessions. Entries are only a shortcut; the settlement record in the
// database stays authoritative.
//
// A checkout session only ever carries one fee type, so the session id alone
// is the key.
func (s *CacheService) MarkSettled(ctx context.Context, settled *models.SettledSession) error {
	return s.Set(ctx, s.GenerateKey("settled", "session", settled.ExternalSessionID), settled)
}

func (s *CacheService) GetSettled(ctx context.Context, sessionID string) (*models.SettledSession, error) {
	var settled models.SettledSession
	found, err := s.Get(ctx, s.GenerateKey("settled", "session", sessionID), &settled)
	if err != nil || !found {
		return nil, err
	}
	return &settled, nil
}

// Close closes the Redis client connection
func (s *CacheService) Close() error {
	return s.client.Close()
}
