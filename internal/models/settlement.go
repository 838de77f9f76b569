package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type ClaimStatus string

const (
	ClaimProcessing ClaimStatus = "processing"
	ClaimComplete   ClaimStatus = "complete"
)

// SettlementClaim is the processing marker for one paid checkout session. The
// unique (session, fee type) index is the only synchronization point between
// concurrent verifiers.
type SettlementClaim struct {
	ID                     uint        `gorm:"primarykey"`
	ExternalSessionID      string      `gorm:"not null;uniqueIndex:idx_claim_session_fee"`
	FeeType                FeeType     `gorm:"not null;uniqueIndex:idx_claim_session_fee"`
	UserID                 uint        `gorm:"not null"`
	Owner                  string      `gorm:"not null"`
	Status                 ClaimStatus `gorm:"not null;default:'processing'"`
	ClaimedAt              time.Time   `gorm:"not null"`
	NotificationsStartedAt *time.Time
	CompletedAt            *time.Time
	CreatedAt              time.Time
}

// Age is how long ago the current owner took the claim.
func (c *SettlementClaim) Age(now time.Time) time.Duration {
	return now.Sub(c.ClaimedAt)
}

// SettlementRecord is the append-only fact that a session settled. It exists
// if and only if every side effect of the settlement has been applied.
type SettlementRecord struct {
	ID                uint        `gorm:"primarykey"`
	ExternalSessionID string      `gorm:"not null;uniqueIndex:idx_settlement_session_fee_user"`
	FeeType           FeeType     `gorm:"not null;uniqueIndex:idx_settlement_session_fee_user"`
	UserID            uint        `gorm:"not null;uniqueIndex:idx_settlement_session_fee_user"`
	PaymentIntentRef  string      `gorm:"not null"`
	Rail              PaymentRail `gorm:"not null"`
	CreatedAt         time.Time
}

// SettledSession is who and what a settled checkout session paid for.
type SettledSession struct {
	ExternalSessionID string  `json:"external_session_id"`
	FeeType           FeeType `json:"fee_type"`
	UserID            uint    `json:"user_id"`
}

type LedgerEntry struct {
	ID               uint            `gorm:"primarykey"`
	UserID           uint            `gorm:"not null;uniqueIndex:idx_ledger_user_fee_intent"`
	FeeType          FeeType         `gorm:"not null;uniqueIndex:idx_ledger_user_fee_intent"`
	PaymentIntentRef string          `gorm:"not null;uniqueIndex:idx_ledger_user_fee_intent"`
	NetAmountUSD     decimal.Decimal `gorm:"type:numeric(12,2);not null"`
	GrossAmount      decimal.Decimal `gorm:"type:numeric(12,2);not null"`
	Currency         string          `gorm:"not null"`
	Rail             PaymentRail     `gorm:"not null"`
	ExchangeRate     decimal.Decimal `gorm:"type:numeric(12,6)"`
	Metadata         JSON            `gorm:"type:jsonb"`
	RecordedAt       time.Time       `gorm:"not null"`
}
