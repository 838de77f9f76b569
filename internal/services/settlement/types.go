package settlement

import (
	"time"

	"scholarpay/internal/models"
)

// State is where a checkout sits in the payment lifecycle.
type State string

const (
	StateInitiated     State = "initiated"
	StateProcessorPaid State = "processor_paid"
	StateClaimAcquired State = "claim_acquired"
	StateSettled       State = "settled"
	// StateAbandoned is never written; an initiated session that is never
	// paid simply stays that way.
	StateAbandoned State = "abandoned"
)

// Status is all a caller ever sees.
type Status string

const (
	StatusComplete Status = "complete"
	StatusNotReady Status = "not_ready"
)

type VerifyRequest struct {
	SessionID string
	// Optional expectations checked against the session metadata.
	ExpectedFeeType models.FeeType
	ExpectedUserID  uint
}

type VerifyResult struct {
	Status  Status   `json:"status"`
	State   State    `json:"-"`
	Details *Details `json:"details,omitempty"`
}

type Details struct {
	FeeType          models.FeeType     `json:"fee_type"`
	Rail             models.PaymentRail `json:"rail"`
	PaymentIntentRef string             `json:"payment_intent_ref,omitempty"`
	ApplicationID    *uint              `json:"application_id,omitempty"`
	// TookOver is set when this call resumed a stale claim.
	TookOver bool `json:"took_over,omitempty"`
}

type Config struct {
	// StaleAfter is how long a processing claim may go without completing
	// before another verifier may take it over.
	StaleAfter           time.Duration
	ReferralRewardPoints int64
}

func (c Config) withDefaults() Config {
	if c.StaleAfter <= 0 {
		c.StaleAfter = 5 * time.Second
	}
	if c.ReferralRewardPoints == 0 {
		c.ReferralRewardPoints = 180
	}
	return c
}
