package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TransactionKind identifies a ledger transaction type
type TransactionKind string

const (
	TxCharge         TransactionKind = "charge"
	TxDeduct         TransactionKind = "deduct"
	TxEarn           TransactionKind = "earn"
	TxHold           TransactionKind = "hold"
	TxRelease        TransactionKind = "release"
	TxExchange       TransactionKind = "exchange"
	TxLock           TransactionKind = "lock"
	TxUnlock         TransactionKind = "unlock"
	TxForfeit        TransactionKind = "forfeit"
	TxInitial        TransactionKind = "initial"
	TxReputationMint TransactionKind = "reputation_mint"
)

// DisputeStatus is the dispute lifecycle state
type DisputeStatus string

const (
	DisputePending   DisputeStatus = "pending"
	DisputeReviewing DisputeStatus = "reviewing"
	DisputeUpheld    DisputeStatus = "resolved_upheld"
	DisputeRejected  DisputeStatus = "resolved_rejected"
)

// Terminal reports whether the status admits no further transitions
func (s DisputeStatus) Terminal() bool {
	return s == DisputeUpheld || s == DisputeRejected
}

// DisputeCategory classifies the complaint
type DisputeCategory string

const (
	CategoryCopyright DisputeCategory = "copyright"
	CategoryFake      DisputeCategory = "fake"
	CategoryAbuse     DisputeCategory = "abuse"
	CategoryOther     DisputeCategory = "other"
)

// Valid reports whether the category is one of the accepted values
func (c DisputeCategory) Valid() bool {
	switch c {
	case CategoryCopyright, CategoryFake, CategoryAbuse, CategoryOther:
		return true
	}
	return false
}

// VerificationStatus is the escrow content-authenticity state
type VerificationStatus string

const (
	VerificationUnverified VerificationStatus = "unverified"
	VerificationPending    VerificationStatus = "pending"
	VerificationReview     VerificationStatus = "review"
	VerificationVerified   VerificationStatus = "verified"
	VerificationRejected   VerificationStatus = "rejected"
)

// Account holds the per-user TL balances and reputation state.
// Balance mutation goes exclusively through the ledger engine.
type Account struct {
	ID                  uuid.UUID       `json:"id"`
	Balance             decimal.Decimal `json:"balance"`
	LockedBalance       decimal.Decimal `json:"locked_balance"`
	SecondaryBalance    decimal.Decimal `json:"secondary_balance"`
	TotalSpent          decimal.Decimal `json:"total_spent"`
	TotalEarned         decimal.Decimal `json:"total_earned"`
	TotalExchanged      decimal.Decimal `json:"total_exchanged"`
	ReputationIndex     decimal.Decimal `json:"reputation_index"`
	FalseDisputeStrikes int             `json:"false_dispute_strikes"`
	Forfeited           bool            `json:"forfeited"`
	Suspended           bool            `json:"suspended"`
	CreatedAt           time.Time       `json:"created_at"`
	UpdatedAt           time.Time       `json:"updated_at"`
	Version             int             `json:"-"`
}

// Escrow is the funding pool attached to one uploaded content item
type Escrow struct {
	ID                 uuid.UUID          `json:"id"`
	OwnerID            uuid.UUID          `json:"owner_id"`
	Title              string             `json:"title"`
	Artist             string             `json:"artist"`
	Genre              string             `json:"genre"`
	Country            string             `json:"country"`
	MediaType          string             `json:"media_type"` // "audio" or "video"
	Balance            decimal.Decimal    `json:"balance"`
	MaxBalance         decimal.Decimal    `json:"max_balance"`
	ConfirmedRevenue   decimal.Decimal    `json:"confirmed_revenue"`
	HeldRevenue        decimal.Decimal    `json:"held_revenue"`
	VerificationStatus VerificationStatus `json:"verification_status"`
	Shared             bool               `json:"shared"`
	RevenueHeld        bool               `json:"revenue_held"`
	PlayCount          int64              `json:"play_count"`
	PopularityScore    int64              `json:"popularity_score"`
	RevenueStartedAt   *time.Time         `json:"revenue_started_at,omitempty"`
	CreatedAt          time.Time          `json:"created_at"`
	UpdatedAt          time.Time          `json:"updated_at"`
	Version            int                `json:"-"`
}

// Playable reports whether a playback request would be accepted
func (e *Escrow) Playable() bool {
	return e.Balance.IsPositive() && !e.RevenueHeld
}

// Transaction is an immutable append-only ledger entry
type Transaction struct {
	ID                   uuid.UUID       `json:"id"`
	AccountID            uuid.UUID       `json:"account_id"`
	EscrowID             *uuid.UUID      `json:"escrow_id,omitempty"`
	Kind                 TransactionKind `json:"kind"`
	Amount               decimal.Decimal `json:"amount"`
	BalanceAfter         decimal.Decimal `json:"balance_after"`
	CounterpartAccountID *uuid.UUID      `json:"counterpart_account_id,omitempty"`
	Description          string          `json:"description"`
	CreatedAt            time.Time       `json:"created_at"`
}

// PlaybackEvent records one consumption of escrow funds
type PlaybackEvent struct {
	ID                 uuid.UUID       `json:"id"`
	EscrowID           uuid.UUID       `json:"escrow_id"`
	PlayerAccountID    *uuid.UUID      `json:"player_account_id,omitempty"`
	Deducted           decimal.Decimal `json:"deducted"`
	RevenueCredited    decimal.Decimal `json:"revenue_credited"`
	EscrowBalanceAfter decimal.Decimal `json:"escrow_balance_after"`
	DurationSeconds    int             `json:"duration_seconds"`
	BoostMode          bool            `json:"boost_mode"`
	CreatedAt          time.Time       `json:"created_at"`
}

// Dispute is one adjudication case against an escrow
type Dispute struct {
	ID                     uuid.UUID       `json:"id"`
	EscrowID               uuid.UUID       `json:"escrow_id"`
	DisputerAccountID      uuid.UUID       `json:"disputer_account_id"`
	Category               DisputeCategory `json:"category"`
	Reason                 string          `json:"reason"`
	EvidenceRefs           []string        `json:"evidence_refs"`
	Status                 DisputeStatus   `json:"status"`
	ResultNote             string          `json:"result_note,omitempty"`
	DaysRemaining          int             `json:"days_remaining"`
	FalseStrikeAdded       bool            `json:"false_strike_added"`
	ReputationDeltaApplied decimal.Decimal `json:"reputation_delta_applied"`
	CreatedAt              time.Time       `json:"created_at"`
	ResolvedAt             *time.Time      `json:"resolved_at,omitempty"`
}

// ReputationEvent is an immutable record of one index change
type ReputationEvent struct {
	ID         uuid.UUID       `json:"id"`
	AccountID  uuid.UUID       `json:"account_id"`
	Delta      decimal.Decimal `json:"delta"`
	IndexAfter decimal.Decimal `json:"index_after"`
	Reason     string          `json:"reason"`
	CreatedAt  time.Time       `json:"created_at"`
}
