package messaging

import (
	"time"

	"github.com/google/uuid"
)

// Event subjects
const (
	SubjectLedgerEntry       = "tl.ledger.entry"
	SubjectPlaybackProcessed = "tl.playback.processed"
	SubjectDisputeOpened     = "tl.dispute.opened"
	SubjectDisputeReview     = "tl.dispute.review"
	SubjectDisputeResolved   = "tl.dispute.resolved"
	SubjectReputationChanged = "tl.reputation.changed"
	SubjectVerification      = "tl.escrow.verification"

	// SubjectAll matches every economy event, used by the websocket feed
	SubjectAll = "tl.>"
)

// LedgerEntryEvent mirrors one appended transaction. Amounts are decimal
// strings to survive JSON round-trips without precision loss.
type LedgerEntryEvent struct {
	TransactionID uuid.UUID  `json:"transaction_id"`
	AccountID     uuid.UUID  `json:"account_id"`
	EscrowID      *uuid.UUID `json:"escrow_id,omitempty"`
	Kind          string     `json:"kind"`
	Amount        string     `json:"amount"`
	BalanceAfter  string     `json:"balance_after"`
	Description   string     `json:"description,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

// PlaybackEvent reports one processed play
type PlaybackEvent struct {
	EventID            uuid.UUID  `json:"event_id"`
	EscrowID           uuid.UUID  `json:"escrow_id"`
	PlayerAccountID    *uuid.UUID `json:"player_account_id,omitempty"`
	Deducted           string     `json:"deducted"`
	RevenueCredited    string     `json:"revenue_credited"`
	EscrowBalanceAfter string     `json:"escrow_balance_after"`
	DurationSeconds    int        `json:"duration_seconds"`
	BoostMode          bool       `json:"boost_mode"`
	CreatedAt          time.Time  `json:"created_at"`
}

// DisputeEvent reports an intake or a resolution
type DisputeEvent struct {
	DisputeID         uuid.UUID `json:"dispute_id"`
	EscrowID          uuid.UUID `json:"escrow_id"`
	DisputerAccountID uuid.UUID `json:"disputer_account_id"`
	Status            string    `json:"status"`
	Category          string    `json:"category,omitempty"`
	Upheld            *bool     `json:"upheld,omitempty"`
	Forfeited         bool      `json:"forfeited,omitempty"`
	Timestamp         time.Time `json:"timestamp"`
}

// ReputationEvent reports one index change
type ReputationEvent struct {
	AccountID  uuid.UUID `json:"account_id"`
	Delta      string    `json:"delta"`
	IndexAfter string    `json:"index_after"`
	Reason     string    `json:"reason"`
	CreatedAt  time.Time `json:"created_at"`
}

// VerificationEvent reports an escrow verification transition
type VerificationEvent struct {
	EscrowID  uuid.UUID `json:"escrow_id"`
	OwnerID   uuid.UUID `json:"owner_id"`
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}
