// Package playback implements the per-play consumption and revenue-split
// path, the most frequently invoked operation of the economy.
package playback

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/timelinkhq/tlcore/internal/domain"
	"github.com/timelinkhq/tlcore/internal/ledger"
	"github.com/timelinkhq/tlcore/internal/policy"
)

// Result bundles the playback event with the ledger records it produced
type Result struct {
	Event        *domain.PlaybackEvent
	Transactions []*domain.Transaction
}

// Processor consumes escrow funds per play and splits the creator share
type Processor struct {
	ledger *ledger.Engine
	now    func() time.Time
}

func NewProcessor(ledgerEngine *ledger.Engine) *Processor {
	return &Processor{ledger: ledgerEngine, now: time.Now}
}

// SetNowFunc overrides the wall clock, used by tests
func (p *Processor) SetNowFunc(now func() time.Time) {
	p.now = now
}

// Process charges the escrow 1 TL per second (clamped to its balance),
// credits or holds the creator share, and records one playback event.
// player is nil for anonymous playback. Preconditions are checked here, not
// retried: a depleted escrow fails with ErrEscrowDepleted and a disputed one
// with ErrContentUnderReview.
func (p *Processor) Process(esc *domain.Escrow, creator, player *domain.Account, durationSeconds int, boost bool, econ policy.Economics) (*Result, error) {
	if durationSeconds <= 0 {
		return nil, domain.ErrInvalidDuration
	}
	if !esc.Balance.IsPositive() {
		return nil, domain.ErrEscrowDepleted
	}
	if esc.RevenueHeld {
		return nil, domain.ErrContentUnderReview
	}

	deduct := decimal.NewFromInt(int64(durationSeconds)).Mul(econ.TokensPerSecond)
	rate := econ.EffectiveRevenueRate(boost)

	var counterpart *uuid.UUID
	if player != nil {
		counterpart = &player.ID
	}

	split, err := p.ledger.DeductAndSplit(esc, creator, deduct, rate, counterpart)
	if err != nil {
		return nil, err
	}

	esc.PlayCount++
	esc.PopularityScore += Pulse(durationSeconds)

	if player != nil {
		player.TotalSpent = player.TotalSpent.Add(split.Deducted)
	}

	event := &domain.PlaybackEvent{
		ID:                 uuid.New(),
		EscrowID:           esc.ID,
		PlayerAccountID:    counterpart,
		Deducted:           split.Deducted,
		RevenueCredited:    split.Revenue,
		EscrowBalanceAfter: esc.Balance,
		DurationSeconds:    durationSeconds,
		BoostMode:          boost,
		CreatedAt:          p.now(),
	}
	return &Result{Event: event, Transactions: split.Transactions}, nil
}

// Pulse is the popularity increment for one play: max(1, duration/10)
func Pulse(durationSeconds int) int64 {
	pulse := int64(durationSeconds / 10)
	if pulse < 1 {
		pulse = 1
	}
	return pulse
}
