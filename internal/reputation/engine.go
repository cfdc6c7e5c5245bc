// Package reputation implements the POC contribution index. The index gates
// the accrual rate of the secondary (TLC) token; it never claws back TLC
// already credited.
package reputation

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/timelinkhq/tlcore/internal/domain"
)

// Index bounds. ApplyDelta clamps into [IndexMin, IndexMax].
var (
	IndexMin = decimal.NewFromFloat(-5.0)
	IndexMax = decimal.NewFromFloat(10.0)
)

// Canonical index deltas. The dispute machine and verification service apply
// these exact values.
var (
	DeltaVerificationRequested = decimal.NewFromFloat(0.1)
	DeltaVerificationApproved  = decimal.NewFromFloat(0.3)
	DeltaDisputeUpheld         = decimal.NewFromFloat(0.5)
	DeltaVerificationRejected  = decimal.NewFromFloat(-0.5)
	DeltaDisputeIntake         = decimal.NewFromFloat(-0.1)
	DeltaDisputeRejected       = decimal.NewFromFloat(-2.0)
	DeltaContentRemoved        = decimal.NewFromFloat(-1.0)
)

var (
	half = decimal.NewFromFloat(0.5)
)

// Engine updates the contribution index and derives the mineable TLC quantity
type Engine struct {
	now func() time.Time
}

func NewEngine() *Engine {
	return &Engine{now: time.Now}
}

// SetNowFunc overrides the wall clock, used by tests
func (e *Engine) SetNowFunc(now func() time.Time) {
	e.now = now
}

// ApplyDelta moves the index by delta, clamped to the bounds. A positive
// resulting index recomputes the mineable TLC balance; a non-positive index
// stops accrual but leaves previously credited TLC untouched.
func (e *Engine) ApplyDelta(acct *domain.Account, delta decimal.Decimal, reason string) *domain.ReputationEvent {
	next := acct.ReputationIndex.Add(delta)
	if next.LessThan(IndexMin) {
		next = IndexMin
	}
	if next.GreaterThan(IndexMax) {
		next = IndexMax
	}
	acct.ReputationIndex = next

	if next.IsPositive() {
		acct.SecondaryBalance = acct.TotalSpent.Mul(half).Mul(next)
	}

	return &domain.ReputationEvent{
		ID:         uuid.New(),
		AccountID:  acct.ID,
		Delta:      delta,
		IndexAfter: next,
		Reason:     reason,
		CreatedAt:  e.now(),
	}
}

// Exchangeable is the read-only cash-out projection:
// max(0, (totalSpent - totalExchanged) * 0.5)
func Exchangeable(acct *domain.Account) decimal.Decimal {
	available := acct.TotalSpent.Sub(acct.TotalExchanged).Mul(half)
	if available.IsNegative() {
		return decimal.Zero
	}
	return available
}

// Mineable is the TLC quantity the account can currently accrue. Zero when
// the index is non-positive, regardless of the stored secondary balance.
func Mineable(acct *domain.Account) decimal.Decimal {
	if !acct.ReputationIndex.IsPositive() {
		return decimal.Zero
	}
	return acct.TotalSpent.Mul(half).Mul(acct.ReputationIndex)
}
