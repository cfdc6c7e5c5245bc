package reputation

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/timelinkhq/tlcore/internal/domain"
)

func testAccount(index float64, spent int64) *domain.Account {
	return &domain.Account{
		ID:              uuid.New(),
		ReputationIndex: decimal.NewFromFloat(index),
		TotalSpent:      decimal.NewFromInt(spent),
	}
}

func TestApplyDelta(t *testing.T) {
	engine := NewEngine()

	t.Run("should move the index and record the event", func(t *testing.T) {
		acct := testAccount(1.0, 0)

		ev := engine.ApplyDelta(acct, DeltaVerificationApproved, "verification approved")

		assert.True(t, acct.ReputationIndex.Equal(decimal.NewFromFloat(1.3)))
		assert.True(t, ev.Delta.Equal(DeltaVerificationApproved))
		assert.True(t, ev.IndexAfter.Equal(decimal.NewFromFloat(1.3)))
		assert.Equal(t, "verification approved", ev.Reason)
		assert.Equal(t, acct.ID, ev.AccountID)
	})

	t.Run("should clamp at the lower bound", func(t *testing.T) {
		acct := testAccount(-4.5, 0)

		engine.ApplyDelta(acct, DeltaDisputeRejected, "false dispute")

		assert.True(t, acct.ReputationIndex.Equal(IndexMin))
	})

	t.Run("should clamp at the upper bound", func(t *testing.T) {
		acct := testAccount(9.8, 0)

		engine.ApplyDelta(acct, DeltaDisputeUpheld, "dispute upheld")

		assert.True(t, acct.ReputationIndex.Equal(IndexMax))
	})

	t.Run("should recompute secondary balance at positive index", func(t *testing.T) {
		acct := testAccount(1.0, 1000)

		engine.ApplyDelta(acct, DeltaDisputeUpheld, "dispute upheld")

		// 1000 * 0.5 * 1.5
		assert.True(t, acct.SecondaryBalance.Equal(decimal.NewFromInt(750)))
	})

	t.Run("should never decrease previously credited secondary balance", func(t *testing.T) {
		acct := testAccount(1.0, 1000)
		engine.ApplyDelta(acct, DeltaDisputeUpheld, "dispute upheld")
		credited := acct.SecondaryBalance

		// Drive the index negative; the stored balance must stay put
		engine.ApplyDelta(acct, DeltaDisputeRejected, "false dispute")
		assert.True(t, acct.ReputationIndex.IsNegative())
		assert.True(t, acct.SecondaryBalance.Equal(credited))
	})
}

func TestProjections(t *testing.T) {
	t.Run("should derive the exchangeable amount", func(t *testing.T) {
		acct := testAccount(1.0, 400)
		acct.TotalExchanged = decimal.NewFromInt(100)

		// (400 - 100) * 0.5
		assert.True(t, Exchangeable(acct).Equal(decimal.NewFromInt(150)))
	})

	t.Run("should floor exchangeable at zero", func(t *testing.T) {
		acct := testAccount(1.0, 100)
		acct.TotalExchanged = decimal.NewFromInt(300)

		assert.True(t, Exchangeable(acct).IsZero())
	})

	t.Run("should zero mineable at non-positive index", func(t *testing.T) {
		acct := testAccount(-1.0, 1000)
		acct.SecondaryBalance = decimal.NewFromInt(500)

		assert.True(t, Mineable(acct).IsZero())
	})

	t.Run("should derive mineable from spend and index", func(t *testing.T) {
		acct := testAccount(2.0, 1000)

		assert.True(t, Mineable(acct).Equal(decimal.NewFromInt(1000)))
	})
}
