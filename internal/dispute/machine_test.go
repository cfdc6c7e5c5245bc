package dispute

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/timelinkhq/tlcore/internal/domain"
	"github.com/timelinkhq/tlcore/internal/ledger"
	"github.com/timelinkhq/tlcore/internal/policy"
	"github.com/timelinkhq/tlcore/internal/reputation"
)

var validReason = strings.Repeat("this track is a re-upload of someone else's work ", 2)

func newMachine() *Machine {
	return NewMachine(ledger.NewEngine(), reputation.NewEngine())
}

func accounts() (creator, disputer *domain.Account) {
	creator = &domain.Account{ID: uuid.New(), ReputationIndex: decimal.NewFromInt(1)}
	disputer = &domain.Account{
		ID:              uuid.New(),
		Balance:         decimal.NewFromInt(1500),
		ReputationIndex: decimal.NewFromInt(1),
	}
	return creator, disputer
}

func escrowFor(creator *domain.Account) *domain.Escrow {
	return &domain.Escrow{
		ID:                 uuid.New(),
		OwnerID:            creator.ID,
		Title:              "Afterglow",
		Balance:            decimal.NewFromInt(300),
		VerificationStatus: domain.VerificationVerified,
		Shared:             true,
	}
}

func TestOpen(t *testing.T) {
	econ := policy.Default()

	t.Run("should lock the disputer and freeze the escrow", func(t *testing.T) {
		m := newMachine()
		creator, disputer := accounts()
		esc := escrowFor(creator)

		out, err := m.Open(esc, disputer, domain.CategoryCopyright, validReason, nil, econ)
		require.NoError(t, err)

		assert.True(t, disputer.Balance.IsZero())
		assert.True(t, disputer.LockedBalance.Equal(decimal.NewFromInt(1500)))
		assert.True(t, disputer.Suspended)
		assert.True(t, esc.RevenueHeld)

		assert.Equal(t, domain.DisputePending, out.Dispute.Status)
		assert.Equal(t, econ.DisputeWindow, out.Dispute.DaysRemaining)
		assert.NotNil(t, out.Dispute.EvidenceRefs)

		// Provisional intake penalty
		require.Len(t, out.ReputationEvents, 1)
		assert.True(t, out.ReputationEvents[0].Delta.Equal(reputation.DeltaDisputeIntake))
		assert.True(t, disputer.ReputationIndex.Equal(decimal.NewFromFloat(0.9)))
	})

	t.Run("should reject an invalid category", func(t *testing.T) {
		m := newMachine()
		creator, disputer := accounts()

		_, err := m.Open(escrowFor(creator), disputer, "spite", validReason, nil, econ)
		assert.ErrorIs(t, err, domain.ErrInvalidCategory)
	})

	t.Run("should reject a short reason", func(t *testing.T) {
		m := newMachine()
		creator, disputer := accounts()

		_, err := m.Open(escrowFor(creator), disputer, domain.CategoryFake, "too short", nil, econ)
		assert.ErrorIs(t, err, domain.ErrInvalidReason)

		// Whitespace padding does not help
		_, err = m.Open(escrowFor(creator), disputer, domain.CategoryFake,
			"padded"+strings.Repeat(" ", 60), nil, econ)
		assert.ErrorIs(t, err, domain.ErrInvalidReason)
	})

	t.Run("should reject disputing own content", func(t *testing.T) {
		m := newMachine()
		creator, _ := accounts()
		creator.Balance = decimal.NewFromInt(100)

		_, err := m.Open(escrowFor(creator), creator, domain.CategoryAbuse, validReason, nil, econ)
		assert.ErrorIs(t, err, domain.ErrSelfDispute)
	})

	t.Run("should reject a second active dispute by the same account", func(t *testing.T) {
		m := newMachine()
		creator, disputer := accounts()

		_, err := m.Open(escrowFor(creator), disputer, domain.CategoryCopyright, validReason, nil, econ)
		require.NoError(t, err)

		_, err = m.Open(escrowFor(creator), disputer, domain.CategoryCopyright, validReason, nil, econ)
		assert.ErrorIs(t, err, domain.ErrDuplicateDispute)
	})

	t.Run("should reject an escrow already under dispute", func(t *testing.T) {
		m := newMachine()
		creator, disputer := accounts()
		esc := escrowFor(creator)
		esc.RevenueHeld = true

		_, err := m.Open(esc, disputer, domain.CategoryCopyright, validReason, nil, econ)
		assert.ErrorIs(t, err, domain.ErrEscrowAlreadyDisputed)
	})

	t.Run("should reject a forfeited disputer", func(t *testing.T) {
		m := newMachine()
		creator, disputer := accounts()
		disputer.Forfeited = true

		_, err := m.Open(escrowFor(creator), disputer, domain.CategoryCopyright, validReason, nil, econ)
		assert.ErrorIs(t, err, domain.ErrForbiddenAccount)
	})
}

func TestResolveUpheld(t *testing.T) {
	econ := policy.Default()

	t.Run("should restore the disputer and sanction the content", func(t *testing.T) {
		m := newMachine()
		creator, disputer := accounts()
		esc := escrowFor(creator)

		out, err := m.Open(esc, disputer, domain.CategoryCopyright, validReason, nil, econ)
		require.NoError(t, err)
		d := out.Dispute

		res, err := m.Resolve(d, esc, disputer, creator, true, "confirmed re-upload")
		require.NoError(t, err)

		assert.Equal(t, domain.DisputeUpheld, d.Status)
		assert.NotNil(t, d.ResolvedAt)

		// Balance restored in full
		assert.True(t, disputer.Balance.Equal(decimal.NewFromInt(1500)))
		assert.True(t, disputer.LockedBalance.IsZero())
		assert.False(t, disputer.Suspended)
		assert.Equal(t, 0, disputer.FalseDisputeStrikes)

		// Content stays frozen and loses sharing
		assert.True(t, esc.RevenueHeld)
		assert.False(t, esc.Shared)

		// -0.1 intake +0.5 upheld for the disputer, -1.0 for the creator
		assert.True(t, disputer.ReputationIndex.Equal(decimal.NewFromFloat(1.4)))
		assert.True(t, creator.ReputationIndex.Equal(decimal.NewFromFloat(0.0)))
		assert.Len(t, res.ReputationEvents, 2)
	})
}

func TestResolveRejected(t *testing.T) {
	econ := policy.Default()

	t.Run("should add a strike and resume the escrow", func(t *testing.T) {
		m := newMachine()
		creator, disputer := accounts()
		esc := escrowFor(creator)

		out, err := m.Open(esc, disputer, domain.CategoryFake, validReason, nil, econ)
		require.NoError(t, err)
		d := out.Dispute

		_, err = m.Resolve(d, esc, disputer, creator, false, "claim unsubstantiated")
		require.NoError(t, err)

		assert.Equal(t, domain.DisputeRejected, d.Status)
		assert.True(t, d.FalseStrikeAdded)
		assert.True(t, d.ReputationDeltaApplied.Equal(reputation.DeltaDisputeRejected))
		assert.Equal(t, 1, disputer.FalseDisputeStrikes)
		assert.False(t, esc.RevenueHeld)

		// Balance comes back below the three-strike threshold
		assert.True(t, disputer.Balance.Equal(decimal.NewFromInt(1500)))
		assert.False(t, disputer.Forfeited)

		// -0.1 intake -2.0 false dispute
		assert.True(t, disputer.ReputationIndex.Equal(decimal.NewFromFloat(-1.1)))
	})

	t.Run("should forfeit the account at three strikes", func(t *testing.T) {
		m := newMachine()
		creator, disputer := accounts()
		disputer.FalseDisputeStrikes = 2
		esc := escrowFor(creator)

		out, err := m.Open(esc, disputer, domain.CategoryOther, validReason, nil, econ)
		require.NoError(t, err)

		_, err = m.Resolve(out.Dispute, esc, disputer, creator, false, "third false claim")
		require.NoError(t, err)

		assert.Equal(t, 3, disputer.FalseDisputeStrikes)
		assert.True(t, disputer.Forfeited)

		// Locked funds are destroyed with the account, not restored
		assert.True(t, disputer.Balance.IsZero())
		assert.True(t, disputer.LockedBalance.IsZero())
	})

	t.Run("should reject resolving a closed dispute", func(t *testing.T) {
		m := newMachine()
		creator, disputer := accounts()
		esc := escrowFor(creator)

		out, err := m.Open(esc, disputer, domain.CategoryFake, validReason, nil, econ)
		require.NoError(t, err)

		_, err = m.Resolve(out.Dispute, esc, disputer, creator, false, "")
		require.NoError(t, err)

		_, err = m.Resolve(out.Dispute, esc, disputer, creator, true, "")
		assert.ErrorIs(t, err, domain.ErrAlreadyResolved)
	})
}

func TestBeginReview(t *testing.T) {
	econ := policy.Default()

	t.Run("should mark the dispute reviewing", func(t *testing.T) {
		m := newMachine()
		creator, disputer := accounts()
		esc := escrowFor(creator)

		out, err := m.Open(esc, disputer, domain.CategoryFake, validReason, nil, econ)
		require.NoError(t, err)

		require.NoError(t, m.BeginReview(out.Dispute))
		assert.Equal(t, domain.DisputeReviewing, out.Dispute.Status)
	})

	t.Run("should reject reviewing a closed dispute", func(t *testing.T) {
		m := newMachine()
		creator, disputer := accounts()
		esc := escrowFor(creator)

		out, err := m.Open(esc, disputer, domain.CategoryFake, validReason, nil, econ)
		require.NoError(t, err)
		_, err = m.Resolve(out.Dispute, esc, disputer, creator, true, "")
		require.NoError(t, err)

		assert.ErrorIs(t, m.BeginReview(out.Dispute), domain.ErrAlreadyResolved)
	})
}
