// Package dispute implements the adjudication lifecycle:
//
//	pending → reviewing → resolved_upheld | resolved_rejected
//
// Intake locks the disputer's entire balance and freezes the escrow's revenue
// split. Resolution either restores the disputer (upheld) or adds a false
// strike; three strikes forfeit the account permanently. The machine is pure:
// it mutates loaded entities and returns every record to persist, so the
// store can commit the whole transition as one unit of work.
package dispute

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/timelinkhq/tlcore/internal/domain"
	"github.com/timelinkhq/tlcore/internal/ledger"
	"github.com/timelinkhq/tlcore/internal/policy"
	"github.com/timelinkhq/tlcore/internal/reputation"
)

// MaxFalseStrikes is the three-out threshold for account forfeiture
const MaxFalseStrikes = 3

// Outcome carries every entity mutation record from one transition
type Outcome struct {
	Dispute          *domain.Dispute
	Transactions     []*domain.Transaction
	ReputationEvents []*domain.ReputationEvent
}

// Machine orchestrates ledger and reputation effects across the lifecycle
type Machine struct {
	ledger *ledger.Engine
	rep    *reputation.Engine
	now    func() time.Time
}

func NewMachine(ledgerEngine *ledger.Engine, repEngine *reputation.Engine) *Machine {
	return &Machine{ledger: ledgerEngine, rep: repEngine, now: time.Now}
}

// SetNowFunc overrides the wall clock, used by tests
func (m *Machine) SetNowFunc(now func() time.Time) {
	m.now = now
}

// Open performs dispute intake. Validation happens before any mutation;
// effects (balance lock, revenue freeze, provisional index penalty) apply
// together or not at all.
func (m *Machine) Open(esc *domain.Escrow, disputer *domain.Account, category domain.DisputeCategory, reason string, evidenceRefs []string, econ policy.Economics) (*Outcome, error) {
	if !category.Valid() {
		return nil, domain.ErrInvalidCategory
	}
	if len(strings.TrimSpace(reason)) < econ.MinReasonLength {
		return nil, domain.ErrInvalidReason
	}
	if disputer.Forfeited {
		return nil, domain.ErrForbiddenAccount
	}
	if disputer.Suspended {
		return nil, domain.ErrDuplicateDispute
	}
	if esc.OwnerID == disputer.ID {
		return nil, domain.ErrSelfDispute
	}
	if esc.RevenueHeld {
		return nil, domain.ErrEscrowAlreadyDisputed
	}

	lockTx, err := m.ledger.Lock(disputer)
	if err != nil {
		return nil, err
	}
	esc.RevenueHeld = true

	if evidenceRefs == nil {
		evidenceRefs = []string{}
	}
	d := &domain.Dispute{
		ID:                uuid.New(),
		EscrowID:          esc.ID,
		DisputerAccountID: disputer.ID,
		Category:          category,
		Reason:            reason,
		EvidenceRefs:      evidenceRefs,
		Status:            domain.DisputePending,
		DaysRemaining:     econ.DisputeWindow,
		CreatedAt:         m.now(),
	}

	repEvent := m.rep.ApplyDelta(disputer, reputation.DeltaDisputeIntake, "dispute intake")

	return &Outcome{
		Dispute:          d,
		Transactions:     []*domain.Transaction{lockTx},
		ReputationEvents: []*domain.ReputationEvent{repEvent},
	}, nil
}

// BeginReview moves an open dispute into the reviewing state. Resolution is
// also valid directly from pending, so this is informational only.
func (m *Machine) BeginReview(d *domain.Dispute) error {
	if d.Status.Terminal() {
		return domain.ErrAlreadyResolved
	}
	d.Status = domain.DisputeReviewing
	return nil
}

// Resolve closes an open dispute.
//
// Upheld: the disputer was right. Their balance is restored, the creator is
// penalized and the escrow stays frozen and unshared.
//
// Rejected: a false dispute. The escrow resumes earning, the disputer takes a
// strike and a heavy index penalty; at three strikes the locked funds are
// destroyed with the account instead of restored.
func (m *Machine) Resolve(d *domain.Dispute, esc *domain.Escrow, disputer, creator *domain.Account, upheld bool, note string) (*Outcome, error) {
	if d.Status.Terminal() {
		return nil, domain.ErrAlreadyResolved
	}

	resolved := m.now()
	d.ResolvedAt = &resolved
	d.ResultNote = note

	out := &Outcome{Dispute: d}

	if upheld {
		d.Status = domain.DisputeUpheld

		unlockTx, err := m.ledger.Unlock(disputer)
		if err != nil {
			return nil, err
		}
		out.Transactions = append(out.Transactions, unlockTx)
		out.ReputationEvents = append(out.ReputationEvents,
			m.rep.ApplyDelta(disputer, reputation.DeltaDisputeUpheld, "dispute upheld"))

		// Content sanction: sharing revoked, revenue stays frozen
		esc.Shared = false
		esc.RevenueHeld = true
		out.ReputationEvents = append(out.ReputationEvents,
			m.rep.ApplyDelta(creator, reputation.DeltaContentRemoved, "content removed after upheld dispute"))

		return out, nil
	}

	d.Status = domain.DisputeRejected
	d.FalseStrikeAdded = true
	esc.RevenueHeld = false

	disputer.FalseDisputeStrikes++
	d.ReputationDeltaApplied = reputation.DeltaDisputeRejected
	out.ReputationEvents = append(out.ReputationEvents,
		m.rep.ApplyDelta(disputer, reputation.DeltaDisputeRejected, "false dispute"))

	if disputer.FalseDisputeStrikes >= MaxFalseStrikes {
		forfeitTx, err := m.ledger.Forfeit(disputer)
		if err != nil {
			return nil, err
		}
		out.Transactions = append(out.Transactions, forfeitTx)
	} else {
		unlockTx, err := m.ledger.Unlock(disputer)
		if err != nil {
			return nil, err
		}
		out.Transactions = append(out.Transactions, unlockTx)
	}

	return out, nil
}
