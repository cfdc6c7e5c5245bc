// Package verification drives the escrow authenticity sub-state:
//
//	unverified → {pending, review} → {verified, rejected}
//
// The decision itself comes from an opaque external verifier; this package
// only consumes its pass/fail flag and enforces the transition table.
// Verified status is what permits sharing and direct revenue crediting.
package verification

import (
	"context"

	"github.com/timelinkhq/tlcore/internal/domain"
	"github.com/timelinkhq/tlcore/internal/ledger"
	"github.com/timelinkhq/tlcore/internal/reputation"
)

// Check is one line of the verifier's diagnostic checklist
type Check struct {
	Label  string `json:"label"`
	Passed bool   `json:"passed"`
	Detail string `json:"detail,omitempty"`
}

// Result is the verifier's verdict. Only Passed drives state; the checklist
// and note are diagnostic payload passed through to the caller.
type Result struct {
	Passed bool    `json:"passed"`
	Checks []Check `json:"checks"`
	Note   string  `json:"note,omitempty"`
}

// Submission carries the proof references handed to the verifier
type Submission struct {
	SourceURL       string `json:"source_url"`
	ProfileURL      string `json:"profile_url,omitempty"`
	CaptureRef      string `json:"capture_ref,omitempty"`
	PaymentProofRef string `json:"payment_proof_ref,omitempty"`
	PlanType        string `json:"plan_type,omitempty"`
	CreationMonth   string `json:"creation_month,omitempty"`
}

// Verifier analyzes submitted proofs. Implementations must be safe to call
// concurrently; the store never holds a row lock across this call.
type Verifier interface {
	Verify(ctx context.Context, sub Submission) (*Result, error)
}

var transitions = map[domain.VerificationStatus][]domain.VerificationStatus{
	domain.VerificationUnverified: {domain.VerificationPending, domain.VerificationReview},
	domain.VerificationPending:    {domain.VerificationReview, domain.VerificationVerified, domain.VerificationRejected},
	domain.VerificationReview:     {domain.VerificationVerified, domain.VerificationRejected},
}

func canTransition(from, to domain.VerificationStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Outcome carries the records produced by a verification transition
type Outcome struct {
	Status           domain.VerificationStatus
	Transactions     []*domain.Transaction
	ReputationEvents []*domain.ReputationEvent
}

// Service applies verification transitions and their economic side effects
type Service struct {
	ledger *ledger.Engine
	rep    *reputation.Engine
}

func NewService(ledgerEngine *ledger.Engine, repEngine *reputation.Engine) *Service {
	return &Service{ledger: ledgerEngine, rep: repEngine}
}

// Submit applies the verifier's verdict to a freshly submitted escrow:
// review on pass, pending on fail. The owner earns the submission index
// credit either way.
func (s *Service) Submit(esc *domain.Escrow, owner *domain.Account, result *Result) (*Outcome, error) {
	target := domain.VerificationPending
	if result.Passed {
		target = domain.VerificationReview
	}
	if !canTransition(esc.VerificationStatus, target) {
		return nil, domain.ErrInvalidTransition
	}
	esc.VerificationStatus = target

	repEvent := s.rep.ApplyDelta(owner, reputation.DeltaVerificationRequested, "verification request submitted")
	return &Outcome{
		Status:           target,
		ReputationEvents: []*domain.ReputationEvent{repEvent},
	}, nil
}

// Finalize records the adjudicated decision. Approval releases the held
// revenue to the owner; rejection freezes it where it is and revokes sharing
// eligibility.
func (s *Service) Finalize(esc *domain.Escrow, owner *domain.Account, approved bool) (*Outcome, error) {
	target := domain.VerificationRejected
	if approved {
		target = domain.VerificationVerified
	}
	if !canTransition(esc.VerificationStatus, target) {
		return nil, domain.ErrInvalidTransition
	}
	esc.VerificationStatus = target

	out := &Outcome{Status: target}
	if approved {
		releaseTx, err := s.ledger.ReleaseHold(esc, owner)
		if err != nil {
			return nil, err
		}
		if releaseTx != nil {
			out.Transactions = append(out.Transactions, releaseTx)
		}
		out.ReputationEvents = append(out.ReputationEvents,
			s.rep.ApplyDelta(owner, reputation.DeltaVerificationApproved, "verification approved"))
		return out, nil
	}

	esc.Shared = false
	out.ReputationEvents = append(out.ReputationEvents,
		s.rep.ApplyDelta(owner, reputation.DeltaVerificationRejected, "verification rejected"))
	return out, nil
}

// SetShared toggles marketplace sharing. Only verified escrows may be shared.
func (s *Service) SetShared(esc *domain.Escrow, shared bool) error {
	if shared && esc.VerificationStatus != domain.VerificationVerified {
		return domain.ErrNotVerified
	}
	esc.Shared = shared
	return nil
}
