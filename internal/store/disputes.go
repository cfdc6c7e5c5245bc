package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/timelinkhq/tlcore/internal/domain"
	"github.com/timelinkhq/tlcore/pkg/messaging"
)

// OpenDispute performs dispute intake: validates, locks the disputer's
// balance, freezes the escrow revenue split and records the case.
func (s *Store) OpenDispute(ctx context.Context, escrowID, disputerID uuid.UUID, category domain.DisputeCategory, reason string, evidenceRefs []string) (*domain.Dispute, error) {
	econ := s.policy.Current()

	tx, err := s.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	esc, err := lockEscrow(ctx, tx, escrowID)
	if err != nil {
		return nil, err
	}
	disputer, err := lockAccount(ctx, tx, disputerID)
	if err != nil {
		return nil, err
	}

	out, err := s.disputes.Open(esc, disputer, category, reason, evidenceRefs, econ)
	if err != nil {
		return nil, err
	}

	if err := insertDispute(ctx, tx, out.Dispute); err != nil {
		return nil, err
	}
	if err := saveEscrow(ctx, tx, esc); err != nil {
		return nil, err
	}
	if err := saveAccount(ctx, tx, disputer); err != nil {
		return nil, err
	}
	if err := insertTransactions(ctx, tx, out.Transactions); err != nil {
		return nil, err
	}
	if err := insertReputationEvents(ctx, tx, out.ReputationEvents); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit dispute intake: %w", err)
	}

	s.publishRecords(ctx, out.Transactions, out.ReputationEvents)
	s.publish(ctx, messaging.SubjectDisputeOpened, messaging.DisputeEvent{
		DisputeID:         out.Dispute.ID,
		EscrowID:          esc.ID,
		DisputerAccountID: disputer.ID,
		Status:            string(out.Dispute.Status),
		Category:          string(out.Dispute.Category),
		Timestamp:         time.Now(),
	})
	return out.Dispute, nil
}

// ReviewDispute moves an open dispute to the reviewing state
func (s *Store) ReviewDispute(ctx context.Context, disputeID uuid.UUID) (*domain.Dispute, error) {
	tx, err := s.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	d, err := lockDispute(ctx, tx, disputeID)
	if err != nil {
		return nil, err
	}
	if err := s.disputes.BeginReview(d); err != nil {
		return nil, err
	}
	if err := updateDispute(ctx, tx, d); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit dispute review: %w", err)
	}

	s.publish(ctx, messaging.SubjectDisputeReview, messaging.DisputeEvent{
		DisputeID:         d.ID,
		EscrowID:          d.EscrowID,
		DisputerAccountID: d.DisputerAccountID,
		Status:            string(d.Status),
		Timestamp:         time.Now(),
	})
	return d, nil
}

// ResolveDispute closes an open dispute and applies every settlement effect
// in one transaction: balance restore or strike, escrow hold release or
// content sanction, and the terminal forfeiture at three strikes.
func (s *Store) ResolveDispute(ctx context.Context, disputeID uuid.UUID, upheld bool, note string) (*domain.Dispute, error) {
	tx, err := s.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	d, err := lockDispute(ctx, tx, disputeID)
	if err != nil {
		return nil, err
	}
	esc, err := lockEscrow(ctx, tx, d.EscrowID)
	if err != nil {
		return nil, err
	}

	accounts, err := lockAccounts(ctx, tx, d.DisputerAccountID, esc.OwnerID)
	if err != nil {
		return nil, err
	}
	disputer := accounts[d.DisputerAccountID]
	creator := accounts[esc.OwnerID]

	out, err := s.disputes.Resolve(d, esc, disputer, creator, upheld, note)
	if err != nil {
		return nil, err
	}

	if err := updateDispute(ctx, tx, d); err != nil {
		return nil, err
	}
	if err := saveEscrow(ctx, tx, esc); err != nil {
		return nil, err
	}
	for _, acct := range accounts {
		if err := saveAccount(ctx, tx, acct); err != nil {
			return nil, err
		}
	}
	if err := insertTransactions(ctx, tx, out.Transactions); err != nil {
		return nil, err
	}
	if err := insertReputationEvents(ctx, tx, out.ReputationEvents); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit dispute resolution: %w", err)
	}

	s.publishRecords(ctx, out.Transactions, out.ReputationEvents)
	s.publish(ctx, messaging.SubjectDisputeResolved, messaging.DisputeEvent{
		DisputeID:         d.ID,
		EscrowID:          esc.ID,
		DisputerAccountID: disputer.ID,
		Status:            string(d.Status),
		Upheld:            &upheld,
		Forfeited:         disputer.Forfeited,
		Timestamp:         time.Now(),
	})
	return d, nil
}

// GetDispute reads a dispute without locking it
func (s *Store) GetDispute(ctx context.Context, id uuid.UUID) (*domain.Dispute, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+disputeColumns+` FROM disputes WHERE id = $1`, id)
	return scanDispute(row)
}

// ListDisputesByEscrow returns every case filed against an escrow
func (s *Store) ListDisputesByEscrow(ctx context.Context, escrowID uuid.UUID) ([]*domain.Dispute, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+disputeColumns+` FROM disputes WHERE escrow_id = $1
		 ORDER BY created_at DESC`, escrowID)
	if err != nil {
		return nil, fmt.Errorf("failed to list disputes: %w", err)
	}
	defer rows.Close()

	var out []*domain.Dispute
	for rows.Next() {
		d, err := scanDispute(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}
