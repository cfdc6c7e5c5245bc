package store

import (
	"context"

	"github.com/timelinkhq/tlcore/internal/domain"
	"github.com/timelinkhq/tlcore/pkg/messaging"
)

func ledgerEntryEvent(t *domain.Transaction) messaging.LedgerEntryEvent {
	return messaging.LedgerEntryEvent{
		TransactionID: t.ID,
		AccountID:     t.AccountID,
		EscrowID:      t.EscrowID,
		Kind:          string(t.Kind),
		Amount:        t.Amount.String(),
		BalanceAfter:  t.BalanceAfter.String(),
		Description:   t.Description,
		CreatedAt:     t.CreatedAt,
	}
}

func reputationEvent(ev *domain.ReputationEvent) messaging.ReputationEvent {
	return messaging.ReputationEvent{
		AccountID:  ev.AccountID,
		Delta:      ev.Delta.String(),
		IndexAfter: ev.IndexAfter.String(),
		Reason:     ev.Reason,
		CreatedAt:  ev.CreatedAt,
	}
}

// publishRecords fans out the standard per-record events after a commit
func (s *Store) publishRecords(ctx context.Context, txs []*domain.Transaction, evs []*domain.ReputationEvent) {
	for _, t := range txs {
		s.publish(ctx, messaging.SubjectLedgerEntry, ledgerEntryEvent(t))
	}
	for _, ev := range evs {
		s.publish(ctx, messaging.SubjectReputationChanged, reputationEvent(ev))
	}
}
