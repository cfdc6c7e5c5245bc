package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/timelinkhq/tlcore/internal/domain"
	"github.com/timelinkhq/tlcore/internal/playback"
	"github.com/timelinkhq/tlcore/pkg/messaging"
)

// Playback consumes escrow funds for one play. playerID is nil for anonymous
// playback. The escrow row is locked first, then both accounts in ID order,
// so concurrent plays against the same escrow serialize without deadlocking.
func (s *Store) Playback(ctx context.Context, escrowID uuid.UUID, playerID *uuid.UUID, durationSeconds int, boost bool) (*playback.Result, error) {
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

	ids := []uuid.UUID{esc.OwnerID}
	if playerID != nil && *playerID != esc.OwnerID {
		ids = append(ids, *playerID)
	}
	accounts, err := lockAccounts(ctx, tx, ids...)
	if err != nil {
		return nil, err
	}
	creator := accounts[esc.OwnerID]

	var player *domain.Account
	if playerID != nil {
		player = accounts[*playerID]
	}

	result, err := s.playback.Process(esc, creator, player, durationSeconds, boost, econ)
	if err != nil {
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
	if err := insertPlaybackEvent(ctx, tx, result.Event); err != nil {
		return nil, err
	}
	if err := insertTransactions(ctx, tx, result.Transactions); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit playback: %w", err)
	}

	s.publishRecords(ctx, result.Transactions, nil)
	s.publish(ctx, messaging.SubjectPlaybackProcessed, messaging.PlaybackEvent{
		EventID:            result.Event.ID,
		EscrowID:           result.Event.EscrowID,
		PlayerAccountID:    result.Event.PlayerAccountID,
		Deducted:           result.Event.Deducted.String(),
		RevenueCredited:    result.Event.RevenueCredited.String(),
		EscrowBalanceAfter: result.Event.EscrowBalanceAfter.String(),
		DurationSeconds:    result.Event.DurationSeconds,
		BoostMode:          result.Event.BoostMode,
		CreatedAt:          result.Event.CreatedAt,
	})
	return result, nil
}

// ListPlaybackEvents returns the escrow's consumption history, newest first
func (s *Store) ListPlaybackEvents(ctx context.Context, escrowID uuid.UUID, limit int) ([]*domain.PlaybackEvent, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, escrow_id, player_account_id, deducted, revenue_credited,
			escrow_balance_after, duration_seconds, boost_mode, created_at
		 FROM playback_events WHERE escrow_id = $1
		 ORDER BY created_at DESC LIMIT $2`, escrowID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list playback events: %w", err)
	}
	defer rows.Close()

	var out []*domain.PlaybackEvent
	for rows.Next() {
		var ev domain.PlaybackEvent
		if err := rows.Scan(&ev.ID, &ev.EscrowID, &ev.PlayerAccountID, &ev.Deducted,
			&ev.RevenueCredited, &ev.EscrowBalanceAfter, &ev.DurationSeconds,
			&ev.BoostMode, &ev.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan playback event: %w", err)
		}
		out = append(out, &ev)
	}
	return out, rows.Err()
}
