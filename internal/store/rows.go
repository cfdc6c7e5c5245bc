package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/timelinkhq/tlcore/internal/domain"
)

type rowScanner interface {
	Scan(dest ...interface{}) error
}

const accountColumns = `id, balance, locked_balance, secondary_balance, total_spent,
	total_earned, total_exchanged, reputation_index, false_dispute_strikes,
	forfeited, suspended, created_at, updated_at, version`

func scanAccount(row rowScanner) (*domain.Account, error) {
	var a domain.Account
	err := row.Scan(&a.ID, &a.Balance, &a.LockedBalance, &a.SecondaryBalance,
		&a.TotalSpent, &a.TotalEarned, &a.TotalExchanged, &a.ReputationIndex,
		&a.FalseDisputeStrikes, &a.Forfeited, &a.Suspended,
		&a.CreatedAt, &a.UpdatedAt, &a.Version)
	if err == sql.ErrNoRows {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan account: %w", err)
	}
	return &a, nil
}

// lockAccount reads one account under FOR UPDATE
func lockAccount(ctx context.Context, tx *sql.Tx, id uuid.UUID) (*domain.Account, error) {
	row := tx.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE id = $1 FOR UPDATE`, id)
	return scanAccount(row)
}

// lockAccounts locks several accounts in ascending ID order so concurrent
// multi-account operations cannot deadlock.
func lockAccounts(ctx context.Context, tx *sql.Tx, ids ...uuid.UUID) (map[uuid.UUID]*domain.Account, error) {
	ordered := append([]uuid.UUID(nil), ids...)
	sort.Slice(ordered, func(i, j int) bool {
		return ordered[i].String() < ordered[j].String()
	})

	out := make(map[uuid.UUID]*domain.Account, len(ordered))
	for _, id := range ordered {
		if _, done := out[id]; done {
			continue
		}
		acct, err := lockAccount(ctx, tx, id)
		if err != nil {
			return nil, err
		}
		out[id] = acct
	}
	return out, nil
}

func saveAccount(ctx context.Context, tx *sql.Tx, a *domain.Account) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE accounts SET balance = $1, locked_balance = $2, secondary_balance = $3,
			total_spent = $4, total_earned = $5, total_exchanged = $6,
			reputation_index = $7, false_dispute_strikes = $8,
			forfeited = $9, suspended = $10, updated_at = $11, version = version + 1
		 WHERE id = $12 AND version = $13`,
		a.Balance, a.LockedBalance, a.SecondaryBalance,
		a.TotalSpent, a.TotalEarned, a.TotalExchanged,
		a.ReputationIndex, a.FalseDisputeStrikes,
		a.Forfeited, a.Suspended, time.Now(), a.ID, a.Version)
	if err != nil {
		return fmt.Errorf("failed to update account: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return domain.ErrConflict
	}
	a.Version++
	return nil
}

const escrowColumns = `id, owner_id, title, artist, genre, country, media_type,
	balance, max_balance, confirmed_revenue, held_revenue, verification_status,
	shared, revenue_held, play_count, popularity_score, revenue_started_at,
	created_at, updated_at, version`

func scanEscrow(row rowScanner) (*domain.Escrow, error) {
	var e domain.Escrow
	err := row.Scan(&e.ID, &e.OwnerID, &e.Title, &e.Artist, &e.Genre, &e.Country,
		&e.MediaType, &e.Balance, &e.MaxBalance, &e.ConfirmedRevenue,
		&e.HeldRevenue, &e.VerificationStatus, &e.Shared, &e.RevenueHeld,
		&e.PlayCount, &e.PopularityScore, &e.RevenueStartedAt,
		&e.CreatedAt, &e.UpdatedAt, &e.Version)
	if err == sql.ErrNoRows {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan escrow: %w", err)
	}
	return &e, nil
}

// lockEscrow reads one escrow under FOR UPDATE. Escrows are always locked
// before any account in the same transaction.
func lockEscrow(ctx context.Context, tx *sql.Tx, id uuid.UUID) (*domain.Escrow, error) {
	row := tx.QueryRowContext(ctx,
		`SELECT `+escrowColumns+` FROM escrows WHERE id = $1 FOR UPDATE`, id)
	return scanEscrow(row)
}

func saveEscrow(ctx context.Context, tx *sql.Tx, e *domain.Escrow) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE escrows SET balance = $1, max_balance = $2, confirmed_revenue = $3,
			held_revenue = $4, verification_status = $5, shared = $6,
			revenue_held = $7, play_count = $8, popularity_score = $9,
			revenue_started_at = $10, updated_at = $11, version = version + 1
		 WHERE id = $12 AND version = $13`,
		e.Balance, e.MaxBalance, e.ConfirmedRevenue, e.HeldRevenue,
		e.VerificationStatus, e.Shared, e.RevenueHeld,
		e.PlayCount, e.PopularityScore, e.RevenueStartedAt,
		time.Now(), e.ID, e.Version)
	if err != nil {
		return fmt.Errorf("failed to update escrow: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return domain.ErrConflict
	}
	e.Version++
	return nil
}

func insertTransaction(ctx context.Context, tx *sql.Tx, t *domain.Transaction) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO transactions (id, account_id, escrow_id, kind, amount,
			balance_after, counterpart_account_id, description, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		t.ID, t.AccountID, t.EscrowID, t.Kind, t.Amount,
		t.BalanceAfter, t.CounterpartAccountID, t.Description, t.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to append transaction: %w", err)
	}
	return nil
}

func insertTransactions(ctx context.Context, tx *sql.Tx, ts []*domain.Transaction) error {
	for _, t := range ts {
		if err := insertTransaction(ctx, tx, t); err != nil {
			return err
		}
	}
	return nil
}

func insertReputationEvents(ctx context.Context, tx *sql.Tx, evs []*domain.ReputationEvent) error {
	for _, ev := range evs {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO reputation_events (id, account_id, delta, index_after, reason, created_at)
			 VALUES ($1, $2, $3, $4, $5, $6)`,
			ev.ID, ev.AccountID, ev.Delta, ev.IndexAfter, ev.Reason, ev.CreatedAt)
		if err != nil {
			return fmt.Errorf("failed to append reputation event: %w", err)
		}
	}
	return nil
}

func insertPlaybackEvent(ctx context.Context, tx *sql.Tx, ev *domain.PlaybackEvent) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO playback_events (id, escrow_id, player_account_id, deducted,
			revenue_credited, escrow_balance_after, duration_seconds, boost_mode, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		ev.ID, ev.EscrowID, ev.PlayerAccountID, ev.Deducted,
		ev.RevenueCredited, ev.EscrowBalanceAfter, ev.DurationSeconds,
		ev.BoostMode, ev.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to append playback event: %w", err)
	}
	return nil
}

const disputeColumns = `id, escrow_id, disputer_account_id, category, reason,
	evidence_refs, status, result_note, days_remaining, false_strike_added,
	reputation_delta_applied, created_at, resolved_at`

func scanDispute(row rowScanner) (*domain.Dispute, error) {
	var d domain.Dispute
	var evidence []byte
	err := row.Scan(&d.ID, &d.EscrowID, &d.DisputerAccountID, &d.Category,
		&d.Reason, &evidence, &d.Status, &d.ResultNote, &d.DaysRemaining,
		&d.FalseStrikeAdded, &d.ReputationDeltaApplied, &d.CreatedAt, &d.ResolvedAt)
	if err == sql.ErrNoRows {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan dispute: %w", err)
	}
	if err := json.Unmarshal(evidence, &d.EvidenceRefs); err != nil {
		return nil, fmt.Errorf("failed to decode evidence refs: %w", err)
	}
	return &d, nil
}

func lockDispute(ctx context.Context, tx *sql.Tx, id uuid.UUID) (*domain.Dispute, error) {
	row := tx.QueryRowContext(ctx,
		`SELECT `+disputeColumns+` FROM disputes WHERE id = $1 FOR UPDATE`, id)
	return scanDispute(row)
}

func insertDispute(ctx context.Context, tx *sql.Tx, d *domain.Dispute) error {
	evidence, err := json.Marshal(d.EvidenceRefs)
	if err != nil {
		return fmt.Errorf("failed to encode evidence refs: %w", err)
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO disputes (id, escrow_id, disputer_account_id, category, reason,
			evidence_refs, status, result_note, days_remaining, false_strike_added,
			reputation_delta_applied, created_at, resolved_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		d.ID, d.EscrowID, d.DisputerAccountID, d.Category, d.Reason,
		evidence, d.Status, d.ResultNote, d.DaysRemaining, d.FalseStrikeAdded,
		d.ReputationDeltaApplied, d.CreatedAt, d.ResolvedAt)
	if err != nil {
		return fmt.Errorf("failed to insert dispute: %w", err)
	}
	return nil
}

func updateDispute(ctx context.Context, tx *sql.Tx, d *domain.Dispute) error {
	_, err := tx.ExecContext(ctx,
		`UPDATE disputes SET status = $1, result_note = $2, false_strike_added = $3,
			reputation_delta_applied = $4, resolved_at = $5
		 WHERE id = $6`,
		d.Status, d.ResultNote, d.FalseStrikeAdded,
		d.ReputationDeltaApplied, d.ResolvedAt, d.ID)
	if err != nil {
		return fmt.Errorf("failed to update dispute: %w", err)
	}
	return nil
}
