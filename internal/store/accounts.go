package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/timelinkhq/tlcore/internal/auth"
	"github.com/timelinkhq/tlcore/internal/domain"
	"github.com/timelinkhq/tlcore/internal/reputation"
	"github.com/timelinkhq/tlcore/pkg/messaging"
)

// RegisterAccount commits the user row and its economy account as one unit
// of work. The account shares the user's ID and starts with the registration
// grant; a failure on either side leaves nothing behind.
func (s *Store) RegisterAccount(ctx context.Context, reg *auth.Registration) (*domain.Account, error) {
	econ := s.policy.Current()
	now := time.Now()

	acct := &domain.Account{
		ID:              reg.User.ID,
		ReputationIndex: decimal.NewFromInt(1),
		CreatedAt:       now,
		UpdatedAt:       now,
		Version:         1,
	}
	grantTx, err := s.ledger.InitialGrant(acct, econ.InitialGrant)
	if err != nil {
		return nil, err
	}

	tx, err := s.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	if err := reg.Insert(ctx, tx); err != nil {
		return nil, err
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO accounts (id, balance, reputation_index, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		acct.ID, acct.Balance, acct.ReputationIndex, acct.CreatedAt, acct.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to insert account: %w", err)
	}
	if err := insertTransaction(ctx, tx, grantTx); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit registration: %w", err)
	}

	s.publish(ctx, messaging.SubjectLedgerEntry, ledgerEntryEvent(grantTx))
	return acct, nil
}

// GetAccount reads an account without locking it
func (s *Store) GetAccount(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE id = $1`, id)
	return scanAccount(row)
}

// WalletSummary is the read-side wallet view with derived projections
type WalletSummary struct {
	Account      *domain.Account `json:"account"`
	Exchangeable decimal.Decimal `json:"exchangeable"`
	Mineable     decimal.Decimal `json:"mineable"`
}

// Wallet returns the account with its exchangeable and mineable projections
func (s *Store) Wallet(ctx context.Context, id uuid.UUID) (*WalletSummary, error) {
	acct, err := s.GetAccount(ctx, id)
	if err != nil {
		return nil, err
	}
	return &WalletSummary{
		Account:      acct,
		Exchangeable: reputation.Exchangeable(acct),
		Mineable:     reputation.Mineable(acct),
	}, nil
}

// ExchangeTokens cashes out against the exchangeable projection. The fiat
// side settles externally; only the accumulator moves here.
func (s *Store) ExchangeTokens(ctx context.Context, accountID uuid.UUID, amount decimal.Decimal) (*domain.Transaction, error) {
	tx, err := s.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	acct, err := lockAccount(ctx, tx, accountID)
	if err != nil {
		return nil, err
	}

	exchangeTx, err := s.ledger.Exchange(acct, amount, reputation.Exchangeable(acct))
	if err != nil {
		return nil, err
	}

	if err := saveAccount(ctx, tx, acct); err != nil {
		return nil, err
	}
	if err := insertTransaction(ctx, tx, exchangeTx); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit exchange: %w", err)
	}

	s.publish(ctx, messaging.SubjectLedgerEntry, ledgerEntryEvent(exchangeTx))
	return exchangeTx, nil
}

// ListTransactions returns the account's ledger history, newest first
func (s *Store) ListTransactions(ctx context.Context, accountID uuid.UUID, limit int) ([]*domain.Transaction, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, account_id, escrow_id, kind, amount, balance_after,
			counterpart_account_id, description, created_at
		 FROM transactions WHERE account_id = $1
		 ORDER BY created_at DESC LIMIT $2`, accountID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	defer rows.Close()

	var out []*domain.Transaction
	for rows.Next() {
		var t domain.Transaction
		if err := rows.Scan(&t.ID, &t.AccountID, &t.EscrowID, &t.Kind, &t.Amount,
			&t.BalanceAfter, &t.CounterpartAccountID, &t.Description, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		out = append(out, &t)
	}
	return out, rows.Err()
}

// ListReputationEvents returns the account's index history, newest first
func (s *Store) ListReputationEvents(ctx context.Context, accountID uuid.UUID, limit int) ([]*domain.ReputationEvent, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, account_id, delta, index_after, reason, created_at
		 FROM reputation_events WHERE account_id = $1
		 ORDER BY created_at DESC LIMIT $2`, accountID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list reputation events: %w", err)
	}
	defer rows.Close()

	var out []*domain.ReputationEvent
	for rows.Next() {
		var ev domain.ReputationEvent
		if err := rows.Scan(&ev.ID, &ev.AccountID, &ev.Delta, &ev.IndexAfter,
			&ev.Reason, &ev.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan reputation event: %w", err)
		}
		out = append(out, &ev)
	}
	return out, rows.Err()
}
