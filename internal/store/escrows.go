package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/timelinkhq/tlcore/internal/domain"
	"github.com/timelinkhq/tlcore/internal/verification"
	"github.com/timelinkhq/tlcore/pkg/messaging"
)

// EscrowParams describes a new content upload
type EscrowParams struct {
	Title         string
	Artist        string
	Genre         string
	Country       string
	MediaType     string
	InitialCharge decimal.Decimal
}

// CreateEscrow registers a content item and funds it from the owner's
// balance in one transaction. The initial charge is mandatory; an escrow
// never exists without funding.
func (s *Store) CreateEscrow(ctx context.Context, ownerID uuid.UUID, params EscrowParams) (*domain.Escrow, error) {
	now := time.Now()
	esc := &domain.Escrow{
		ID:                 uuid.New(),
		OwnerID:            ownerID,
		Title:              params.Title,
		Artist:             params.Artist,
		Genre:              params.Genre,
		Country:            params.Country,
		MediaType:          params.MediaType,
		VerificationStatus: domain.VerificationUnverified,
		CreatedAt:          now,
		UpdatedAt:          now,
		Version:            1,
	}

	tx, err := s.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	owner, err := lockAccount(ctx, tx, ownerID)
	if err != nil {
		return nil, err
	}

	chargeTx, err := s.ledger.Charge(owner, esc, params.InitialCharge)
	if err != nil {
		return nil, err
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO escrows (id, owner_id, title, artist, genre, country, media_type,
			balance, max_balance, verification_status, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		esc.ID, esc.OwnerID, esc.Title, esc.Artist, esc.Genre, esc.Country,
		esc.MediaType, esc.Balance, esc.MaxBalance, esc.VerificationStatus,
		esc.CreatedAt, esc.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to insert escrow: %w", err)
	}

	if err := saveAccount(ctx, tx, owner); err != nil {
		return nil, err
	}
	if err := insertTransaction(ctx, tx, chargeTx); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit escrow creation: %w", err)
	}

	s.publish(ctx, messaging.SubjectLedgerEntry, ledgerEntryEvent(chargeTx))
	return esc, nil
}

// ChargeEscrow tops up an existing escrow from the owner's balance. Only the
// owner may fund their escrow.
func (s *Store) ChargeEscrow(ctx context.Context, escrowID, ownerID uuid.UUID, amount decimal.Decimal) (*domain.Transaction, error) {
	tx, err := s.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	esc, err := lockEscrow(ctx, tx, escrowID)
	if err != nil {
		return nil, err
	}
	if esc.OwnerID != ownerID {
		return nil, domain.ErrForbiddenAccount
	}

	owner, err := lockAccount(ctx, tx, ownerID)
	if err != nil {
		return nil, err
	}

	chargeTx, err := s.ledger.Charge(owner, esc, amount)
	if err != nil {
		return nil, err
	}

	if err := saveAccount(ctx, tx, owner); err != nil {
		return nil, err
	}
	if err := saveEscrow(ctx, tx, esc); err != nil {
		return nil, err
	}
	if err := insertTransaction(ctx, tx, chargeTx); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit escrow charge: %w", err)
	}

	s.publish(ctx, messaging.SubjectLedgerEntry, ledgerEntryEvent(chargeTx))
	return chargeTx, nil
}

// GetEscrow reads an escrow without locking it
func (s *Store) GetEscrow(ctx context.Context, id uuid.UUID) (*domain.Escrow, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+escrowColumns+` FROM escrows WHERE id = $1`, id)
	return scanEscrow(row)
}

// ListEscrowsByOwner returns the owner's uploads, newest first
func (s *Store) ListEscrowsByOwner(ctx context.Context, ownerID uuid.UUID) ([]*domain.Escrow, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+escrowColumns+` FROM escrows WHERE owner_id = $1
		 ORDER BY created_at DESC`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list escrows: %w", err)
	}
	defer rows.Close()

	var out []*domain.Escrow
	for rows.Next() {
		esc, err := scanEscrow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, esc)
	}
	return out, rows.Err()
}

// SetShared toggles marketplace sharing on a verified escrow
func (s *Store) SetShared(ctx context.Context, escrowID, ownerID uuid.UUID, shared bool) error {
	tx, err := s.begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	esc, err := lockEscrow(ctx, tx, escrowID)
	if err != nil {
		return err
	}
	if esc.OwnerID != ownerID {
		return domain.ErrForbiddenAccount
	}
	if err := s.verify.SetShared(esc, shared); err != nil {
		return err
	}
	if err := saveEscrow(ctx, tx, esc); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit share toggle: %w", err)
	}
	return nil
}

// SubmitVerification runs the verifier over the submission and applies the
// verdict. The verifier call happens before the transaction opens so no row
// lock is held across an external request.
func (s *Store) SubmitVerification(ctx context.Context, escrowID, ownerID uuid.UUID, sub verification.Submission, verifier verification.Verifier) (*verification.Result, error) {
	result, err := verifier.Verify(ctx, sub)
	if err != nil {
		return nil, fmt.Errorf("verifier call failed: %w", err)
	}

	tx, err := s.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	esc, err := lockEscrow(ctx, tx, escrowID)
	if err != nil {
		return nil, err
	}
	if esc.OwnerID != ownerID {
		return nil, domain.ErrForbiddenAccount
	}

	owner, err := lockAccount(ctx, tx, ownerID)
	if err != nil {
		return nil, err
	}

	out, err := s.verify.Submit(esc, owner, result)
	if err != nil {
		return nil, err
	}

	if err := s.recordVerificationRequest(ctx, tx, esc, owner.ID, sub, result, out.Status); err != nil {
		return nil, err
	}
	if err := saveEscrow(ctx, tx, esc); err != nil {
		return nil, err
	}
	if err := saveAccount(ctx, tx, owner); err != nil {
		return nil, err
	}
	if err := insertReputationEvents(ctx, tx, out.ReputationEvents); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit verification submission: %w", err)
	}

	s.publishRecords(ctx, nil, out.ReputationEvents)
	s.publish(ctx, messaging.SubjectVerification, messaging.VerificationEvent{
		EscrowID:  esc.ID,
		OwnerID:   esc.OwnerID,
		Status:    string(out.Status),
		Timestamp: time.Now(),
	})
	return result, nil
}

// FinalizeVerification records the adjudicated decision on a submitted
// escrow. Approval releases held revenue to the owner.
func (s *Store) FinalizeVerification(ctx context.Context, escrowID uuid.UUID, approved bool) (*domain.Escrow, error) {
	tx, err := s.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	esc, err := lockEscrow(ctx, tx, escrowID)
	if err != nil {
		return nil, err
	}
	owner, err := lockAccount(ctx, tx, esc.OwnerID)
	if err != nil {
		return nil, err
	}

	out, err := s.verify.Finalize(esc, owner, approved)
	if err != nil {
		return nil, err
	}

	if err := saveEscrow(ctx, tx, esc); err != nil {
		return nil, err
	}
	if err := saveAccount(ctx, tx, owner); err != nil {
		return nil, err
	}
	if err := insertTransactions(ctx, tx, out.Transactions); err != nil {
		return nil, err
	}
	if err := insertReputationEvents(ctx, tx, out.ReputationEvents); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit verification decision: %w", err)
	}

	s.publishRecords(ctx, out.Transactions, out.ReputationEvents)
	s.publish(ctx, messaging.SubjectVerification, messaging.VerificationEvent{
		EscrowID:  esc.ID,
		OwnerID:   esc.OwnerID,
		Status:    string(out.Status),
		Timestamp: time.Now(),
	})
	return esc, nil
}

func (s *Store) recordVerificationRequest(ctx context.Context, tx *sql.Tx, esc *domain.Escrow, accountID uuid.UUID, sub verification.Submission, result *verification.Result, status domain.VerificationStatus) error {
	subJSON, err := json.Marshal(sub)
	if err != nil {
		return fmt.Errorf("failed to encode submission: %w", err)
	}
	verdictJSON, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to encode verdict: %w", err)
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO verification_requests (id, escrow_id, account_id, submission, verdict, status, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		uuid.New(), esc.ID, accountID, subJSON, verdictJSON, status, time.Now())
	if err != nil {
		return fmt.Errorf("failed to insert verification request: %w", err)
	}
	return nil
}
