// Package ledger implements the TL balance-mutation primitives. Every change
// to an account or escrow balance routes through this engine so the
// conservation invariants hold in exactly one place. The engine itself is
// pure: it mutates loaded entities in memory and returns the transaction
// records to append. The store layer is responsible for persisting both under
// one unit of work.
package ledger

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/timelinkhq/tlcore/internal/domain"
)

// Engine applies balance mutations and produces transaction records
type Engine struct {
	now func() time.Time
}

func NewEngine() *Engine {
	return &Engine{now: time.Now}
}

// SetNowFunc overrides the wall clock, used by tests
func (e *Engine) SetNowFunc(now func() time.Time) {
	e.now = now
}

func (e *Engine) newTransaction(accountID uuid.UUID, escrowID *uuid.UUID, kind domain.TransactionKind, amount, balanceAfter decimal.Decimal, desc string) *domain.Transaction {
	return &domain.Transaction{
		ID:           uuid.New(),
		AccountID:    accountID,
		EscrowID:     escrowID,
		Kind:         kind,
		Amount:       amount,
		BalanceAfter: balanceAfter,
		Description:  desc,
		CreatedAt:    e.now(),
	}
}

// Charge moves TL from the owner's spendable balance into the escrow.
// The escrow high-water mark only ever rises.
func (e *Engine) Charge(acct *domain.Account, esc *domain.Escrow, amount decimal.Decimal) (*domain.Transaction, error) {
	if !amount.IsPositive() {
		return nil, domain.ErrInvalidAmount
	}
	if acct.Forfeited {
		return nil, domain.ErrForbiddenAccount
	}
	if acct.Suspended {
		return nil, domain.ErrSuspendedAccount
	}
	if acct.Balance.LessThan(amount) {
		return nil, domain.ErrInsufficientFunds
	}

	acct.Balance = acct.Balance.Sub(amount)
	esc.Balance = esc.Balance.Add(amount)
	if esc.Balance.GreaterThan(esc.MaxBalance) {
		esc.MaxBalance = esc.Balance
	}

	tx := e.newTransaction(acct.ID, &esc.ID, domain.TxCharge, amount.Neg(), acct.Balance,
		fmt.Sprintf("escrow funded: %s", esc.Title))
	return tx, nil
}

// Split is the outcome of a DeductAndSplit operation
type Split struct {
	Deducted     decimal.Decimal // what actually left the escrow, after clamping
	Revenue      decimal.Decimal // what the creator was credited (zero when held)
	Transactions []*domain.Transaction
}

// DeductAndSplit consumes up to deductAmount from the escrow and credits the
// creator's share. A request larger than the escrow balance is clamped, never
// rejected. Revenue is credited directly only when the escrow is verified and
// not under a dispute hold; otherwise the full share accrues to heldRevenue.
// counterpart identifies the consuming account on the EARN record, when known.
func (e *Engine) DeductAndSplit(esc *domain.Escrow, creator *domain.Account, deductAmount, revenueRate decimal.Decimal, counterpart *uuid.UUID) (*Split, error) {
	if !esc.Balance.IsPositive() {
		return nil, domain.ErrEscrowDepleted
	}
	if deductAmount.GreaterThan(esc.Balance) {
		deductAmount = esc.Balance
	}

	esc.Balance = esc.Balance.Sub(deductAmount)
	share := deductAmount.Mul(revenueRate)

	if esc.VerificationStatus == domain.VerificationVerified && !esc.RevenueHeld {
		creator.Balance = creator.Balance.Add(share)
		creator.TotalEarned = creator.TotalEarned.Add(share)
		esc.ConfirmedRevenue = esc.ConfirmedRevenue.Add(share)

		tx := e.newTransaction(creator.ID, &esc.ID, domain.TxEarn, share, creator.Balance,
			fmt.Sprintf("playback revenue: %s", esc.Title))
		tx.CounterpartAccountID = counterpart
		return &Split{Deducted: deductAmount, Revenue: share, Transactions: []*domain.Transaction{tx}}, nil
	}

	// Unverified or frozen: accrue to the escrow hold, nothing credited
	esc.HeldRevenue = esc.HeldRevenue.Add(share)
	tx := e.newTransaction(creator.ID, &esc.ID, domain.TxHold, share, creator.Balance,
		fmt.Sprintf("revenue held pending verification: %s", esc.Title))
	return &Split{Deducted: deductAmount, Revenue: decimal.Zero, Transactions: []*domain.Transaction{tx}}, nil
}

// ReleaseHold transfers the accumulated heldRevenue to the creator once the
// escrow passes verification. No-op when nothing is held.
func (e *Engine) ReleaseHold(esc *domain.Escrow, creator *domain.Account) (*domain.Transaction, error) {
	if !esc.HeldRevenue.IsPositive() {
		return nil, nil
	}

	amount := esc.HeldRevenue
	creator.Balance = creator.Balance.Add(amount)
	creator.TotalEarned = creator.TotalEarned.Add(amount)
	esc.ConfirmedRevenue = esc.ConfirmedRevenue.Add(amount)
	esc.HeldRevenue = decimal.Zero
	started := e.now()
	esc.RevenueStartedAt = &started

	tx := e.newTransaction(creator.ID, &esc.ID, domain.TxRelease, amount, creator.Balance,
		fmt.Sprintf("held revenue released: %s", esc.Title))
	return tx, nil
}

// Lock freezes the entire spendable balance. balance + lockedBalance is
// conserved.
func (e *Engine) Lock(acct *domain.Account) (*domain.Transaction, error) {
	if acct.Forfeited {
		return nil, domain.ErrForbiddenAccount
	}
	if acct.Suspended {
		return nil, domain.ErrSuspendedAccount
	}

	acct.LockedBalance = acct.Balance
	acct.Balance = decimal.Zero
	acct.Suspended = true

	tx := e.newTransaction(acct.ID, nil, domain.TxLock, acct.LockedBalance.Neg(), decimal.Zero,
		"balance locked by dispute intake")
	return tx, nil
}

// Unlock restores the locked balance, inverse of Lock
func (e *Engine) Unlock(acct *domain.Account) (*domain.Transaction, error) {
	if acct.Forfeited {
		return nil, domain.ErrForbiddenAccount
	}

	acct.Balance = acct.LockedBalance
	acct.LockedBalance = decimal.Zero
	acct.Suspended = false

	tx := e.newTransaction(acct.ID, nil, domain.TxUnlock, acct.Balance, acct.Balance,
		"balance unlocked on dispute close")
	return tx, nil
}

// Forfeit destroys all balances and permanently disables the account. The
// transition is terminal; a second call fails with ErrAlreadyForfeited and
// changes nothing.
func (e *Engine) Forfeit(acct *domain.Account) (*domain.Transaction, error) {
	if acct.Forfeited {
		return nil, domain.ErrAlreadyForfeited
	}

	destroyed := acct.Balance.Add(acct.LockedBalance)
	tx := e.newTransaction(acct.ID, nil, domain.TxForfeit, destroyed.Neg(), decimal.Zero,
		fmt.Sprintf("account forfeited: %s TL destroyed, %s TLC voided",
			destroyed.String(), acct.SecondaryBalance.String()))

	acct.Balance = decimal.Zero
	acct.LockedBalance = decimal.Zero
	acct.SecondaryBalance = decimal.Zero
	acct.Forfeited = true
	acct.Suspended = true

	return tx, nil
}

// InitialGrant credits the registration bonus to a fresh account
func (e *Engine) InitialGrant(acct *domain.Account, amount decimal.Decimal) (*domain.Transaction, error) {
	if !amount.IsPositive() {
		return nil, domain.ErrInvalidAmount
	}

	acct.Balance = acct.Balance.Add(amount)
	tx := e.newTransaction(acct.ID, nil, domain.TxInitial, amount, acct.Balance,
		fmt.Sprintf("registration grant %s TL", amount.String()))
	return tx, nil
}

// Exchange records a cash-out against the exchangeable projection. The cash
// side is settled externally; the ledger only tracks the accumulator.
func (e *Engine) Exchange(acct *domain.Account, amount, exchangeable decimal.Decimal) (*domain.Transaction, error) {
	if !amount.IsPositive() {
		return nil, domain.ErrInvalidAmount
	}
	if acct.Forfeited {
		return nil, domain.ErrForbiddenAccount
	}
	if acct.Suspended {
		return nil, domain.ErrSuspendedAccount
	}
	if amount.GreaterThan(exchangeable) {
		return nil, domain.ErrExceedsExchangeable
	}

	acct.TotalExchanged = acct.TotalExchanged.Add(amount)
	tx := e.newTransaction(acct.ID, nil, domain.TxExchange, amount.Neg(), acct.Balance,
		fmt.Sprintf("exchanged %s TL", amount.String()))
	return tx, nil
}
