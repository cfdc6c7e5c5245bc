package store

import (
	"context"
	"os"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/timelinkhq/tlcore/internal/auth"
	"github.com/timelinkhq/tlcore/internal/domain"
	"github.com/timelinkhq/tlcore/internal/policy"
	"github.com/timelinkhq/tlcore/internal/verification"
	"github.com/timelinkhq/tlcore/pkg/messaging"
)

// capturePublisher records published subjects in place of a live broker
type capturePublisher struct {
	mu       sync.Mutex
	subjects []string
}

func (p *capturePublisher) Publish(ctx context.Context, subject string, data interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.subjects = append(p.subjects, subject)
	return nil
}

func (p *capturePublisher) has(subject string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, s := range p.subjects {
		if s == subject {
			return true
		}
	}
	return false
}

// Integration tests run against a live PostgreSQL instance. Set
// TEST_DATABASE_URL to enable them.
func testStore(t *testing.T) *Store {
	s, _ := testStoreWithEvents(t)
	return s
}

func testStoreWithEvents(t *testing.T) (*Store, *capturePublisher) {
	t.Helper()

	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	db, err := Open(dsn)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	ctx := context.Background()
	require.NoError(t, Migrate(ctx, db))

	pub := &capturePublisher{}
	log := logrus.WithField("service", "test")
	return New(db, policy.NewStatic(policy.Default()), pub, log), pub
}

func testAuth(s *Store) *auth.Service {
	return auth.NewService(s.db, "test-secret")
}

func uniqueName() string {
	return "u" + strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
}

func registerTestAccount(t *testing.T, s *Store) *domain.Account {
	t.Helper()

	name := uniqueName()
	reg, err := testAuth(s).PrepareRegistration(context.Background(),
		name+"@example.com", name, "password123")
	require.NoError(t, err)

	acct, err := s.RegisterAccount(context.Background(), reg)
	require.NoError(t, err)
	return acct
}

func longReason() string {
	return strings.Repeat("illegitimate re-upload of licensed original work ", 2)
}

func TestAccountLifecycle(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	t.Run("should grant the registration bonus", func(t *testing.T) {
		acct := registerTestAccount(t, s)

		assert.True(t, acct.Balance.Equal(decimal.NewFromInt(1000)))
		assert.True(t, acct.ReputationIndex.Equal(decimal.NewFromInt(1)))

		txs, err := s.ListTransactions(ctx, acct.ID, 10)
		require.NoError(t, err)
		require.Len(t, txs, 1)
		assert.Equal(t, domain.TxInitial, txs[0].Kind)
	})

	t.Run("should serve the wallet projections", func(t *testing.T) {
		acct := registerTestAccount(t, s)

		wallet, err := s.Wallet(ctx, acct.ID)
		require.NoError(t, err)
		assert.True(t, wallet.Exchangeable.IsZero())
		assert.True(t, wallet.Mineable.IsZero())
	})
}

func TestRegistration(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	authSvc := testAuth(s)

	t.Run("should commit user and account together", func(t *testing.T) {
		name := uniqueName()
		reg, err := authSvc.PrepareRegistration(ctx, name+"@example.com", name, "password123")
		require.NoError(t, err)

		acct, err := s.RegisterAccount(ctx, reg)
		require.NoError(t, err)
		assert.Equal(t, reg.User.ID, acct.ID)

		// Both halves are visible: the credentials log in and the wallet reads
		_, err = authSvc.Login(ctx, name+"@example.com", "password123")
		require.NoError(t, err)
		_, err = s.GetAccount(ctx, reg.User.ID)
		require.NoError(t, err)
	})

	t.Run("should leave nothing behind when the user insert loses a race", func(t *testing.T) {
		name := uniqueName()

		// Both registrations pass the existence pre-check before either
		// inserts, so the second one fails at the unique constraint
		first, err := authSvc.PrepareRegistration(ctx, name+"@example.com", name, "password123")
		require.NoError(t, err)
		second, err := authSvc.PrepareRegistration(ctx, name+"@example.com", name, "password123")
		require.NoError(t, err)

		_, err = s.RegisterAccount(ctx, first)
		require.NoError(t, err)

		_, err = s.RegisterAccount(ctx, second)
		assert.ErrorIs(t, err, auth.ErrEmailExists)

		// The loser's transaction rolled back whole: no orphan account
		_, err = s.GetAccount(ctx, second.User.ID)
		assert.ErrorIs(t, err, domain.ErrNotFound)
		txs, err := s.ListTransactions(ctx, second.User.ID, 10)
		require.NoError(t, err)
		assert.Empty(t, txs)
	})
}

func TestOptimisticConcurrency(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	t.Run("should surface a conflict when a concurrent writer won", func(t *testing.T) {
		acct := registerTestAccount(t, s)

		stale, err := s.GetAccount(ctx, acct.ID)
		require.NoError(t, err)

		// Another writer bumps the version between our read and write-back
		_, err = s.db.ExecContext(ctx,
			`UPDATE accounts SET version = version + 1 WHERE id = $1`, acct.ID)
		require.NoError(t, err)

		tx, err := s.begin(ctx)
		require.NoError(t, err)
		defer tx.Rollback()

		stale.Balance = stale.Balance.Sub(decimal.NewFromInt(100))
		err = saveAccount(ctx, tx, stale)
		assert.ErrorIs(t, err, domain.ErrConflict)
		require.NoError(t, tx.Rollback())

		// The lost write left no partial effect
		reloaded, err := s.GetAccount(ctx, acct.ID)
		require.NoError(t, err)
		assert.True(t, reloaded.Balance.Equal(decimal.NewFromInt(1000)))
		assert.Equal(t, acct.Version+1, reloaded.Version)
	})

	t.Run("should surface a conflict on a stale escrow write-back", func(t *testing.T) {
		creator := registerTestAccount(t, s)

		esc, err := s.CreateEscrow(ctx, creator.ID, EscrowParams{
			Title:         "Version Race",
			MediaType:     "audio",
			InitialCharge: decimal.NewFromInt(100),
		})
		require.NoError(t, err)

		stale, err := s.GetEscrow(ctx, esc.ID)
		require.NoError(t, err)

		_, err = s.db.ExecContext(ctx,
			`UPDATE escrows SET version = version + 1 WHERE id = $1`, esc.ID)
		require.NoError(t, err)

		tx, err := s.begin(ctx)
		require.NoError(t, err)
		defer tx.Rollback()

		stale.PlayCount++
		err = saveEscrow(ctx, tx, stale)
		assert.ErrorIs(t, err, domain.ErrConflict)
	})
}

func TestEscrowAndPlayback(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	creator := registerTestAccount(t, s)

	esc, err := s.CreateEscrow(ctx, creator.ID, EscrowParams{
		Title:         "Integration Song",
		MediaType:     "audio",
		InitialCharge: decimal.NewFromInt(500),
	})
	require.NoError(t, err)
	assert.True(t, esc.Balance.Equal(decimal.NewFromInt(500)))

	t.Run("should process anonymous playback with held revenue", func(t *testing.T) {
		result, err := s.Playback(ctx, esc.ID, nil, 30, false)
		require.NoError(t, err)

		// Unverified escrow: nothing credited, share held
		assert.True(t, result.Event.Deducted.Equal(decimal.NewFromInt(30)))
		assert.True(t, result.Event.RevenueCredited.IsZero())

		reloaded, err := s.GetEscrow(ctx, esc.ID)
		require.NoError(t, err)
		assert.True(t, reloaded.Balance.Equal(decimal.NewFromInt(470)))
		assert.True(t, reloaded.HeldRevenue.Equal(decimal.NewFromInt(21)))
		assert.Equal(t, int64(1), reloaded.PlayCount)
	})

	t.Run("should release held revenue on verification approval", func(t *testing.T) {
		sub := verification.Submission{
			SourceURL:       "https://suno.com/song/integration",
			CaptureRef:      "cap.png",
			PaymentProofRef: "receipt.pdf",
		}
		_, err := s.SubmitVerification(ctx, esc.ID, creator.ID, sub, verification.NewHeuristicVerifier())
		require.NoError(t, err)

		reloaded, err := s.FinalizeVerification(ctx, esc.ID, true)
		require.NoError(t, err)
		assert.Equal(t, domain.VerificationVerified, reloaded.VerificationStatus)
		assert.True(t, reloaded.HeldRevenue.IsZero())

		wallet, err := s.Wallet(ctx, creator.ID)
		require.NoError(t, err)
		assert.True(t, wallet.Account.Balance.GreaterThan(decimal.NewFromInt(500)))
	})
}

func TestDisputeEvents(t *testing.T) {
	s, pub := testStoreWithEvents(t)
	ctx := context.Background()

	creator := registerTestAccount(t, s)
	disputer := registerTestAccount(t, s)

	esc, err := s.CreateEscrow(ctx, creator.ID, EscrowParams{
		Title:         "Audited Track",
		MediaType:     "audio",
		InitialCharge: decimal.NewFromInt(100),
	})
	require.NoError(t, err)

	d, err := s.OpenDispute(ctx, esc.ID, disputer.ID, domain.CategoryCopyright, longReason(), nil)
	require.NoError(t, err)
	assert.True(t, pub.has(messaging.SubjectDisputeOpened))

	t.Run("should announce the move into review", func(t *testing.T) {
		reviewed, err := s.ReviewDispute(ctx, d.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.DisputeReviewing, reviewed.Status)
		assert.True(t, pub.has(messaging.SubjectDisputeReview))
	})

	t.Run("should announce the resolution", func(t *testing.T) {
		_, err := s.ResolveDispute(ctx, d.ID, true, "confirmed infringement")
		require.NoError(t, err)
		assert.True(t, pub.has(messaging.SubjectDisputeResolved))
	})
}

func TestDisputeLifecycle(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	creator := registerTestAccount(t, s)
	disputer := registerTestAccount(t, s)

	esc, err := s.CreateEscrow(ctx, creator.ID, EscrowParams{
		Title:         "Contested Track",
		MediaType:     "audio",
		InitialCharge: decimal.NewFromInt(100),
	})
	require.NoError(t, err)

	d, err := s.OpenDispute(ctx, esc.ID, disputer.ID, domain.CategoryCopyright, longReason(), nil)
	require.NoError(t, err)
	assert.Equal(t, domain.DisputePending, d.Status)

	t.Run("should block playback while under dispute", func(t *testing.T) {
		_, err := s.Playback(ctx, esc.ID, nil, 10, false)
		assert.ErrorIs(t, err, domain.ErrContentUnderReview)
	})

	t.Run("should restore the disputer on rejection", func(t *testing.T) {
		resolved, err := s.ResolveDispute(ctx, d.ID, false, "unsubstantiated")
		require.NoError(t, err)
		assert.Equal(t, domain.DisputeRejected, resolved.Status)
		assert.True(t, resolved.FalseStrikeAdded)

		acct, err := s.GetAccount(ctx, disputer.ID)
		require.NoError(t, err)
		assert.Equal(t, 1, acct.FalseDisputeStrikes)
		assert.True(t, acct.Balance.Equal(decimal.NewFromInt(1000)))
		assert.False(t, acct.Suspended)
	})

	t.Run("should refuse double resolution", func(t *testing.T) {
		_, err := s.ResolveDispute(ctx, d.ID, true, "")
		assert.ErrorIs(t, err, domain.ErrAlreadyResolved)
	})
}
