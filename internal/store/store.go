// Package store is the persistence layer: every external operation runs as
// one database transaction that locks each mutated row FOR UPDATE, applies
// the pure engines to the loaded entities, and writes entities plus their
// append-only records back together. A version column on accounts and
// escrows detects writers that raced past the row lock; the caller sees
// domain.ErrConflict and retries. Events publish only after commit.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	"github.com/sirupsen/logrus"

	"github.com/timelinkhq/tlcore/internal/dispute"
	"github.com/timelinkhq/tlcore/internal/ledger"
	"github.com/timelinkhq/tlcore/internal/playback"
	"github.com/timelinkhq/tlcore/internal/policy"
	"github.com/timelinkhq/tlcore/internal/reputation"
	"github.com/timelinkhq/tlcore/internal/verification"
)

// Publisher abstracts the event fan-out so the store can run without a
// broker in tests and tools.
type Publisher interface {
	Publish(ctx context.Context, subject string, data interface{}) error
}

// Store executes economy operations against PostgreSQL
type Store struct {
	db       *sql.DB
	ledger   *ledger.Engine
	rep      *reputation.Engine
	playback *playback.Processor
	disputes *dispute.Machine
	verify   *verification.Service
	policy   policy.Provider
	events   Publisher
	log      *logrus.Entry
}

// New wires the engines over an open database handle. events may be nil.
func New(db *sql.DB, pol policy.Provider, events Publisher, log *logrus.Entry) *Store {
	ledgerEngine := ledger.NewEngine()
	repEngine := reputation.NewEngine()
	return &Store{
		db:       db,
		ledger:   ledgerEngine,
		rep:      repEngine,
		playback: playback.NewProcessor(ledgerEngine),
		disputes: dispute.NewMachine(ledgerEngine, repEngine),
		verify:   verification.NewService(ledgerEngine, repEngine),
		policy:   pol,
		events:   events,
		log:      log,
	}
}

// Open connects to PostgreSQL with sane pool limits
func Open(dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return db, nil
}

// DB exposes the underlying handle for read-side collaborators
func (s *Store) DB() *sql.DB {
	return s.db
}

// begin starts a transaction and returns a deferred rollback that is a
// no-op after commit.
func (s *Store) begin(ctx context.Context) (*sql.Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	return tx, nil
}

func (s *Store) publish(ctx context.Context, subject string, data interface{}) {
	if s.events == nil {
		return
	}
	if err := s.events.Publish(ctx, subject, data); err != nil {
		s.log.WithError(err).WithField("subject", subject).Warn("event publish failed")
	}
}
