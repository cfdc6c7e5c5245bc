// Package charts ranks shared content by popularity. Live counters sit in
// Redis sorted sets so the ranking survives restarts and stays cheap to
// bump on every play; the authoritative escrow rows back the hydrated
// entries and serve as fallback when Redis is unavailable.
package charts

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const (
	pulseKey       = "charts:pulse"
	dailyKeyPrefix = "charts:plays:"
	dailyTTL       = 48 * time.Hour
)

// Entry is one chart row
type Entry struct {
	EscrowID        uuid.UUID `json:"escrow_id"`
	Title           string    `json:"title"`
	Artist          string    `json:"artist"`
	Genre           string    `json:"genre"`
	Country         string    `json:"country"`
	MediaType       string    `json:"media_type"`
	PlayCount       int64     `json:"play_count"`
	PopularityScore int64     `json:"popularity_score"`
	DailyPlays      int64     `json:"daily_plays"`
}

// Service maintains and serves the popularity rankings
type Service struct {
	db    *sql.DB
	redis *redis.Client
	log   *logrus.Entry
	now   func() time.Time
}

// New builds the chart service. redisClient may be nil, in which case every
// read falls through to SQL and RecordPlay is a no-op.
func New(db *sql.DB, redisClient *redis.Client, log *logrus.Entry) *Service {
	return &Service{db: db, redis: redisClient, log: log, now: time.Now}
}

// SetNowFunc overrides the wall clock, used by tests
func (s *Service) SetNowFunc(now func() time.Time) {
	s.now = now
}

func (s *Service) dailyKey() string {
	return dailyKeyPrefix + s.now().UTC().Format("2006-01-02")
}

// RecordPlay bumps the live counters after a committed playback. Failures
// are logged and swallowed: the SQL popularity column is the source of
// truth and the counters are best-effort.
func (s *Service) RecordPlay(ctx context.Context, escrowID uuid.UUID, pulse int64) {
	if s.redis == nil {
		return
	}

	id := escrowID.String()
	daily := s.dailyKey()
	_, err := s.redis.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.ZIncrBy(ctx, pulseKey, float64(pulse), id)
		p.ZIncrBy(ctx, daily, 1, id)
		p.Expire(ctx, daily, dailyTTL)
		return nil
	})
	if err != nil {
		s.log.WithError(err).WithField("escrow_id", id).Warn("chart counter update failed")
	}
}

// Top returns the highest-ranked shared escrows by accumulated popularity.
// The live Redis ranking is preferred; SQL popularity order serves when
// Redis is down or cold.
func (s *Service) Top(ctx context.Context, limit int) ([]*Entry, error) {
	limit = clampLimit(limit)
	if s.redis != nil {
		entries, err := s.topFromRedis(ctx, pulseKey, limit)
		if err == nil && len(entries) > 0 {
			return entries, nil
		}
		if err != nil {
			s.log.WithError(err).Warn("redis chart read failed, falling back to sql")
		}
	}
	return s.topFromSQL(ctx, limit)
}

// Rising ranks by plays in the current daily window. Falls back to lifetime
// play counts when the live counters are unavailable.
func (s *Service) Rising(ctx context.Context, limit int) ([]*Entry, error) {
	limit = clampLimit(limit)
	if s.redis != nil {
		entries, err := s.topFromRedis(ctx, s.dailyKey(), limit)
		if err == nil && len(entries) > 0 {
			return entries, nil
		}
		if err != nil {
			s.log.WithError(err).Warn("redis rising read failed, falling back to sql")
		}
	}
	return s.risingFromSQL(ctx, limit)
}

// Newest lists chart-eligible escrows registered in the last seven days
func (s *Service) Newest(ctx context.Context, limit int) ([]*Entry, error) {
	limit = clampLimit(limit)
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, title, artist, genre, country, media_type, play_count, popularity_score
		 FROM escrows
		 WHERE shared = TRUE AND verification_status = 'verified'
		   AND created_at > $1
		 ORDER BY created_at DESC
		 LIMIT $2`, s.now().UTC().Add(-7*24*time.Hour), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query new chart: %w", err)
	}
	defer rows.Close()
	return scanEntries(rows)
}

func clampLimit(limit int) int {
	if limit <= 0 || limit > 100 {
		return 20
	}
	return limit
}

func (s *Service) topFromRedis(ctx context.Context, key string, limit int) ([]*Entry, error) {
	ranked, err := s.redis.ZRevRangeWithScores(ctx, key, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, err
	}
	if len(ranked) == 0 {
		return nil, nil
	}

	ids := make([]string, 0, len(ranked))
	for _, z := range ranked {
		idStr := z.Member
		if _, err := uuid.Parse(idStr); err != nil {
			continue
		}
		ids = append(ids, idStr)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	byID, err := s.hydrate(ctx, ids)
	if err != nil {
		return nil, err
	}

	// Daily counts ride along best-effort; missing members score zero
	daily, err := s.redis.ZMScore(ctx, s.dailyKey(), ids...).Result()
	if err != nil {
		daily = nil
	}

	return mergeRanked(ids, byID, daily), nil
}

// mergeRanked keeps the redis ranking order, drops entries that lost chart
// eligibility and attaches the daily play counts.
func mergeRanked(ids []string, byID map[string]*Entry, daily []float64) []*Entry {
	var entries []*Entry
	for i, idStr := range ids {
		entry, ok := byID[idStr]
		if !ok {
			continue
		}
		if daily != nil && i < len(daily) {
			entry.DailyPlays = int64(daily[i])
		}
		entries = append(entries, entry)
	}
	return entries
}

// hydrate loads the chart rows for the ranked escrows in one query. Rows
// that stopped being chart eligible are simply absent from the map.
func (s *Service) hydrate(ctx context.Context, ids []string) (map[string]*Entry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, title, artist, genre, country, media_type, play_count, popularity_score
		 FROM escrows
		 WHERE id = ANY($1) AND shared = TRUE AND verification_status = 'verified'`,
		pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("failed to hydrate chart entries: %w", err)
	}
	defer rows.Close()

	entries, err := scanEntries(rows)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]*Entry, len(entries))
	for _, e := range entries {
		byID[e.EscrowID.String()] = e
	}
	return byID, nil
}

func (s *Service) topFromSQL(ctx context.Context, limit int) ([]*Entry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, title, artist, genre, country, media_type, play_count, popularity_score
		 FROM escrows
		 WHERE shared = TRUE AND verification_status = 'verified'
		 ORDER BY popularity_score DESC, play_count DESC
		 LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query charts: %w", err)
	}
	defer rows.Close()
	return scanEntries(rows)
}

func (s *Service) risingFromSQL(ctx context.Context, limit int) ([]*Entry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, title, artist, genre, country, media_type, play_count, popularity_score
		 FROM escrows
		 WHERE shared = TRUE AND verification_status = 'verified'
		 ORDER BY play_count DESC, popularity_score DESC
		 LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query rising chart: %w", err)
	}
	defer rows.Close()
	return scanEntries(rows)
}

func scanEntries(rows *sql.Rows) ([]*Entry, error) {
	var entries []*Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.EscrowID, &e.Title, &e.Artist, &e.Genre, &e.Country,
			&e.MediaType, &e.PlayCount, &e.PopularityScore); err != nil {
			return nil, fmt.Errorf("failed to scan chart entry: %w", err)
		}
		entries = append(entries, &e)
	}
	return entries, rows.Err()
}
