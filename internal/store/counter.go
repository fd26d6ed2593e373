package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// CounterStore provides shared atomic counters with lazy expiry, backing the
// rate limiter. Increment-and-read happens in a single statement so concurrent
// callers never undercount.
type CounterStore struct {
	db *sql.DB
}

func NewCounterStore(db *sql.DB) *CounterStore {
	return &CounterStore{db: db}
}

// Incr atomically increments the counter for key and returns the new value.
// A counter whose expiry has passed restarts at 1 with a fresh ttl; the first
// increment of a key sets its expiry to now+ttl.
func (s *CounterStore) Incr(ctx context.Context, key string, now time.Time, ttl time.Duration) (int64, error) {
	nowUnix := now.Unix()
	expiresAt := now.Add(ttl).Unix()

	var count int64
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO rate_counters (key, count, expires_at) VALUES (?, 1, ?)
		 ON CONFLICT(key) DO UPDATE SET
		     count = CASE WHEN rate_counters.expires_at <= ? THEN 1 ELSE rate_counters.count + 1 END,
		     expires_at = CASE WHEN rate_counters.expires_at <= ? THEN ? ELSE rate_counters.expires_at END
		 RETURNING count`,
		key, expiresAt, nowUnix, nowUnix, expiresAt,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("increment counter %q: %w", key, err)
	}
	return count, nil
}

// Cleanup removes expired counters. Expiry is already enforced lazily by Incr;
// this just keeps the table from accumulating dead rows.
func (s *CounterStore) Cleanup(now time.Time) error {
	if _, err := s.db.Exec(`DELETE FROM rate_counters WHERE expires_at <= ?`, now.Unix()); err != nil {
		return fmt.Errorf("cleanup counters: %w", err)
	}
	return nil
}
