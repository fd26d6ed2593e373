package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/solsticehq/solstice/internal/model"
)

type SubscriptionStore struct {
	db *sql.DB
}

func NewSubscriptionStore(db *sql.DB) *SubscriptionStore {
	return &SubscriptionStore{db: db}
}

// Create persists a new active subscription. The responses envelope is stored
// as-is; nothing in this path ever sees plaintext answers.
func (s *SubscriptionStore) Create(email string, frequency model.Frequency, frameworks []model.Framework, depth model.AnalysisDepth, responses model.EncryptedPayload) (*model.Subscription, error) {
	now := time.Now().UTC()
	sub := &model.Subscription{
		ID:          uuid.NewString(),
		Email:       email,
		Frequency:   frequency,
		Frameworks:  frameworks,
		Status:      model.StatusActive,
		Responses:   responses,
		NextCheckIn: frequency.Next(now),
		CreatedAt:   now,
	}
	if depth != "" {
		sub.AnalysisDepth = depth
	}

	frameworksJSON, err := json.Marshal(frameworks)
	if err != nil {
		return nil, fmt.Errorf("marshal frameworks: %w", err)
	}

	var depthVal any
	if sub.AnalysisDepth != "" {
		depthVal = string(sub.AnalysisDepth)
	}

	_, err = s.db.Exec(
		`INSERT INTO subscriptions
		     (id, email, frequency, frameworks, analysis_depth, status,
		      responses_data, responses_iv, responses_auth_tag, responses_key_version, responses_encrypted_at,
		      next_check_in, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sub.ID, sub.Email, sub.Frequency, string(frameworksJSON), depthVal, sub.Status,
		responses.Data, responses.IV, responses.AuthTag, responses.KeyVersion, responses.EncryptedAt,
		sub.NextCheckIn, sub.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("create subscription: %w", err)
	}
	return sub, nil
}

const subscriptionColumns = `id, email, frequency, frameworks, analysis_depth, status,
	responses_data, responses_iv, responses_auth_tag, responses_key_version, responses_encrypted_at,
	last_check_in, next_check_in, last_content_generation, created_at`

func (s *SubscriptionStore) GetByID(id string) (*model.Subscription, error) {
	row := s.db.QueryRow(`SELECT `+subscriptionColumns+` FROM subscriptions WHERE id = ?`, id)
	sub, err := scanSubscription(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get subscription: %w", err)
	}
	return sub, nil
}

// ListByEmail returns every subscription registered for an address, newest
// first. This is the relational stand-in for a secondary email index.
func (s *SubscriptionStore) ListByEmail(email string) ([]model.Subscription, error) {
	rows, err := s.db.Query(
		`SELECT `+subscriptionColumns+` FROM subscriptions WHERE email = ? ORDER BY created_at DESC`, email,
	)
	if err != nil {
		return nil, fmt.Errorf("list subscriptions by email: %w", err)
	}
	defer rows.Close()
	return scanSubscriptions(rows)
}

// ScanDue returns every subscription eligible for processing at now, walking
// the table in bounded batches keyed by rowid so a single call never loads the
// whole table at once.
func (s *SubscriptionStore) ScanDue(now time.Time, batchSize int) ([]model.Subscription, error) {
	if batchSize <= 0 {
		batchSize = 50
	}

	var due []model.Subscription
	cursor := int64(0)
	for {
		rows, err := s.db.Query(
			`SELECT rowid, `+subscriptionColumns+`
			 FROM subscriptions
			 WHERE rowid > ? AND status = ? AND next_check_in <= ?
			 ORDER BY rowid LIMIT ?`,
			cursor, model.StatusActive, now.UTC(), batchSize,
		)
		if err != nil {
			return nil, fmt.Errorf("scan due subscriptions: %w", err)
		}

		n := 0
		for rows.Next() {
			var rowid int64
			sub, err := scanSubscriptionWithRowID(rows, &rowid)
			if err != nil {
				rows.Close()
				return nil, fmt.Errorf("scan due subscriptions: %w", err)
			}
			cursor = rowid
			n++
			if sub.Due(now) {
				due = append(due, *sub)
			}
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan due subscriptions: %w", err)
		}
		rows.Close()

		if n < batchSize {
			return due, nil
		}
	}
}

// MarkProcessed records a successful check-in cycle in one statement:
// last_check_in and last_content_generation move to processedAt and
// next_check_in advances to next.
func (s *SubscriptionStore) MarkProcessed(id string, processedAt, next time.Time) error {
	result, err := s.db.Exec(
		`UPDATE subscriptions
		 SET last_check_in = ?, next_check_in = ?, last_content_generation = ?
		 WHERE id = ?`,
		processedAt.UTC(), next.UTC(), processedAt.UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("mark subscription processed: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("mark subscription processed: %s not found", id)
	}
	return nil
}

// UpdateStatus transitions a subscription's lifecycle state.
func (s *SubscriptionStore) UpdateStatus(id string, status model.SubscriptionStatus) error {
	result, err := s.db.Exec(`UPDATE subscriptions SET status = ? WHERE id = ?`, status, id)
	if err != nil {
		return fmt.Errorf("update subscription status: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("update subscription status: %s not found", id)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSubscription(row rowScanner) (*model.Subscription, error) {
	return scanInto(row, nil)
}

func scanSubscriptionWithRowID(row rowScanner, rowid *int64) (*model.Subscription, error) {
	return scanInto(row, rowid)
}

func scanInto(row rowScanner, rowid *int64) (*model.Subscription, error) {
	var sub model.Subscription
	var frameworksJSON string
	var depth sql.NullString
	var lastCheckIn, lastGen sql.NullTime

	dest := []any{}
	if rowid != nil {
		dest = append(dest, rowid)
	}
	dest = append(dest,
		&sub.ID, &sub.Email, &sub.Frequency, &frameworksJSON, &depth, &sub.Status,
		&sub.Responses.Data, &sub.Responses.IV, &sub.Responses.AuthTag,
		&sub.Responses.KeyVersion, &sub.Responses.EncryptedAt,
		&lastCheckIn, &sub.NextCheckIn, &lastGen, &sub.CreatedAt,
	)
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(frameworksJSON), &sub.Frameworks); err != nil {
		return nil, fmt.Errorf("unmarshal frameworks: %w", err)
	}
	if depth.Valid {
		sub.AnalysisDepth = model.AnalysisDepth(depth.String)
	}
	if lastCheckIn.Valid {
		t := lastCheckIn.Time
		sub.LastCheckIn = &t
	}
	if lastGen.Valid {
		t := lastGen.Time
		sub.LastContentGeneration = &t
	}
	return &sub, nil
}

func scanSubscriptions(rows *sql.Rows) ([]model.Subscription, error) {
	var subs []model.Subscription
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, fmt.Errorf("scan subscription: %w", err)
		}
		subs = append(subs, *sub)
	}
	return subs, rows.Err()
}
