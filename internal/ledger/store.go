// Copyright (c) 2026 John Earle
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package ledger provides a Postgres-backed record of processed warranty
// messages. The ledger is the durable half of the idempotency guard:
// a message marked archived is never processed again, no matter how many
// overlapping poll windows rediscover it. Abandoned messages stay
// retriable — the next window that covers them gets another attempt.
package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Submission statuses recorded in the ledger.
const (
	StatusArchived  = "archived"
	StatusAbandoned = "abandoned"
)

// Record is one processed message in the ledger.
type Record struct {
	ID            int64      `json:"id"`
	MessageID     string     `json:"message_id"`
	CustomerName  string     `json:"customer_name"`
	CustomerEmail string     `json:"customer_email"`
	FolderID      string     `json:"folder_id"`
	Status        string     `json:"status"`
	Reason        string     `json:"reason"`
	ArchivedAt    *time.Time `json:"archived_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// Store provides ledger operations against Postgres.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates a submission ledger backed by the given Postgres pool.
// It ensures the submissions table exists on creation.
func NewStore(ctx context.Context, pool *pgxpool.Pool) (*Store, error) {
	s := &Store{pool: pool}
	if err := s.ensureSchema(ctx); err != nil {
		return nil, fmt.Errorf("ensure ledger schema: %w", err)
	}
	slog.Info("submission ledger initialised")
	return s, nil
}

func (s *Store) ensureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS submissions (
			id             BIGSERIAL PRIMARY KEY,
			message_id     TEXT NOT NULL UNIQUE,
			customer_name  TEXT DEFAULT '',
			customer_email TEXT DEFAULT '',
			folder_id      TEXT DEFAULT '',
			status         TEXT NOT NULL,
			reason         TEXT DEFAULT '',
			archived_at    TIMESTAMPTZ,
			created_at     TIMESTAMPTZ DEFAULT NOW(),
			updated_at     TIMESTAMPTZ DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_submissions_status ON submissions(status);
		CREATE INDEX IF NOT EXISTS idx_submissions_email ON submissions(customer_email);
	`)
	return err
}

// Archived reports whether the message has already produced a committed
// archive folder. This is the check-before-create guard — re-processing an
// archived message is a no-op.
func (s *Store) Archived(ctx context.Context, messageID string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM submissions
			WHERE message_id = $1 AND status = $2
		)
	`, messageID, StatusArchived).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("ledger lookup: %w", err)
	}
	return exists, nil
}

// MarkArchived records a committed archive for the message, keyed uniquely
// on the source message ID.
func (s *Store) MarkArchived(ctx context.Context, messageID, folderID, name, email string) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO submissions
			(message_id, customer_name, customer_email, folder_id, status, reason, archived_at)
		VALUES ($1, $2, $3, $4, $5, '', NOW())
		ON CONFLICT (message_id) DO UPDATE SET
			customer_name  = EXCLUDED.customer_name,
			customer_email = EXCLUDED.customer_email,
			folder_id      = EXCLUDED.folder_id,
			status         = EXCLUDED.status,
			reason         = '',
			archived_at    = NOW(),
			updated_at     = NOW()
	`, messageID, name, email, folderID, StatusArchived)
	if err != nil {
		return fmt.Errorf("ledger mark archived: %w", err)
	}
	return nil
}

// MarkAbandoned records why a message produced no archive. An archived
// message is never downgraded.
func (s *Store) MarkAbandoned(ctx context.Context, messageID, reason string) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO submissions (message_id, status, reason)
		VALUES ($1, $2, $3)
		ON CONFLICT (message_id) DO UPDATE SET
			status     = EXCLUDED.status,
			reason     = EXCLUDED.reason,
			updated_at = NOW()
		WHERE submissions.status <> $4
	`, messageID, StatusAbandoned, reason, StatusArchived)
	if err != nil {
		return fmt.Errorf("ledger mark abandoned: %w", err)
	}
	return nil
}

// Recent returns the most recently updated ledger records, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Record, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, message_id, customer_name, customer_email, folder_id,
		       status, reason, archived_at, created_at, updated_at
		FROM submissions
		ORDER BY updated_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectRecords(rows)
}

// Get retrieves the ledger record for a single message.
func (s *Store) Get(ctx context.Context, messageID string) (*Record, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, message_id, customer_name, customer_email, folder_id,
		       status, reason, archived_at, created_at, updated_at
		FROM submissions
		WHERE message_id = $1
	`, messageID)
	return scanRecord(row)
}

func scanRecord(row pgx.Row) (*Record, error) {
	var r Record
	err := row.Scan(
		&r.ID, &r.MessageID, &r.CustomerName, &r.CustomerEmail, &r.FolderID,
		&r.Status, &r.Reason, &r.ArchivedAt, &r.CreatedAt, &r.UpdatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func collectRecords(rows pgx.Rows) ([]Record, error) {
	var records []Record
	for rows.Next() {
		var r Record
		if err := rows.Scan(
			&r.ID, &r.MessageID, &r.CustomerName, &r.CustomerEmail, &r.FolderID,
			&r.Status, &r.Reason, &r.ArchivedAt, &r.CreatedAt, &r.UpdatedAt,
		); err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	return records, rows.Err()
}
