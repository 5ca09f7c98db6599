package repository

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/ptrckSTL/BoomOrganized/internal/models"
)

type recipientRepository struct {
	db *sql.DB

	mu        sync.Mutex
	listeners []func()
}

// NewRecipientRepository creates a new recipient repository
func NewRecipientRepository(db *sql.DB) RecipientStore {
	return &recipientRepository{db: db}
}

// AddListener registers a change callback
func (r *recipientRepository) AddListener(fn func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listeners = append(r.listeners, fn)
}

// notify runs every registered listener after a committed mutation
func (r *recipientRepository) notify() {
	r.mu.Lock()
	listeners := make([]func(), len(r.listeners))
	copy(listeners, r.listeners)
	r.mu.Unlock()

	for _, fn := range listeners {
		fn()
	}
}

func nowUTC() string {
	return time.Now().UTC().Format(time.RFC3339)
}

// Upsert inserts or replaces a recipient keyed by its derived id. A
// second upsert of the same (phone, firstName) pair overwrites the other
// fields and keeps the original load position.
func (r *recipientRepository) Upsert(ctx context.Context, recipient *models.Recipient) error {
	query := `
		INSERT INTO bo_recipients (uuid, phone, first_name, last_name, status, position, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, (SELECT COALESCE(MAX(position), 0) + 1 FROM bo_recipients), $6, $6)
		ON CONFLICT (uuid) DO UPDATE SET
			phone = excluded.phone,
			first_name = excluded.first_name,
			last_name = excluded.last_name,
			status = excluded.status,
			updated_at = excluded.updated_at
	`

	_, err := r.db.ExecContext(
		ctx,
		query,
		recipient.UUID,
		recipient.Phone,
		recipient.FirstName,
		recipient.LastName,
		recipient.Status,
		nowUTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert recipient: %w", err)
	}

	r.notify()
	return nil
}

// BulkLoad clears the table and inserts all recipients in one
// transaction; a failure leaves the previous contents untouched.
func (r *recipientRepository) BulkLoad(ctx context.Context, recipients []*models.Recipient) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM bo_recipients`); err != nil {
		return fmt.Errorf("failed to clear recipients: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO bo_recipients (uuid, phone, first_name, last_name, status, position, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
		ON CONFLICT (uuid) DO UPDATE SET
			phone = excluded.phone,
			first_name = excluded.first_name,
			last_name = excluded.last_name,
			status = excluded.status,
			updated_at = excluded.updated_at
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	now := nowUTC()
	for i, recipient := range recipients {
		_, err := stmt.ExecContext(
			ctx,
			recipient.UUID,
			recipient.Phone,
			recipient.FirstName,
			recipient.LastName,
			recipient.Status,
			i+1,
			now,
		)
		if err != nil {
			return fmt.Errorf("failed to insert recipient: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	r.notify()
	return nil
}

// UpdateStatus sets a recipient's delivery status. The store does not
// enforce ordering of transitions; that is the job runner's contract.
func (r *recipientRepository) UpdateStatus(ctx context.Context, uuid string, status models.RecipientStatus) error {
	query := `
		UPDATE bo_recipients
		SET status = $1, updated_at = $2
		WHERE uuid = $3
	`

	result, err := r.db.ExecContext(ctx, query, status, nowUTC(), uuid)
	if err != nil {
		return fmt.Errorf("failed to update recipient status: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return ErrRecipientNotFound
	}

	r.notify()
	return nil
}

// Pending returns all rows in stable load order
func (r *recipientRepository) Pending(ctx context.Context) ([]*models.Recipient, error) {
	query := `
		SELECT uuid, phone, first_name, last_name, status, position, created_at
		FROM bo_recipients
		ORDER BY position ASC
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list recipients: %w", err)
	}
	defer rows.Close()

	recipients := []*models.Recipient{}
	for rows.Next() {
		recipient := &models.Recipient{}
		var createdAt string
		err := rows.Scan(
			&recipient.UUID,
			&recipient.Phone,
			&recipient.FirstName,
			&recipient.LastName,
			&recipient.Status,
			&recipient.Position,
			&createdAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan recipient: %w", err)
		}
		recipient.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		recipients = append(recipients, recipient)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read recipients: %w", err)
	}

	return recipients, nil
}

// Counts folds the table by status
func (r *recipientRepository) Counts(ctx context.Context) (models.RecipientCounts, error) {
	query := `
		SELECT status, COUNT(*)
		FROM bo_recipients
		GROUP BY status
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return models.RecipientCounts{}, fmt.Errorf("failed to count recipients: %w", err)
	}
	defer rows.Close()

	var counts models.RecipientCounts
	for rows.Next() {
		var status models.RecipientStatus
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return models.RecipientCounts{}, fmt.Errorf("failed to scan count: %w", err)
		}
		switch status {
		case models.RecipientStatusPending:
			counts.Pending = n
		case models.RecipientStatusSending:
			counts.Sending = n
		case models.RecipientStatusSent:
			counts.Sent = n
		}
	}
	if err := rows.Err(); err != nil {
		return models.RecipientCounts{}, fmt.Errorf("failed to read counts: %w", err)
	}

	return counts, nil
}

// Clear deletes all rows; used by "fresh start"
func (r *recipientRepository) Clear(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM bo_recipients`); err != nil {
		return fmt.Errorf("failed to clear recipients: %w", err)
	}

	r.notify()
	return nil
}

// ReclaimStale reverts rows stuck in "sending" longer than olderThan
// back to "pending". The reference behavior leaves such rows alone
// forever; this sweep only runs when explicitly enabled.
func (r *recipientRepository) ReclaimStale(ctx context.Context, olderThan time.Duration) (int, error) {
	cutoff := time.Now().UTC().Add(-olderThan).Format(time.RFC3339)
	query := `
		UPDATE bo_recipients
		SET status = $1, updated_at = $2
		WHERE status = $3 AND updated_at < $4
	`

	result, err := r.db.ExecContext(ctx, query, models.RecipientStatusPending, nowUTC(), models.RecipientStatusSending, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to reclaim stale recipients: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rows > 0 {
		r.notify()
	}
	return int(rows), nil
}
