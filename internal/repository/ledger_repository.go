package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/expensabot/expensa/internal/models"
)

// reapedError is the marker stamped on stale claims by the reclaimer. It
// makes the record re-claimable the same way MarkFailed does.
const reapedError = "stale claim reaped"

type ledgerRepository struct {
	db *sqlx.DB
}

func NewLedgerRepository(db *sqlx.DB) LedgerRepository {
	return &ledgerRepository{
		db: db,
	}
}

// Claim reserves a message ID in a single atomic statement. A fresh ID
// inserts a row. An existing row is re-armed only when its previous
// attempt recorded a failure (completed=false, last_error set); clearing
// the error and bumping attempts happens in the same statement, so
// overlapping claims for one ID yield exactly one true. Re-arming also
// refreshes claimed_at, which restarts the staleness clock: without that
// a retry of an old record would look crashed to the reclaimer while it
// is still processing, and get re-published a second time.
func (r *ledgerRepository) Claim(ctx context.Context, unit *models.QueuedUnit) (bool, error) {
	payload, err := json.Marshal(unit)
	if err != nil {
		return false, fmt.Errorf("failed to marshal queued unit: %w", err)
	}

	now := time.Now()
	query := `
		INSERT INTO processed_messages (message_id, sender, first_seen_at, claimed_at, attempts, completed, payload)
		VALUES ($1, $2, $3, $3, 1, FALSE, $4)
		ON CONFLICT (message_id) DO UPDATE
		SET last_error = NULL,
		    claimed_at = EXCLUDED.claimed_at,
		    attempts = processed_messages.attempts + 1
		WHERE processed_messages.completed = FALSE
		  AND processed_messages.last_error IS NOT NULL
		RETURNING message_id
	`

	var claimedID string
	err = r.db.QueryRowxContext(ctx, query, unit.Message.ID, unit.Message.From, now, payload).Scan(&claimedID)
	if errors.Is(err, sql.ErrNoRows) {
		// Row exists and is in flight or completed: duplicate.
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to claim message %s: %w", unit.Message.ID, err)
	}

	return true, nil
}

// MarkCompleted finalizes a ledger record after a successful pipeline run.
func (r *ledgerRepository) MarkCompleted(ctx context.Context, messageID string) error {
	query := `
		UPDATE processed_messages
		SET completed = TRUE,
		    last_error = NULL
		WHERE message_id = $1
	`

	if _, err := r.db.ExecContext(ctx, query, messageID); err != nil {
		return fmt.Errorf("failed to mark message %s completed: %w", messageID, err)
	}

	return nil
}

// MarkFailed annotates a ledger record with the failure that ended this
// attempt, making it re-claimable by the next delivery.
func (r *ledgerRepository) MarkFailed(ctx context.Context, messageID, errMsg string) error {
	query := `
		UPDATE processed_messages
		SET last_error = $2
		WHERE message_id = $1
		  AND completed = FALSE
	`

	if _, err := r.db.ExecContext(ctx, query, messageID, truncateError(errMsg)); err != nil {
		return fmt.Errorf("failed to mark message %s failed: %w", messageID, err)
	}

	return nil
}

// ListStaleIncomplete finds claims that neither completed nor recorded a
// pipeline failure within olderThan. These are crashed attempts the
// broker will never retry on its own. Records already stamped with the
// reap marker are included so a failed re-publish is retried on the next
// sweep.
func (r *ledgerRepository) ListStaleIncomplete(ctx context.Context, olderThan time.Duration, limit int) ([]*models.ProcessedMessage, error) {
	query := `
		SELECT message_id, sender, first_seen_at, claimed_at, attempts, completed, last_error, payload
		FROM processed_messages
		WHERE completed = FALSE
		  AND (last_error IS NULL OR last_error = $3)
		  AND claimed_at < $1
		ORDER BY claimed_at ASC
		LIMIT $2
	`

	var records []*models.ProcessedMessage
	err := r.db.SelectContext(ctx, &records, query, time.Now().Add(-olderThan), limit, reapedError)
	if err != nil {
		return nil, fmt.Errorf("failed to list stale incomplete messages: %w", err)
	}

	return records, nil
}

// MarkReaped stamps a stale record with the reap marker so a re-published
// delivery can claim it again.
func (r *ledgerRepository) MarkReaped(ctx context.Context, messageID string) error {
	query := `
		UPDATE processed_messages
		SET last_error = $2
		WHERE message_id = $1
		  AND completed = FALSE
	`

	if _, err := r.db.ExecContext(ctx, query, messageID, reapedError); err != nil {
		return fmt.Errorf("failed to mark message %s reaped: %w", messageID, err)
	}

	return nil
}

// truncateError bounds the diagnostic text stored on a ledger record.
func truncateError(errMsg string) string {
	const maxLen = 500
	if len(errMsg) > maxLen {
		return errMsg[:maxLen]
	}
	return errMsg
}
