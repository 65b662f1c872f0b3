package repository

import (
	"context"
	"time"

	"github.com/expensabot/expensa/internal/models"
)

// Repository interface defines all repository operations.
type Repository interface {
	// Ping checks database connectivity
	Ping() error

	// Ledger returns the idempotency ledger repository
	Ledger() LedgerRepository

	// Users returns the user repository
	Users() UserRepository

	// Categories returns the category repository
	Categories() CategoryRepository

	// Transactions returns the transaction repository
	Transactions() TransactionRepository
}

// LedgerRepository is the idempotency ledger: a durable set of claimed
// message IDs with atomic claim-or-reject semantics.
type LedgerRepository interface {
	// Claim atomically reserves a message ID. It returns true when this
	// call created the record, or when it re-armed a record whose prior
	// attempt recorded a failure. It returns false for in-flight or
	// completed records. Storage errors other than "already exists"
	// propagate as retryable failures.
	Claim(ctx context.Context, unit *models.QueuedUnit) (bool, error)

	MarkCompleted(ctx context.Context, messageID string) error
	MarkFailed(ctx context.Context, messageID, errMsg string) error

	// ListStaleIncomplete returns records claimed but not completed for
	// longer than olderThan, for the reclaimer sweep.
	ListStaleIncomplete(ctx context.Context, olderThan time.Duration, limit int) ([]*models.ProcessedMessage, error)

	// MarkReaped stamps a stale record so a fresh delivery can re-claim it.
	MarkReaped(ctx context.Context, messageID string) error
}

// UserRepository resolves senders to user records.
type UserRepository interface {
	GetOrCreate(ctx context.Context, phone, displayName string) (*models.User, error)
}

// CategoryRepository resolves category tags to category records.
type CategoryRepository interface {
	GetOrCreate(ctx context.Context, name string) (*models.Category, error)
}

// TransactionRepository persists expenses.
type TransactionRepository interface {
	// Create inserts one transaction. It returns false without error when
	// a transaction for the same message ID already exists, so replays
	// after a partial failure are harmless.
	Create(ctx context.Context, tx *models.Transaction) (bool, error)
}
