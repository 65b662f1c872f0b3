package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/expensabot/expensa/internal/models"
)

type transactionRepository struct {
	db *sqlx.DB
}

func NewTransactionRepository(db *sqlx.DB) TransactionRepository {
	return &transactionRepository{
		db: db,
	}
}

// Create inserts one transaction. message_id carries a unique constraint;
// a replayed delivery that re-runs persistence hits the conflict and
// returns false, so duplication is never observable.
func (r *transactionRepository) Create(ctx context.Context, tx *models.Transaction) (bool, error) {
	query := `
		INSERT INTO transactions (message_id, user_id, category_id, amount_cents, description, created_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		ON CONFLICT (message_id) DO NOTHING
	`

	result, err := r.db.ExecContext(ctx, query, tx.MessageID, tx.UserID, tx.CategoryID, tx.AmountCents, tx.Description)
	if err != nil {
		return false, fmt.Errorf("failed to create transaction for message %s: %w", tx.MessageID, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read transaction insert result: %w", err)
	}

	return rows > 0, nil
}
