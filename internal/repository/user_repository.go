package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/expensabot/expensa/internal/models"
)

type userRepository struct {
	db *sqlx.DB
}

func NewUserRepository(db *sqlx.DB) UserRepository {
	return &userRepository{
		db: db,
	}
}

// GetOrCreate upserts a user by phone number. Concurrent calls for the
// same phone resolve on the unique constraint; the existing row wins and
// both callers see it.
func (r *userRepository) GetOrCreate(ctx context.Context, phone, displayName string) (*models.User, error) {
	query := `
		INSERT INTO users (phone, display_name, created_at, updated_at)
		VALUES ($1, $2, NOW(), NOW())
		ON CONFLICT (phone) DO UPDATE
		SET display_name = COALESCE(EXCLUDED.display_name, users.display_name),
		    updated_at = NOW()
		RETURNING id, phone, display_name, created_at, updated_at
	`

	var name sql.NullString
	if displayName != "" {
		name = sql.NullString{String: displayName, Valid: true}
	}

	var user models.User
	if err := r.db.GetContext(ctx, &user, query, phone, name); err != nil {
		return nil, fmt.Errorf("failed to get or create user %s: %w", phone, err)
	}

	return &user, nil
}
