package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/expensabot/expensa/internal/models"
)

type categoryRepository struct {
	db *sqlx.DB
}

func NewCategoryRepository(db *sqlx.DB) CategoryRepository {
	return &categoryRepository{
		db: db,
	}
}

// GetOrCreate upserts a category by name. The DO UPDATE no-op makes
// RETURNING yield the row on both insert and conflict.
func (r *categoryRepository) GetOrCreate(ctx context.Context, name string) (*models.Category, error) {
	query := `
		INSERT INTO categories (name, created_at)
		VALUES ($1, NOW())
		ON CONFLICT (name) DO UPDATE
		SET name = EXCLUDED.name
		RETURNING id, name, created_at
	`

	var category models.Category
	if err := r.db.GetContext(ctx, &category, query, name); err != nil {
		return nil, fmt.Errorf("failed to get or create category %s: %w", name, err)
	}

	return &category, nil
}
