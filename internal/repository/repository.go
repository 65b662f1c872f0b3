// Package repository provides data access for the expense pipeline.
package repository

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
)

// repositoryImpl is the concrete implementation of Repository interface.
type repositoryImpl struct {
	db           *sqlx.DB
	ledger       LedgerRepository
	users        UserRepository
	categories   CategoryRepository
	transactions TransactionRepository
}

// NewRepository creates a new repository instance.
func NewRepository(db *sqlx.DB) Repository {
	return &repositoryImpl{
		db:           db,
		ledger:       NewLedgerRepository(db),
		users:        NewUserRepository(db),
		categories:   NewCategoryRepository(db),
		transactions: NewTransactionRepository(db),
	}
}

func (r *repositoryImpl) Ledger() LedgerRepository {
	return r.ledger
}

func (r *repositoryImpl) Users() UserRepository {
	return r.users
}

func (r *repositoryImpl) Categories() CategoryRepository {
	return r.categories
}

func (r *repositoryImpl) Transactions() TransactionRepository {
	return r.transactions
}

// Ping checks if the database connection is healthy.
func (r *repositoryImpl) Ping() error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	return r.db.PingContext(ctx)
}
