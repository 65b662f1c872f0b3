package repository_test

import (
	"context"
	"sync"
	"testing"

	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/expensabot/expensa/internal/models"
	"github.com/expensabot/expensa/internal/repository"
)

func TestUserRepository_GetOrCreate(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	users := repository.NewUserRepository(db)
	ctx := context.Background()

	t.Run("creates a new user", func(t *testing.T) {
		defer cleanupTestData(db)

		user, err := users.GetOrCreate(ctx, "5215512345678", "Ana")
		require.NoError(t, err)
		assert.NotZero(t, user.ID)
		assert.Equal(t, "5215512345678", user.Phone)
		require.True(t, user.DisplayName.Valid)
		assert.Equal(t, "Ana", user.DisplayName.String)
	})

	t.Run("returns the existing user", func(t *testing.T) {
		defer cleanupTestData(db)

		first, err := users.GetOrCreate(ctx, "5215512345678", "Ana")
		require.NoError(t, err)

		second, err := users.GetOrCreate(ctx, "5215512345678", "Ana")
		require.NoError(t, err)
		assert.Equal(t, first.ID, second.ID)
	})

	t.Run("missing display name keeps the stored one", func(t *testing.T) {
		defer cleanupTestData(db)

		first, err := users.GetOrCreate(ctx, "5215512345678", "Ana")
		require.NoError(t, err)

		second, err := users.GetOrCreate(ctx, "5215512345678", "")
		require.NoError(t, err)
		assert.Equal(t, first.ID, second.ID)
		require.True(t, second.DisplayName.Valid)
		assert.Equal(t, "Ana", second.DisplayName.String)
	})

	t.Run("concurrent upserts converge on one row", func(t *testing.T) {
		defer cleanupTestData(db)

		const workers = 8
		ids := make([]int64, workers)
		errs := make([]error, workers)

		var wg sync.WaitGroup
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				user, err := users.GetOrCreate(context.Background(), "5215599999999", "Luz")
				if err == nil {
					ids[i] = user.ID
				}
				errs[i] = err
			}(i)
		}
		wg.Wait()

		for i := 0; i < workers; i++ {
			require.NoError(t, errs[i])
			assert.Equal(t, ids[0], ids[i])
		}
	})
}

func TestCategoryRepository_GetOrCreate(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	categories := repository.NewCategoryRepository(db)
	ctx := context.Background()

	first, err := categories.GetOrCreate(ctx, "comida")
	require.NoError(t, err)
	assert.NotZero(t, first.ID)
	assert.Equal(t, "comida", first.Name)

	second, err := categories.GetOrCreate(ctx, "comida")
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	other, err := categories.GetOrCreate(ctx, "transporte")
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, other.ID)
}

func TestTransactionRepository_Create(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	repo := repository.NewRepository(db)
	ctx := context.Background()

	user, err := repo.Users().GetOrCreate(ctx, "5215512345678", "Ana")
	require.NoError(t, err)
	category, err := repo.Categories().GetOrCreate(ctx, "comida")
	require.NoError(t, err)

	tx := &models.Transaction{
		MessageID:   "wamid.tx1",
		UserID:      user.ID,
		CategoryID:  category.ID,
		AmountCents: 500000,
		Description: "pizza",
	}

	inserted, err := repo.Transactions().Create(ctx, tx)
	require.NoError(t, err)
	assert.True(t, inserted)

	t.Run("replay for the same message inserts nothing", func(t *testing.T) {
		inserted, err := repo.Transactions().Create(ctx, tx)
		require.NoError(t, err)
		assert.False(t, inserted)

		var count int
		require.NoError(t, db.Get(&count, "SELECT COUNT(*) FROM transactions WHERE message_id = $1", "wamid.tx1"))
		assert.Equal(t, 1, count)
	})

	t.Run("non-positive amount is rejected by the schema", func(t *testing.T) {
		_, err := repo.Transactions().Create(ctx, &models.Transaction{
			MessageID:   "wamid.tx2",
			UserID:      user.ID,
			CategoryID:  category.ID,
			AmountCents: 0,
			Description: "nada",
		})
		require.Error(t, err)
	})
}

func TestRepository_Ping(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	repo := repository.NewRepository(db)
	assert.NoError(t, repo.Ping())
}
