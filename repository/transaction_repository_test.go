package repository

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cashier/models"
	"cashier/repository/testutil"
	"cashier/service"
)

func TestTransactionRepository_CreateAndResolve(t *testing.T) {
	testDB := testutil.SetupTestDatabase(t)
	users := NewUserRepository(testDB.DB)
	repo := NewTransactionRepository(testDB.DB)
	ctx := context.Background()

	user := testutil.CreateTestUser("alice")
	_, err := users.Create(ctx, user)
	require.NoError(t, err)

	trx := testutil.CreateTestDeposit(user, 50000)
	created, err := repo.Create(ctx, trx)
	require.NoError(t, err)
	assert.Equal(t, models.TransactionStatusPending, created.Status)
	assert.Nil(t, created.ResolvedAt)

	require.NoError(t, repo.Resolve(ctx, trx.ID, models.TransactionStatusApproved, time.Now()))

	resolved, err := repo.GetByID(ctx, trx.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TransactionStatusApproved, resolved.Status)
	require.NotNil(t, resolved.ResolvedAt)

	// A second resolution attempt loses
	err = repo.Resolve(ctx, trx.ID, models.TransactionStatusRejected, time.Now())
	assert.ErrorIs(t, err, service.ErrAlreadyResolved)

	// And the first decision stands
	still, err := repo.GetByID(ctx, trx.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TransactionStatusApproved, still.Status)
}

func TestTransactionRepository_Resolve_NotFound(t *testing.T) {
	testDB := testutil.SetupTestDatabase(t)
	repo := NewTransactionRepository(testDB.DB)
	ctx := context.Background()

	err := repo.Resolve(ctx, "00000000-0000-0000-0000-000000000000", models.TransactionStatusApproved, time.Now())
	assert.ErrorIs(t, err, service.ErrTransactionNotFound)
}

// Concurrent resolvers race on one pending row; exactly one may win.
func TestTransactionRepository_Resolve_FirstWriterWins(t *testing.T) {
	testDB := testutil.SetupTestDatabase(t)
	users := NewUserRepository(testDB.DB)
	repo := NewTransactionRepository(testDB.DB)
	ctx := context.Background()

	user := testutil.CreateTestUser("bob")
	_, err := users.Create(ctx, user)
	require.NoError(t, err)

	trx := testutil.CreateTestDeposit(user, 50000)
	_, err = repo.Create(ctx, trx)
	require.NoError(t, err)

	const workers = 10
	var wg sync.WaitGroup
	var mu sync.Mutex
	winners := 0

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			status := models.TransactionStatusApproved
			if n%2 == 1 {
				status = models.TransactionStatusRejected
			}
			if err := repo.Resolve(ctx, trx.ID, status, time.Now()); err == nil {
				mu.Lock()
				winners++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, winners)
}

func TestTransactionRepository_ListPending(t *testing.T) {
	testDB := testutil.SetupTestDatabase(t)
	users := NewUserRepository(testDB.DB)
	repo := NewTransactionRepository(testDB.DB)
	ctx := context.Background()

	user := testutil.CreateTestUser("carol")
	_, err := users.Create(ctx, user)
	require.NoError(t, err)

	older := testutil.CreateTestDeposit(user, 10000)
	older.CreatedAt = time.Now().Add(-time.Hour)
	newer := testutil.CreateTestDeposit(user, 20000)
	withdraw := testutil.CreateTestWithdraw(user, 30000)
	resolved := testutil.CreateTestDeposit(user, 40000)

	for _, trx := range []*models.Transaction{older, newer, withdraw, resolved} {
		_, err := repo.Create(ctx, trx)
		require.NoError(t, err)
	}
	require.NoError(t, repo.Resolve(ctx, resolved.ID, models.TransactionStatusApproved, time.Now()))

	t.Run("filtered by type, oldest first", func(t *testing.T) {
		deposits, err := repo.ListPending(ctx, models.TransactionTypeDeposit)
		require.NoError(t, err)
		require.Len(t, deposits, 2)
		assert.Equal(t, older.ID, deposits[0].ID)
		assert.Equal(t, newer.ID, deposits[1].ID)
	})

	t.Run("all types", func(t *testing.T) {
		all, err := repo.ListPending(ctx, "")
		require.NoError(t, err)
		assert.Len(t, all, 3)
	})

	t.Run("count pending by user", func(t *testing.T) {
		count, err := repo.CountPendingByUser(ctx, user.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(3), count)
	})
}

func TestTransactionRepository_ListByUser(t *testing.T) {
	testDB := testutil.SetupTestDatabase(t)
	users := NewUserRepository(testDB.DB)
	repo := NewTransactionRepository(testDB.DB)
	ctx := context.Background()

	user := testutil.CreateTestUser("dave")
	_, err := users.Create(ctx, user)
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		trx := testutil.CreateTestDeposit(user, int64(10000*(i+1)))
		trx.CreatedAt = time.Now().Add(time.Duration(i) * time.Minute)
		_, err := repo.Create(ctx, trx)
		require.NoError(t, err)
	}

	limited, err := repo.ListByUser(ctx, user.ID, 3)
	require.NoError(t, err)
	require.Len(t, limited, 3)
	// Newest first
	assert.Equal(t, int64(50000), limited[0].Amount)

	// Non-positive limits mean no limit
	all, err := repo.ListByUser(ctx, user.ID, 0)
	require.NoError(t, err)
	assert.Len(t, all, 5)

	all, err = repo.ListByUser(ctx, user.ID, -1)
	require.NoError(t, err)
	assert.Len(t, all, 5)
}
