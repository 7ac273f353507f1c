package repository

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cashier/repository/testutil"
	"cashier/service"
)

func TestUserRepository_CreateAndGet(t *testing.T) {
	testDB := testutil.SetupTestDatabase(t)
	repo := NewUserRepository(testDB.DB)
	ctx := context.Background()

	t.Run("create and retrieve", func(t *testing.T) {
		original := testutil.CreateTestUser("alice")
		created, err := repo.Create(ctx, original)
		require.NoError(t, err)
		assert.Equal(t, original.ID, created.ID)

		byID, err := repo.GetByID(ctx, original.ID)
		require.NoError(t, err)
		assert.Equal(t, "alice", byID.Username)
		assert.Equal(t, int64(100000), byID.Balance)

		byName, err := repo.GetByUsername(ctx, "alice")
		require.NoError(t, err)
		assert.Equal(t, original.ID, byName.ID)
	})

	t.Run("duplicate username", func(t *testing.T) {
		dup := testutil.CreateTestUser("alice")
		_, err := repo.Create(ctx, dup)
		assert.ErrorIs(t, err, service.ErrDuplicateUsername)
	})

	t.Run("not found", func(t *testing.T) {
		_, err := repo.GetByID(ctx, "00000000-0000-0000-0000-000000000000")
		assert.ErrorIs(t, err, service.ErrUserNotFound)

		_, err = repo.GetByUsername(ctx, "nobody")
		assert.ErrorIs(t, err, service.ErrUserNotFound)
	})
}

func TestUserRepository_AdjustBalance(t *testing.T) {
	testDB := testutil.SetupTestDatabase(t)
	repo := NewUserRepository(testDB.DB)
	ctx := context.Background()

	user := testutil.CreateTestUserWithBalance("bob", 1000)
	_, err := repo.Create(ctx, user)
	require.NoError(t, err)

	t.Run("credit and debit", func(t *testing.T) {
		balance, err := repo.AdjustBalance(ctx, user.ID, 500)
		require.NoError(t, err)
		assert.Equal(t, int64(1500), balance)

		balance, err = repo.AdjustBalance(ctx, user.ID, -1500)
		require.NoError(t, err)
		assert.Equal(t, int64(0), balance)
	})

	t.Run("floor at zero", func(t *testing.T) {
		_, err := repo.AdjustBalance(ctx, user.ID, -1)
		assert.ErrorIs(t, err, service.ErrInsufficientFunds)

		current, err := repo.GetByID(ctx, user.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(0), current.Balance)
	})

	t.Run("unknown user", func(t *testing.T) {
		_, err := repo.AdjustBalance(ctx, "00000000-0000-0000-0000-000000000000", 100)
		assert.ErrorIs(t, err, service.ErrUserNotFound)
	})
}

// Concurrent debits against one row: the conditional update must admit
// exactly as many as the balance covers.
func TestUserRepository_AdjustBalance_Concurrent(t *testing.T) {
	testDB := testutil.SetupTestDatabase(t)
	repo := NewUserRepository(testDB.DB)
	ctx := context.Background()

	const (
		workers     = 20
		debitAmount = 100
		balance     = 500
	)
	user := testutil.CreateTestUserWithBalance("carol", balance)
	_, err := repo.Create(ctx, user)
	require.NoError(t, err)

	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded := 0

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := repo.AdjustBalance(ctx, user.ID, -debitAmount); err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, balance/debitAmount, succeeded)

	final, err := repo.GetByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), final.Balance)
}

func TestUserRepository_TotalsAndDelete(t *testing.T) {
	testDB := testutil.SetupTestDatabase(t)
	repo := NewUserRepository(testDB.DB)
	ctx := context.Background()

	user := testutil.CreateTestUser("dave")
	_, err := repo.Create(ctx, user)
	require.NoError(t, err)

	require.NoError(t, repo.AddTotals(ctx, user.ID, 50000, 0))
	require.NoError(t, repo.AddTotals(ctx, user.ID, 0, 20000))

	current, err := repo.GetByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(50000), current.TotalDeposit)
	assert.Equal(t, int64(20000), current.TotalWithdraw)

	require.NoError(t, repo.Delete(ctx, user.ID))
	_, err = repo.GetByID(ctx, user.ID)
	assert.ErrorIs(t, err, service.ErrUserNotFound)
}

func TestUserRepository_Count(t *testing.T) {
	testDB := testutil.SetupTestDatabase(t)
	repo := NewUserRepository(testDB.DB)
	ctx := context.Background()

	count, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)

	_, err = repo.Create(ctx, testutil.CreateTestUser("eve"))
	require.NoError(t, err)

	count, err = repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}
