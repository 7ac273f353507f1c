package memstore

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cashier/events"
	"cashier/models"
	"cashier/service"
)

func newTestFactory() service.UnitOfWorkFactory {
	return NewFactory(NewStore(), events.NewBus())
}

func seedUser(t *testing.T, factory service.UnitOfWorkFactory, user *models.User) {
	t.Helper()
	uow := factory.Create()
	require.NoError(t, uow.Begin(context.Background()))
	defer uow.Rollback()
	_, err := uow.UserRepository().Create(context.Background(), user)
	require.NoError(t, err)
	require.NoError(t, uow.Commit())
}

func TestMemstore_CreateAndGetUser(t *testing.T) {
	ctx := context.Background()
	factory := newTestFactory()

	seedUser(t, factory, &models.User{ID: "user-1", Username: "alice", Balance: 1000})

	uow := factory.Create()
	require.NoError(t, uow.Begin(ctx))
	defer uow.Rollback()

	byID, err := uow.UserRepository().GetByID(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, "alice", byID.Username)

	byName, err := uow.UserRepository().GetByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "user-1", byName.ID)

	_, err = uow.UserRepository().GetByID(ctx, "ghost")
	assert.ErrorIs(t, err, service.ErrUserNotFound)
}

func TestMemstore_DuplicateUsername(t *testing.T) {
	ctx := context.Background()
	factory := newTestFactory()

	seedUser(t, factory, &models.User{ID: "user-1", Username: "alice"})

	uow := factory.Create()
	require.NoError(t, uow.Begin(ctx))
	defer uow.Rollback()

	_, err := uow.UserRepository().Create(ctx, &models.User{ID: "user-2", Username: "alice"})
	assert.ErrorIs(t, err, service.ErrDuplicateUsername)
}

func TestMemstore_AdjustBalance_Floor(t *testing.T) {
	ctx := context.Background()
	factory := newTestFactory()

	seedUser(t, factory, &models.User{ID: "user-1", Username: "alice", Balance: 100})

	uow := factory.Create()
	require.NoError(t, uow.Begin(ctx))

	balance, err := uow.UserRepository().AdjustBalance(ctx, "user-1", -60)
	require.NoError(t, err)
	assert.Equal(t, int64(40), balance)

	_, err = uow.UserRepository().AdjustBalance(ctx, "user-1", -50)
	assert.ErrorIs(t, err, service.ErrInsufficientFunds)

	// The failed debit must not have changed anything
	user, err := uow.UserRepository().GetByID(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, int64(40), user.Balance)

	require.NoError(t, uow.Commit())
}

func TestMemstore_RollbackRestoresState(t *testing.T) {
	ctx := context.Background()
	factory := newTestFactory()

	seedUser(t, factory, &models.User{ID: "user-1", Username: "alice", Balance: 1000})

	uow := factory.Create()
	require.NoError(t, uow.Begin(ctx))

	_, err := uow.UserRepository().AdjustBalance(ctx, "user-1", -500)
	require.NoError(t, err)
	_, err = uow.UserRepository().Create(ctx, &models.User{ID: "user-2", Username: "bob"})
	require.NoError(t, err)
	_, err = uow.TransactionRepository().Create(ctx, &models.Transaction{
		ID: "trx-1", UserID: "user-1", Type: models.TransactionTypeDeposit,
		Status: models.TransactionStatusPending,
	})
	require.NoError(t, err)

	require.NoError(t, uow.Rollback())

	check := factory.Create()
	require.NoError(t, check.Begin(ctx))
	defer check.Rollback()

	user, err := check.UserRepository().GetByID(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, int64(1000), user.Balance)

	_, err = check.UserRepository().GetByID(ctx, "user-2")
	assert.ErrorIs(t, err, service.ErrUserNotFound)

	_, err = check.TransactionRepository().GetByID(ctx, "trx-1")
	assert.ErrorIs(t, err, service.ErrTransactionNotFound)
}

func TestMemstore_ResolveFirstWriterWins(t *testing.T) {
	ctx := context.Background()
	factory := newTestFactory()

	seedUser(t, factory, &models.User{ID: "user-1", Username: "alice"})

	uow := factory.Create()
	require.NoError(t, uow.Begin(ctx))
	_, err := uow.TransactionRepository().Create(ctx, &models.Transaction{
		ID: "trx-1", UserID: "user-1", Type: models.TransactionTypeDeposit,
		Status: models.TransactionStatusPending,
	})
	require.NoError(t, err)
	require.NoError(t, uow.Commit())

	first := factory.Create()
	require.NoError(t, first.Begin(ctx))
	require.NoError(t, first.TransactionRepository().Resolve(ctx, "trx-1", models.TransactionStatusApproved, time.Now()))
	require.NoError(t, first.Commit())

	second := factory.Create()
	require.NoError(t, second.Begin(ctx))
	defer second.Rollback()
	err = second.TransactionRepository().Resolve(ctx, "trx-1", models.TransactionStatusRejected, time.Now())
	assert.ErrorIs(t, err, service.ErrAlreadyResolved)
}

func TestMemstore_ListPendingFiltersAndOrders(t *testing.T) {
	ctx := context.Background()
	factory := newTestFactory()

	seedUser(t, factory, &models.User{ID: "user-1", Username: "alice"})

	base := time.Now()
	uow := factory.Create()
	require.NoError(t, uow.Begin(ctx))
	for i, trx := range []*models.Transaction{
		{ID: "trx-w", Type: models.TransactionTypeWithdraw, Status: models.TransactionStatusPending},
		{ID: "trx-d2", Type: models.TransactionTypeDeposit, Status: models.TransactionStatusPending},
		{ID: "trx-d1", Type: models.TransactionTypeDeposit, Status: models.TransactionStatusPending},
		{ID: "trx-done", Type: models.TransactionTypeDeposit, Status: models.TransactionStatusApproved},
	} {
		trx.UserID = "user-1"
		trx.CreatedAt = base.Add(time.Duration(-i) * time.Minute)
		_, err := uow.TransactionRepository().Create(ctx, trx)
		require.NoError(t, err)
	}
	require.NoError(t, uow.Commit())

	check := factory.Create()
	require.NoError(t, check.Begin(ctx))
	defer check.Rollback()

	deposits, err := check.TransactionRepository().ListPending(ctx, models.TransactionTypeDeposit)
	require.NoError(t, err)
	require.Len(t, deposits, 2)
	// Oldest first
	assert.Equal(t, "trx-d1", deposits[0].ID)
	assert.Equal(t, "trx-d2", deposits[1].ID)

	all, err := check.TransactionRepository().ListPending(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

// Hammers one account with concurrent debits and checks the floor holds:
// exactly balance/amount debits may succeed and the rest must fail cleanly.
func TestMemstore_ConcurrentDebitsNeverOverdraw(t *testing.T) {
	ctx := context.Background()
	factory := newTestFactory()

	const (
		workers     = 50
		debitAmount = 100
		balance     = 1000 // covers only 10 of the 50 debits
	)
	seedUser(t, factory, &models.User{ID: "user-1", Username: "alice", Balance: balance})

	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded := 0

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			uow := factory.Create()
			if err := uow.Begin(ctx); err != nil {
				return
			}
			defer uow.Rollback()

			if _, err := uow.UserRepository().AdjustBalance(ctx, "user-1", -debitAmount); err != nil {
				return
			}
			if err := uow.Commit(); err != nil {
				return
			}
			mu.Lock()
			succeeded++
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, balance/debitAmount, succeeded)

	check := factory.Create()
	require.NoError(t, check.Begin(ctx))
	defer check.Rollback()
	user, err := check.UserRepository().GetByID(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, int64(0), user.Balance)
	assert.GreaterOrEqual(t, user.Balance, int64(0))
}
