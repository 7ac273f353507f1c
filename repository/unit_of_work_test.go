package repository

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cashier/events"
	"cashier/repository/testutil"
	"cashier/service"
)

func TestUnitOfWork_CommitPersistsAndFlushesEvents(t *testing.T) {
	testDB := testutil.SetupTestDatabase(t)
	ctx := context.Background()

	eventBus := events.NewBus()
	var mu sync.Mutex
	delivered := 0
	eventBus.Subscribe(events.EventTypeDepositRequested, func(ctx context.Context, event events.Event) {
		mu.Lock()
		delivered++
		mu.Unlock()
	})

	factory := NewUnitOfWorkFactory(testDB.DB, eventBus)

	user := testutil.CreateTestUser("alice")

	uow := factory.Create()
	require.NoError(t, uow.Begin(ctx))
	_, err := uow.UserRepository().Create(ctx, user)
	require.NoError(t, err)
	_, err = uow.TransactionRepository().Create(ctx, testutil.CreateTestDeposit(user, 50000))
	require.NoError(t, err)
	uow.EventBus().Publish(events.DepositRequestedEvent{TransactionID: "trx-1", Username: "alice"})
	require.NoError(t, uow.Commit())
	require.NoError(t, uow.Rollback()) // no-op after commit

	// Data visible outside the transaction
	repo := NewUserRepository(testDB.DB)
	persisted, err := repo.GetByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, user.ID, persisted.ID)

	// Event flushed after commit
	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return delivered == 1
	}, time.Second, 10*time.Millisecond)
}

func TestUnitOfWork_RollbackDiscardsWritesAndEvents(t *testing.T) {
	testDB := testutil.SetupTestDatabase(t)
	ctx := context.Background()

	eventBus := events.NewBus()
	var mu sync.Mutex
	delivered := 0
	eventBus.Subscribe(events.EventTypeUserRegistered, func(ctx context.Context, event events.Event) {
		mu.Lock()
		delivered++
		mu.Unlock()
	})

	factory := NewUnitOfWorkFactory(testDB.DB, eventBus)

	uow := factory.Create()
	require.NoError(t, uow.Begin(ctx))
	_, err := uow.UserRepository().Create(ctx, testutil.CreateTestUser("ghost"))
	require.NoError(t, err)
	uow.EventBus().Publish(events.UserRegisteredEvent{Username: "ghost"})
	require.NoError(t, uow.Rollback())

	repo := NewUserRepository(testDB.DB)
	_, err = repo.GetByUsername(ctx, "ghost")
	assert.ErrorIs(t, err, service.ErrUserNotFound)

	time.Sleep(50 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 0, delivered)
}

func TestUnitOfWork_AtomicAcrossRepositories(t *testing.T) {
	testDB := testutil.SetupTestDatabase(t)
	ctx := context.Background()

	factory := NewUnitOfWorkFactory(testDB.DB, events.NewBus())

	user := testutil.CreateTestUserWithBalance("bob", 50000)
	seed := factory.Create()
	require.NoError(t, seed.Begin(ctx))
	_, err := seed.UserRepository().Create(ctx, user)
	require.NoError(t, err)
	require.NoError(t, seed.Commit())

	// Debit plus transaction record, then roll back: neither survives
	uow := factory.Create()
	require.NoError(t, uow.Begin(ctx))
	_, err = uow.UserRepository().AdjustBalance(ctx, user.ID, -20000)
	require.NoError(t, err)
	_, err = uow.TransactionRepository().Create(ctx, testutil.CreateTestWithdraw(user, 20000))
	require.NoError(t, err)
	require.NoError(t, uow.Rollback())

	repo := NewUserRepository(testDB.DB)
	persisted, err := repo.GetByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(50000), persisted.Balance)

	trxRepo := NewTransactionRepository(testDB.DB)
	pending, err := trxRepo.CountPendingByUser(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), pending)
}

func TestUnitOfWork_ConcurrentBootstrapElectsOneAdmin(t *testing.T) {
	testDB := testutil.SetupTestDatabase(t)
	ctx := context.Background()

	factory := NewUnitOfWorkFactory(testDB.DB, events.NewBus())

	const racers = 8
	var wg sync.WaitGroup
	errs := make(chan error, racers)
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()

			uow := factory.Create()
			if err := uow.Begin(ctx); err != nil {
				errs <- err
				return
			}
			defer uow.Rollback()

			count, err := uow.UserRepository().Count(ctx)
			if err != nil {
				errs <- err
				return
			}
			user := testutil.CreateTestUser(fmt.Sprintf("racer-%d", i))
			user.IsAdmin = count == 0
			if _, err := uow.UserRepository().Create(ctx, user); err != nil {
				errs <- err
				return
			}
			errs <- uow.Commit()
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	users, err := NewUserRepository(testDB.DB).GetAll(ctx)
	require.NoError(t, err)
	require.Len(t, users, racers)

	admins := 0
	for _, u := range users {
		if u.IsAdmin {
			admins++
		}
	}
	assert.Equal(t, 1, admins)
}
