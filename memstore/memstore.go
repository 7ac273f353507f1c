// Package memstore provides an in-memory ledger backend implementing the same
// unit-of-work contracts as the Postgres repositories. It backs local
// development without a database and serves as the failover target when the
// primary store is unreachable.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"cashier/events"
	"cashier/models"
	"cashier/service"
)

// Store holds all records behind a single mutex. A unit of work owns the
// mutex from Begin to Commit/Rollback, which linearizes every ledger
// operation; coarse, but the fallback store is not a throughput path.
type Store struct {
	mu           sync.Mutex
	users        map[string]*models.User // keyed by id
	usernames    map[string]string       // username -> id
	transactions map[string]*models.Transaction
}

// NewStore creates an empty in-memory store
func NewStore() *Store {
	return &Store{
		users:        make(map[string]*models.User),
		usernames:    make(map[string]string),
		transactions: make(map[string]*models.Transaction),
	}
}

type factory struct {
	store    *Store
	eventBus *events.Bus
}

// NewFactory creates a UnitOfWork factory over the in-memory store
func NewFactory(store *Store, eventBus *events.Bus) service.UnitOfWorkFactory {
	return &factory{store: store, eventBus: eventBus}
}

func (f *factory) Create() service.UnitOfWork {
	return &unitOfWork{
		store:            f.store,
		transactionalBus: events.NewTransactionalBus(f.eventBus),
	}
}

// unitOfWork holds the store lock for its whole lifetime and keeps an undo
// log of touched records so Rollback restores the pre-Begin state.
type unitOfWork struct {
	store            *Store
	transactionalBus *events.TransactionalBus
	active           bool

	undoUsers        map[string]*models.User
	undoUsernames    map[string]*string
	undoTransactions map[string]*models.Transaction
}

func (u *unitOfWork) Begin(ctx context.Context) error {
	if u.active {
		return service.ErrInvalidState
	}
	u.store.mu.Lock()
	u.active = true
	u.undoUsers = make(map[string]*models.User)
	u.undoUsernames = make(map[string]*string)
	u.undoTransactions = make(map[string]*models.Transaction)
	return nil
}

func (u *unitOfWork) Commit() error {
	if !u.active {
		return service.ErrInvalidState
	}
	u.active = false
	u.undoUsers = nil
	u.undoUsernames = nil
	u.undoTransactions = nil
	u.store.mu.Unlock()
	u.transactionalBus.Flush(context.Background())
	return nil
}

func (u *unitOfWork) Rollback() error {
	if !u.active {
		return nil
	}
	for id, prev := range u.undoUsers {
		if prev == nil {
			delete(u.store.users, id)
		} else {
			u.store.users[id] = prev
		}
	}
	for name, prev := range u.undoUsernames {
		if prev == nil {
			delete(u.store.usernames, name)
		} else {
			u.store.usernames[name] = *prev
		}
	}
	for id, prev := range u.undoTransactions {
		if prev == nil {
			delete(u.store.transactions, id)
		} else {
			u.store.transactions[id] = prev
		}
	}
	u.active = false
	u.undoUsers = nil
	u.undoUsernames = nil
	u.undoTransactions = nil
	u.store.mu.Unlock()
	u.transactionalBus.Discard()
	return nil
}

func (u *unitOfWork) UserRepository() service.UserRepository {
	if !u.active {
		panic("unit of work not started - call Begin() first")
	}
	return &userRepository{uow: u}
}

func (u *unitOfWork) TransactionRepository() service.TransactionRepository {
	if !u.active {
		panic("unit of work not started - call Begin() first")
	}
	return &transactionRepository{uow: u}
}

func (u *unitOfWork) EventBus() service.EventPublisher {
	return u.transactionalBus
}

// snapshot helpers: record the pre-image of a key once per unit of work

func (u *unitOfWork) snapshotUser(id string) {
	if _, seen := u.undoUsers[id]; seen {
		return
	}
	if existing, ok := u.store.users[id]; ok {
		clone := *existing
		u.undoUsers[id] = &clone
	} else {
		u.undoUsers[id] = nil
	}
}

func (u *unitOfWork) snapshotUsername(name string) {
	if _, seen := u.undoUsernames[name]; seen {
		return
	}
	if existing, ok := u.store.usernames[name]; ok {
		clone := existing
		u.undoUsernames[name] = &clone
	} else {
		u.undoUsernames[name] = nil
	}
}

func (u *unitOfWork) snapshotTransaction(id string) {
	if _, seen := u.undoTransactions[id]; seen {
		return
	}
	if existing, ok := u.store.transactions[id]; ok {
		clone := *existing
		u.undoTransactions[id] = &clone
	} else {
		u.undoTransactions[id] = nil
	}
}

type userRepository struct {
	uow *unitOfWork
}

func (r *userRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	store := r.uow.store
	if _, taken := store.usernames[user.Username]; taken {
		return nil, service.ErrDuplicateUsername
	}

	clone := *user
	if clone.CreatedAt.IsZero() {
		clone.CreatedAt = time.Now()
	}
	if clone.LastLogin.IsZero() {
		clone.LastLogin = clone.CreatedAt
	}

	r.uow.snapshotUser(clone.ID)
	r.uow.snapshotUsername(clone.Username)
	store.users[clone.ID] = &clone
	store.usernames[clone.Username] = clone.ID

	out := clone
	return &out, nil
}

func (r *userRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	user, ok := r.uow.store.users[id]
	if !ok {
		return nil, service.ErrUserNotFound
	}
	clone := *user
	return &clone, nil
}

func (r *userRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	id, ok := r.uow.store.usernames[username]
	if !ok {
		return nil, service.ErrUserNotFound
	}
	return r.GetByID(ctx, id)
}

func (r *userRepository) AdjustBalance(ctx context.Context, userID string, delta int64) (int64, error) {
	user, ok := r.uow.store.users[userID]
	if !ok {
		return 0, service.ErrUserNotFound
	}
	if user.Balance+delta < 0 {
		return 0, service.ErrInsufficientFunds
	}
	r.uow.snapshotUser(userID)
	r.uow.store.users[userID].Balance += delta
	return r.uow.store.users[userID].Balance, nil
}

func (r *userRepository) AddTotals(ctx context.Context, userID string, depositDelta, withdrawDelta int64) error {
	if depositDelta < 0 || withdrawDelta < 0 {
		return service.ErrValidation
	}
	user, ok := r.uow.store.users[userID]
	if !ok {
		return service.ErrUserNotFound
	}
	r.uow.snapshotUser(userID)
	user = r.uow.store.users[userID]
	user.TotalDeposit += depositDelta
	user.TotalWithdraw += withdrawDelta
	return nil
}

func (r *userRepository) TouchLastLogin(ctx context.Context, userID string, at time.Time) error {
	if _, ok := r.uow.store.users[userID]; !ok {
		return service.ErrUserNotFound
	}
	r.uow.snapshotUser(userID)
	r.uow.store.users[userID].LastLogin = at
	return nil
}

func (r *userRepository) Count(ctx context.Context) (int64, error) {
	return int64(len(r.uow.store.users)), nil
}

func (r *userRepository) GetAll(ctx context.Context) ([]*models.User, error) {
	users := make([]*models.User, 0, len(r.uow.store.users))
	for _, user := range r.uow.store.users {
		clone := *user
		users = append(users, &clone)
	}
	sort.Slice(users, func(i, j int) bool {
		return users[i].CreatedAt.After(users[j].CreatedAt)
	})
	return users, nil
}

func (r *userRepository) Delete(ctx context.Context, userID string) error {
	user, ok := r.uow.store.users[userID]
	if !ok {
		return service.ErrUserNotFound
	}
	r.uow.snapshotUser(userID)
	r.uow.snapshotUsername(user.Username)
	delete(r.uow.store.usernames, user.Username)
	delete(r.uow.store.users, userID)
	return nil
}

type transactionRepository struct {
	uow *unitOfWork
}

func (r *transactionRepository) Create(ctx context.Context, trx *models.Transaction) (*models.Transaction, error) {
	clone := *trx
	if clone.CreatedAt.IsZero() {
		clone.CreatedAt = time.Now()
	}
	r.uow.snapshotTransaction(clone.ID)
	r.uow.store.transactions[clone.ID] = &clone

	out := clone
	return &out, nil
}

func (r *transactionRepository) GetByID(ctx context.Context, id string) (*models.Transaction, error) {
	trx, ok := r.uow.store.transactions[id]
	if !ok {
		return nil, service.ErrTransactionNotFound
	}
	clone := *trx
	return &clone, nil
}

func (r *transactionRepository) Resolve(ctx context.Context, id string, status models.TransactionStatus, resolvedAt time.Time) error {
	trx, ok := r.uow.store.transactions[id]
	if !ok {
		return service.ErrTransactionNotFound
	}
	if trx.Status != models.TransactionStatusPending {
		return service.ErrAlreadyResolved
	}
	r.uow.snapshotTransaction(id)
	trx = r.uow.store.transactions[id]
	trx.Status = status
	at := resolvedAt
	trx.ResolvedAt = &at
	return nil
}

func (r *transactionRepository) ListPending(ctx context.Context, trxType models.TransactionType) ([]*models.Transaction, error) {
	var trxs []*models.Transaction
	for _, trx := range r.uow.store.transactions {
		if trx.Status != models.TransactionStatusPending {
			continue
		}
		if trxType != "" && trx.Type != trxType {
			continue
		}
		clone := *trx
		trxs = append(trxs, &clone)
	}
	sort.Slice(trxs, func(i, j int) bool {
		return trxs[i].CreatedAt.Before(trxs[j].CreatedAt)
	})
	return trxs, nil
}

func (r *transactionRepository) ListByUser(ctx context.Context, userID string, limit int) ([]*models.Transaction, error) {
	var trxs []*models.Transaction
	for _, trx := range r.uow.store.transactions {
		if trx.UserID != userID {
			continue
		}
		clone := *trx
		trxs = append(trxs, &clone)
	}
	sort.Slice(trxs, func(i, j int) bool {
		return trxs[i].CreatedAt.After(trxs[j].CreatedAt)
	})
	if limit > 0 && len(trxs) > limit {
		trxs = trxs[:limit]
	}
	return trxs, nil
}

func (r *transactionRepository) CountPendingByUser(ctx context.Context, userID string) (int64, error) {
	var count int64
	for _, trx := range r.uow.store.transactions {
		if trx.UserID == userID && trx.Status == models.TransactionStatusPending {
			count++
		}
	}
	return count, nil
}
