package repository

import (
	"context"
	"fmt"
	"time"

	"cashier/service"

	log "github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
)

// FailoverFactory wraps a primary UnitOfWorkFactory with a circuit breaker.
// While the breaker is closed everything goes to the primary store. After
// repeated Begin failures the breaker opens and, when a fallback factory is
// configured, new units of work are served from it instead of failing fast.
//
// The fallback is a local cache, not a replica: state written there does not
// reach the primary. It exists to keep the platform limping through a store
// outage, mirroring the remote-first/local-fallback shape of the original
// deployment.
type FailoverFactory struct {
	primary  service.UnitOfWorkFactory
	fallback service.UnitOfWorkFactory
	breaker  *gobreaker.CircuitBreaker
}

// NewFailoverFactory creates a failover factory. fallback may be nil, in
// which case an open breaker surfaces ErrStoreUnavailable immediately.
func NewFailoverFactory(primary, fallback service.UnitOfWorkFactory) *FailoverFactory {
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "ledger-store",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.WithFields(log.Fields{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			}).Warn("Ledger store breaker state changed")
		},
	})

	return &FailoverFactory{
		primary:  primary,
		fallback: fallback,
		breaker:  breaker,
	}
}

func (f *FailoverFactory) Create() service.UnitOfWork {
	return &failoverUnitOfWork{factory: f}
}

// failoverUnitOfWork picks its backing unit of work at Begin time and
// delegates everything afterwards.
type failoverUnitOfWork struct {
	factory *FailoverFactory
	inner   service.UnitOfWork
}

func (u *failoverUnitOfWork) Begin(ctx context.Context) error {
	primary := u.factory.primary.Create()
	_, err := u.factory.breaker.Execute(func() (any, error) {
		return nil, primary.Begin(ctx)
	})
	if err == nil {
		u.inner = primary
		return nil
	}

	if u.factory.fallback == nil {
		return fmt.Errorf("%w: %v", service.ErrStoreUnavailable, err)
	}

	log.WithError(err).Warn("Primary ledger store unavailable, serving from local fallback")
	u.inner = u.factory.fallback.Create()
	return u.inner.Begin(ctx)
}

func (u *failoverUnitOfWork) Commit() error {
	if u.inner == nil {
		return fmt.Errorf("no transaction to commit")
	}
	return u.inner.Commit()
}

func (u *failoverUnitOfWork) Rollback() error {
	if u.inner == nil {
		return nil
	}
	return u.inner.Rollback()
}

func (u *failoverUnitOfWork) UserRepository() service.UserRepository {
	return u.inner.UserRepository()
}

func (u *failoverUnitOfWork) TransactionRepository() service.TransactionRepository {
	return u.inner.TransactionRepository()
}

func (u *failoverUnitOfWork) EventBus() service.EventPublisher {
	return u.inner.EventBus()
}
