package events

import (
	"context"
	"sync"
	"time"

	"cashier/models"

	log "github.com/sirupsen/logrus"
)

// EventType represents different types of events in the system
type EventType string

const (
	EventTypeUserRegistered    EventType = "user_registered"
	EventTypeUserLoggedIn      EventType = "user_logged_in"
	EventTypeDepositRequested  EventType = "deposit_requested"
	EventTypeWithdrawRequested EventType = "withdraw_requested"
	EventTypeDepositResolved   EventType = "deposit_resolved"
	EventTypeWithdrawResolved  EventType = "withdraw_resolved"
	EventTypeBetPlaced         EventType = "bet_placed"
)

// Event is the base interface for all events
type Event interface {
	Type() EventType
}

// UserRegisteredEvent represents a new account registration
type UserRegisteredEvent struct {
	UserID   string
	Username string
	Email    string
	Phone    string
	At       time.Time
}

func (e UserRegisteredEvent) Type() EventType {
	return EventTypeUserRegistered
}

// UserLoggedInEvent represents a successful login
type UserLoggedInEvent struct {
	UserID   string
	Username string
	Balance  int64
	At       time.Time
}

func (e UserLoggedInEvent) Type() EventType {
	return EventTypeUserLoggedIn
}

// DepositRequestedEvent represents a deposit awaiting admin confirmation
type DepositRequestedEvent struct {
	TransactionID string
	UserID        string
	Username      string
	Amount        int64
	Method        string
	Contact       string
	At            time.Time
}

func (e DepositRequestedEvent) Type() EventType {
	return EventTypeDepositRequested
}

// WithdrawRequestedEvent represents a withdrawal hold awaiting admin confirmation
type WithdrawRequestedEvent struct {
	TransactionID string
	UserID        string
	Username      string
	Amount        int64
	Method        string
	Contact       string
	At            time.Time
}

func (e WithdrawRequestedEvent) Type() EventType {
	return EventTypeWithdrawRequested
}

// DepositResolvedEvent represents an admin decision on a pending deposit
type DepositResolvedEvent struct {
	TransactionID string
	Username      string
	Amount        int64
	Bonus         int64
	Status        models.TransactionStatus
	At            time.Time
}

func (e DepositResolvedEvent) Type() EventType {
	return EventTypeDepositResolved
}

// WithdrawResolvedEvent represents an admin decision on a pending withdrawal
type WithdrawResolvedEvent struct {
	TransactionID string
	Username      string
	Amount        int64
	Status        models.TransactionStatus
	At            time.Time
}

func (e WithdrawResolvedEvent) Type() EventType {
	return EventTypeWithdrawResolved
}

// BetPlacedEvent represents a settled bet
type BetPlacedEvent struct {
	TransactionID string
	UserID        string
	Username      string
	BetAmount     int64
	WinAmount     int64
	IsWin         bool
	NewBalance    int64
}

func (e BetPlacedEvent) Type() EventType {
	return EventTypeBetPlaced
}

// Handler is a function that handles events
type Handler func(ctx context.Context, event Event)

// Bus manages event subscriptions and dispatching
type Bus struct {
	mu       sync.RWMutex
	handlers map[EventType][]Handler
}

// NewBus creates a new event bus
func NewBus() *Bus {
	return &Bus{
		handlers: make(map[EventType][]Handler),
	}
}

// Subscribe adds a handler for a specific event type
func (b *Bus) Subscribe(eventType EventType, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.handlers[eventType] == nil {
		b.handlers[eventType] = make([]Handler, 0)
	}
	b.handlers[eventType] = append(b.handlers[eventType], handler)

	log.WithFields(log.Fields{
		"eventType":    eventType,
		"handlerCount": len(b.handlers[eventType]),
	}).Debug("Subscribed handler to event type")
}

// Emit publishes an event to all registered handlers
func (b *Bus) Emit(ctx context.Context, event Event) {
	b.mu.RLock()
	handlers := make([]Handler, len(b.handlers[event.Type()]))
	copy(handlers, b.handlers[event.Type()])
	b.mu.RUnlock()

	// Call handlers asynchronously to avoid blocking
	for i, handler := range handlers {
		go func(h Handler, handlerIndex int) {
			defer func() {
				if r := recover(); r != nil {
					log.WithFields(log.Fields{
						"eventType":    event.Type(),
						"handlerIndex": handlerIndex,
						"panic":        r,
					}).Error("Event handler panicked")
				}
			}()
			h(ctx, event)
		}(handler, i)
	}
}

// A transactional event bus for holding pending events coupled to the Unit of Work.
// Flushes to the underlying event bus.
type TransactionalBus struct {
	real    *Bus
	pending []Event // stashed until Flush
}

func NewTransactionalBus(real *Bus) *TransactionalBus {
	return &TransactionalBus{real: real}
}

func (b *TransactionalBus) Publish(e Event) {
	b.pending = append(b.pending, e)
}

// called after successful DB commit
func (b *TransactionalBus) Flush(ctx context.Context) error {
	// Use background context for event emission: events are processed
	// independently of the transaction lifecycle
	eventCtx := context.Background()

	for _, ev := range b.pending {
		b.real.Emit(eventCtx, ev)
	}
	b.pending = nil
	return nil
}

// called after db rollback or to clear state.
func (b *TransactionalBus) Discard() {
	b.pending = nil
}
