// Package notifier turns ledger events into operations-channel alerts. It is
// strictly best effort: sinks run detached from the transaction that emitted
// the event, and a failing sink is logged and forgotten.
package notifier

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"

	"cashier/events"
)

// Sink delivers a formatted alert to one destination
type Sink interface {
	// Name identifies the sink in logs
	Name() string

	// Send delivers the message. Errors are reported to the dispatcher,
	// never to the caller that produced the event.
	Send(ctx context.Context, message string) error
}

// Dispatcher formats events and fans them out to the configured sinks
type Dispatcher struct {
	sinks []Sink
}

// NewDispatcher creates a dispatcher over the given sinks
func NewDispatcher(sinks ...Sink) *Dispatcher {
	return &Dispatcher{sinks: sinks}
}

// Register subscribes the dispatcher to the event types it alerts on
func (d *Dispatcher) Register(bus *events.Bus) {
	bus.Subscribe(events.EventTypeUserRegistered, d.handle)
	bus.Subscribe(events.EventTypeUserLoggedIn, d.handle)
	bus.Subscribe(events.EventTypeDepositRequested, d.handle)
	bus.Subscribe(events.EventTypeWithdrawRequested, d.handle)
	bus.Subscribe(events.EventTypeDepositResolved, d.handle)
	bus.Subscribe(events.EventTypeWithdrawResolved, d.handle)
}

func (d *Dispatcher) handle(ctx context.Context, event events.Event) {
	message := formatEvent(event)
	if message == "" {
		return
	}
	for _, sink := range d.sinks {
		if err := sink.Send(ctx, message); err != nil {
			log.WithFields(log.Fields{
				"sink":      sink.Name(),
				"eventType": event.Type(),
				"error":     err,
			}).Warn("Failed to deliver notification")
		}
	}
}

func formatEvent(event events.Event) string {
	switch e := event.(type) {
	case events.UserRegisteredEvent:
		return fmt.Sprintf("🆕 New registration: %s (%s)", e.Username, e.Email)
	case events.UserLoggedInEvent:
		return fmt.Sprintf("🔑 Login: %s (balance %d)", e.Username, e.Balance)
	case events.DepositRequestedEvent:
		return fmt.Sprintf("💰 Deposit request: %s wants to deposit %d via %s (%s)", e.Username, e.Amount, e.Method, e.Contact)
	case events.WithdrawRequestedEvent:
		return fmt.Sprintf("💸 Withdrawal request: %s wants to withdraw %d via %s (%s)", e.Username, e.Amount, e.Method, e.Contact)
	case events.DepositResolvedEvent:
		if e.Bonus > 0 {
			return fmt.Sprintf("✅ Deposit %s for %s: %d (+%d bonus)", e.Status, e.Username, e.Amount, e.Bonus)
		}
		return fmt.Sprintf("✅ Deposit %s for %s: %d", e.Status, e.Username, e.Amount)
	case events.WithdrawResolvedEvent:
		return fmt.Sprintf("✅ Withdrawal %s for %s: %d", e.Status, e.Username, e.Amount)
	default:
		return ""
	}
}
