package events

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransactionalBus_FlushDeliversToSubscribers(t *testing.T) {
	mainBus := NewBus()
	transactionalBus := NewTransactionalBus(mainBus)

	eventReceived := make(chan DepositRequestedEvent, 1)
	mainBus.Subscribe(EventTypeDepositRequested, func(ctx context.Context, event Event) {
		if depositEvent, ok := event.(DepositRequestedEvent); ok {
			eventReceived <- depositEvent
		} else {
			t.Errorf("Expected DepositRequestedEvent, got %T", event)
		}
	})

	testEvent := DepositRequestedEvent{
		TransactionID: "trx-1",
		UserID:        "user-1",
		Username:      "alice",
		Amount:        50000,
		At:            time.Now(),
	}

	// Publishing alone must not deliver anything
	transactionalBus.Publish(testEvent)
	select {
	case <-eventReceived:
		t.Fatal("Event delivered before flush")
	case <-time.After(50 * time.Millisecond):
	}

	require.NoError(t, transactionalBus.Flush(context.Background()))

	select {
	case received := <-eventReceived:
		assert.Equal(t, "trx-1", received.TransactionID)
		assert.Equal(t, int64(50000), received.Amount)
	case <-time.After(time.Second):
		t.Fatal("Timeout waiting for flushed event")
	}
}

func TestTransactionalBus_DiscardDropsPending(t *testing.T) {
	mainBus := NewBus()
	transactionalBus := NewTransactionalBus(mainBus)

	var mu sync.Mutex
	delivered := 0
	mainBus.Subscribe(EventTypeWithdrawRequested, func(ctx context.Context, event Event) {
		mu.Lock()
		delivered++
		mu.Unlock()
	})

	transactionalBus.Publish(WithdrawRequestedEvent{TransactionID: "trx-1"})
	transactionalBus.Discard()

	// A later flush must not resurrect discarded events
	require.NoError(t, transactionalBus.Flush(context.Background()))
	time.Sleep(50 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 0, delivered)
}

func TestBus_PanickingHandlerDoesNotKillOthers(t *testing.T) {
	bus := NewBus()

	received := make(chan struct{}, 1)
	bus.Subscribe(EventTypeBetPlaced, func(ctx context.Context, event Event) {
		panic("handler bug")
	})
	bus.Subscribe(EventTypeBetPlaced, func(ctx context.Context, event Event) {
		received <- struct{}{}
	})

	bus.Emit(context.Background(), BetPlacedEvent{TransactionID: "trx-1"})

	select {
	case <-received:
	case <-time.After(time.Second):
		t.Fatal("Second handler never ran")
	}
}
