package sse

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wifihub/internal/models"
)

func TestEmitReachesOnlyOwner(t *testing.T) {
	e := NewOrderEventEmitter()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	mine := e.Subscribe(ctx, 1)
	theirs := e.Subscribe(ctx, 2)

	e.Emit(models.OrderEvent{UserID: 1, OrderID: 10, Status: models.StatusPaid})

	select {
	case ev := <-mine:
		assert.Equal(t, int64(10), ev.OrderID)
	case <-time.After(time.Second):
		t.Fatal("owner did not receive event")
	}

	select {
	case <-theirs:
		t.Fatal("other user received event")
	default:
	}
}

func TestSlowClientDoesNotBlock(t *testing.T) {
	e := NewOrderEventEmitter()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch := e.Subscribe(ctx, 1)
	for i := 0; i < clientBuffer+5; i++ {
		e.Emit(models.OrderEvent{UserID: 1, OrderID: int64(i)})
	}
	assert.Len(t, ch, clientBuffer)
}

func TestUnsubscribeOnContextDone(t *testing.T) {
	e := NewOrderEventEmitter()
	ctx, cancel := context.WithCancel(context.Background())

	ch := e.Subscribe(ctx, 7)
	require.Equal(t, 1, e.ClientCount(7))

	cancel()
	require.Eventually(t, func() bool { return e.ClientCount(7) == 0 }, time.Second, 5*time.Millisecond)

	_, open := <-ch
	assert.False(t, open)

	// emitting after removal must not panic
	assert.NotPanics(t, func() { e.Emit(models.OrderEvent{UserID: 7}) })
}

func TestPublishOrderEventOnlyForwardsStatusChanges(t *testing.T) {
	e := NewOrderEventEmitter()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ch := e.Subscribe(ctx, 1)

	require.NoError(t, e.PublishOrderEvent(ctx, models.OrderEvent{Type: models.EventOrderCreated, UserID: 1}))
	require.NoError(t, e.PublishOrderEvent(ctx, models.OrderEvent{Type: models.EventOrderStatusChanged, UserID: 1}))

	assert.Len(t, ch, 1)
}
