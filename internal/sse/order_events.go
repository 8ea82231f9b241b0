package sse

import (
	"context"
	"sync"

	"wifihub/internal/models"
)

const clientBuffer = 10

// OrderEventEmitter fans order events out to the SSE connections of the
// order's owner.
type OrderEventEmitter struct {
	// key: userID, value: channels of that user's open connections
	clients     map[int64][]chan models.OrderEvent
	clientMutex sync.RWMutex
}

func NewOrderEventEmitter() *OrderEventEmitter {
	return &OrderEventEmitter{
		clients: make(map[int64][]chan models.OrderEvent),
	}
}

// Subscribe registers a client for userID until ctx is done.
func (e *OrderEventEmitter) Subscribe(ctx context.Context, userID int64) <-chan models.OrderEvent {
	clientChan := make(chan models.OrderEvent, clientBuffer)

	e.clientMutex.Lock()
	e.clients[userID] = append(e.clients[userID], clientChan)
	e.clientMutex.Unlock()

	go func() {
		<-ctx.Done()
		e.removeClient(userID, clientChan)
	}()

	return clientChan
}

// Emit broadcasts an event to its owner's clients. Sends are non-blocking so
// a slow client only misses events.
func (e *OrderEventEmitter) Emit(event models.OrderEvent) {
	e.clientMutex.RLock()
	defer e.clientMutex.RUnlock()

	for _, clientChan := range e.clients[event.UserID] {
		select {
		case clientChan <- event:
		default:
		}
	}
}

// PublishOrderEvent lets the emitter stand in for the Kafka producer when
// Kafka is disabled.
func (e *OrderEventEmitter) PublishOrderEvent(_ context.Context, event models.OrderEvent) error {
	if event.Type == models.EventOrderStatusChanged {
		e.Emit(event)
	}
	return nil
}

func (e *OrderEventEmitter) removeClient(userID int64, clientChan chan models.OrderEvent) {
	e.clientMutex.Lock()
	defer e.clientMutex.Unlock()

	clients := e.clients[userID]
	for i, ch := range clients {
		if ch == clientChan {
			e.clients[userID] = append(clients[:i], clients[i+1:]...)
			close(clientChan)
			break
		}
	}

	if len(e.clients[userID]) == 0 {
		delete(e.clients, userID)
	}
}

// ClientCount returns the number of open connections for userID
func (e *OrderEventEmitter) ClientCount(userID int64) int {
	e.clientMutex.RLock()
	defer e.clientMutex.RUnlock()
	return len(e.clients[userID])
}
