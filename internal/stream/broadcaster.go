package stream

import (
	"sync"
	"sync/atomic"

	"github.com/AgileSeagull/DIAS/internal/models"
)

// subscriberBuffer is how many undelivered alerts a listener may fall behind
// before new alerts are dropped for it.
const subscriberBuffer = 100

// Broadcaster fans alert events out to live listeners.
type Broadcaster struct {
	subscribers map[uint64]chan *models.AlertEvent
	nextID      atomic.Uint64
	mu          sync.RWMutex
}

func NewBroadcaster() *Broadcaster {
	return &Broadcaster{
		subscribers: make(map[uint64]chan *models.AlertEvent),
	}
}

func (b *Broadcaster) Subscribe() (uint64, chan *models.AlertEvent) {
	id := b.nextID.Add(1)
	ch := make(chan *models.AlertEvent, subscriberBuffer)

	b.mu.Lock()
	b.subscribers[id] = ch
	b.mu.Unlock()

	return id, ch
}

func (b *Broadcaster) Unsubscribe(id uint64) {
	b.mu.Lock()
	if ch, ok := b.subscribers[id]; ok {
		close(ch)
		delete(b.subscribers, id)
	}
	b.mu.Unlock()
}

// Broadcast never blocks; a listener with a full buffer misses the event.
func (b *Broadcaster) Broadcast(e *models.AlertEvent) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, ch := range b.subscribers {
		select {
		case ch <- e:
		default:
		}
	}
}

func (b *Broadcaster) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}

// Close closes all subscriber channels, causing streams to exit gracefully
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for id, ch := range b.subscribers {
		close(ch)
		delete(b.subscribers, id)
	}
}
