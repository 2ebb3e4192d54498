// internal/event/bus.go
package event

import (
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"serial-bridge/internal/model"
)

// Listener receives every event published on the bus, in emission order.
// Listeners run on the bus dispatcher goroutine and must not block for long.
type Listener func(model.Event)

// Bus fans events out to registered listeners through a single dispatcher
// goroutine. Publish never blocks and never drops.
type Bus struct {
	mutex     sync.Mutex
	cond      *sync.Cond
	queue     []model.Event
	listeners map[uuid.UUID]Listener
	order     []uuid.UUID
	closed    bool
	done      chan struct{}
	logger    *zap.Logger
}

// NewBus creates a bus and starts its dispatcher
func NewBus(logger *zap.Logger) *Bus {
	if logger == nil {
		logger = zap.NewNop()
	}
	b := &Bus{
		listeners: make(map[uuid.UUID]Listener),
		done:      make(chan struct{}),
		logger:    logger.With(zap.String("component", "event-bus")),
	}
	b.cond = sync.NewCond(&b.mutex)
	go b.run()
	return b
}

// Subscribe registers a listener and returns its subscription ID
func (b *Bus) Subscribe(listener Listener) uuid.UUID {
	id := uuid.New()
	b.add(id, listener)
	return id
}

func (b *Bus) add(id uuid.UUID, listener Listener) {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	b.listeners[id] = listener
	b.order = append(b.order, id)
	b.logger.Debug("Listener subscribed", zap.String("subscription_id", id.String()))
}

// SubscribeChan registers a channel-backed listener. Events that do not fit in
// the channel buffer are dropped for that subscriber only.
func (b *Bus) SubscribeChan(size int) (uuid.UUID, <-chan model.Event) {
	ch := make(chan model.Event, size)
	id := uuid.New()
	b.add(id, func(e model.Event) {
		select {
		case ch <- e:
		default:
			b.logger.Warn("Subscriber channel full, dropping event",
				zap.String("subscription_id", id.String()),
				zap.String("event_type", string(e.Type)),
			)
		}
	})
	return id, ch
}

// Unsubscribe removes a listener. Unknown IDs are ignored.
func (b *Bus) Unsubscribe(id uuid.UUID) {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	if _, ok := b.listeners[id]; !ok {
		return
	}
	delete(b.listeners, id)
	for i, existing := range b.order {
		if existing == id {
			b.order = append(b.order[:i], b.order[i+1:]...)
			break
		}
	}
	b.logger.Debug("Listener unsubscribed", zap.String("subscription_id", id.String()))
}

// Publish queues an event for delivery
func (b *Bus) Publish(e model.Event) {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	if b.closed {
		return
	}
	b.queue = append(b.queue, e)
	b.cond.Signal()
}

// Close delivers already queued events, then stops the dispatcher
func (b *Bus) Close() {
	b.mutex.Lock()
	if b.closed {
		b.mutex.Unlock()
		<-b.done
		return
	}
	b.closed = true
	b.cond.Signal()
	b.mutex.Unlock()
	<-b.done
}

func (b *Bus) run() {
	defer close(b.done)

	for {
		b.mutex.Lock()
		for len(b.queue) == 0 && !b.closed {
			b.cond.Wait()
		}
		if len(b.queue) == 0 && b.closed {
			b.mutex.Unlock()
			return
		}
		e := b.queue[0]
		b.queue[0] = model.Event{}
		b.queue = b.queue[1:]
		listeners := make([]Listener, 0, len(b.order))
		for _, id := range b.order {
			listeners = append(listeners, b.listeners[id])
		}
		b.mutex.Unlock()

		for _, listener := range listeners {
			b.deliver(listener, e)
		}
	}
}

func (b *Bus) deliver(listener Listener, e model.Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("Listener panicked",
				zap.Any("panic", r),
				zap.String("event_type", string(e.Type)),
				zap.Stack("stacktrace"),
			)
		}
	}()
	listener(e)
}
