// Package event carries progress notifications from a running agent to
// whoever wants to render or record them. Delivery is asynchronous and
// lossy under pressure: a slow subscriber never stalls the agent loop.
package event

import (
	"context"
	"log/slog"
	"reflect"
	"runtime/debug"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
)

// Event is a compile-time marker for publishable types.
type Event[T any] interface {
	Event()
}

// Handler receives events of type T asynchronously. Handlers do not
// return errors; a panicking handler is recovered and logged.
type Handler[T any] func(context.Context, T)

// Filter decides whether a subscriber sees a particular event.
type Filter[T any] func(T) bool

const (
	workerCount    = 4
	workQueueDepth = 256
)

type Bus struct {
	ctx         context.Context
	cancel      context.CancelFunc
	subscribers map[reflect.Type][]subscriber
	mu          sync.RWMutex
	wg          sync.WaitGroup
	closed      atomic.Bool

	queue chan delivery

	metrics *busMetrics
}

type delivery struct {
	event     any
	eventType string
	invoke    func(context.Context, any)
}

type subscriber struct {
	id      uuid.UUID
	invoke  func(context.Context, any)
	channel any
}

type Subscription struct {
	bus       *Bus
	eventType reflect.Type
	id        uuid.UUID
	once      sync.Once
}

// NewBus starts the delivery workers. Pass a nil registerer to disable
// metrics.
func NewBus(registry prometheus.Registerer) *Bus {
	ctx, cancel := context.WithCancel(context.Background())

	bus := &Bus{
		ctx:         ctx,
		cancel:      cancel,
		subscribers: make(map[reflect.Type][]subscriber),
		queue:       make(chan delivery, workQueueDepth),
		metrics:     newBusMetrics(registry),
	}

	for range workerCount {
		bus.wg.Add(1)
		go bus.worker()
	}

	return bus
}

func (bus *Bus) worker() {
	defer bus.wg.Done()

	for {
		select {
		case <-bus.ctx.Done():
			return
		case item := <-bus.queue:
			bus.deliver(item)
		}
	}
}

func (bus *Bus) deliver(item delivery) {
	defer func() {
		if r := recover(); r != nil {
			slog.ErrorContext(bus.ctx, "panic in event handler",
				"error", r,
				"event_type", item.eventType,
				"stack", string(debug.Stack()),
			)
		}
	}()

	item.invoke(bus.ctx, item.event)
	bus.metrics.IncrementDelivered(item.eventType)
}

// Subscribe registers a handler for events of type T. A nil filter
// matches everything.
func Subscribe[T Event[T]](bus *Bus, handler Handler[T], filter Filter[T]) *Subscription {
	if bus.closed.Load() {
		slog.WarnContext(bus.ctx, "subscribe on closed event bus")
		return &Subscription{bus: bus}
	}

	var zero T
	eventType := reflect.TypeOf(zero)

	if filter == nil {
		filter = func(T) bool { return true }
	}

	id := uuid.New()
	sub := subscriber{
		id: id,
		invoke: func(ctx context.Context, event any) {
			if typed, ok := event.(T); ok && filter(typed) {
				handler(ctx, typed)
			}
		},
	}

	bus.mu.Lock()
	defer bus.mu.Unlock()
	bus.subscribers[eventType] = append(bus.subscribers[eventType], sub)

	return &Subscription{bus: bus, eventType: eventType, id: id}
}

// SubscribeChannel returns a buffered channel of events of type T. When
// the buffer is full further events are dropped, not queued, so a stalled
// reader cannot block publishers. Unsubscribe closes the channel.
func SubscribeChannel[T Event[T]](bus *Bus, bufferSize int, filter Filter[T]) (<-chan T, *Subscription) {
	if bus.closed.Load() {
		slog.WarnContext(bus.ctx, "channel subscribe on closed event bus")
		ch := make(chan T)
		close(ch)
		return ch, &Subscription{bus: bus}
	}

	var zero T
	eventType := reflect.TypeOf(zero)
	eventTypeName := eventType.String()

	ch := make(chan T, bufferSize)
	id := uuid.New()

	if filter == nil {
		filter = func(T) bool { return true }
	}

	sub := subscriber{
		id:      id,
		channel: ch,
		invoke: func(ctx context.Context, event any) {
			typed, ok := event.(T)
			if !ok || !filter(typed) {
				return
			}
			select {
			case ch <- typed:
			default:
				bus.metrics.IncrementDropped(eventTypeName)
				slog.DebugContext(ctx, "dropped event, subscriber buffer full",
					"event_type", eventTypeName,
					"subscriber_id", id,
				)
			}
		},
	}

	bus.mu.Lock()
	defer bus.mu.Unlock()
	bus.subscribers[eventType] = append(bus.subscribers[eventType], sub)

	return ch, &Subscription{bus: bus, eventType: eventType, id: id}
}

// Unsubscribe removes the subscription and closes its channel if it has
// one. Safe to call more than once.
func (s *Subscription) Unsubscribe() {
	s.once.Do(func() {
		s.bus.mu.Lock()
		defer s.bus.mu.Unlock()

		if s.bus.closed.Load() {
			return
		}

		subscribers := s.bus.subscribers[s.eventType]
		for i, sub := range subscribers {
			if sub.id == s.id {
				s.bus.subscribers[s.eventType] = append(subscribers[:i], subscribers[i+1:]...)
				if sub.channel != nil {
					reflect.ValueOf(sub.channel).Close()
				}
				break
			}
		}
	})
}

// Publish queues the event for every subscriber of its type and returns
// immediately. Events are dropped when the queue is full.
func Publish[T Event[T]](bus *Bus, event T) {
	if bus.closed.Load() {
		slog.DebugContext(bus.ctx, "publish on closed event bus")
		return
	}

	eventType := reflect.TypeOf(event)
	eventTypeName := eventType.String()

	bus.mu.RLock()
	subs := bus.subscribers[eventType]
	subsCopy := make([]subscriber, len(subs))
	copy(subsCopy, subs)
	bus.mu.RUnlock()

	for _, sub := range subsCopy {
		item := delivery{
			event:     event,
			eventType: eventTypeName,
			invoke:    sub.invoke,
		}

		select {
		case bus.queue <- item:
		case <-bus.ctx.Done():
			return
		default:
			bus.metrics.IncrementDropped(eventTypeName)
			slog.DebugContext(bus.ctx, "dropped event, work queue full",
				"event_type", eventTypeName,
			)
		}
	}

	bus.metrics.IncrementPublished(eventTypeName)
}

// Close stops the workers, waits for in-flight deliveries, and closes all
// channel subscriptions. Safe to call more than once.
func (bus *Bus) Close() {
	if !bus.closed.CompareAndSwap(false, true) {
		return
	}

	bus.cancel()
	bus.wg.Wait()

	bus.mu.Lock()
	defer bus.mu.Unlock()
	for eventType, subs := range bus.subscribers {
		for _, sub := range subs {
			if sub.channel != nil {
				reflect.ValueOf(sub.channel).Close()
			}
		}
		delete(bus.subscribers, eventType)
	}
}

func (bus *Bus) IsClosed() bool {
	return bus.closed.Load()
}

// SubscriberCount reports how many subscribers an event type has. Used by
// tests.
func SubscriberCount[T Event[T]](bus *Bus) int {
	var zero T
	eventType := reflect.TypeOf(zero)

	bus.mu.RLock()
	defer bus.mu.RUnlock()

	return len(bus.subscribers[eventType])
}
