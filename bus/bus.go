// Package bus implements the in-process publish/subscribe mechanism that
// distributes events between agents and observers. Fan-out is synchronous on
// the publisher's goroutine and subscriber failures are isolated: a handler
// that errors or panics is logged and skipped, never propagated back to the
// publisher. The bus retains a bounded, queryable history of published
// events ordered by bus-assigned sequence number.
package bus

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/levysystems/agentarmy/logging"
)

// DefaultHistorySize bounds retained history when no size is configured.
const DefaultHistorySize = 1000

// Handler processes a published event. Returning an error marks the handler
// as failed for that event; delivery to the remaining subscribers continues.
// Handlers must not call Publish on the same bus: fan-out runs under the
// publish lock.
type Handler func(Event) error

// Options configures a Bus instance.
type Options struct {
	// HistorySize bounds the retained event history. Defaults to
	// DefaultHistorySize when zero or negative.
	HistorySize int
	// Logger defaults to NoOpLogger if nil.
	Logger logging.Logger
}

type subscription struct {
	id        string
	eventType EventType // empty matches every type
	handler   Handler
}

// Bus is the in-process communication bus. All methods are safe for
// concurrent use. Publish serializes: events carry a strictly increasing
// sequence number and subscribers for one event are always invoked before
// the next publish proceeds.
type Bus struct {
	publishMu sync.Mutex // serializes seq assignment, history append and fan-out

	subMu sync.RWMutex
	subs  []subscription

	histMu  sync.RWMutex
	history []Event
	size    int
	seq     uint64

	logger logging.Logger
}

// New constructs a Bus with bounded history.
func New(optFns ...func(o *Options)) *Bus {
	opts := Options{HistorySize: DefaultHistorySize, Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.HistorySize <= 0 {
		opts.HistorySize = DefaultHistorySize
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}
	return &Bus{
		history: make([]Event, 0, opts.HistorySize),
		size:    opts.HistorySize,
		logger:  opts.Logger,
	}
}

// Publish assigns the event its sequence number and timestamp, appends it to
// history, then synchronously invokes every matching subscriber in
// subscription order. The stamped event is returned. Publish does not return
// until all subscribers have been invoked; subscriber failures are logged
// and skipped.
func (b *Bus) Publish(ev Event) Event {
	b.publishMu.Lock()
	defer b.publishMu.Unlock()

	b.histMu.Lock()
	b.seq++
	ev.Seq = b.seq
	ev.Timestamp = time.Now().UTC()
	if len(b.history) == b.size {
		// FIFO eviction keeps memory bounded under continuous volume.
		copy(b.history, b.history[1:])
		b.history = b.history[:len(b.history)-1]
	}
	b.history = append(b.history, ev)
	b.histMu.Unlock()

	b.subMu.RLock()
	subs := make([]subscription, len(b.subs))
	copy(subs, b.subs)
	b.subMu.RUnlock()

	for _, s := range subs {
		if s.eventType != "" && s.eventType != ev.Type {
			continue
		}
		b.deliver(s, ev)
	}

	return ev
}

// deliver invokes one subscriber, isolating errors and panics.
func (b *Bus) deliver(s subscription, ev Event) {
	defer func() {
		if rec := recover(); rec != nil {
			b.logger.Error("bus.subscriber.panic", "subscription_id", s.id, "event_type", string(ev.Type), "panic", rec)
		}
	}()

	if err := s.handler(ev); err != nil {
		b.logger.Warn("bus.subscriber.error", "subscription_id", s.id, "event_type", string(ev.Type), "error", err.Error())
	}
}

// Subscribe registers a handler for one event type and returns its
// subscription id. Multiple handlers per type are permitted; they are
// invoked in subscription order.
func (b *Bus) Subscribe(eventType EventType, h Handler) string {
	return b.add(eventType, h)
}

// SubscribeAll registers a handler invoked for every event type.
func (b *Bus) SubscribeAll(h Handler) string {
	return b.add("", h)
}

func (b *Bus) add(eventType EventType, h Handler) string {
	id := uuid.NewString()
	b.subMu.Lock()
	b.subs = append(b.subs, subscription{id: id, eventType: eventType, handler: h})
	b.subMu.Unlock()
	return id
}

// Unsubscribe removes a subscription. It is idempotent: removing an unknown
// or already-removed id is a no-op.
func (b *Bus) Unsubscribe(id string) {
	b.subMu.Lock()
	defer b.subMu.Unlock()

	for i, s := range b.subs {
		if s.id == id {
			b.subs = append(b.subs[:i], b.subs[i+1:]...)
			return
		}
	}
}

// Filter narrows a History query. Zero values match everything.
type Filter struct {
	Type    EventType
	AgentID string
	Limit   int
}

// History returns retained events matching the filter, most-recent-first.
// A non-positive limit returns all matches still in the bounded history.
func (b *Bus) History(f Filter) []Event {
	b.histMu.RLock()
	defer b.histMu.RUnlock()

	var out []Event
	for i := len(b.history) - 1; i >= 0; i-- {
		ev := b.history[i]
		if f.Type != "" && ev.Type != f.Type {
			continue
		}
		if f.AgentID != "" && ev.AgentID != f.AgentID {
			continue
		}
		out = append(out, ev)
		if f.Limit > 0 && len(out) == f.Limit {
			break
		}
	}
	return out
}

// Len reports the number of retained history events.
func (b *Bus) Len() int {
	b.histMu.RLock()
	defer b.histMu.RUnlock()
	return len(b.history)
}
