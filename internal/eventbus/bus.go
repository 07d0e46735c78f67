package eventbus

import (
	"context"
	"sync"

	"pkt.systems/cmdbot/schema"
	"pkt.systems/pslog"
)

// EventType identifies the event payload.
type EventType string

const (
	// EventExec carries dispatch outcomes.
	EventExec EventType = "exec"
	// EventTransition carries status transitions.
	EventTransition EventType = "transition"
)

// Event represents a manager event delivered to subscribers.
type Event struct {
	Type       EventType
	Exec       schema.ExecEvent
	Transition schema.TransitionEvent
}

// Bus fanouts events to per-type subscribers.
type Bus struct {
	mu    sync.Mutex
	subs  map[EventType]map[chan Event]struct{}
	log   pslog.Logger
	depth int
}

// New constructs a Bus.
func New(logger pslog.Logger) *Bus {
	if logger == nil {
		logger = pslog.Ctx(context.Background())
	}
	return &Bus{
		subs:  make(map[EventType]map[chan Event]struct{}),
		log:   logger,
		depth: 256,
	}
}

// Subscribe registers a subscriber for the event type and returns a channel + cancel.
func (b *Bus) Subscribe(eventType EventType) (<-chan Event, func()) {
	if b == nil {
		return nil, func() {}
	}
	ch := make(chan Event, b.depth)
	b.mu.Lock()
	typeSubs := b.subs[eventType]
	if typeSubs == nil {
		typeSubs = make(map[chan Event]struct{})
		b.subs[eventType] = typeSubs
	}
	typeSubs[ch] = struct{}{}
	count := len(typeSubs)
	b.mu.Unlock()
	if b.log != nil {
		b.log.With("event", eventType).Debug("eventbus subscribe", "subs", count)
	}
	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			if subs := b.subs[eventType]; subs != nil {
				delete(subs, ch)
				if len(subs) == 0 {
					delete(b.subs, eventType)
				}
			}
			b.mu.Unlock()
			close(ch)
			if b.log != nil {
				b.log.With("event", eventType).Debug("eventbus unsubscribe")
			}
		})
	}
}

// OnExec publishes a dispatch event.
func (b *Bus) OnExec(event schema.ExecEvent) {
	b.publish(Event{Type: EventExec, Exec: event})
}

// OnTransition publishes a status transition event.
func (b *Bus) OnTransition(event schema.TransitionEvent) {
	b.publish(Event{Type: EventTransition, Transition: event})
}

func (b *Bus) publish(event Event) {
	if b == nil {
		return
	}
	b.mu.Lock()
	typeSubs := b.subs[event.Type]
	subs := make([]chan Event, 0, len(typeSubs))
	for sub := range typeSubs {
		subs = append(subs, sub)
	}
	// Sends happen under the lock so cancel never closes a channel mid-send.
	dropped := 0
	for _, sub := range subs {
		select {
		case sub <- event:
		default:
			dropped++
		}
	}
	b.mu.Unlock()
	if dropped > 0 && b.log != nil {
		b.log.With("event", event.Type).Trace("eventbus dropped", "count", dropped)
	}
}
