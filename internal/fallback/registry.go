// Package fallback orders catch-all handlers for input no command matched.
package fallback

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"pkt.systems/cmdbot/schema"
)

// Func handles unmatched input. A nil result passes the input to the next fallback.
type Func func(ctx context.Context, content string, args schema.Args) (any, error)

type entry struct {
	fn       Func
	priority int
	seq      int
}

// Registry keeps fallbacks by priority. The ordered chain is materialized on
// first read, after which the registry is frozen.
type Registry struct {
	mu      sync.Mutex
	entries []entry
	sorted  []Func
	frozen  bool
}

// NewRegistry constructs an empty fallback registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register adds fn with the given priority. Higher priorities run first;
// equal priorities run in registration order.
func (r *Registry) Register(fn Func, priority int) error {
	if fn == nil {
		return fmt.Errorf("%w: fallback", schema.ErrNilHandler)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.frozen {
		return schema.ErrFallbackFrozen
	}
	r.entries = append(r.entries, entry{fn: fn, priority: priority, seq: len(r.entries)})
	return nil
}

// All returns the ordered chain and freezes the registry.
func (r *Registry) All() []Func {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.frozen {
		ordered := append([]entry(nil), r.entries...)
		sort.SliceStable(ordered, func(i, j int) bool {
			if ordered[i].priority != ordered[j].priority {
				return ordered[i].priority > ordered[j].priority
			}
			return ordered[i].seq < ordered[j].seq
		})
		r.sorted = make([]Func, 0, len(ordered))
		for _, e := range ordered {
			r.sorted = append(r.sorted, e.fn)
		}
		r.frozen = true
	}
	return r.sorted
}

// Frozen reports whether the chain has been materialized.
func (r *Registry) Frozen() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.frozen
}

// Run calls each fallback in order and returns the first non-nil result.
func (r *Registry) Run(ctx context.Context, content string, args schema.Args) (any, error) {
	for _, fn := range r.All() {
		result, err := fn(ctx, content, args)
		if err != nil {
			return nil, err
		}
		if result != nil {
			return result, nil
		}
	}
	return nil, nil
}
