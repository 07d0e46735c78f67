package contexts

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"pkt.systems/cmdbot/schema"
	"pkt.systems/pslog"
)

// Dependent is anything that declares context dependencies, typically a command.
type Dependent interface {
	Name() string
	Contexts() []string
}

// Registry owns all contexts and their reference counts.
type Registry struct {
	mu       sync.RWMutex
	contexts map[string]*Context
	log      pslog.Logger
}

// NewRegistry constructs an empty registry.
func NewRegistry(logger pslog.Logger) *Registry {
	if logger == nil {
		logger = pslog.Ctx(context.Background())
	}
	return &Registry{
		contexts: make(map[string]*Context),
		log:      logger,
	}
}

// Register adds a context. Names are unique.
func (r *Registry) Register(c *Context) error {
	if c == nil || c.factory == nil {
		return fmt.Errorf("%w: context factory", schema.ErrNilHandler)
	}
	if err := schema.ValidateName(c.name); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.contexts[c.name]; exists {
		return fmt.Errorf("%w: %q", schema.ErrDuplicateContext, c.name)
	}
	r.contexts[c.name] = c
	r.log.Debug("context registered", "context", c.name, "cache", c.cacheEnabled)
	return nil
}

// Get returns the named context.
func (r *Registry) Get(name string) (*Context, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.contexts[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", schema.ErrUnknownContext, name)
	}
	return c, nil
}

// Names returns registered context names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.contexts))
	for name := range r.contexts {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// CheckCommand verifies every dependency of cmd is registered.
func (r *Registry) CheckCommand(cmd Dependent) error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, name := range cmd.Contexts() {
		if _, ok := r.contexts[name]; !ok {
			return fmt.Errorf("%w: %q required by %q", schema.ErrUnresolvedDependency, name, cmd.Name())
		}
	}
	return nil
}

// UpdateReference adds delta to the reference count of every dependency of
// cmd, cleaning up contexts that drop to zero. All dependencies are visited;
// release and underflow failures are joined.
func (r *Registry) UpdateReference(cmd Dependent, delta int) error {
	if delta == 0 {
		return nil
	}
	var errs []error
	for _, name := range cmd.Contexts() {
		c, err := r.Get(name)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		refs, cleaned, err := c.adjust(delta)
		log := r.log.With("context", name, "command", cmd.Name(), "refs", refs)
		if err != nil {
			if errors.Is(err, schema.ErrReferenceUnderflow) {
				log.Error("context reference underflow", "delta", delta)
			} else {
				log.Warn("context cleanup failed", "err", err)
			}
			errs = append(errs, err)
			continue
		}
		if cleaned {
			log.Debug("context cleanup")
		} else {
			log.Trace("context reference", "delta", delta)
		}
	}
	return errors.Join(errs...)
}

func errUnderflow(name string, refs, delta int) error {
	return fmt.Errorf("%w: context %q has %d references, delta %d", schema.ErrReferenceUnderflow, name, refs, delta)
}
