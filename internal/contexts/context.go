package contexts

import "sync"

// ReleaseFunc finalizes a two-phase context value.
type ReleaseFunc func() error

// Factory computes a context value. A non-nil release marks the value as
// two-phase: release runs once when the cached value is cleaned up.
type Factory func() (value any, release ReleaseFunc, err error)

// Value adapts a one-phase producer into a Factory.
func Value(fn func() (any, error)) Factory {
	return func() (any, ReleaseFunc, error) {
		value, err := fn()
		return value, nil, err
	}
}

// Static returns a Factory that always yields value.
func Static(value any) Factory {
	return func() (any, ReleaseFunc, error) {
		return value, nil, nil
	}
}

// Resource is a shared value with an explicit acquire/release lifecycle.
type Resource interface {
	Acquire() (any, error)
	Release() error
}

// FromResource adapts a Resource into a two-phase Factory.
func FromResource(res Resource) Factory {
	return func() (any, ReleaseFunc, error) {
		value, err := res.Acquire()
		if err != nil {
			return nil, nil, err
		}
		return value, res.Release, nil
	}
}

// Option configures a Context.
type Option func(*Context)

// WithoutCache recomputes the value on every access. Release handles of
// uncached two-phase factories are discarded and never invoked.
func WithoutCache() Option {
	return func(c *Context) { c.cacheEnabled = false }
}

// Context is a named, lazily computed and reference-counted shared value.
// Value, cleanup and reference updates are serialized per Context.
type Context struct {
	name         string
	factory      Factory
	cacheEnabled bool

	mu         sync.Mutex
	cached     bool
	value      any
	release    ReleaseFunc
	references int
}

// New constructs a Context. Caching is enabled unless WithoutCache is given.
func New(name string, factory Factory, opts ...Option) *Context {
	c := &Context{
		name:         name,
		factory:      factory,
		cacheEnabled: true,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Name returns the context name.
func (c *Context) Name() string {
	return c.name
}

// CacheEnabled reports whether computed values are kept until cleanup.
func (c *Context) CacheEnabled() bool {
	return c.cacheEnabled
}

// Value returns the cached value or computes it. Factory errors are returned
// unchanged and leave the context uncached.
func (c *Context) Value() (any, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cached {
		return c.value, nil
	}
	value, release, err := c.factory()
	if err != nil {
		return nil, err
	}
	if !c.cacheEnabled {
		return value, nil
	}
	c.cached = true
	c.value = value
	c.release = release
	return value, nil
}

// Cleanup runs the pending release step, if any, and drops the cached value.
// Local state is cleared even when the release step fails.
func (c *Context) Cleanup() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cleanupLocked()
}

func (c *Context) cleanupLocked() error {
	if !c.cached {
		return nil
	}
	release := c.release
	c.cached = false
	c.value = nil
	c.release = nil
	if release == nil {
		return nil
	}
	return release()
}

// IsCached reports whether a computed value is currently held.
func (c *Context) IsCached() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cached
}

// HasRelease reports whether the cached value still owes a release step.
func (c *Context) HasRelease() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.release != nil
}

// References returns the number of enabled commands depending on the context.
func (c *Context) References() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.references
}

// adjust applies delta to the reference count and cleans up at zero. A delta
// that would make the count negative is rejected and leaves it unchanged.
func (c *Context) adjust(delta int) (int, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	next := c.references + delta
	if next < 0 {
		return c.references, false, errUnderflow(c.name, c.references, delta)
	}
	c.references = next
	if next != 0 || delta >= 0 {
		return next, false, nil
	}
	hadValue := c.cached
	return 0, hadValue, c.cleanupLocked()
}
