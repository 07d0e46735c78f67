package command

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"pkt.systems/cmdbot/internal/suggest"
	"pkt.systems/cmdbot/schema"
	"pkt.systems/pslog"
)

// Registry indexes commands by keyword and group and owns the status map.
// Open, Close and BatchUpdateStatus compute their flip sets and mutate the
// status map inside one critical section.
type Registry struct {
	mu              sync.RWMutex
	keywords        map[string]*Command
	groups          map[string][]*Command
	names           map[string]*Command
	order           []*Command
	status          schema.Status
	caseInsensitive bool
	log             pslog.Logger
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithCaseInsensitiveKeywords folds keywords at registration and lookup.
func WithCaseInsensitiveKeywords() RegistryOption {
	return func(r *Registry) { r.caseInsensitive = true }
}

// WithLogger sets the registry logger.
func WithLogger(logger pslog.Logger) RegistryOption {
	return func(r *Registry) {
		if logger != nil {
			r.log = logger
		}
	}
}

// NewRegistry constructs an empty command registry.
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		keywords: make(map[string]*Command),
		groups:   make(map[string][]*Command),
		names:    make(map[string]*Command),
		status:   make(schema.Status),
		log:      pslog.Ctx(context.Background()),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Registry) key(keyword string) string {
	if r.caseInsensitive {
		return FoldKeyword(keyword)
	}
	return keyword
}

// Register indexes cmd by its keywords, its own name and its groups. Nothing
// is indexed when validation fails.
func (r *Registry) Register(cmd *Command) error {
	if cmd == nil {
		return fmt.Errorf("%w: nil command", schema.ErrInvalidCommand)
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	keys := make([]string, 0, len(cmd.keywords))
	seen := make(map[string]struct{}, len(cmd.keywords))
	for _, keyword := range cmd.keywords {
		key := r.key(keyword)
		if _, ok := seen[key]; ok {
			continue
		}
		if _, exists := r.keywords[key]; exists {
			return fmt.Errorf("%w: %q", schema.ErrDuplicateKeyword, keyword)
		}
		seen[key] = struct{}{}
		keys = append(keys, key)
	}
	if _, exists := r.groups[cmd.name]; exists {
		return fmt.Errorf("%w: %q", schema.ErrDuplicateName, cmd.name)
	}
	for _, group := range cmd.groups {
		if group == cmd.name {
			return fmt.Errorf("%w: %q is also listed as its own group", schema.ErrDuplicateName, cmd.name)
		}
		if _, exists := r.names[group]; exists {
			return fmt.Errorf("%w: group %q collides with a command name", schema.ErrDuplicateName, group)
		}
	}

	for _, key := range keys {
		r.keywords[key] = cmd
	}
	r.names[cmd.name] = cmd
	r.groups[cmd.name] = []*Command{cmd}
	for _, group := range cmd.groups {
		r.groups[group] = append(r.groups[group], cmd)
	}
	r.order = append(r.order, cmd)
	r.log.Debug("command registered", "command", cmd.name, "keywords", len(keys), "groups", len(cmd.groups), "contexts", len(cmd.contexts))
	return nil
}

// Get returns the command routed by keyword.
func (r *Registry) Get(keyword string) (*Command, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cmd, ok := r.keywords[r.key(keyword)]
	return cmd, ok
}

// ByName returns the command with the given name.
func (r *Registry) ByName(name string) (*Command, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cmd, ok := r.names[name]
	return cmd, ok
}

// Commands returns all commands in registration order.
func (r *Registry) Commands() []*Command {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]*Command(nil), r.order...)
}

// Members returns the commands gated by a command or group name.
func (r *Registry) Members(name string) []*Command {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]*Command(nil), r.groups[name]...)
}

// GetStatus returns the status of a command or group name. Unset names are enabled.
func (r *Registry) GetStatus(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.statusLocked(name)
}

// SetStatus overwrites the status of a name without computing transitions.
// Callers that track context references must use Open and Close instead.
func (r *Registry) SetStatus(name string, enabled bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.status[name] = enabled
}

// Status returns a copy of the explicitly set statuses.
func (r *Registry) Status() schema.Status {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(schema.Status, len(r.status))
	for k, v := range r.status {
		out[k] = v
	}
	return out
}

// MarkDefaultClosed presets names as disabled. It must run before any command
// using the name is registered, since registration decides from the current
// status whether the command holds context references.
func (r *Registry) MarkDefaultClosed(names ...string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, name := range names {
		if len(r.groups[name]) > 0 {
			return fmt.Errorf("%w: cannot mark %q as default closed", schema.ErrAlreadyRegistered, name)
		}
	}
	for _, name := range names {
		r.status[name] = false
	}
	return nil
}

// ResolveStatus reports whether cmd and all of its groups are enabled.
func (r *Registry) ResolveStatus(cmd *Command) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.resolveLocked(cmd)
}

// Open enables name and returns the commands that became reachable. Opening
// an enabled name returns nothing.
func (r *Registry) Open(name string) []*Command {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.openLocked(name)
}

// Close disables name and returns the commands that became unreachable.
// Closing a disabled name returns nothing.
func (r *Registry) Close(name string) []*Command {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closeLocked(name)
}

// BatchUpdateStatus applies every close in diff before any open and returns
// the flipped commands of each kind.
func (r *Registry) BatchUpdateStatus(diff schema.Status) (closed, opened []*Command) {
	toClose, toOpen := partition(diff)
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, name := range toClose {
		closed = append(closed, r.closeLocked(name)...)
	}
	for _, name := range toOpen {
		opened = append(opened, r.openLocked(name)...)
	}
	return closed, opened
}

// CalcStatusDiff compares after with the explicitly set statuses.
func (r *Registry) CalcStatusDiff(after schema.Status) schema.Status {
	return CalcStatusDiff(r.Status(), after)
}

// Similar returns enabled commands whose keywords resemble keyword.
func (r *Registry) Similar(keyword string) []*Command {
	r.mu.RLock()
	defer r.mu.RUnlock()
	candidates := make([]string, 0, len(r.keywords))
	for key := range r.keywords {
		candidates = append(candidates, key)
	}
	sort.Strings(candidates)
	var out []*Command
	seen := make(map[*Command]struct{})
	for _, match := range suggest.Close(r.key(keyword), candidates) {
		cmd := r.keywords[match]
		if _, dup := seen[cmd]; dup || !r.resolveLocked(cmd) {
			continue
		}
		seen[cmd] = struct{}{}
		out = append(out, cmd)
	}
	return out
}

func (r *Registry) statusLocked(name string) bool {
	enabled, ok := r.status[name]
	if !ok {
		return true
	}
	return enabled
}

func (r *Registry) resolveLocked(cmd *Command) bool {
	if !r.statusLocked(cmd.name) {
		return false
	}
	for _, group := range cmd.groups {
		if !r.statusLocked(group) {
			return false
		}
	}
	return true
}

func (r *Registry) openLocked(name string) []*Command {
	if r.statusLocked(name) {
		return nil
	}
	var opened []*Command
	for _, cmd := range r.groups[name] {
		if r.othersEnabledLocked(cmd, name) {
			opened = append(opened, cmd)
		}
	}
	r.status[name] = true
	return opened
}

func (r *Registry) closeLocked(name string) []*Command {
	if !r.statusLocked(name) {
		return nil
	}
	var closed []*Command
	for _, cmd := range r.groups[name] {
		if r.resolveLocked(cmd) {
			closed = append(closed, cmd)
		}
	}
	r.status[name] = false
	return closed
}

func (r *Registry) othersEnabledLocked(cmd *Command, except string) bool {
	if cmd.name != except && !r.statusLocked(cmd.name) {
		return false
	}
	for _, group := range cmd.groups {
		if group != except && !r.statusLocked(group) {
			return false
		}
	}
	return true
}

// CalcStatusDiff returns the entries of after that change the status in
// before. Names missing from before count as enabled, so only new closures
// are reported for them.
func CalcStatusDiff(before, after schema.Status) schema.Status {
	diff := make(schema.Status)
	for name, enabled := range after {
		prev, ok := before[name]
		if ok {
			if prev != enabled {
				diff[name] = enabled
			}
			continue
		}
		if !enabled {
			diff[name] = enabled
		}
	}
	return diff
}

func partition(diff schema.Status) (toClose, toOpen []string) {
	for name, enabled := range diff {
		if enabled {
			toOpen = append(toOpen, name)
		} else {
			toClose = append(toClose, name)
		}
	}
	sort.Strings(toClose)
	sort.Strings(toOpen)
	return toClose, toOpen
}
