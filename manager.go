// Package cmdbot routes text input to keyword commands, injects shared
// contexts into their handlers and toggles commands or groups at runtime.
package cmdbot

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"pkt.systems/cmdbot/internal/command"
	"pkt.systems/cmdbot/internal/contexts"
	"pkt.systems/cmdbot/internal/fallback"
	"pkt.systems/cmdbot/internal/logx"
	"pkt.systems/cmdbot/schema"
	"pkt.systems/pslog"
)

// Deps captures collaborators used by a Manager.
type Deps struct {
	Logger pslog.Logger
	Sinks  []EventSink
}

// Option customizes a Manager.
type Option func(*Manager)

// WithClock overrides the time source used for events.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// WithIDGenerator overrides transition event ids.
func WithIDGenerator(next func() string) Option {
	return func(m *Manager) {
		if next != nil {
			m.newID = next
		}
	}
}

// Manager owns the command, context and fallback registries and dispatches
// input against them. Transitions are serialized so the flip set, the status
// change and the reference updates of one open or close are never interleaved
// with another.
type Manager struct {
	cfg       schema.Config
	rules     command.ParamRules
	contexts  *contexts.Registry
	commands  *command.Registry
	fallbacks *fallback.Registry
	sink      EventSink
	log       pslog.Logger
	now       func() time.Time
	newID     func() string

	mu sync.RWMutex
}

// New constructs a Manager. Unless disabled in cfg, HelpWithSimilar is
// registered as the lowest priority fallback.
func New(cfg schema.Config, deps Deps, opts ...Option) (*Manager, error) {
	normalized, err := schema.NormalizeConfig(cfg)
	if err != nil {
		return nil, err
	}
	logger := deps.Logger
	if logger == nil {
		logger = pslog.Ctx(context.Background())
	}
	regOpts := []command.RegistryOption{command.WithLogger(logger)}
	if normalized.CaseInsensitive {
		regOpts = append(regOpts, command.WithCaseInsensitiveKeywords())
	}
	m := &Manager{
		cfg:       normalized,
		rules:     command.RulesFromConfig(normalized),
		contexts:  contexts.NewRegistry(logger),
		commands:  command.NewRegistry(regOpts...),
		fallbacks: fallback.NewRegistry(),
		sink:      fanout(deps.Sinks),
		log:       logger,
		now:       time.Now,
		newID:     uuid.NewString,
	}
	for _, opt := range opts {
		opt(m)
	}
	if !normalized.DisableDefaultFallback {
		if err := m.fallbacks.Register(m.HelpWithSimilar, schema.HelpFallbackPriority); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Config returns the normalized configuration.
func (m *Manager) Config() schema.Config {
	return m.cfg
}

// ContextRegistry exposes the context registry.
func (m *Manager) ContextRegistry() *contexts.Registry {
	return m.contexts
}

// CommandRegistry exposes the command registry.
func (m *Manager) CommandRegistry() *command.Registry {
	return m.commands
}

// RegisterContext registers a named context. Contexts must be registered
// before the commands depending on them.
func (m *Manager) RegisterContext(name string, factory contexts.Factory, opts ...contexts.Option) error {
	return m.contexts.Register(contexts.New(strings.TrimSpace(name), factory, opts...))
}

// RegisterCommand validates spec, indexes the command and acquires context
// references when it starts enabled.
func (m *Manager) RegisterCommand(spec command.Spec) (*command.Command, error) {
	cmd, err := command.New(spec, m.rules)
	if err != nil {
		return nil, err
	}
	if err := m.contexts.CheckCommand(cmd); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.commands.Register(cmd); err != nil {
		return nil, err
	}
	if m.commands.ResolveStatus(cmd) {
		if err := m.contexts.UpdateReference(cmd, 1); err != nil {
			return cmd, err
		}
	}
	return cmd, nil
}

// Command registers a handler reachable by its own name.
func (m *Manager) Command(name string, params []string, handler command.HandlerFunc) (*command.Command, error) {
	return m.RegisterCommand(command.Spec{Name: name, Params: params, Handler: handler})
}

// RegisterFallback adds a fallback. It fails once input has been dispatched.
func (m *Manager) RegisterFallback(fn fallback.Func, priority int) error {
	return m.fallbacks.Register(fn, priority)
}

// Fallback adds a fallback with the default priority.
func (m *Manager) Fallback(fn fallback.Func) error {
	return m.fallbacks.Register(fn, schema.DefaultFallbackPriority)
}

// MarkDefaultClosed presets names as disabled before commands using them exist.
func (m *Manager) MarkDefaultClosed(names ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.commands.MarkDefaultClosed(names...)
}

// Exec dispatches content. A matched but disabled command yields the closed
// text. Unmatched input runs the fallback chain, which yields nil when no
// fallback handled it. Handler and context errors are returned unchanged.
// Enablement and context values are resolved together under the transition
// read lock; the handler runs outside it.
func (m *Manager) Exec(ctx context.Context, content string, args schema.Args) (any, error) {
	if ctx == nil {
		ctx = pslog.ContextWithLogger(context.Background(), m.log)
	}
	start := m.now()
	in := command.Parse(content)
	log := logx.WithKeyword(ctx, in.Keyword).With("input_len", len(content))
	if !m.cfg.DisableAuditLogging {
		log.Debug("audit command", "command_type", "exec", "command", strings.TrimSpace(content))
	}

	cmd, ok := m.commands.Get(in.Keyword)
	if !ok {
		result, err := m.fallbacks.Run(ctx, content, args.Clone())
		outcome := schema.OutcomeFallback
		switch {
		case err != nil:
			outcome = schema.OutcomeError
			log.Warn("command fallback failed", "err", err)
		case result == nil:
			outcome = schema.OutcomeUnhandled
			log.Debug("command unhandled")
		default:
			log.Debug("command fallback")
		}
		m.emitExec(schema.ExecEvent{Keyword: in.Keyword, Outcome: outcome, Duration: m.now().Sub(start)})
		return result, err
	}

	log = log.With("command", cmd.Name())
	final, enabled, err := m.resolveArgs(cmd, args)
	if !enabled {
		log.Info("command exec rejected", "reason", "closed")
		m.emitExec(schema.ExecEvent{Keyword: in.Keyword, Command: cmd.Name(), Outcome: schema.OutcomeClosed, Duration: m.now().Sub(start)})
		return m.cfg.TextCommandClosed, nil
	}
	if err != nil {
		log.Warn("command context failed", "err", err)
		m.emitExec(schema.ExecEvent{Keyword: in.Keyword, Command: cmd.Name(), Outcome: schema.OutcomeError, Duration: m.now().Sub(start)})
		return nil, err
	}
	final[m.cfg.PayloadParameter] = in.Payload

	ctx = logx.ContextWithCommandLogger(ctx, log, in.Keyword, cmd.Name())

	result, err := cmd.Call(ctx, final)
	outcome := schema.OutcomeCommand
	if err != nil {
		outcome = schema.OutcomeError
		log.Warn("command exec failed", "err", err)
	} else {
		log.Debug("command exec completed")
	}
	m.emitExec(schema.ExecEvent{Keyword: in.Keyword, Command: cmd.Name(), Outcome: outcome, Duration: m.now().Sub(start)})
	return result, err
}

// resolveArgs checks enablement and reads the context values of cmd under the
// transition read lock, so a concurrent close cannot release a context between
// the check and the read and leave a value cached with no references.
func (m *Manager) resolveArgs(cmd *command.Command, args schema.Args) (schema.Args, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if !m.commands.ResolveStatus(cmd) {
		return nil, false, nil
	}
	final := args.Clone()
	for _, name := range cmd.Contexts() {
		c, err := m.contexts.Get(name)
		if err != nil {
			return nil, true, err
		}
		value, err := c.Value()
		if err != nil {
			return nil, true, err
		}
		final[name] = value
	}
	return final, true, nil
}

// HelpWithSimilar lists enabled commands whose keywords resemble the input
// keyword, or returns the general response when there are none.
func (m *Manager) HelpWithSimilar(_ context.Context, content string, _ schema.Args) (any, error) {
	keyword, _ := command.SplitKeyword(content)
	similar := m.commands.Similar(keyword)
	if len(similar) == 0 {
		return m.cfg.TextGeneralResponse, nil
	}
	lines := make([]string, 0, len(similar)+1)
	lines = append(lines, m.cfg.TextPossibleCommand)
	for _, cmd := range similar {
		lines = append(lines, cmd.BriefHelp())
	}
	return strings.Join(lines, "\n"), nil
}

// Open enables a command or group and returns the names of commands that
// became reachable.
func (m *Manager) Open(ctx context.Context, name string) ([]string, error) {
	m.mu.Lock()
	opened := m.commands.Open(name)
	err := m.updateReferences(opened, 1)
	m.mu.Unlock()
	return m.finishTransition(ctx, name, schema.TransitionOpened, opened, err)
}

// Close disables a command or group and returns the names of commands that
// became unreachable. Contexts no longer referenced are cleaned up.
func (m *Manager) Close(ctx context.Context, name string) ([]string, error) {
	m.mu.Lock()
	closed := m.commands.Close(name)
	err := m.updateReferences(closed, -1)
	m.mu.Unlock()
	return m.finishTransition(ctx, name, schema.TransitionClosed, closed, err)
}

// BatchUpdateStatus applies diff, all closes before any opens, and returns
// the names of the commands closed and opened.
func (m *Manager) BatchUpdateStatus(ctx context.Context, diff schema.Status) (closed, opened []string, err error) {
	closeNames, openNames := splitDiff(diff)
	m.mu.Lock()
	closedCmds, openedCmds := m.commands.BatchUpdateStatus(diff)
	closeErr := m.updateReferences(closedCmds, -1)
	openErr := m.updateReferences(openedCmds, 1)
	m.mu.Unlock()

	closed, closeErr = m.finishTransition(ctx, strings.Join(closeNames, ","), schema.TransitionClosed, closedCmds, closeErr)
	opened, openErr = m.finishTransition(ctx, strings.Join(openNames, ","), schema.TransitionOpened, openedCmds, openErr)
	return closed, opened, errors.Join(closeErr, openErr)
}

// CalcStatusDiff returns the entries of after that change the current status.
func (m *Manager) CalcStatusDiff(after schema.Status) schema.Status {
	return m.commands.CalcStatusDiff(after)
}

// ApplyStatus moves the status map towards after, touching only the names
// whose status actually changes.
func (m *Manager) ApplyStatus(ctx context.Context, after schema.Status) (closed, opened []string, err error) {
	diff := m.CalcStatusDiff(after)
	if len(diff) == 0 {
		return nil, nil, nil
	}
	return m.BatchUpdateStatus(ctx, diff)
}

// Status returns a copy of the explicitly set statuses.
func (m *Manager) Status() schema.Status {
	return m.commands.Status()
}

// Enabled reports whether the command routed by keyword exists and is reachable.
func (m *Manager) Enabled(keyword string) bool {
	cmd, ok := m.commands.Get(keyword)
	return ok && m.commands.ResolveStatus(cmd)
}

// Commands returns all registered commands in registration order.
func (m *Manager) Commands() []*command.Command {
	return m.commands.Commands()
}

func (m *Manager) updateReferences(cmds []*command.Command, delta int) error {
	var errs []error
	for _, cmd := range cmds {
		if err := m.contexts.UpdateReference(cmd, delta); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m *Manager) finishTransition(ctx context.Context, name string, direction schema.TransitionDirection, cmds []*command.Command, err error) ([]string, error) {
	if ctx == nil {
		ctx = pslog.ContextWithLogger(context.Background(), m.log)
	}
	names := commandNames(cmds)
	log := logx.WithName(logx.Ctx(ctx), name).With("direction", string(direction), "count", len(names))
	if err != nil {
		log.Warn("status transition failed", "err", err)
	} else if len(names) > 0 {
		log.Info("status transition")
	} else if name != "" {
		log.Debug("status transition skipped", "reason", "unchanged")
	}
	if len(names) > 0 && m.sink != nil {
		m.sink.OnTransition(schema.TransitionEvent{
			ID:        m.newID(),
			Name:      name,
			Direction: direction,
			Commands:  names,
			At:        m.now(),
		})
	}
	return names, err
}

func (m *Manager) emitExec(event schema.ExecEvent) {
	if m.sink != nil {
		m.sink.OnExec(event)
	}
}

func commandNames(cmds []*command.Command) []string {
	if len(cmds) == 0 {
		return nil
	}
	names := make([]string, 0, len(cmds))
	for _, cmd := range cmds {
		names = append(names, cmd.Name())
	}
	return names
}

func splitDiff(diff schema.Status) (toClose, toOpen []string) {
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
