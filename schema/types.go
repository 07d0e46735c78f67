package schema

import "time"

// Args carries named arguments into command handlers and fallbacks.
type Args map[string]any

// Clone returns a shallow copy of the arguments.
func (a Args) Clone() Args {
	out := make(Args, len(a)+2)
	for k, v := range a {
		out[k] = v
	}
	return out
}

// String returns the named argument as a string, or "" when missing or not a string.
func (a Args) String(name string) string {
	if a == nil {
		return ""
	}
	if value, ok := a[name].(string); ok {
		return value
	}
	return ""
}

// Arg returns the named argument converted to T.
func Arg[T any](args Args, name string) (T, bool) {
	var zero T
	if args == nil {
		return zero, false
	}
	raw, ok := args[name]
	if !ok {
		return zero, false
	}
	value, ok := raw.(T)
	return value, ok
}

// Status maps command or group names to their enabled flag.
type Status map[string]bool

// TransitionDirection reports whether commands became reachable or unreachable.
type TransitionDirection string

const (
	// TransitionOpened marks commands whose resolved status flipped to enabled.
	TransitionOpened TransitionDirection = "opened"
	// TransitionClosed marks commands whose resolved status flipped to disabled.
	TransitionClosed TransitionDirection = "closed"
)

// TransitionEvent describes one status change and the commands it flipped.
type TransitionEvent struct {
	ID        string
	Name      string
	Direction TransitionDirection
	Commands  []string
	At        time.Time
}

// ExecOutcome classifies how an input was dispatched.
type ExecOutcome string

const (
	// OutcomeCommand means a command handler ran successfully.
	OutcomeCommand ExecOutcome = "command"
	// OutcomeClosed means the matched command is disabled.
	OutcomeClosed ExecOutcome = "closed"
	// OutcomeFallback means a fallback handler produced the result.
	OutcomeFallback ExecOutcome = "fallback"
	// OutcomeUnhandled means no command or fallback produced a result.
	OutcomeUnhandled ExecOutcome = "unhandled"
	// OutcomeError means a handler, fallback or context factory failed.
	OutcomeError ExecOutcome = "error"
)

// ExecEvent is emitted after every dispatch.
type ExecEvent struct {
	Keyword  string
	Command  string
	Outcome  ExecOutcome
	Duration time.Duration
}
