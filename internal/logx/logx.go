package logx

import (
	"context"

	"pkt.systems/pslog"
)

type contextKey int

const (
	commandKey contextKey = iota
	keywordKey
)

// Ctx returns the logger bound to the provided context.
func Ctx(ctx context.Context) pslog.Logger {
	if ctx == nil {
		ctx = context.Background()
	}
	return pslog.Ctx(ctx)
}

// WithKeyword annotates the context logger with the dispatched keyword.
func WithKeyword(ctx context.Context, keyword string) pslog.Logger {
	log := Ctx(ctx)
	if keyword != "" {
		if current, ok := ctx.Value(keywordKey).(string); ok && current == keyword {
			return log
		}
		log = log.With("keyword", keyword)
	}
	return log
}

// WithCommand annotates the logger with keyword and command name.
func WithCommand(ctx context.Context, keyword, command string) pslog.Logger {
	log := WithKeyword(ctx, keyword)
	if command != "" {
		if current, ok := ctx.Value(commandKey).(string); ok && current == command {
			return log
		}
		log = log.With("command", command)
	}
	return log
}

// WithName annotates the logger with a command or group name used in a transition.
func WithName(log pslog.Logger, name string) pslog.Logger {
	if name != "" {
		log = log.With("name", name)
	}
	return log
}

// ContextWithCommand stores keyword/command markers on the context for log de-duplication.
func ContextWithCommand(ctx context.Context, keyword, command string) context.Context {
	if ctx == nil {
		return ctx
	}
	if keyword != "" {
		ctx = context.WithValue(ctx, keywordKey, keyword)
	}
	if command != "" {
		ctx = context.WithValue(ctx, commandKey, command)
	}
	return ctx
}

// ContextWithCommandLogger attaches the logger and keyword/command markers to the context.
func ContextWithCommandLogger(ctx context.Context, log pslog.Logger, keyword, command string) context.Context {
	ctx = pslog.ContextWithLogger(ctx, log)
	return ContextWithCommand(ctx, keyword, command)
}
