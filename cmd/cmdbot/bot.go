package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"pkt.systems/cmdbot"
	"pkt.systems/cmdbot/internal/appconfig"
	"pkt.systems/cmdbot/internal/command"
	"pkt.systems/cmdbot/internal/contexts"
	"pkt.systems/cmdbot/internal/eventbus"
	"pkt.systems/cmdbot/internal/format"
	"pkt.systems/cmdbot/internal/metrics"
	"pkt.systems/cmdbot/schema"
	"pkt.systems/pslog"
)

// bot wires a manager with the demo command set.
type bot struct {
	cfg      appconfig.Config
	manager  *cmdbot.Manager
	bus      *eventbus.Bus
	registry *prometheus.Registry
	render   *format.PlainRenderer
}

func newBot(ctx context.Context, cfg appconfig.Config) (*bot, error) {
	logger := pslog.Ctx(ctx)
	registry := prometheus.NewRegistry()
	collector, err := metrics.New(registry)
	if err != nil {
		return nil, err
	}
	bus := eventbus.New(logger)
	manager, err := cmdbot.New(cfg.ManagerConfig(), cmdbot.Deps{
		Logger: logger,
		Sinks:  []cmdbot.EventSink{collector, bus},
	})
	if err != nil {
		return nil, err
	}
	b := &bot{
		cfg:      cfg,
		manager:  manager,
		bus:      bus,
		registry: registry,
		render:   format.NewPlainRenderer(""),
	}
	if len(cfg.Commands.DefaultClosed) > 0 {
		if err := manager.MarkDefaultClosed(cfg.Commands.DefaultClosed...); err != nil {
			return nil, err
		}
	}
	if err := b.registerContexts(); err != nil {
		return nil, err
	}
	if err := b.registerCommands(); err != nil {
		return nil, err
	}
	logger.Info("bot ready", "name", cfg.Bot.Name, "commands", len(manager.Commands()))
	return b, nil
}

func (b *bot) registerContexts() error {
	if err := b.manager.RegisterContext("name", contexts.Static(b.cfg.Bot.Name)); err != nil {
		return err
	}
	return b.manager.RegisterContext("clock", contexts.Value(func() (any, error) {
		return time.Now(), nil
	}), contexts.WithoutCache())
}

func (b *bot) registerCommands() error {
	specs := []command.Spec{
		{
			Name:    "echo",
			Params:  []string{"payload", "name"},
			Help:    "echo <text>\nRepeat text back, signed by the bot.",
			Handler: b.echo,
		},
		{
			Name:     "time",
			Keywords: []string{"time", "now"},
			Params:   []string{"clock"},
			Help:     "time\nShow the current time.",
			Handler: func(_ context.Context, args schema.Args) (any, error) {
				now, _ := schema.Arg[time.Time](args, "clock")
				return now.Format(time.RFC3339), nil
			},
		},
		{
			Name:   "whoami",
			Params: []string{"user"},
			Help:   "whoami\nShow the caller.",
			Handler: func(_ context.Context, args schema.Args) (any, error) {
				if user := args.String("user"); user != "" {
					return user, nil
				}
				return "anonymous", nil
			},
		},
		{
			Name:     "help",
			Keywords: []string{"help", "?"},
			Params:   []string{"payload"},
			Help:     "help [command]\nList commands or show the help of one.",
			Handler:  b.help,
		},
		{
			Name:    "status",
			Groups:  []string{"admin"},
			Help:    "status\nList explicitly set command and group statuses.",
			Handler: b.status,
		},
		{
			Name:    "open",
			Params:  []string{"payload"},
			Help:    "open <name>...\nEnable commands or groups.",
			Handler: b.toggle(true),
		},
		{
			Name:    "close",
			Params:  []string{"payload"},
			Help:    "close <name>...\nDisable commands or groups. open and close themselves cannot be closed.",
			Handler: b.toggle(false),
		},
		{
			Name:    "stats",
			Groups:  []string{"debug"},
			Help:    "stats\nShow dispatch and transition counters.",
			Handler: b.stats,
		},
	}
	for _, spec := range specs {
		if _, err := b.manager.RegisterCommand(spec); err != nil {
			return fmt.Errorf("register %s: %w", spec.Name, err)
		}
	}
	return nil
}

func (b *bot) echo(_ context.Context, args schema.Args) (any, error) {
	return fmt.Sprintf("%s says %s", args.String("name"), args.String("payload")), nil
}

func (b *bot) help(_ context.Context, args schema.Args) (any, error) {
	target := strings.TrimSpace(args.String("payload"))
	if target != "" {
		cmd, ok := b.manager.CommandRegistry().Get(target)
		if !ok {
			return fmt.Sprintf("no such command: %s", target), nil
		}
		return cmd.Help(), nil
	}
	lines := []string{"Commands:"}
	for _, cmd := range b.manager.Commands() {
		if b.manager.CommandRegistry().ResolveStatus(cmd) {
			lines = append(lines, cmd.BriefHelp())
		}
	}
	return lines, nil
}

func (b *bot) status(context.Context, schema.Args) (any, error) {
	return b.render.FormatStatus(b.manager.Status()), nil
}

// toggleCommands stay open so the session can always re-enable commands.
var toggleCommands = map[string]struct{}{"open": {}, "close": {}}

func (b *bot) toggle(enable bool) command.HandlerFunc {
	return func(ctx context.Context, args schema.Args) (any, error) {
		names := strings.Fields(args.String("payload"))
		if len(names) == 0 {
			return nil, fmt.Errorf("usage: open|close <name>...")
		}
		if !enable {
			for _, name := range names {
				if _, ok := toggleCommands[name]; ok {
					return nil, fmt.Errorf("%s cannot be closed", name)
				}
			}
		}
		diff := make(schema.Status, len(names))
		for _, name := range names {
			diff[name] = enable
		}
		closed, opened, err := b.manager.BatchUpdateStatus(ctx, diff)
		if err != nil {
			return nil, err
		}
		flipped := append(closed, opened...)
		if len(flipped) == 0 {
			return "no commands changed", nil
		}
		verb := "closed"
		if enable {
			verb = "opened"
		}
		return fmt.Sprintf("%s: %s", verb, strings.Join(flipped, ", ")), nil
	}
}

func (b *bot) stats(context.Context, schema.Args) (any, error) {
	lines, err := metrics.Summary(b.registry)
	if err != nil {
		return nil, err
	}
	if len(lines) == 0 {
		return "no stats yet", nil
	}
	return lines, nil
}

// handle dispatches one line and renders the outcome.
func (b *bot) handle(ctx context.Context, line string, args schema.Args) []string {
	result, err := b.manager.Exec(ctx, line, args)
	if err != nil {
		return b.render.FormatError(err)
	}
	return b.render.FormatResult(result)
}
