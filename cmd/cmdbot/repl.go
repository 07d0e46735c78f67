package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/user"
	"path/filepath"
	"strings"
	"time"

	"github.com/peterh/liner"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"pkt.systems/cmdbot/internal/appconfig"
	"pkt.systems/cmdbot/internal/eventbus"
	"pkt.systems/cmdbot/internal/statuswatch"
	"pkt.systems/cmdbot/schema"
	"pkt.systems/pslog"
)

const quitCommand = "quit"

func newReplCmd() *cobra.Command {
	var cfgPath string
	var noWatch bool
	cmd := &cobra.Command{
		Use:   "repl",
		Short: "Run an interactive command session",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := appconfig.Load(cfgPath)
			if err != nil {
				return err
			}
			b, err := newBot(ctx, cfg)
			if err != nil {
				return err
			}
			if cfg.Status.Watch && !noWatch && cfg.Status.File != "" {
				stop, err := b.watchStatus(ctx)
				if err != nil {
					return err
				}
				defer stop()
			}
			in := cmd.InOrStdin()
			out := cmd.OutOrStdout()
			if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
				return b.interactive(ctx, out)
			}
			return b.runLines(ctx, in, out)
		},
	}
	cmd.Flags().StringVarP(&cfgPath, "config", "c", "", "path to config file")
	cmd.Flags().BoolVar(&noWatch, "no-watch", false, "do not watch the status file")
	return cmd
}

// callerArgs returns the extra arguments passed with every line.
func callerArgs() schema.Args {
	args := schema.Args{}
	if u, err := user.Current(); err == nil {
		args["user"] = u.Username
	}
	return args
}

func (b *bot) statusWatcher() (*statuswatch.Watcher, error) {
	return statuswatch.New(statuswatch.Config{
		Path:     b.cfg.Status.File,
		Debounce: time.Duration(b.cfg.Status.DebounceMS) * time.Millisecond,
	}, b.manager)
}

// watchStatus applies the status file and keeps applying it on change.
func (b *bot) watchStatus(ctx context.Context) (func(), error) {
	watcher, err := b.statusWatcher()
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(watcher.Path()), 0o755); err != nil {
		return nil, err
	}
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := watcher.Run(ctx); err != nil {
			pslog.Ctx(ctx).Warn("status watch failed", "err", err)
		}
	}()
	return func() {
		cancel()
		<-done
	}, nil
}

// runLines dispatches newline-separated input until EOF or quit.
func (b *bot) runLines(ctx context.Context, in io.Reader, out io.Writer) error {
	transitions, cancel := b.bus.Subscribe(eventbus.EventTransition)
	defer cancel()
	args := callerArgs()
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == quitCommand {
			return nil
		}
		if err := b.writeLines(out, b.handle(ctx, line, args)); err != nil {
			return err
		}
		if err := b.drainTransitions(out, transitions); err != nil {
			return err
		}
	}
	return scanner.Err()
}

func (b *bot) interactive(ctx context.Context, out io.Writer) error {
	transitions, cancel := b.bus.Subscribe(eventbus.EventTransition)
	defer cancel()
	line := liner.NewLiner()
	line.SetCtrlCAborts(true)
	defer func() {
		b.saveHistory(line)
		_ = line.Close()
	}()
	b.loadHistory(line)

	args := callerArgs()
	for {
		if ctx.Err() != nil {
			return nil
		}
		input, err := line.Prompt(b.cfg.Bot.Prompt)
		if err != nil {
			if errors.Is(err, liner.ErrPromptAborted) || errors.Is(err, io.EOF) {
				_, _ = fmt.Fprintln(out)
				return nil
			}
			return err
		}
		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		line.AppendHistory(input)
		if input == quitCommand {
			return nil
		}
		if err := b.writeLines(out, b.handle(ctx, input, args)); err != nil {
			return err
		}
		if err := b.drainTransitions(out, transitions); err != nil {
			return err
		}
	}
}

func (b *bot) drainTransitions(out io.Writer, ch <-chan eventbus.Event) error {
	for {
		select {
		case event, ok := <-ch:
			if !ok {
				return nil
			}
			if err := b.writeLines(out, b.render.FormatTransition(event.Transition)); err != nil {
				return err
			}
		default:
			return nil
		}
	}
}

func (b *bot) writeLines(out io.Writer, lines []string) error {
	for _, line := range lines {
		if _, err := fmt.Fprintln(out, line); err != nil {
			return err
		}
	}
	return nil
}

func (b *bot) loadHistory(line *liner.State) {
	path := b.cfg.Bot.HistoryFile
	if path == "" {
		return
	}
	f, err := os.Open(path)
	if err != nil {
		return
	}
	defer f.Close()
	_, _ = line.ReadHistory(f)
}

func (b *bot) saveHistory(line *liner.State) {
	path := b.cfg.Bot.HistoryFile
	if path == "" {
		return
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return
	}
	defer f.Close()
	_, _ = line.WriteHistory(f)
}
