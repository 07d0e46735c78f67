package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"pkt.systems/cmdbot/internal/appconfig"
	"pkt.systems/cmdbot/schema"
)

func testConfig(t *testing.T) appconfig.Config {
	t.Helper()
	cfg, err := appconfig.DefaultConfig()
	if err != nil {
		t.Fatalf("default config: %v", err)
	}
	cfg.Bot.HistoryFile = ""
	cfg.Status.File = filepath.Join(t.TempDir(), "status.yaml")
	return cfg
}

func newTestBot(t *testing.T) *bot {
	t.Helper()
	b, err := newBot(context.Background(), testConfig(t))
	if err != nil {
		t.Fatalf("newBot: %v", err)
	}
	return b
}

func runScript(t *testing.T, b *bot, script ...string) []string {
	t.Helper()
	var out bytes.Buffer
	if err := b.runLines(context.Background(), strings.NewReader(strings.Join(script, "\n")+"\n"), &out); err != nil {
		t.Fatalf("runLines: %v", err)
	}
	text := strings.TrimRight(out.String(), "\n")
	if text == "" {
		return nil
	}
	return strings.Split(text, "\n")
}

func TestEchoUsesBotName(t *testing.T) {
	b := newTestBot(t)
	got := runScript(t, b, "echo hi there")
	if len(got) != 1 || got[0] != "cmdbot says hi there" {
		t.Fatalf("unexpected output %q", got)
	}
}

func TestDebugGroupStartsClosed(t *testing.T) {
	b := newTestBot(t)
	got := runScript(t, b, "stats", "open debug", "stats")
	if got[0] != schema.DefaultTextCommandClosed {
		t.Fatalf("expected stats closed first, got %q", got)
	}
	if got[1] != "opened: stats" || got[2] != "opened: stats (via debug)" {
		t.Fatalf("expected open result and transition, got %q", got)
	}
	joined := strings.Join(got[3:], "\n")
	if !strings.Contains(joined, "cmdbot_exec_total{outcome=closed} 1") {
		t.Fatalf("expected closed exec counted, got:\n%s", joined)
	}
}

func TestCloseDisablesEcho(t *testing.T) {
	b := newTestBot(t)
	got := runScript(t, b, "close echo", "echo hi", "close echo", "open echo", "echo back")
	want := []string{
		"closed: echo",
		"closed: echo",
		schema.DefaultTextCommandClosed,
		"no commands changed",
		"opened: echo",
		"opened: echo",
		"cmdbot says back",
	}
	if strings.Join(got, "\n") != strings.Join(want, "\n") {
		t.Fatalf("unexpected output:\n%s", strings.Join(got, "\n"))
	}
}

func TestSimilarCommandHint(t *testing.T) {
	b := newTestBot(t)
	got := runScript(t, b, "ecko hi")
	if len(got) < 2 || got[0] != schema.DefaultTextPossibleCommand || got[1] != "- echo <text>" {
		t.Fatalf("unexpected output %q", got)
	}
	got = runScript(t, b, "qqqqqqq")
	if len(got) != 1 || got[0] != schema.DefaultTextGeneralResponse {
		t.Fatalf("unexpected output %q", got)
	}
}

func TestHelpAndTime(t *testing.T) {
	b := newTestBot(t)
	got := runScript(t, b, "help")
	if got[0] != "Commands:" {
		t.Fatalf("unexpected help output %q", got)
	}
	for _, line := range got {
		if strings.HasPrefix(line, "- stats") {
			t.Fatalf("closed commands must not be listed: %q", got)
		}
	}
	got = runScript(t, b, "help echo")
	if len(got) != 2 || got[1] != "Repeat text back, signed by the bot." {
		t.Fatalf("unexpected command help %q", got)
	}
	got = runScript(t, b, "now")
	if _, err := time.Parse(time.RFC3339, got[0]); err != nil {
		t.Fatalf("expected RFC3339 time, got %q", got)
	}
}

func TestWhoamiUsesCallerArgs(t *testing.T) {
	b := newTestBot(t)
	got := b.handle(context.Background(), "whoami", schema.Args{"user": "alice"})
	if len(got) != 1 || got[0] != "alice" {
		t.Fatalf("unexpected output %q", got)
	}
	got = b.handle(context.Background(), "whoami", nil)
	if len(got) != 1 || got[0] != "anonymous" {
		t.Fatalf("unexpected output %q", got)
	}
}

func TestToggleWithoutNamesFails(t *testing.T) {
	b := newTestBot(t)
	got := runScript(t, b, "close")
	if len(got) != 1 || !strings.HasPrefix(got[0], "error: usage") {
		t.Fatalf("unexpected output %q", got)
	}
}

func TestQuitStopsScript(t *testing.T) {
	b := newTestBot(t)
	got := runScript(t, b, "echo a", "quit", "echo b")
	if len(got) != 1 {
		t.Fatalf("expected output to stop at quit, got %q", got)
	}
}

func TestStatusFileAppliedOnExec(t *testing.T) {
	cfg := testConfig(t)
	if err := os.WriteFile(cfg.Status.File, []byte("echo: false\n"), 0o600); err != nil {
		t.Fatalf("write status: %v", err)
	}
	b, err := newBot(context.Background(), cfg)
	if err != nil {
		t.Fatalf("newBot: %v", err)
	}
	watcher, err := b.statusWatcher()
	if err != nil {
		t.Fatalf("statusWatcher: %v", err)
	}
	if err := watcher.Apply(context.Background()); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	got := runScript(t, b, "echo hi", "status")
	want := []string{schema.DefaultTextCommandClosed, "debug: disabled", "echo: disabled"}
	if strings.Join(got, "\n") != strings.Join(want, "\n") {
		t.Fatalf("unexpected output:\n%s", strings.Join(got, "\n"))
	}
}

func TestToggleCommandsCannotBeClosed(t *testing.T) {
	b := newTestBot(t)
	got := runScript(t, b, "close open", "close echo close", "echo hi", "close echo", "open echo")
	want := []string{
		"error: open cannot be closed",
		"error: close cannot be closed",
		"cmdbot says hi",
		"closed: echo",
		"closed: echo",
		"opened: echo",
		"opened: echo",
	}
	if strings.Join(got, "\n") != strings.Join(want, "\n") {
		t.Fatalf("unexpected output:\n%s", strings.Join(got, "\n"))
	}
}
