package command

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"

	"pkt.systems/cmdbot/schema"
)

func mustCommand(t *testing.T, spec Spec) *Command {
	t.Helper()
	if spec.Handler == nil {
		spec.Handler = func(context.Context, schema.Args) (any, error) { return spec.Name, nil }
	}
	cmd, err := New(spec, defaultRules)
	if err != nil {
		t.Fatalf("New(%s): %v", spec.Name, err)
	}
	return cmd
}

func mustRegister(t *testing.T, reg *Registry, spec Spec) *Command {
	t.Helper()
	cmd := mustCommand(t, spec)
	if err := reg.Register(cmd); err != nil {
		t.Fatalf("Register(%s): %v", spec.Name, err)
	}
	return cmd
}

func names(cmds []*Command) []string {
	out := make([]string, 0, len(cmds))
	for _, cmd := range cmds {
		out = append(out, cmd.Name())
	}
	sort.Strings(out)
	return out
}

func equalNames(got []*Command, want ...string) bool {
	have := names(got)
	sort.Strings(want)
	if len(have) != len(want) {
		return false
	}
	for i := range have {
		if have[i] != want[i] {
			return false
		}
	}
	return true
}

func TestRegisterDuplicateKeyword(t *testing.T) {
	reg := NewRegistry()
	mustRegister(t, reg, Spec{Name: "cmda", Keywords: []string{"kw"}})
	err := reg.Register(mustCommand(t, Spec{Name: "cmdb", Keywords: []string{"kw"}}))
	if !errors.Is(err, schema.ErrDuplicateKeyword) {
		t.Fatalf("expected duplicate keyword, got %v", err)
	}
	if _, ok := reg.ByName("cmdb"); ok {
		t.Fatalf("failed registration must not index the command")
	}
}

func TestRegisterDuplicateName(t *testing.T) {
	reg := NewRegistry()
	mustRegister(t, reg, Spec{Name: "dupcmd", Keywords: []string{"kwa"}})
	err := reg.Register(mustCommand(t, Spec{Name: "dupcmd", Keywords: []string{"kwb"}}))
	if !errors.Is(err, schema.ErrDuplicateName) {
		t.Fatalf("expected duplicate name, got %v", err)
	}
	if _, ok := reg.Get("kwb"); ok {
		t.Fatalf("keyword of rejected command must not be indexed")
	}
}

func TestRegisterNameCollidesWithGroup(t *testing.T) {
	reg := NewRegistry()
	mustRegister(t, reg, Spec{Name: "hi", Groups: []string{"hello"}})
	if err := reg.Register(mustCommand(t, Spec{Name: "hello", Keywords: []string{"hey"}})); !errors.Is(err, schema.ErrDuplicateName) {
		t.Fatalf("expected name/group collision, got %v", err)
	}
	if err := reg.Register(mustCommand(t, Spec{Name: "aloha", Groups: []string{"hi"}})); !errors.Is(err, schema.ErrDuplicateName) {
		t.Fatalf("expected group/name collision, got %v", err)
	}
	if err := reg.Register(mustCommand(t, Spec{Name: "self", Keywords: []string{"me"}, Groups: []string{"self"}})); !errors.Is(err, schema.ErrDuplicateName) {
		t.Fatalf("expected own-group collision, got %v", err)
	}
}

func TestCaseInsensitiveKeywords(t *testing.T) {
	reg := NewRegistry(WithCaseInsensitiveKeywords())
	mustRegister(t, reg, Spec{Name: "hEllo"})
	for _, kw := range []string{"Hello", "hello", "HeLLo"} {
		if _, ok := reg.Get(kw); !ok {
			t.Fatalf("expected %q to match", kw)
		}
	}
	if err := reg.Register(mustCommand(t, Spec{Name: "hello"})); !errors.Is(err, schema.ErrDuplicateKeyword) {
		t.Fatalf("expected folded keyword collision, got %v", err)
	}
	if err := reg.Register(mustCommand(t, Spec{Name: "hello", Keywords: []string{"aloha"}})); err != nil {
		t.Fatalf("names are not folded: %v", err)
	}
}

func TestCaseSensitiveKeywords(t *testing.T) {
	reg := NewRegistry()
	mustRegister(t, reg, Spec{Name: "hEllo"})
	if _, ok := reg.Get("hello"); ok {
		t.Fatalf("expected case-sensitive miss")
	}
}

func TestResolveStatusGroups(t *testing.T) {
	reg := NewRegistry()
	hi := mustRegister(t, reg, Spec{Name: "hi", Groups: []string{"hello"}})
	aloha := mustRegister(t, reg, Spec{Name: "aloha", Groups: []string{"hello"}})

	closed := reg.Close("hello")
	if !equalNames(closed, "hi", "aloha") {
		t.Fatalf("expected both commands closed, got %v", names(closed))
	}
	if !reg.GetStatus("hi") {
		t.Fatalf("own status must stay enabled")
	}
	if reg.ResolveStatus(hi) || reg.ResolveStatus(aloha) {
		t.Fatalf("expected group to disable members")
	}
	opened := reg.Open("hello")
	if !equalNames(opened, "hi", "aloha") {
		t.Fatalf("expected both commands opened, got %v", names(opened))
	}
	if !reg.ResolveStatus(hi) || !reg.ResolveStatus(aloha) {
		t.Fatalf("expected members enabled again")
	}
}

func TestCloseAndOpenAreIdempotent(t *testing.T) {
	reg := NewRegistry()
	mustRegister(t, reg, Spec{Name: "echo"})
	if got := reg.Close("echo"); len(got) != 1 {
		t.Fatalf("expected one closed command, got %v", names(got))
	}
	if got := reg.Close("echo"); len(got) != 0 {
		t.Fatalf("second close must be empty, got %v", names(got))
	}
	if got := reg.Open("echo"); len(got) != 1 {
		t.Fatalf("expected one opened command, got %v", names(got))
	}
	if got := reg.Open("echo"); len(got) != 0 {
		t.Fatalf("second open must be empty, got %v", names(got))
	}
}

func TestCloseAlreadyDisabledCommand(t *testing.T) {
	reg := NewRegistry()
	mustRegister(t, reg, Spec{Name: "hi", Groups: []string{"hello"}})
	reg.Close("hello")
	if got := reg.Close("hi"); len(got) != 0 {
		t.Fatalf("closing a command already disabled by its group must flip nothing, got %v", names(got))
	}
	if got := reg.Open("hello"); len(got) != 0 {
		t.Fatalf("opening the group while the command is closed must flip nothing, got %v", names(got))
	}
	if got := reg.Open("hi"); !equalNames(got, "hi") {
		t.Fatalf("expected hi to open, got %v", names(got))
	}
}

func TestMarkDefaultClosed(t *testing.T) {
	reg := NewRegistry()
	if err := reg.MarkDefaultClosed("hidden", "admin"); err != nil {
		t.Fatalf("MarkDefaultClosed: %v", err)
	}
	hidden := mustRegister(t, reg, Spec{Name: "hidden"})
	if reg.ResolveStatus(hidden) {
		t.Fatalf("expected hidden to start closed")
	}
	if err := reg.MarkDefaultClosed("hidden"); !errors.Is(err, schema.ErrAlreadyRegistered) {
		t.Fatalf("expected already registered error, got %v", err)
	}
	mustRegister(t, reg, Spec{Name: "kick", Groups: []string{"moderation"}})
	if err := reg.MarkDefaultClosed("moderation"); !errors.Is(err, schema.ErrAlreadyRegistered) {
		t.Fatalf("expected populated group to be rejected, got %v", err)
	}
}

func TestBatchUpdateStatus(t *testing.T) {
	reg := NewRegistry()
	_ = reg.MarkDefaultClosed("hidden")
	mustRegister(t, reg, Spec{Name: "echo"})
	mustRegister(t, reg, Spec{Name: "hidden"})

	closed, opened := reg.BatchUpdateStatus(schema.Status{"echo": false, "hidden": true})
	if !equalNames(closed, "echo") || !equalNames(opened, "hidden") {
		t.Fatalf("unexpected batch result closed=%v opened=%v", names(closed), names(opened))
	}
	if reg.GetStatus("echo") || !reg.GetStatus("hidden") {
		t.Fatalf("unexpected status %v", reg.Status())
	}
}

func TestBatchUpdateClosesBeforeOpens(t *testing.T) {
	reg := NewRegistry()
	_ = reg.MarkDefaultClosed("b")
	mustRegister(t, reg, Spec{Name: "both", Groups: []string{"a", "b"}})

	// Opening b first would flip "both" on, then closing a would flip it off.
	closed, opened := reg.BatchUpdateStatus(schema.Status{"a": false, "b": true})
	if len(closed) != 0 || len(opened) != 0 {
		t.Fatalf("expected no flips, got closed=%v opened=%v", names(closed), names(opened))
	}
}

func TestCalcStatusDiff(t *testing.T) {
	tests := []struct {
		name   string
		before schema.Status
		after  schema.Status
		want   schema.Status
	}{
		{name: "one-diff", before: schema.Status{"echo": true, "hello": false}, after: schema.Status{"echo": true, "hello": true}, want: schema.Status{"hello": true}},
		{name: "missing-and-diff", before: schema.Status{"echo": true, "hello": false}, after: schema.Status{"hello": true}, want: schema.Status{"hello": true}},
		{name: "same", before: schema.Status{"echo": true, "hello": false}, after: schema.Status{"echo": true, "hello": false}, want: schema.Status{}},
		{name: "new-open", before: schema.Status{"echo": true}, after: schema.Status{"echo": true, "hello": true}, want: schema.Status{}},
		{name: "new-open-and-diff", before: schema.Status{"x": true}, after: schema.Status{"x": false, "y": true}, want: schema.Status{"x": false}},
		{name: "new-close", before: schema.Status{}, after: schema.Status{"z": false}, want: schema.Status{"z": false}},
		{name: "all-diff", before: schema.Status{"echo": true, "hello": false}, after: schema.Status{"echo": false, "hello": true}, want: schema.Status{"echo": false, "hello": true}},
	}
	for _, tc := range tests {
		got := CalcStatusDiff(tc.before, tc.after)
		if len(got) != len(tc.want) {
			t.Fatalf("%s: diff = %v, want %v", tc.name, got, tc.want)
		}
		for k, v := range tc.want {
			if gv, ok := got[k]; !ok || gv != v {
				t.Fatalf("%s: diff = %v, want %v", tc.name, got, tc.want)
			}
		}
	}
}

func TestSimilarFiltersDisabled(t *testing.T) {
	reg := NewRegistry()
	mustRegister(t, reg, Spec{Name: "world"})
	mustRegister(t, reg, Spec{Name: "words"})
	reg.Close("words")
	got := reg.Similar("word")
	if !equalNames(got, "world") {
		t.Fatalf("expected only enabled similar commands, got %v", names(got))
	}
}

func TestConcurrentCloseFlipsOnce(t *testing.T) {
	reg := NewRegistry()
	mustRegister(t, reg, Spec{Name: "echo"})
	var mu sync.Mutex
	total := 0
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			flipped := reg.Close("echo")
			mu.Lock()
			total += len(flipped)
			mu.Unlock()
		}()
	}
	wg.Wait()
	if total != 1 {
		t.Fatalf("expected exactly one flip across concurrent closes, got %d", total)
	}
}
