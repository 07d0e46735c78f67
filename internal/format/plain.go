package format

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"pkt.systems/cmdbot/schema"
)

// PlainRenderer formats dispatch results and transitions as plain text lines.
type PlainRenderer struct {
	// Marker prefixes every result line, e.g. the bot name.
	Marker string
}

// NewPlainRenderer returns a plain-text renderer prefixing lines with marker.
func NewPlainRenderer(marker string) *PlainRenderer {
	return &PlainRenderer{Marker: marker}
}

// FormatResult converts a handler or fallback result into user-facing lines.
// A nil result yields no lines.
func (p *PlainRenderer) FormatResult(result any) []string {
	switch value := result.(type) {
	case nil:
		return nil
	case string:
		return markLines(p.Marker, splitLines(value))
	case []string:
		lines := make([]string, 0, len(value))
		for _, item := range value {
			lines = append(lines, splitLines(item)...)
		}
		return markLines(p.Marker, lines)
	case error:
		return []string{fmt.Sprintf("error: %s", value.Error())}
	case fmt.Stringer:
		return markLines(p.Marker, splitLines(value.String()))
	default:
		return markLines(p.Marker, splitLines(fmt.Sprint(value)))
	}
}

// FormatError converts a dispatch failure into user-facing lines.
func (p *PlainRenderer) FormatError(err error) []string {
	if err == nil {
		return nil
	}
	var lines []string
	for _, line := range splitLines(err.Error()) {
		lines = append(lines, "error: "+line)
	}
	if errors.Is(err, schema.ErrReferenceUnderflow) {
		lines = append(lines, "error: context bookkeeping is inconsistent; restart recommended")
	}
	return lines
}

// FormatTransition describes a status transition on one line.
func (p *PlainRenderer) FormatTransition(event schema.TransitionEvent) []string {
	if len(event.Commands) == 0 {
		return nil
	}
	line := fmt.Sprintf("%s: %s", event.Direction, strings.Join(event.Commands, ", "))
	if event.Name != "" && !(len(event.Commands) == 1 && event.Commands[0] == event.Name) {
		line += fmt.Sprintf(" (via %s)", event.Name)
	}
	return []string{line}
}

// FormatStatus lists explicitly set statuses sorted by name.
func (p *PlainRenderer) FormatStatus(status schema.Status) []string {
	if len(status) == 0 {
		return []string{"all commands enabled"}
	}
	names := make([]string, 0, len(status))
	for name := range status {
		names = append(names, name)
	}
	sort.Strings(names)
	lines := make([]string, 0, len(names))
	for _, name := range names {
		state := "enabled"
		if !status[name] {
			state = "disabled"
		}
		lines = append(lines, fmt.Sprintf("%s: %s", name, state))
	}
	return lines
}

func splitLines(text string) []string {
	if text == "" {
		return nil
	}
	return strings.Split(strings.TrimRight(text, "\n"), "\n")
}

func markLines(marker string, lines []string) []string {
	if marker == "" || len(lines) == 0 {
		return lines
	}
	marked := make([]string, 0, len(lines))
	for _, line := range lines {
		marked = append(marked, marker+line)
	}
	return marked
}
