package command

import (
	"context"
	"fmt"
	"strings"

	"pkt.systems/cmdbot/schema"
)

// HandlerFunc executes a command with its filtered arguments.
type HandlerFunc func(ctx context.Context, args schema.Args) (any, error)

// Spec declares a command before registration.
type Spec struct {
	// Name identifies the command and doubles as its singleton group.
	Name string
	// Keywords route input to the command. Defaults to Name.
	Keywords []string
	Groups   []string
	// Params lists the argument names the handler accepts, in order.
	Params  []string
	Help    string
	Handler HandlerFunc
}

// ParamRules decides which declared parameters reach the handler and which
// of them are resolved as contexts.
type ParamRules struct {
	ParameterIgnore []string
	ContextIgnore   []string
	Payload         string
}

// RulesFromConfig derives parameter rules from a manager config.
func RulesFromConfig(cfg schema.Config) ParamRules {
	return ParamRules{
		ParameterIgnore: cfg.ParameterIgnore,
		ContextIgnore:   cfg.ContextIgnore,
		Payload:         cfg.PayloadParameter,
	}
}

// Command is immutable metadata describing a registered handler.
type Command struct {
	name     string
	keywords []string
	groups   []string
	params   []string
	contexts []string
	help     string
	handler  HandlerFunc
}

// New validates spec and builds a Command.
func New(spec Spec, rules ParamRules) (*Command, error) {
	name := strings.TrimSpace(spec.Name)
	if err := schema.ValidateName(name); err != nil {
		return nil, err
	}
	if spec.Handler == nil {
		return nil, fmt.Errorf("%w: command %q", schema.ErrNilHandler, name)
	}
	keywords, err := schema.NormalizeNames(spec.Keywords)
	if err != nil {
		return nil, err
	}
	if len(keywords) == 0 {
		keywords = []string{name}
	}
	groups, err := schema.NormalizeNames(spec.Groups)
	if err != nil {
		return nil, err
	}
	params, err := schema.NormalizeNames(spec.Params)
	if err != nil {
		return nil, err
	}
	if rules.Payload == "" {
		rules.Payload = schema.DefaultPayloadParameter
	}
	cmd := &Command{
		name:     name,
		keywords: keywords,
		groups:   groups,
		handler:  spec.Handler,
	}
	for _, param := range params {
		if contains(rules.ParameterIgnore, param) {
			continue
		}
		cmd.params = append(cmd.params, param)
		if param == rules.Payload || contains(rules.ContextIgnore, param) {
			continue
		}
		cmd.contexts = append(cmd.contexts, param)
	}
	cmd.help = strings.TrimSpace(dedent(spec.Help))
	if cmd.help == "" {
		cmd.help = strings.Join(keywords, "/") + " " + name
	}
	return cmd, nil
}

// Name returns the unique command name.
func (c *Command) Name() string { return c.name }

// Keywords returns the keywords routed to the command.
func (c *Command) Keywords() []string { return append([]string(nil), c.keywords...) }

// Groups returns the declared group names.
func (c *Command) Groups() []string { return append([]string(nil), c.groups...) }

// Params returns the parameters passed to the handler.
func (c *Command) Params() []string { return append([]string(nil), c.params...) }

// Contexts returns the parameters resolved as contexts.
func (c *Command) Contexts() []string { return append([]string(nil), c.contexts...) }

// Help returns the full help text.
func (c *Command) Help() string { return c.help }

// BriefHelp returns the first help line as a list item.
func (c *Command) BriefHelp() string {
	first, _, _ := strings.Cut(c.help, "\n")
	return "- " + first
}

// Call invokes the handler with only the declared parameters from args.
func (c *Command) Call(ctx context.Context, args schema.Args) (any, error) {
	filtered := make(schema.Args, len(c.params))
	for _, param := range c.params {
		if value, ok := args[param]; ok {
			filtered[param] = value
		}
	}
	return c.handler(ctx, filtered)
}

func contains(values []string, target string) bool {
	for _, value := range values {
		if value == target {
			return true
		}
	}
	return false
}

// dedent strips the common leading whitespace of all non-blank lines.
func dedent(text string) string {
	lines := strings.Split(text, "\n")
	prefix := ""
	first := true
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		indent := line[:len(line)-len(strings.TrimLeft(line, " \t"))]
		if first {
			prefix = indent
			first = false
			continue
		}
		for !strings.HasPrefix(indent, prefix) {
			prefix = prefix[:len(prefix)-1]
		}
	}
	if prefix == "" {
		return text
	}
	for i, line := range lines {
		lines[i] = strings.TrimPrefix(line, prefix)
	}
	return strings.Join(lines, "\n")
}
