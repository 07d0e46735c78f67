package schema

import (
	"fmt"
	"strings"
	"unicode"
)

// ValidateName ensures a command, group, keyword or context name is non-empty
// and contains no whitespace, so it can be matched as a leading token.
func ValidateName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: empty name", ErrInvalidCommand)
	}
	for _, r := range name {
		if unicode.IsSpace(r) {
			return fmt.Errorf("%w: name %q contains whitespace", ErrInvalidCommand, name)
		}
	}
	return nil
}

// NormalizeNames trims, validates and de-duplicates names while keeping order.
func NormalizeNames(names []string) ([]string, error) {
	if len(names) == 0 {
		return nil, nil
	}
	out := make([]string, 0, len(names))
	seen := make(map[string]struct{}, len(names))
	for _, raw := range names {
		name := strings.TrimSpace(raw)
		if err := ValidateName(name); err != nil {
			return nil, err
		}
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	return out, nil
}
