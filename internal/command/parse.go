package command

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
)

// Input represents a line split into its leading keyword and payload.
type Input struct {
	Keyword string
	Payload string
	Fields  []string
	Raw     string
}

// Parse splits a line into the first whitespace-delimited token and the
// remainder. Whitespace is any Unicode space for both the keyword boundary and
// the payload trim.
func Parse(content string) Input {
	raw := strings.TrimLeftFunc(content, unicode.IsSpace)
	if raw == "" {
		return Input{Raw: content, Fields: []string{}}
	}
	keyword, payload := raw, ""
	if end := strings.IndexFunc(raw, unicode.IsSpace); end >= 0 {
		keyword = raw[:end]
		payload = strings.TrimSpace(raw[end:])
	}
	return Input{
		Keyword: keyword,
		Payload: payload,
		Fields:  strings.Fields(payload),
		Raw:     content,
	}
}

// SplitKeyword returns the keyword and payload of content.
func SplitKeyword(content string) (string, string) {
	in := Parse(content)
	return in.Keyword, in.Payload
}

// FoldKeyword returns the case-folded form of a keyword used for
// case-insensitive matching.
func FoldKeyword(keyword string) string {
	return cases.Fold().String(keyword)
}
