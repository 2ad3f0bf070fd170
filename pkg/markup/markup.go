// Package markup turns the HTML bodies Mastodon serves into plain text
// suitable for republishing.
package markup

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// Sanitizer converts post markup to plain text
type Sanitizer interface {
	ToText(content string) string
}

// DefaultEntities is the entity table applied after tags are stripped.
// Anything not listed passes through unchanged.
var DefaultEntities = map[string]string{
	"&quot;": `"`,
	"&amp;":  "&",
	"&lt;":   "<",
	"&gt;":   ">",
	"&#39;":  "'",
}

var (
	lineBreakPattern      = regexp.MustCompile(`(?i)<br\s*/?>`)
	paragraphBreakPattern = regexp.MustCompile(`(?i)</p>\s*<p(\s[^>]*)?>`)
	tagPattern            = regexp.MustCompile(`<[^>]*>`)
)

// PatternSanitizer strips markup with a fixed set of patterns and decodes
// entities from a table
type PatternSanitizer struct {
	entities map[string]string
	decoder  *strings.Replacer
}

// NewPatternSanitizer returns a sanitizer using DefaultEntities
func NewPatternSanitizer() *PatternSanitizer {
	return newPatternSanitizer(DefaultEntities)
}

func newPatternSanitizer(entities map[string]string) *PatternSanitizer {
	keys := make([]string, 0, len(entities))
	for k := range entities {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, 2*len(keys))
	for _, k := range keys {
		pairs = append(pairs, k, entities[k])
	}

	// One Replacer pass: decoded text is never decoded again, so "&amp;lt;"
	// stays the literal "&lt;" the author typed.
	return &PatternSanitizer{
		entities: entities,
		decoder:  strings.NewReplacer(pairs...),
	}
}

// WithEntities returns a copy of the sanitizer whose table also decodes
// extra. Entries in extra override existing ones.
func (s *PatternSanitizer) WithEntities(extra map[string]string) *PatternSanitizer {
	merged := make(map[string]string, len(s.entities)+len(extra))
	for k, v := range s.entities {
		merged[k] = v
	}
	for k, v := range extra {
		merged[k] = v
	}
	return newPatternSanitizer(merged)
}

// Entities returns a copy of the active entity table
func (s *PatternSanitizer) Entities() map[string]string {
	out := make(map[string]string, len(s.entities))
	for k, v := range s.entities {
		out[k] = v
	}
	return out
}

// ToText replaces line and paragraph breaks with newlines, drops every
// remaining tag, decodes the entity table in a single pass and trims the
// result
func (s *PatternSanitizer) ToText(content string) string {
	text := lineBreakPattern.ReplaceAllString(content, "\n")
	text = paragraphBreakPattern.ReplaceAllString(text, "\n\n")
	text = tagPattern.ReplaceAllString(text, "")
	text = s.decoder.Replace(text)
	return strings.TrimSpace(text)
}

// New returns the sanitizer registered under name
func New(name string) (Sanitizer, error) {
	switch strings.ToLower(name) {
	case "", "pattern":
		return NewPatternSanitizer(), nil
	case "document":
		return NewDocumentSanitizer(), nil
	default:
		return nil, fmt.Errorf("unknown sanitizer %q", name)
	}
}
