// Package notify renders and dispatches outbound notifications.  Templates
// use `{{ dotted.path }}` placeholders that are resolved against a Context.
package notify

import (
	"fmt"
	"io"
	"strings"

	"github.com/valyala/fasttemplate"
)

const (
	openTag  = "{{"
	closeTag = "}}"
)

// Context is the data a template is rendered against.  Nested values are
// reached with dotted keys: {{ user.name }} reads Context{"user": {"name": ...}}.
type Context map[string]any

// DefaultValues substitutes keys that resolve to an explicit nil.  It is
// keyed by the full dotted path as written in the template.
var DefaultValues = map[string]any{
	"user.plan":      "Free",
	"usage.requests": 0,
	"usage.storage":  0,
}

// Renderer performs single-pass placeholder substitution.  Placeholders
// whose path does not resolve are left in the output untouched.
type Renderer struct {
	defaults map[string]any
	escape   func(string) string
}

// NewRenderer returns a renderer using the given defaults table; nil means
// DefaultValues.  escape, when non-nil, is applied to every substituted
// value (e.g. html.EscapeString for HTML bodies).
func NewRenderer(defaults map[string]any, escape func(string) string) *Renderer {
	if defaults == nil {
		defaults = DefaultValues
	}
	return &Renderer{defaults: defaults, escape: escape}
}

// Render substitutes every resolvable placeholder in tpl.  It never fails:
// malformed or unresolvable placeholders pass through verbatim.
func (r *Renderer) Render(tpl string, data Context) string {
	head, tail := splitUnclosed(tpl)
	out, err := fasttemplate.ExecuteFuncStringWithErr(head, openTag, closeTag, func(w io.Writer, tag string) (int, error) {
		if v, ok := r.resolve(tag, data); ok {
			return io.WriteString(w, v)
		}
		return io.WriteString(w, openTag+tag+closeTag)
	})
	if err != nil {
		return tpl
	}
	return out + tail
}

// resolve looks up the trimmed tag in data and stringifies the result.
func (r *Renderer) resolve(tag string, data Context) (string, bool) {
	key := strings.TrimSpace(tag)
	if !validKey(key) {
		return "", false
	}
	v, ok := lookup(data, strings.Split(key, "."))
	if !ok {
		return "", false
	}
	if v == nil {
		if v, ok = r.defaults[key]; !ok || v == nil {
			return "", false
		}
	}
	s := fmt.Sprint(v)
	if r.escape != nil {
		s = r.escape(s)
	}
	return s, true
}

// lookup walks data segment by segment.
func lookup(data Context, path []string) (any, bool) {
	var cur any = data
	for _, seg := range path {
		var (
			next any
			ok   bool
		)
		switch m := cur.(type) {
		case Context:
			next, ok = m[seg]
		case map[string]any:
			next, ok = m[seg]
		case map[string]string:
			next, ok = m[seg]
		}
		if !ok {
			return nil, false
		}
		cur = next
	}
	return cur, true
}

// validKey accepts word characters and dots, the placeholder alphabet.
func validKey(key string) bool {
	if key == "" {
		return false
	}
	for _, c := range key {
		switch {
		case c == '.' || c == '_':
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		default:
			return false
		}
	}
	return true
}

// splitUnclosed separates a trailing "{{" that has no closing "}}" so the
// scanner only sees complete tags.
func splitUnclosed(tpl string) (head, tail string) {
	i := strings.LastIndex(tpl, openTag)
	if i < 0 || strings.Contains(tpl[i:], closeTag) {
		return tpl, ""
	}
	return tpl[:i], tpl[i:]
}
