// Package sanitize neutralizes request input before it reaches a router.
//
// Two passes exist. Operator keys ("$gt", "a.b") are removed so user input
// can never become part of a document query. Strings carrying markup are
// reduced to text. Both passes are idempotent.
package sanitize

import (
	"net/url"
	"strings"
	"sync"

	"github.com/microcosm-cc/bluemonday"
)

var (
	policyOnce sync.Once
	policy     *bluemonday.Policy
)

func strict() *bluemonday.Policy {
	policyOnce.Do(func() { policy = bluemonday.StrictPolicy() })
	return policy
}

// OperatorKey reports whether a key could be read as a query operator or a
// dotted path. Bracketed query keys such as "price[$gte]" are checked per
// segment.
func OperatorKey(k string) bool {
	if strings.Contains(k, ".") {
		return true
	}
	for _, seg := range strings.FieldsFunc(k, func(r rune) bool { return r == '[' || r == ']' }) {
		if strings.HasPrefix(seg, "$") {
			return true
		}
	}
	return strings.HasPrefix(k, "$")
}

// Operators removes operator keys from v in place, recursing into maps and
// slices. It reports the number of keys removed.
func Operators(v any) int {
	n := 0
	switch t := v.(type) {
	case map[string]any:
		for k, child := range t {
			if OperatorKey(k) {
				delete(t, k)
				n++
				continue
			}
			n += Operators(child)
		}
	case []any:
		for _, child := range t {
			n += Operators(child)
		}
	}
	return n
}

// Markup strips HTML from every string in v that contains a '<'. Strings
// without one are left untouched, which keeps the pass idempotent.
func Markup(v any) any {
	switch t := v.(type) {
	case string:
		return Text(t)
	case map[string]any:
		for k, child := range t {
			t[k] = Markup(child)
		}
		return t
	case []any:
		for i, child := range t {
			t[i] = Markup(child)
		}
		return t
	case []string:
		for i, s := range t {
			t[i] = Text(s)
		}
		return t
	default:
		return v
	}
}

// Text strips markup from a single string.
func Text(s string) string {
	if !strings.Contains(s, "<") {
		return s
	}
	return strict().Sanitize(s)
}

// Query returns a copy of q with operator keys dropped and markup stripped
// from values. Value order is preserved.
func Query(q url.Values) url.Values {
	out := make(url.Values, len(q))
	for k, vs := range q {
		if OperatorKey(k) {
			continue
		}
		cp := make([]string, len(vs))
		for i, s := range vs {
			cp[i] = Text(s)
		}
		out[k] = cp
	}
	return out
}
