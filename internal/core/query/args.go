package query

import (
	"strconv"
	"strings"
)

// args collects positional parameters in the order placeholders are rendered
type args struct{ vals []any }

// add appends v and returns its placeholder
func (a *args) add(v any) string {
	a.vals = append(a.vals, v)
	return "$" + strconv.Itoa(len(a.vals))
}

// list appends every value and returns a comma separated placeholder list
func (a *args) list(vs []any) string {
	ph := make([]string, len(vs))
	for i, v := range vs {
		ph[i] = a.add(v)
	}
	return strings.Join(ph, ", ")
}

// mark returns a rollback point
func (a *args) mark() int { return len(a.vals) }

// rollback drops every value added after m
func (a *args) rollback(m int) { a.vals = a.vals[:m] }

// ints widens an id slice for list
func ints(xs []int64) []any {
	out := make([]any, len(xs))
	for i, x := range xs {
		out[i] = x
	}
	return out
}

// strs widens a string slice for list
func strs(xs []string) []any {
	out := make([]any, len(xs))
	for i, x := range xs {
		out[i] = x
	}
	return out
}

// and joins parts with AND, parenthesized when there is more than one
func and(parts []string) string {
	return join(parts, "AND")
}

func join(parts []string, rel string) string {
	switch len(parts) {
	case 0:
		return ""
	case 1:
		return parts[0]
	default:
		return "(" + strings.Join(parts, " "+rel+" ") + ")"
	}
}
