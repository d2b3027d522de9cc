package query

import (
	"math"
	"strconv"
	"strings"
	"time"

	"murmur/internal/core/normalize"
	perr "murmur/internal/platform/errors"
)

// FilterNode is an advanced boolean filter tree
// a node with Children is a group combined by Relation (AND when empty)
// a node without Children is a clause on Column
type FilterNode struct {
	Relation string       `json:"relation,omitempty"`
	Column   string       `json:"column,omitempty"`
	Compare  string       `json:"compare,omitempty"`
	Value    any          `json:"value,omitempty"`
	Children []FilterNode `json:"children,omitempty"`
}

type kind uint8

const (
	kindInt kind = iota
	kindText
	kindBool
	kindTime
)

// columns is the allow list of filterable activity columns
var columns = map[string]kind{
	"id":                kindInt,
	"user_id":           kindInt,
	"item_id":           kindInt,
	"secondary_item_id": kindInt,
	"component":         kindText,
	"type":              kindText,
	"action":            kindText,
	"content":           kindText,
	"primary_link":      kindText,
	"date_recorded":     kindTime,
	"hide_sitewide":     kindBool,
	"is_spam":           kindBool,
}

// Validate reports why a tree would be dropped by the composer
func (n FilterNode) Validate() error {
	var a args
	_, err := n.compile(&a)
	return err
}

func malformed(format string, v ...any) error {
	return perr.Newf(perr.ErrorCodeInvalidArgument, "filter: "+format, v...)
}

func (n FilterNode) compile(a *args) (string, error) {
	if len(n.Children) > 0 {
		rel, err := relation(n.Relation)
		if err != nil {
			return "", err
		}
		parts := make([]string, 0, len(n.Children))
		for _, ch := range n.Children {
			p, err := ch.compile(a)
			if err != nil {
				return "", err
			}
			parts = append(parts, p)
		}
		return join(parts, rel), nil
	}
	if n.Column == "" {
		return "", malformed("empty group")
	}
	k, ok := columns[n.Column]
	if !ok {
		return "", malformed("unknown column %q", n.Column)
	}
	vals, err := convertAll(k, listOf(n.Value))
	if err != nil {
		return "", malformed("column %s: %v", n.Column, err)
	}
	return clause(a, "a."+n.Column, k, n.Compare, vals)
}

func relation(r string) (string, error) {
	switch strings.ToUpper(strings.TrimSpace(r)) {
	case "", "AND":
		return "AND", nil
	case "OR":
		return "OR", nil
	default:
		return "", malformed("unknown relation %q", r)
	}
}

// clause renders one comparison of col against already converted values
func clause(a *args, col string, k kind, compare string, vals []any) (string, error) {
	cmp := strings.ToUpper(strings.TrimSpace(compare))
	if cmp == "" {
		cmp = "="
		if len(vals) > 1 {
			cmp = "IN"
		}
	}
	switch cmp {
	case "=", "!=", ">", ">=", "<", "<=":
		if len(vals) != 1 {
			return "", malformed("%s wants one value, got %d", cmp, len(vals))
		}
		return col + " " + cmp + " " + a.add(vals[0]), nil
	case "IN", "NOT IN":
		if len(vals) == 0 {
			return "", malformed("%s wants at least one value", cmp)
		}
		return col + " " + cmp + " (" + a.list(vals) + ")", nil
	case "BETWEEN", "NOT BETWEEN":
		if len(vals) != 2 {
			return "", malformed("%s wants two values, got %d", cmp, len(vals))
		}
		return col + " " + cmp + " " + a.add(vals[0]) + " AND " + a.add(vals[1]), nil
	case "LIKE", "NOT LIKE":
		if k != kindText || len(vals) != 1 {
			return "", malformed("%s wants one text value", cmp)
		}
		return col + " " + cmp + " " + a.add(normalize.Contains(vals[0].(string))), nil
	default:
		return "", malformed("unknown compare %q", compare)
	}
}

// listOf flattens a scalar or slice value
func listOf(v any) []any {
	switch x := v.(type) {
	case nil:
		return nil
	case []any:
		return x
	case []string:
		return strs(x)
	case []int64:
		return ints(x)
	case []int:
		out := make([]any, len(x))
		for i, n := range x {
			out[i] = int64(n)
		}
		return out
	default:
		return []any{v}
	}
}

func convertAll(k kind, vs []any) ([]any, error) {
	out := make([]any, 0, len(vs))
	for _, v := range vs {
		c, err := convert(k, v)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

// convert coerces a decoded JSON value into the Go type bound for a column kind
func convert(k kind, v any) (any, error) {
	switch k {
	case kindInt:
		return toInt(v)
	case kindText:
		if s, ok := textOf(v); ok {
			return s, nil
		}
	case kindBool:
		switch x := v.(type) {
		case bool:
			return x, nil
		case string:
			if b, err := strconv.ParseBool(x); err == nil {
				return b, nil
			}
		default:
			if n, err := toInt(v); err == nil && (n == 0 || n == 1) {
				return n == 1, nil
			}
		}
	case kindTime:
		switch x := v.(type) {
		case time.Time:
			return x.UTC(), nil
		case string:
			for _, layout := range []string{time.RFC3339Nano, "2006-01-02 15:04:05", "2006-01-02"} {
				if t, err := time.Parse(layout, x); err == nil {
					return t.UTC(), nil
				}
			}
		}
	}
	return nil, malformed("cannot use %v (%T)", v, v)
}

func toInt(v any) (int64, error) {
	switch x := v.(type) {
	case int64:
		return x, nil
	case int:
		return int64(x), nil
	case int32:
		return int64(x), nil
	case float64:
		if x == math.Trunc(x) && !math.IsInf(x, 0) {
			return int64(x), nil
		}
	case string:
		if n, err := strconv.ParseInt(strings.TrimSpace(x), 10, 64); err == nil {
			return n, nil
		}
	}
	return 0, malformed("not an integer: %v", v)
}

// textOf renders scalars as text, used for text columns and meta values
func textOf(v any) (string, bool) {
	switch x := v.(type) {
	case string:
		return x, true
	case bool:
		return strconv.FormatBool(x), true
	case int64, int, int32, float64:
		if n, err := toInt(x); err == nil {
			return strconv.FormatInt(n, 10), true
		}
		if f, ok := x.(float64); ok {
			return strconv.FormatFloat(f, 'f', -1, 64), true
		}
	}
	return "", false
}
