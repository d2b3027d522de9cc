package query

import (
	"strconv"
	"strings"

	"murmur/internal/core/normalize"
)

// MetaClause constrains one meta key
// Compare defaults to EXISTS without a value, IN with a list, = otherwise
type MetaClause struct {
	Key     string `json:"key"`
	Value   any    `json:"value,omitempty"`
	Compare string `json:"compare,omitempty"`
}

// MetaQuery is a group of meta clauses combined by Relation
type MetaQuery struct {
	Relation string       `json:"relation,omitempty"`
	Clauses  []MetaClause `json:"clauses"`
}

// compile renders one LEFT JOIN per clause and a single where fragment
func (m MetaQuery) compile(a *args) (joins []string, where string, err error) {
	if len(m.Clauses) == 0 {
		return nil, "", malformed("empty meta query")
	}
	rel, err := relation(m.Relation)
	if err != nil {
		return nil, "", err
	}
	parts := make([]string, 0, len(m.Clauses))
	for i, c := range m.Clauses {
		key := strings.TrimSpace(c.Key)
		if key == "" {
			return nil, "", malformed("meta clause %d has no key", i)
		}
		alias := "mt" + strconv.Itoa(i)
		joins = append(joins, "LEFT JOIN activity_meta "+alias+" ON ("+
			alias+".activity_id = a.id AND "+alias+".meta_key = "+a.add(key)+")")

		p, err := metaCompare(a, alias, c)
		if err != nil {
			return nil, "", err
		}
		parts = append(parts, p)
	}
	return joins, join(parts, rel), nil
}

func metaCompare(a *args, alias string, c MetaClause) (string, error) {
	vals := listOf(c.Value)
	cmp := strings.ToUpper(strings.TrimSpace(c.Compare))
	if cmp == "" && len(vals) == 0 {
		cmp = "EXISTS"
	}
	switch cmp {
	case "EXISTS":
		return alias + ".activity_id IS NOT NULL", nil
	case "NOT EXISTS":
		return alias + ".activity_id IS NULL", nil
	}

	texts := make([]any, 0, len(vals))
	for _, v := range vals {
		s, ok := textOf(v)
		if !ok {
			return "", malformed("meta %s: cannot use %v", c.Key, v)
		}
		texts = append(texts, s)
	}
	if cmp == "LIKE" || cmp == "NOT LIKE" {
		if len(texts) != 1 {
			return "", malformed("meta %s: %s wants one value", c.Key, cmp)
		}
		return alias + ".meta_value " + cmp + " " + a.add(normalize.Contains(texts[0].(string))), nil
	}
	return clause(a, alias+".meta_value", kindText, cmp, texts)
}
