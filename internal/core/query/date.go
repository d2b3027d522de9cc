package query

import (
	"strconv"
	"strings"
	"time"

	perr "murmur/internal/platform/errors"
)

// DateClause bounds date_recorded, every set part must hold
type DateClause struct {
	After     *time.Time `json:"after,omitempty"`
	Before    *time.Time `json:"before,omitempty"`
	Inclusive bool       `json:"inclusive,omitempty"`
	Year      int        `json:"year,omitempty"`
	Month     int        `json:"month,omitempty"`
	Day       int        `json:"day,omitempty"`
}

// DateQuery is a group of date clauses combined by Relation
type DateQuery struct {
	Relation string       `json:"relation,omitempty"`
	Clauses  []DateClause `json:"clauses"`
}

const dateCol = "a.date_recorded"

func (d DateQuery) compile(a *args) (string, error) {
	if len(d.Clauses) == 0 {
		return "", malformed("empty date query")
	}
	rel, err := relation(d.Relation)
	if err != nil {
		return "", err
	}
	parts := make([]string, 0, len(d.Clauses))
	for i, c := range d.Clauses {
		p, err := c.compile(a)
		if err != nil {
			return "", perr.WithField(err, "date_query.clauses."+strconv.Itoa(i))
		}
		parts = append(parts, p)
	}
	return join(parts, rel), nil
}

func (c DateClause) compile(a *args) (string, error) {
	var parts []string
	if c.After != nil {
		op := " > "
		if c.Inclusive {
			op = " >= "
		}
		parts = append(parts, dateCol+op+a.add(c.After.UTC()))
	}
	if c.Before != nil {
		op := " < "
		if c.Inclusive {
			op = " <= "
		}
		parts = append(parts, dateCol+op+a.add(c.Before.UTC()))
	}
	if c.Year != 0 {
		if c.Year < 1 || c.Year > 9999 {
			return "", malformed("year %d out of range", c.Year)
		}
		parts = append(parts, "EXTRACT(YEAR FROM "+dateCol+") = "+a.add(int64(c.Year)))
	}
	if c.Month != 0 {
		if c.Month < 1 || c.Month > 12 {
			return "", malformed("month %d out of range", c.Month)
		}
		parts = append(parts, "EXTRACT(MONTH FROM "+dateCol+") = "+a.add(int64(c.Month)))
	}
	if c.Day != 0 {
		if c.Day < 1 || c.Day > 31 {
			return "", malformed("day %d out of range", c.Day)
		}
		parts = append(parts, "EXTRACT(DAY FROM "+dateCol+") = "+a.add(int64(c.Day)))
	}
	if len(parts) == 0 {
		return "", malformed("clause has no bounds")
	}
	if len(parts) == 1 {
		return parts[0], nil
	}
	return "(" + strings.Join(parts, " AND ") + ")", nil
}
