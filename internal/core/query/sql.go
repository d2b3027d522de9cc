package query

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strconv"
	"strings"
)

// Table is the activity table, always aliased as a
const Table = "activity"

// Select is a paged id query over a composed listing
type Select struct {
	Composed
	Sort   Sort
	Limit  int
	Offset int
}

// SQL renders the ordered id query
// DISTINCT guards against meta joins fanning out, Postgres then needs the sort column selected
func (s Select) SQL() (string, []any) {
	srt := s.Sort.Normalize()
	var b strings.Builder
	b.WriteString("SELECT DISTINCT a.id")
	if srt.Field != "id" {
		b.WriteString(", a." + srt.Field)
	}
	s.from(&b)
	b.WriteString(" ORDER BY ")
	if srt.Field != "id" {
		b.WriteString("a." + srt.Field + " " + srt.Dir + ", ")
	}
	b.WriteString("a.id " + srt.Dir)
	if s.Limit > 0 {
		b.WriteString(" LIMIT " + strconv.Itoa(s.Limit))
	}
	if s.Offset > 0 {
		b.WriteString(" OFFSET " + strconv.Itoa(s.Offset))
	}
	return b.String(), s.Args
}

// Count is the distinct total for a composed listing
type Count struct{ Composed }

// SQL renders the count query
func (c Count) SQL() (string, []any) {
	var b strings.Builder
	b.WriteString("SELECT COUNT(DISTINCT a.id)")
	from(&b, c.Composed)
	return b.String(), c.Args
}

func (s Select) from(b *strings.Builder) { from(b, s.Composed) }

func from(b *strings.Builder, c Composed) {
	b.WriteString(" FROM " + Table + " a")
	if j := c.JoinSQL(); j != "" {
		b.WriteString(" " + j)
	}
	if w := c.WhereSQL(); w != "" {
		b.WriteString(" " + w)
	}
}

// Fingerprint derives a stable cache key from query text and args
func Fingerprint(sql string, args []any) string {
	h := sha256.New()
	h.Write([]byte(sql))
	h.Write([]byte{0})
	raw, err := json.Marshal(args)
	if err != nil {
		raw = []byte(strings.Repeat("?", len(args)))
	}
	h.Write(raw)
	return hex.EncodeToString(h.Sum(nil))
}
