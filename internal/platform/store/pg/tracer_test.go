package pg

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/rs/zerolog"
)

func TestCompact(t *testing.T) {
	t.Parallel()

	cases := []struct{ in, want string }{
		{"select 1", "select 1"},
		{"  select   1  ", "select 1"},
		{"SELECT DISTINCT a.id\n\tFROM activity a\r\n WHERE a.is_spam = $1", "SELECT DISTINCT a.id FROM activity a WHERE a.is_spam = $1"},
		{"", ""},
	}
	for _, c := range cases {
		if got := compact(c.in); got != c.want {
			t.Fatalf("compact(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestTracer_Levels(t *testing.T) {
	t.Parallel()

	type line struct {
		Level     string  `json:"level"`
		ElapsedMS float64 `json:"elapsed_ms"`
		Slow      bool    `json:"slow"`
		SQL       string  `json:"sql"`
		Error     string  `json:"error"`
		Component string  `json:"component"`
		Message   string  `json:"message"`
	}

	cases := []struct {
		name      string
		ev        QueryEvent
		wantLevel string
		wantErr   string
	}{
		{"fast", QueryEvent{SQL: "SELECT  1", ElapsedUS: 1500}, "info", ""},
		{"slow", QueryEvent{SQL: "SELECT\n1", ElapsedUS: 900000, Slow: true}, "warn", ""},
		{"failed", QueryEvent{SQL: "SELECT 1", Err: errors.New("boom")}, "info", "boom"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			t.Parallel()
			var buf bytes.Buffer
			// root at error level must not hide statements
			tr := Tracer(zerolog.New(&buf).Level(zerolog.ErrorLevel))
			tr.OnQuery(context.Background(), c.ev)

			var got line
			if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
				t.Fatalf("decode %q: %v", buf.String(), err)
			}
			if got.Level != c.wantLevel || got.Message != "pg query" || got.Component != "pg" {
				t.Fatalf("unexpected line %+v", got)
			}
			if got.SQL != "SELECT 1" {
				t.Fatalf("sql not compacted: %q", got.SQL)
			}
			if got.Slow != c.ev.Slow || got.Error != c.wantErr {
				t.Fatalf("slow/error mismatch %+v", got)
			}
			if got.ElapsedMS != float64(c.ev.ElapsedUS)/1000 {
				t.Fatalf("elapsed_ms = %v", got.ElapsedMS)
			}
		})
	}
}
