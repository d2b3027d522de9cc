package repo

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"murmur/internal/services/activity/domain"

	"github.com/google/uuid"
)

func TestDeleteWhere(t *testing.T) {
	t.Parallel()

	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.FixedZone("x", 3600))
	hidden := true
	cases := []struct {
		name  string
		in    domain.DeleteFilter
		where string
		args  []any
	}{
		{"empty", domain.DeleteFilter{}, "", nil},
		{"ids", domain.DeleteFilter{IDs: []int64{1, 2}}, "id = ANY($1)", []any{[]int64{1, 2}}},
		{
			"mixed keeps placeholders in order",
			domain.DeleteFilter{UserIDs: []int64{7}, Type: "activity_comment", HideSitewide: &hidden},
			"user_id = ANY($1) AND type = $2 AND hide_sitewide = $3",
			[]any{[]int64{7}, "activity_comment", true},
		},
		{
			"date is normalized to utc",
			domain.DeleteFilter{Component: "activity", DateRecorded: &at},
			"component = $1 AND date_recorded = $2",
			[]any{"activity", at.UTC()},
		},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			t.Parallel()
			where, args := deleteWhere(c.in)
			if where != c.where {
				t.Fatalf("where = %q, want %q", where, c.where)
			}
			if !reflect.DeepEqual(args, c.args) {
				t.Fatalf("args = %#v, want %#v", args, c.args)
			}
		})
	}
}

type fakeSink struct {
	table string
	cols  []string
	rows  [][]any
	err   error
}

func (f *fakeSink) Append(_ context.Context, table string, cols []string, rows [][]any) error {
	f.table, f.cols, f.rows = table, cols, rows
	return f.err
}
func (f *fakeSink) Ping(context.Context) error { return nil }
func (f *fakeSink) Close() error               { return nil }

func TestArchive(t *testing.T) {
	t.Parallel()

	if NewArchive(nil) != nil {
		t.Fatal("nil sink should disable archiving")
	}
	var off *Archive
	if err := off.Archive(context.Background(), domain.Event{}); err != nil {
		t.Fatalf("nil archive err = %v", err)
	}

	sink := &fakeSink{}
	a := NewArchive(sink)
	id := uuid.MustParse("7b0f5f52-8d4b-4a55-9b4c-0a3c5a8f1e01")
	a.newID = func() uuid.UUID { return id }

	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.FixedZone("x", -7200))
	rec := domain.Record{ID: 9, UserID: 7, Component: "activity", Type: domain.TypeComment, ItemID: 1, SecondaryItemID: 2, IsSpam: true}
	if err := a.Archive(context.Background(), domain.Event{Op: "delete", At: at, Record: rec}); err != nil {
		t.Fatal(err)
	}
	if sink.table != ArchiveTable || len(sink.cols) != len(archiveCols) {
		t.Fatalf("table=%q cols=%v", sink.table, sink.cols)
	}
	want := []any{id, "delete", at.UTC(), int64(9), int64(7), "activity", domain.TypeComment, int64(1), int64(2), true}
	if len(sink.rows) != 1 || !reflect.DeepEqual(sink.rows[0], want) {
		t.Fatalf("rows = %#v", sink.rows)
	}

	sink.err = errors.New("down")
	if err := a.Archive(context.Background(), domain.Event{Record: rec}); err == nil {
		t.Fatal("sink error swallowed")
	}
}
