package repo

import (
	"context"

	"murmur/internal/modkit/repokit"
	"murmur/internal/services/activity/domain"

	"github.com/google/uuid"
)

// ArchiveTable is the ClickHouse table archived events land in
//
//	CREATE TABLE activity_events (
//	  event_id UUID, op LowCardinality(String), at DateTime64(3, 'UTC'),
//	  activity_id Int64, user_id Int64, component LowCardinality(String),
//	  type LowCardinality(String), item_id Int64, secondary_item_id Int64, is_spam Bool
//	) ENGINE = MergeTree ORDER BY (at, activity_id)
const ArchiveTable = "activity_events"

var archiveCols = []string{
	"event_id", "op", "at", "activity_id", "user_id", "component",
	"type", "item_id", "secondary_item_id", "is_spam",
}

// Archive writes events to the columnar sink in one batch per call
type Archive struct {
	sink  repokit.Archive
	newID func() uuid.UUID
}

// NewArchive wraps sink, nil means archiving is off
func NewArchive(sink repokit.Archive) *Archive {
	if sink == nil {
		return nil
	}
	return &Archive{sink: sink, newID: uuid.New}
}

// Archive implements domain.Archiver
func (a *Archive) Archive(ctx context.Context, evs ...domain.Event) error {
	if a == nil || len(evs) == 0 {
		return nil
	}
	rows := make([][]any, 0, len(evs))
	for _, ev := range evs {
		r := ev.Record
		rows = append(rows, []any{
			a.newID(), ev.Op, ev.At.UTC(), r.ID, r.UserID, r.Component,
			r.Type, r.ItemID, r.SecondaryItemID, r.IsSpam,
		})
	}
	return a.sink.Append(ctx, ArchiveTable, archiveCols, rows)
}
