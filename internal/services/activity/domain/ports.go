package domain

import (
	"context"
	"time"

	"murmur/internal/core/query"
)

// Store is the record store the service runs against, bound to a pool or a transaction
type Store interface {
	GetByID(ctx context.Context, id int64) (Record, error)
	// GetByIDs returns the rows that exist, in no particular order
	GetByIDs(ctx context.Context, ids []int64) ([]Record, error)
	QueryIDs(ctx context.Context, sel query.Select) ([]int64, error)
	Count(ctx context.Context, c query.Count) (int64, error)

	Insert(ctx context.Context, r Record) (int64, error)
	// Update reports false when no row has r.ID
	Update(ctx context.Context, r Record) (bool, error)
	// DeleteWhere removes matching rows and returns them as they were
	DeleteWhere(ctx context.Context, f DeleteFilter) ([]Record, error)

	// Descendants loads the comments of top whose left bound lies strictly inside left and right, oldest first
	Descendants(ctx context.Context, top, left, right int64, spam query.SpamPolicy) ([]Record, error)
	ChildIDs(ctx context.Context, parent int64) ([]int64, error)
	SetBounds(ctx context.Context, id, left, right int64, commentOnly bool) error
	// ThreadRoots lists every top-level id that has comments, ascending
	ThreadRoots(ctx context.Context) ([]int64, error)
	// LockTree serializes structural changes of one tree until the transaction ends
	LockTree(ctx context.Context, top int64) error

	LastSeenID(ctx context.Context, userID int64) (int64, error)

	UpdateMeta(ctx context.Context, id int64, key, value string) error
	Meta(ctx context.Context, id int64) ([]MetaEntry, error)
	// DeleteMeta removes one key, or every key when key is empty
	DeleteMeta(ctx context.Context, id int64, key string) error
	DeleteMetaFor(ctx context.Context, ids []int64) error
}

// UserDirectory resolves display fields for a batch of users
type UserDirectory interface {
	Users(ctx context.Context, ids []int64) (map[int64]User, error)
}

// FullNameSource is the optional profile lookup
type FullNameSource interface {
	FullNames(ctx context.Context, ids []int64) (map[int64]string, error)
}

// Prefetcher lets other subsystems warm their own caches for a materialized batch
type Prefetcher interface {
	Prefetch(ctx context.Context, items []Activity) error
}

// FollowSource lists the users a viewer follows
type FollowSource interface {
	Following(ctx context.Context, viewer int64) ([]int64, error)
}

// FavoriteSource lists the activity ids a viewer favorited
type FavoriteSource interface {
	Favorites(ctx context.Context, viewer int64) ([]int64, error)
}

// VisibilityFunc is the caller supplied access predicate applied after loading
type VisibilityFunc func(ctx context.Context, viewer int64, a Activity) bool

// Event is one archived change
type Event struct {
	Op     string
	At     time.Time
	Record Record
}

// Archiver records changes in the append-only archive
type Archiver interface {
	Archive(ctx context.Context, evs ...Event) error
}

// ReadPort serves listings and lookups
type ReadPort interface {
	List(ctx context.Context, spec query.Spec) (Page, error)
	Get(ctx context.Context, viewer, id int64) (Activity, error)
	Comments(ctx context.Context, top int64, spam query.SpamPolicy) ([]*CommentNode, error)
	Meta(ctx context.Context, id int64) ([]MetaEntry, error)
}

// WritePort serves every mutation
type WritePort interface {
	Save(ctx context.Context, r Record) (int64, error)
	AddComment(ctx context.Context, in NewComment) (int64, error)
	DeleteComment(ctx context.Context, activityID, commentID int64) error
	Delete(ctx context.Context, f DeleteFilter) ([]int64, error)
	MarkSpam(ctx context.Context, id int64, spam bool) error
	UpdateMeta(ctx context.Context, id int64, key, value string) error
	DeleteMeta(ctx context.Context, id int64, key string) error
	TouchLastSeen(ctx context.Context, userID int64, at time.Time) error
}

// Rebuilder renumbers comment trees out of band
type Rebuilder interface {
	RebuildTree(ctx context.Context, top int64) error
	RebuildAll(ctx context.Context, each func(top int64, err error)) (int, error)
}
