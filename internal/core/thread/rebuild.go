package thread

import (
	"context"

	perr "murmur/internal/platform/errors"
)

// Store is the persistence surface a rebuild pass needs
type Store interface {
	// ChildIDs lists the direct comment children of parent in a stable order
	ChildIDs(ctx context.Context, parent int64) ([]int64, error)
	// SetBounds persists left and right for id, commentOnly restricts the update to comment rows
	SetBounds(ctx context.Context, id, left, right int64, commentOnly bool) error
}

// Rebuild renumbers the subtree rooted at id starting from left
// it returns the next free boundary for a sibling subtree. The root row is
// updated unconditionally, descendants only when they are comments.
func Rebuild(ctx context.Context, st Store, id, left int64) (int64, error) {
	r := rebuilder{st: st, seen: map[int64]struct{}{}}
	return r.walk(ctx, id, left, true)
}

type rebuilder struct {
	st   Store
	seen map[int64]struct{}
}

func (r *rebuilder) walk(ctx context.Context, id, left int64, root bool) (int64, error) {
	if _, loop := r.seen[id]; loop {
		return 0, perr.TreeInconsistencyf("thread: %d is its own ancestor", id)
	}
	r.seen[id] = struct{}{}

	kids, err := r.st.ChildIDs(ctx, id)
	if err != nil {
		return 0, perr.WithOp(perr.Wrapf(err, perr.ErrorCodeDB, "thread: children of %d", id), "thread.rebuild")
	}

	right := left + 1
	for _, k := range kids {
		if right, err = r.walk(ctx, k, right, false); err != nil {
			return 0, err
		}
	}

	if err := r.st.SetBounds(ctx, id, left, right, !root); err != nil {
		return 0, perr.WithOp(perr.Wrapf(err, perr.ErrorCodeDB, "thread: bounds of %d", id), "thread.rebuild")
	}
	return right + 1, nil
}
