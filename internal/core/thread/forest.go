// Package thread rebuilds threaded comment forests and renumbers nested-set boundaries
package thread

import (
	"context"
)

// Node is one comment in a reconstructed forest
type Node[T any] struct {
	Item     T          `json:"item"`
	Depth    int        `json:"depth"`
	Children []*Node[T] `json:"children,omitempty"`
}

// Keyer returns the id of an item and the id of its immediate parent
type Keyer[T any] func(T) (id, parent int64)

// Ancestor is what the depth walk needs from a record outside the working set
type Ancestor struct {
	Parent    int64
	IsComment bool
}

// Lookup loads one record by id, ok=false when it does not exist
type Lookup func(ctx context.Context, id int64) (a Ancestor, ok bool, err error)

// Gap reports a depth walk that stopped before reaching the top-level record
type Gap struct {
	Node    int64
	Missing int64
	Err     error
}

// Build links items into a forest under top and computes each node's depth
// items keep their input order as siblings. An item whose parent is not in items
// becomes a root. Depth counts hops up to top, walking through records missing
// from items via lookup. Gaps list walks that had to be truncated.
func Build[T any](ctx context.Context, top int64, items []T, key Keyer[T], lookup Lookup) ([]*Node[T], []Gap) {
	if len(items) == 0 {
		return nil, nil
	}

	parents := make(map[int64]int64, len(items))
	nodes := make(map[int64]*Node[T], len(items))
	order := make([]int64, 0, len(items))
	for _, it := range items {
		id, parent := key(it)
		if _, dup := nodes[id]; dup {
			continue
		}
		parents[id] = parent
		nodes[id] = &Node[T]{Item: it}
		order = append(order, id)
	}

	w := walker{top: top, parents: parents, lookup: lookup, fetched: map[int64]fetched{}}
	var roots []*Node[T]
	var gaps []Gap
	for _, id := range order {
		n := nodes[id]
		d, gap := w.depth(ctx, id)
		n.Depth = d
		if gap != nil {
			gaps = append(gaps, *gap)
		}

		p := parents[id]
		if pn, ok := nodes[p]; ok && p != id && !w.descends(p, id) {
			pn.Children = append(pn.Children, n)
			continue
		}
		roots = append(roots, n)
	}
	return roots, gaps
}

type fetched struct {
	a   Ancestor
	ok  bool
	err error
}

type walker struct {
	top     int64
	parents map[int64]int64
	lookup  Lookup
	fetched map[int64]fetched
}

// depth walks up from id until top, a non-comment record, or a gap
func (w *walker) depth(ctx context.Context, id int64) (int, *Gap) {
	d := 1
	cur := w.parents[id]
	seen := map[int64]struct{}{id: {}}
	for cur != w.top {
		if cur == 0 {
			return d, &Gap{Node: id}
		}
		if _, loop := seen[cur]; loop {
			return d, &Gap{Node: id, Missing: cur}
		}
		seen[cur] = struct{}{}

		if p, ok := w.parents[cur]; ok {
			d++
			cur = p
			continue
		}

		f, done := w.fetched[cur]
		if !done {
			if w.lookup != nil {
				f.a, f.ok, f.err = w.lookup(ctx, cur)
			}
			w.fetched[cur] = f
		}
		if f.err != nil || !f.ok {
			return d, &Gap{Node: id, Missing: cur, Err: f.err}
		}
		if !f.a.IsComment {
			return d, nil
		}
		d++
		cur = f.a.Parent
	}
	return d, nil
}

// descends reports whether walking up from start through in-set parents reaches id
func (w *walker) descends(start, id int64) bool {
	seen := map[int64]struct{}{}
	for cur := start; ; {
		if cur == id {
			return true
		}
		if _, loop := seen[cur]; loop {
			return false
		}
		seen[cur] = struct{}{}
		p, ok := w.parents[cur]
		if !ok {
			return false
		}
		cur = p
	}
}

// Walk visits every node depth first in sibling order
func Walk[T any](roots []*Node[T], fn func(*Node[T])) {
	for _, n := range roots {
		fn(n)
		Walk(n.Children, fn)
	}
}
