package service

import (
	"context"
	"errors"

	"murmur/internal/core/query"
	"murmur/internal/core/thread"
	"murmur/internal/platform/cache"
	perr "murmur/internal/platform/errors"
	"murmur/internal/platform/metrics"
	"murmur/internal/services/activity/domain"
)

// treeEntry is the cached form of one forest, Empty marks a confirmed empty tree
type treeEntry struct {
	Empty bool                  `json:"empty,omitempty"`
	Nodes []*domain.CommentNode `json:"nodes,omitempty"`
}

// Comments returns the comment forest of a top-level record, nil when it has none
func (s *Service) Comments(ctx context.Context, top int64, spam query.SpamPolicy) ([]*domain.CommentNode, error) {
	recs, err := s.records(ctx, []int64{top})
	if err != nil {
		return nil, err
	}
	rec, ok := recs[top]
	if !ok {
		return nil, perr.WithField(perr.NotFoundf("activity %d not found", top), "id")
	}
	if rec.IsComment() {
		return nil, perr.WithField(perr.Validationf("activity %d is a comment, not a top-level item", top), "id")
	}
	return s.tree(ctx, rec, spam)
}

// tree serves the forest of top from the cache or rebuilds it from the store
func (s *Service) tree(ctx context.Context, top domain.Record, spam query.SpamPolicy) ([]*domain.CommentNode, error) {
	spam = spam.Normalize()
	// a reader that loaded before a write stores under the old epoch, which nobody reads again
	epoch, err := s.cache.Epoch(ctx, treeEpochGroup(top.ID))
	keyed := err == nil
	if !keyed {
		s.logc(ctx).Warn().Err(err).Int64("activity_id", top.ID).Msg("tree epoch read failed")
	}
	key := treeKey(top.ID, spam, epoch)

	if keyed {
		e, ok, err := cache.GetJSON[treeEntry](ctx, s.cache, GroupTree, key)
		if err != nil {
			s.logc(ctx).Warn().Err(err).Int64("activity_id", top.ID).Msg("tree cache read failed")
		}
		if ok {
			if e.Empty {
				return nil, nil
			}
			return e.Nodes, nil
		}
	}

	st := s.store()
	recs, err := st.Descendants(ctx, top.ID, top.MPTTLeft, top.MPTTRight, spam)
	if err != nil {
		return nil, perr.WithOp(err, "activity.comments")
	}
	if len(recs) == 0 {
		if keyed {
			s.cacheSet(ctx, GroupTree, key, treeEntry{Empty: true})
		}
		return nil, nil
	}

	items := make([]domain.Activity, len(recs))
	for i, r := range recs {
		items[i] = domain.Activity{Record: r}
	}
	s.enrich(ctx, items)
	for i := range items {
		items[i].ActionText = s.actions.Render(ctx, items[i])
	}

	nodes, gaps := thread.Build(ctx, top.ID, items, commentKey, ancestorLookup(st))
	if len(gaps) > 0 {
		metrics.TreeGaps(len(gaps))
		for _, g := range gaps {
			s.logc(ctx).Warn().
				Err(perr.TreeInconsistencyf("comment %d: ancestor %d unreachable", g.Node, g.Missing)).
				AnErr("cause", g.Err).
				Int64("activity_id", top.ID).
				Msg("comment depth truncated")
		}
	}

	if keyed {
		s.cacheSet(ctx, GroupTree, key, treeEntry{Nodes: nodes})
	}
	return nodes, nil
}

func commentKey(a domain.Activity) (int64, int64) { return a.ID, a.SecondaryItemID }

// ancestorLookup resolves records the depth walk cannot find among the loaded comments
func ancestorLookup(st domain.Store) thread.Lookup {
	return func(ctx context.Context, id int64) (thread.Ancestor, bool, error) {
		r, err := st.GetByID(ctx, id)
		if errors.Is(err, perr.ErrNotFound) || perr.IsCode(err, perr.ErrorCodeNotFound) {
			return thread.Ancestor{}, false, nil
		}
		if err != nil {
			return thread.Ancestor{}, false, err
		}
		return thread.Ancestor{Parent: r.SecondaryItemID, IsComment: r.IsComment()}, true, nil
	}
}

// dropTrees moves each tree to a new epoch and frees the forests of the previous one
func (s *Service) dropTrees(ctx context.Context, tops ...int64) {
	var keys []string
	for _, t := range tops {
		epoch, err := s.cache.Bump(ctx, treeEpochGroup(t))
		if err != nil {
			s.logc(ctx).Error().Err(err).Int64("activity_id", t).Msg("tree epoch bump failed")
			continue
		}
		for _, p := range []query.SpamPolicy{query.HamOnly, query.SpamOnly, query.AnySpam} {
			keys = append(keys, treeKey(t, p, epoch-1))
		}
	}
	if len(keys) == 0 {
		return
	}
	if err := s.cache.Delete(ctx, GroupTree, keys...); err != nil {
		s.logc(ctx).Warn().Err(err).Msg("tree cache delete failed")
	}
}
