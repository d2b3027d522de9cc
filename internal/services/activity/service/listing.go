package service

import (
	"context"
	"strconv"
	"time"

	"murmur/internal/core/query"
	"murmur/internal/platform/cache"
	perr "murmur/internal/platform/errors"
	"murmur/internal/platform/metrics"
	"murmur/internal/services/activity/domain"
)

// List runs a listing: compose, fetch the page of ids, materialize, then attach threads
// count_only stops after the count
func (s *Service) List(ctx context.Context, spec query.Spec) (domain.Page, error) {
	spec = s.clamp(spec)
	start := time.Now()
	c := s.composer.Compose(ctx, spec)
	metrics.ObserveQuery("compose", start)

	out := domain.Page{Page: spec.Page, PerPage: spec.PerPage}
	if spec.CountOnly {
		n, err := s.fetchCount(ctx, c, spec.Max)
		if err != nil {
			return domain.Page{}, err
		}
		out.Total = &n
		return out, nil
	}

	ids, more, err := s.fetchPage(ctx, c, spec)
	if err != nil {
		return domain.Page{}, err
	}
	out.HasMore = more

	items, err := s.materialize(ctx, spec.ViewerID, ids)
	if err != nil {
		return domain.Page{}, err
	}
	out.Items = items

	if c.DisplayComments == query.DisplayThreaded {
		out.Comments = s.threads(ctx, items, spec.Spam)
	}

	if spec.CountTotal {
		n, err := s.fetchCount(ctx, c, spec.Max)
		if err != nil {
			return domain.Page{}, err
		}
		out.Total = &n
	}
	return out, nil
}

// clamp applies the per_page ceilings, a spec max also caps the page size.
// Naming either half of page/per_page asks for a bounded page: a missing page
// is the first one and a missing per_page is the configured ceiling.
func (s *Service) clamp(spec query.Spec) query.Spec {
	if spec.Page < 0 {
		spec.Page = 0
	}
	if spec.PerPage < 0 {
		spec.PerPage = 0
	}
	switch {
	case spec.PerPage > 0 && spec.Page == 0:
		spec.Page = 1
	case spec.Page > 0 && spec.PerPage == 0:
		spec.PerPage = s.cfg.MaxPerPage
	}
	if spec.PerPage > s.cfg.MaxPerPage {
		spec.PerPage = s.cfg.MaxPerPage
	}
	if spec.Max > 0 && spec.PerPage > spec.Max {
		spec.PerPage = spec.Max
	}
	spec.Spam = spec.Spam.Normalize()
	return spec
}

// fetchPage returns the ordered ids of one page, asking for one extra row to learn whether more exist
func (s *Service) fetchPage(ctx context.Context, c query.Composed, spec query.Spec) ([]int64, bool, error) {
	sel := query.Select{Composed: c, Sort: spec.Sort}
	switch {
	case spec.Paginated():
		sel.Limit = spec.PerPage + 1
		sel.Offset = (spec.Page - 1) * spec.PerPage
	case spec.Max > 0:
		sel.Limit = spec.Max
	}

	sql, args := sel.SQL()
	group := c.Group()
	key, keyed := s.listKey(ctx, group, "", sql, args)

	start := time.Now()
	ids, hit := s.cachedIDs(ctx, group, key, keyed)
	if !hit {
		var err error
		ids, err = s.store().QueryIDs(ctx, sel)
		if err != nil {
			return nil, false, perr.WithOp(err, "activity.list")
		}
		if keyed {
			s.cacheSet(ctx, group, key, ids)
		}
	}
	metrics.ObserveQuery("ids", start)

	if spec.Paginated() && len(ids) > spec.PerPage {
		return ids[:spec.PerPage], true, nil
	}
	return ids, false, nil
}

// fetchCount returns the distinct total, clamped to ceiling when one is set
func (s *Service) fetchCount(ctx context.Context, c query.Composed, ceiling int) (int64, error) {
	sql, args := query.Count{Composed: c}.SQL()
	group := c.Group()
	key, keyed := s.listKey(ctx, group, "count:", sql, args)

	start := time.Now()
	defer metrics.ObserveQuery("count", start)

	var n int64
	hit := false
	if keyed {
		v, ok, err := cache.GetJSON[int64](ctx, s.cache, group, key)
		if err != nil {
			s.logc(ctx).Warn().Err(err).Str("group", group).Msg("count cache read failed")
		}
		n, hit = v, ok
	}
	if !hit {
		var err error
		if n, err = s.store().Count(ctx, query.Count{Composed: c}); err != nil {
			return 0, perr.WithOp(err, "activity.count")
		}
		if keyed {
			s.cacheSet(ctx, group, key, n)
		}
	}
	if ceiling > 0 && n > int64(ceiling) {
		n = int64(ceiling)
	}
	return n, nil
}

// listKey folds the group epoch into the query fingerprint
// keyed=false when the epoch cannot be read, the listing then bypasses the cache
func (s *Service) listKey(ctx context.Context, group, prefix, sql string, args []any) (string, bool) {
	epoch, err := s.cache.Epoch(ctx, group)
	if err != nil {
		s.logc(ctx).Warn().Err(err).Str("group", group).Msg("cache epoch read failed")
		return "", false
	}
	return strconv.FormatInt(epoch, 10) + ":" + prefix + query.Fingerprint(sql, args), true
}

func (s *Service) cachedIDs(ctx context.Context, group, key string, keyed bool) ([]int64, bool) {
	if !keyed {
		return nil, false
	}
	ids, ok, err := cache.GetJSON[[]int64](ctx, s.cache, group, key)
	if err != nil {
		s.logc(ctx).Warn().Err(err).Str("group", group).Msg("listing cache read failed")
		return nil, false
	}
	return ids, ok
}

// cacheSet stores v, a failed write only costs a recomputation later
func (s *Service) cacheSet(ctx context.Context, group, key string, v any) {
	if err := cache.SetJSON(ctx, s.cache, group, key, v, s.ttl(group)); err != nil {
		s.logc(ctx).Warn().Err(err).Str("group", group).Msg("cache write failed")
	}
}

// threads attaches the comment forest of every top-level item
// a tree that fails to load is logged and left out
func (s *Service) threads(ctx context.Context, items []domain.Activity, spam query.SpamPolicy) map[int64][]*domain.CommentNode {
	out := map[int64][]*domain.CommentNode{}
	for _, it := range items {
		if it.IsComment() {
			continue
		}
		nodes, err := s.tree(ctx, it.Record, spam)
		if err != nil {
			s.logc(ctx).Warn().Err(err).Int64("activity_id", it.ID).Str("op", "activity.threads").
				Msg("comment tree unavailable")
			continue
		}
		if len(nodes) > 0 {
			out[it.ID] = nodes
		}
	}
	return out
}
