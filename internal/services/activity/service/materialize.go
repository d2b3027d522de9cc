package service

import (
	"context"
	"time"

	"murmur/internal/platform/cache"
	perr "murmur/internal/platform/errors"
	"murmur/internal/platform/metrics"
	"murmur/internal/services/activity/domain"
)

// Materialize expands ids into enriched activities in exactly the order given
// ids that no longer exist or that the visibility predicate rejects are skipped
func (s *Service) Materialize(ctx context.Context, viewer int64, ids []int64) ([]domain.Activity, error) {
	return s.materialize(ctx, viewer, ids)
}

func (s *Service) materialize(ctx context.Context, viewer int64, ids []int64) ([]domain.Activity, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	start := time.Now()
	defer metrics.ObserveQuery("materialize", start)

	recs, err := s.records(ctx, ids)
	if err != nil {
		return nil, err
	}

	items := make([]domain.Activity, 0, len(ids))
	for _, id := range ids {
		r, ok := recs[id]
		if !ok {
			continue
		}
		a := domain.Activity{Record: r}
		if s.visible != nil && !s.visible(ctx, viewer, a) {
			continue
		}
		items = append(items, a)
	}

	s.enrich(ctx, items)
	for _, p := range s.prefetch {
		if err := p.Prefetch(ctx, items); err != nil {
			s.logc(ctx).Warn().Err(err).Str("op", "activity.prefetch").Msg("prefetch hook failed")
		}
	}
	for i := range items {
		items[i].ActionText = s.actions.Render(ctx, items[i])
	}
	return items, nil
}

// records reads each id from the item cache and batch loads only the misses
func (s *Service) records(ctx context.Context, ids []int64) (map[int64]domain.Record, error) {
	out := make(map[int64]domain.Record, len(ids))
	var misses []int64
	for _, id := range ids {
		if _, dup := out[id]; dup {
			continue
		}
		r, ok, err := cache.GetJSON[domain.Record](ctx, s.cache, GroupItem, itemKey(id))
		if err != nil {
			s.logc(ctx).Warn().Err(err).Int64("activity_id", id).Msg("item cache read failed")
		}
		if ok {
			out[id] = r
			continue
		}
		misses = append(misses, id)
	}
	if len(misses) == 0 {
		return out, nil
	}

	loaded, err := s.store().GetByIDs(ctx, misses)
	if err != nil {
		return nil, perr.WithOp(err, "activity.materialize")
	}
	for _, r := range loaded {
		out[r.ID] = r
		s.cacheSet(ctx, GroupItem, itemKey(r.ID), r)
	}
	return out, nil
}

// enrich merges user display fields with one directory call for the whole batch
// directory failures leave the fields empty
func (s *Service) enrich(ctx context.Context, items []domain.Activity) {
	if len(items) == 0 || (s.users == nil && s.names == nil) {
		return
	}
	seen := make(map[int64]struct{}, len(items))
	var uids []int64
	for _, it := range items {
		if it.UserID <= 0 {
			continue
		}
		if _, ok := seen[it.UserID]; !ok {
			seen[it.UserID] = struct{}{}
			uids = append(uids, it.UserID)
		}
	}
	if len(uids) == 0 {
		return
	}

	if s.users != nil {
		users, err := s.users.Users(ctx, uids)
		if err != nil {
			s.logc(ctx).Warn().Err(err).Str("op", "activity.users").Msg("user lookup failed")
		}
		for i := range items {
			if u, ok := users[items[i].UserID]; ok {
				items[i].UserLogin = u.Login
				items[i].UserNicename = u.Nicename
				items[i].UserEmail = u.Email
				items[i].DisplayName = u.DisplayName
			}
		}
	}

	if s.names != nil {
		names, err := s.names.FullNames(ctx, uids)
		if err != nil {
			s.logc(ctx).Warn().Err(err).Str("op", "activity.fullnames").Msg("full name lookup failed")
		}
		for i := range items {
			if n, ok := names[items[i].UserID]; ok {
				items[i].FullName = n
			}
		}
	}
}

// Get loads one activity by id, hidden records included
func (s *Service) Get(ctx context.Context, viewer, id int64) (domain.Activity, error) {
	items, err := s.materialize(ctx, viewer, []int64{id})
	if err != nil {
		return domain.Activity{}, err
	}
	if len(items) == 0 {
		return domain.Activity{}, perr.WithField(perr.NotFoundf("activity %d not found", id), "id")
	}
	return items[0], nil
}
