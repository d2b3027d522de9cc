package service

import (
	"context"

	"murmur/internal/core/query"
	"murmur/internal/platform/logger"
	"murmur/internal/services/activity/domain"
)

// Built-in scope names
const (
	ScopeMine      = "mine"
	ScopeFollowing = "following"
	ScopeFavorites = "favorites"
)

// ScopeSources feeds the built-in scopes, a nil source leaves its scope unregistered
type ScopeSources struct {
	Follows   domain.FollowSource
	Favorites domain.FavoriteSource
}

// NewScopes returns a registry with the built-in scopes
func NewScopes(src ScopeSources) *query.Scopes {
	reg := query.NewScopes()
	reg.Register(ScopeMine, mine)
	if src.Follows != nil {
		reg.Register(ScopeFollowing, following(src.Follows))
	}
	if src.Favorites != nil {
		reg.Register(ScopeFavorites, favorites(src.Favorites))
	}
	return reg
}

// mine keeps the viewer's own items and shows their comments inline.
// An anonymous viewer owns nothing, so the scope does not apply.
func mine(_ context.Context, spec query.Spec) (query.FilterNode, query.Overrides, bool) {
	if spec.ViewerID == 0 {
		return query.FilterNode{}, query.Overrides{}, false
	}
	stream := query.DisplayStream
	return query.FilterNode{Column: "user_id", Value: spec.ViewerID},
		query.Overrides{DisplayComments: &stream}, true
}

func following(src domain.FollowSource) query.ScopeFunc {
	return func(ctx context.Context, spec query.Spec) (query.FilterNode, query.Overrides, bool) {
		ids, err := src.Following(ctx, spec.ViewerID)
		if err != nil {
			logger.C(ctx).Warn().Err(err).Str("scope", ScopeFollowing).Msg("follow lookup failed")
		}
		return query.FilterNode{Column: "user_id", Compare: "IN", Value: orNothing(ids)}, query.Overrides{}, true
	}
}

// favorites lists what the viewer favorited, hidden items included
func favorites(src domain.FavoriteSource) query.ScopeFunc {
	return func(ctx context.Context, spec query.Spec) (query.FilterNode, query.Overrides, bool) {
		ids, err := src.Favorites(ctx, spec.ViewerID)
		if err != nil {
			logger.C(ctx).Warn().Err(err).Str("scope", ScopeFavorites).Msg("favorite lookup failed")
		}
		show := true
		return query.FilterNode{Column: "id", Compare: "IN", Value: orNothing(ids)},
			query.Overrides{ShowHidden: &show}, true
	}
}

// orNothing keeps an empty source from widening the listing, no row has id 0
func orNothing(ids []int64) []int64 {
	if len(ids) == 0 {
		return []int64{0}
	}
	return ids
}
