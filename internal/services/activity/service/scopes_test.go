package service

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"murmur/internal/core/query"
)

type followFunc func(context.Context, int64) ([]int64, error)

func (f followFunc) Following(ctx context.Context, v int64) ([]int64, error) { return f(ctx, v) }

type favFunc func(context.Context, int64) ([]int64, error)

func (f favFunc) Favorites(ctx context.Context, v int64) ([]int64, error) { return f(ctx, v) }

func TestScopes_Builtins(t *testing.T) {
	t.Parallel()

	reg := NewScopes(ScopeSources{
		Follows: followFunc(func(_ context.Context, v int64) ([]int64, error) {
			if v == 7 {
				return []int64{8, 9}, nil
			}
			return nil, errors.New("graph unavailable")
		}),
		Favorites: favFunc(func(context.Context, int64) ([]int64, error) { return nil, nil }),
	})
	ctx := context.Background()
	spec := query.Spec{ViewerID: 7}

	node, ov, ok := reg.Resolve(ctx, ScopeMine, spec)
	if !ok || node.Column != "user_id" || node.Value != int64(7) {
		t.Fatalf("mine = %+v ok=%v", node, ok)
	}
	if ov.DisplayComments == nil || *ov.DisplayComments != query.DisplayStream {
		t.Fatalf("mine display override = %v", ov.DisplayComments)
	}

	if node, ov, ok := reg.Resolve(ctx, ScopeMine, query.Spec{}); ok || node.Column != "" || ov.DisplayComments != nil {
		t.Fatalf("mine for anonymous viewer = %+v %+v ok=%v", node, ov, ok)
	}

	node, _, _ = reg.Resolve(ctx, ScopeFollowing, spec)
	if !reflect.DeepEqual(node.Value, []int64{8, 9}) || node.Compare != "IN" {
		t.Fatalf("following = %+v", node)
	}

	// a failed lookup narrows to nothing instead of widening
	node, _, _ = reg.Resolve(ctx, ScopeFollowing, query.Spec{ViewerID: 3})
	if !reflect.DeepEqual(node.Value, []int64{0}) {
		t.Fatalf("following on error = %+v", node)
	}

	node, ov, _ = reg.Resolve(ctx, ScopeFavorites, spec)
	if node.Column != "id" || !reflect.DeepEqual(node.Value, []int64{0}) {
		t.Fatalf("favorites = %+v", node)
	}
	if ov.ShowHidden == nil || !*ov.ShowHidden {
		t.Fatal("favorites must show hidden items")
	}
}

func TestScopes_NilSourcesStayUnregistered(t *testing.T) {
	t.Parallel()

	reg := NewScopes(ScopeSources{})
	if _, _, ok := reg.Resolve(context.Background(), ScopeFollowing, query.Spec{ViewerID: 1}); ok {
		t.Fatal("following resolved without a source")
	}
	if _, _, ok := reg.Resolve(context.Background(), ScopeMine, query.Spec{ViewerID: 1}); !ok {
		t.Fatal("mine should always resolve")
	}
}
