package query

import (
	"context"
	"strings"

	"murmur/internal/core/normalize"
)

// Cache groups for listing queries
const (
	// GroupFeed holds listings that exclude last-seen bookkeeping, long lived
	GroupFeed = "activity_feed"
	// GroupLatest holds everything else, short lived
	GroupLatest = "activity_latest"
)

// Composed is the output of Compose
type Composed struct {
	Joins []string
	Where []string
	Args  []any

	// ExcludesLastSeen is set when the type exclusion removed the last-seen pseudo-type
	ExcludesLastSeen bool

	// effective values after scope overrides
	DisplayComments string
	ShowHidden      bool
}

// JoinSQL renders the join fragment
func (c Composed) JoinSQL() string { return strings.Join(c.Joins, " ") }

// WhereSQL renders the where fragment, empty when nothing constrains the listing
func (c Composed) WhereSQL() string {
	if len(c.Where) == 0 {
		return ""
	}
	return "WHERE " + strings.Join(c.Where, " AND ")
}

// Group returns the cache group this listing belongs to
func (c Composed) Group() string {
	if c.ExcludesLastSeen {
		return GroupFeed
	}
	return GroupLatest
}

// Composer turns a Spec into SQL fragments
type Composer struct {
	Scopes ScopeResolver
}

// NewComposer returns a Composer backed by scopes, nil means no scopes resolve
func NewComposer(scopes ScopeResolver) Composer { return Composer{Scopes: scopes} }

// Compose builds the join and where fragments for spec
// a concern that fails to compile is dropped, it never rejects the whole spec
func (c Composer) Compose(ctx context.Context, spec Spec) Composed {
	var a args
	out := Composed{}
	add := func(frag string) {
		if frag != "" {
			out.Where = append(out.Where, frag)
		}
	}

	add(c.scopes(ctx, &spec, &a))

	if spec.Advanced != nil {
		add(tryCompile(&a, spec.Advanced.compile))
	}

	add(filterMap(&a, spec.Filter))

	var users []string
	if len(spec.UserIn) > 0 {
		users = append(users, "a.user_id IN ("+a.list(ints(spec.UserIn))+")")
	}
	if len(spec.UserNotIn) > 0 {
		users = append(users, "a.user_id NOT IN ("+a.list(ints(spec.UserNotIn))+")")
	}
	add(and(users))

	switch spec.Spam.Normalize() {
	case HamOnly:
		add("a.is_spam = false")
	case SpamOnly:
		add("a.is_spam = true")
	}

	if term := normalize.Term(spec.Search); term != "" {
		add("a.content ILIKE " + a.add(normalize.Contains(term)))
	}

	var vis []string
	if !spec.ShowHidden {
		vis = append(vis, "a.hide_sitewide = false")
	}
	if spec.Visibility != nil {
		if frag := tryCompile(&a, spec.Visibility.compile); frag != "" {
			vis = append(vis, frag)
		}
	}
	add(and(vis))

	var ids []string
	if len(spec.Exclude) > 0 {
		ids = append(ids, "a.id NOT IN ("+a.list(ints(spec.Exclude))+")")
	}
	if len(spec.In) > 0 {
		ids = append(ids, "a.id IN ("+a.list(ints(spec.In))+")")
	}
	add(and(ids))

	if spec.Meta != nil {
		m := a.mark()
		joins, where, err := spec.Meta.compile(&a)
		if err != nil {
			a.rollback(m)
		} else {
			out.Joins = append(out.Joins, joins...)
			add(where)
		}
	}

	if spec.Date != nil {
		add(tryCompile(&a, spec.Date.compile))
	}

	var excluded []string
	if spec.DisplayComments == DisplayNone || spec.DisplayComments == DisplayThreaded {
		excluded = append(excluded, TypeComment)
	}
	if len(spec.Filter.Object) == 0 {
		excluded = append(excluded, TypeLastSeen)
		out.ExcludesLastSeen = true
	}
	if len(excluded) > 0 {
		add("a.type NOT IN (" + a.list(strs(excluded)) + ")")
	}

	out.Args = a.vals
	out.DisplayComments = spec.DisplayComments
	out.ShowHidden = spec.ShowHidden
	return out
}

// tryCompile runs fn and discards its placeholders when it fails
func tryCompile(a *args, fn func(*args) (string, error)) string {
	m := a.mark()
	frag, err := fn(a)
	if err != nil {
		a.rollback(m)
		return ""
	}
	return frag
}

// scopes resolves every named scope, ORs their fragments and applies overrides to spec
func (c Composer) scopes(ctx context.Context, spec *Spec, a *args) string {
	if c.Scopes == nil || len(spec.Scopes) == 0 {
		return ""
	}
	seen := make(map[string]struct{}, len(spec.Scopes))
	var parts []string
	for _, name := range spec.Scopes {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}

		node, ov, ok := c.Scopes.Resolve(ctx, name, *spec)
		if !ok {
			continue
		}
		if frag := tryCompile(a, node.compile); frag != "" {
			parts = append(parts, frag)
		}
		if ov.DisplayComments != nil {
			spec.DisplayComments = *ov.DisplayComments
		}
		if ov.ShowHidden != nil {
			spec.ShowHidden = *ov.ShowHidden
		}
	}
	return join(parts, "OR")
}

// filterMap compiles the regular filter map into one fragment
func filterMap(a *args, f Filter) string {
	var parts []string
	if len(f.UserIDs) > 0 {
		parts = append(parts, "a.user_id IN ("+a.list(ints(f.UserIDs))+")")
	}
	if len(f.Object) > 0 {
		parts = append(parts, "a.component IN ("+a.list(strs(f.Object))+")")
	}
	if len(f.Action) > 0 {
		parts = append(parts, "a.type IN ("+a.list(strs(f.Action))+")")
	}
	if len(f.PrimaryIDs) > 0 {
		parts = append(parts, "a.item_id IN ("+a.list(ints(f.PrimaryIDs))+")")
	}
	if len(f.SecondaryIDs) > 0 {
		parts = append(parts, "a.secondary_item_id IN ("+a.list(ints(f.SecondaryIDs))+")")
	}
	if f.Offset > 0 {
		parts = append(parts, "a.id >= "+a.add(f.Offset))
	}
	if f.Since != nil {
		parts = append(parts, "a.date_recorded > "+a.add(f.Since.UTC()))
	}
	return and(parts)
}
