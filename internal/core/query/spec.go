// Package query composes activity listing specifications into parameterized SQL fragments
//
// Concerns are compiled in a fixed order and each contributes at most one fragment:
// scope, advanced filter tree, filter map, user in/not-in, spam policy, search,
// visibility, exclude/include ids, meta sub-query, date sub-query, type exclusion.
// Fragments are joined with AND. Composing the same Spec twice yields byte-identical
// SQL and args, which is what cache keys are derived from.
package query

import "time"

// Record types the composer knows about
const (
	// TypeComment is the type of threaded comment records
	TypeComment = "activity_comment"
	// TypeLastSeen is the bookkeeping pseudo-type used for last-seen tracking
	TypeLastSeen = "last_activity"
)

// Display modes for comments in a listing
const (
	// DisplayNone lists top-level records only
	DisplayNone = ""
	// DisplayThreaded lists top-level records and attaches their comment forest afterwards
	DisplayThreaded = "threaded"
	// DisplayStream lists comments inline with everything else
	DisplayStream = "stream"
)

// SpamPolicy selects which records pass the spam concern
type SpamPolicy string

const (
	// HamOnly excludes records marked as spam
	HamOnly SpamPolicy = "ham_only"
	// SpamOnly keeps only records marked as spam
	SpamOnly SpamPolicy = "spam_only"
	// AnySpam applies no spam constraint
	AnySpam SpamPolicy = "all"
)

// Normalize maps an empty or unknown policy to HamOnly
func (p SpamPolicy) Normalize() SpamPolicy {
	switch p {
	case SpamOnly, AnySpam:
		return p
	default:
		return HamOnly
	}
}

// Filter is the regular filter map
// every list is an IN constraint, empty lists are ignored
type Filter struct {
	UserIDs      []int64    `json:"user_id,omitempty"`
	Object       []string   `json:"object,omitempty"`
	Action       []string   `json:"action,omitempty"`
	PrimaryIDs   []int64    `json:"primary_id,omitempty"`
	SecondaryIDs []int64    `json:"secondary_id,omitempty"`
	Offset       int64      `json:"offset,omitempty"`
	Since        *time.Time `json:"since,omitempty"`
}

// Sort is the ordering of a listing, ties are always broken by id in the same direction
type Sort struct {
	Field string `json:"field,omitempty"`
	Dir   string `json:"dir,omitempty"`
}

var sortable = map[string]struct{}{
	"date_recorded":     {},
	"id":                {},
	"item_id":           {},
	"secondary_item_id": {},
	"user_id":           {},
	"component":         {},
	"type":              {},
}

// Normalize fills defaults and drops unknown fields or directions
func (s Sort) Normalize() Sort {
	out := Sort{Field: s.Field, Dir: s.Dir}
	if _, ok := sortable[out.Field]; !ok {
		out.Field = "date_recorded"
	}
	switch out.Dir {
	case "ASC", "asc":
		out.Dir = "ASC"
	default:
		out.Dir = "DESC"
	}
	return out
}

// Spec is a listing specification
type Spec struct {
	// ViewerID is the user the listing is built for, scopes resolve against it
	ViewerID int64 `json:"-"`

	Scopes    []string    `json:"scope,omitempty"`
	Advanced  *FilterNode `json:"filter_query,omitempty"`
	Filter    Filter      `json:"filter"`
	UserIn    []int64     `json:"user_id__in,omitempty"`
	UserNotIn []int64     `json:"user_id__not_in,omitempty"`
	Spam      SpamPolicy  `json:"spam,omitempty"`
	Search    string      `json:"search_terms,omitempty"`

	// ShowHidden includes records hidden sitewide
	ShowHidden bool `json:"show_hidden,omitempty"`
	// Visibility is an extra caller supplied constraint compiled with the visibility concern
	Visibility *FilterNode `json:"-"`

	Exclude []int64 `json:"exclude,omitempty"`
	In      []int64 `json:"in,omitempty"`

	Meta *MetaQuery `json:"meta_query,omitempty"`
	Date *DateQuery `json:"date_query,omitempty"`

	DisplayComments string `json:"display_comments,omitempty"`

	Sort    Sort `json:"sort"`
	Page    int  `json:"page,omitempty"`
	PerPage int  `json:"per_page,omitempty"`
	Max     int  `json:"max,omitempty"`

	// CountTotal asks for a total alongside the page
	CountTotal bool `json:"count_total,omitempty"`
	// CountOnly skips id fetching and materialization
	CountOnly bool `json:"count_only,omitempty"`
}

// Paginated reports whether the spec asks for a bounded page
func (s Spec) Paginated() bool { return s.Page > 0 && s.PerPage > 0 }
