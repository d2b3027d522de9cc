// Package domain defines the types and ports of the activity service
package domain

import (
	"time"

	"murmur/internal/core/query"
	"murmur/internal/core/thread"
)

// Record types with built-in behavior
const (
	TypeUpdate   = "activity_update"
	TypeComment  = query.TypeComment
	TypeLastSeen = query.TypeLastSeen
)

// Components with built-in behavior
const (
	ComponentActivity = "activity"
	ComponentMembers  = "members"
)

// Record is one row of the activity log
// for comments ItemID is the top-level record and SecondaryItemID the direct parent
type Record struct {
	ID              int64     `json:"id"`
	UserID          int64     `json:"user_id"`
	Component       string    `json:"component" validate:"required,max=75"`
	Type            string    `json:"type" validate:"required,max=75"`
	Action          string    `json:"action,omitempty"`
	Content         string    `json:"content,omitempty"`
	PrimaryLink     string    `json:"primary_link,omitempty" validate:"omitempty,max=255"`
	ItemID          int64     `json:"item_id"`
	SecondaryItemID int64     `json:"secondary_item_id"`
	DateRecorded    time.Time `json:"date_recorded"`
	HideSitewide    bool      `json:"hide_sitewide"`
	IsSpam          bool      `json:"is_spam"`
	MPTTLeft        int64     `json:"mptt_left"`
	MPTTRight       int64     `json:"mptt_right"`
}

// IsComment reports whether r belongs to a comment tree
func (r Record) IsComment() bool { return r.Type == TypeComment }

// Activity is a Record enriched for display
type Activity struct {
	Record

	UserLogin    string `json:"user_login,omitempty"`
	UserNicename string `json:"user_nicename,omitempty"`
	UserEmail    string `json:"user_email,omitempty"`
	DisplayName  string `json:"display_name,omitempty"`
	FullName     string `json:"user_fullname,omitempty"`

	// ActionText is the rendered description, the stored Action when nothing renders it
	ActionText string `json:"action_text,omitempty"`
}

// CommentNode is one comment in a reconstructed forest
type CommentNode = thread.Node[Activity]

// User is what the user directory returns for display enrichment
type User struct {
	ID          int64  `json:"id"`
	Login       string `json:"login"`
	Nicename    string `json:"nicename"`
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
}

// Page is one page of a listing
type Page struct {
	Items   []Activity `json:"items"`
	HasMore bool       `json:"has_more"`
	// Total is set when the query asked for a count, clamped to its max
	Total *int64 `json:"total,omitempty"`
	// Comments holds the forest of each listed top-level record in threaded mode
	Comments map[int64][]*CommentNode `json:"comments,omitempty"`

	Page    int `json:"-"`
	PerPage int `json:"-"`
}

// NewComment is the input of a comment creation
// ParentID zero means a direct reply to the activity
type NewComment struct {
	ActivityID int64  `json:"activity_id" validate:"required,gt=0"`
	ParentID   int64  `json:"parent_id" validate:"gte=0"`
	UserID     int64  `json:"user_id" validate:"required,gt=0"`
	Content    string `json:"content"`
}

// DeleteFilter selects rows for a bulk delete, every set field must match
// an empty filter is rejected rather than deleting everything
type DeleteFilter struct {
	IDs              []int64    `json:"id,omitempty"`
	UserIDs          []int64    `json:"user_id,omitempty"`
	ItemIDs          []int64    `json:"item_id,omitempty"`
	SecondaryItemIDs []int64    `json:"secondary_item_id,omitempty"`
	Component        string     `json:"component,omitempty"`
	Type             string     `json:"type,omitempty"`
	Action           string     `json:"action,omitempty"`
	Content          string     `json:"content,omitempty"`
	PrimaryLink      string     `json:"primary_link,omitempty"`
	DateRecorded     *time.Time `json:"date_recorded,omitempty"`
	HideSitewide     *bool      `json:"hide_sitewide,omitempty"`
}

// Empty reports whether f selects nothing in particular
func (f DeleteFilter) Empty() bool {
	return len(f.IDs) == 0 && len(f.UserIDs) == 0 && len(f.ItemIDs) == 0 &&
		len(f.SecondaryItemIDs) == 0 && f.Component == "" && f.Type == "" &&
		f.Action == "" && f.Content == "" && f.PrimaryLink == "" &&
		f.DateRecorded == nil && f.HideSitewide == nil
}

// MetaEntry is one key value pair attached to a record
type MetaEntry struct {
	Key   string `json:"key" validate:"required,max=255"`
	Value string `json:"value"`
}
