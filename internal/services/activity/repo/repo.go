// Package repo provides the Postgres record store, the user directory and the archive sink
package repo

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"murmur/internal/core/query"
	"murmur/internal/modkit/repokit"
	perr "murmur/internal/platform/errors"
	"murmur/internal/platform/store"
	"murmur/internal/services/activity/domain"
)

type (
	pg     struct{ q repokit.Queryer }
	binder struct{}
)

// NewPG returns the binder services use to get a Store on a pool or a transaction
func NewPG() repokit.Binder[domain.Store] { return binder{} }

// Bind implements repokit.Binder
func (binder) Bind(q repokit.Queryer) domain.Store { return &pg{q: repokit.RequireQueryer(q)} }

const cols = `id, user_id, component, type, action, content, primary_link, item_id,
	secondary_item_id, date_recorded, hide_sitewide, is_spam, mptt_left, mptt_right`

func scanRecord(r store.Row) (domain.Record, error) {
	var x domain.Record
	err := r.Scan(&x.ID, &x.UserID, &x.Component, &x.Type, &x.Action, &x.Content, &x.PrimaryLink,
		&x.ItemID, &x.SecondaryItemID, &x.DateRecorded, &x.HideSitewide, &x.IsSpam,
		&x.MPTTLeft, &x.MPTTRight)
	x.DateRecorded = x.DateRecorded.UTC()
	return x, err
}

// GetByID implements domain.Store
func (s *pg) GetByID(ctx context.Context, id int64) (domain.Record, error) {
	r, err := store.One(ctx, s.q, scanRecord, `SELECT `+cols+` FROM activity WHERE id = $1`, id)
	if errors.Is(err, perr.ErrNotFound) {
		return r, perr.WithField(perr.NotFoundf("activity %d not found", id), "id")
	}
	return r, perr.FromPostgres(err, "activity get")
}

// GetByIDs implements domain.Store
func (s *pg) GetByIDs(ctx context.Context, ids []int64) ([]domain.Record, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	out, err := store.Many(ctx, s.q, scanRecord, `SELECT `+cols+` FROM activity WHERE id = ANY($1)`, ids)
	return out, perr.FromPostgres(err, "activity get many")
}

// QueryIDs implements domain.Store
func (s *pg) QueryIDs(ctx context.Context, sel query.Select) ([]int64, error) {
	sql, args := sel.SQL()
	// the sort column rides along in the select list for DISTINCT, only the id is kept
	out, err := store.Many(ctx, s.q, func(r store.Row) (int64, error) {
		var id int64
		if sel.Sort.Normalize().Field == "id" {
			err := r.Scan(&id)
			return id, err
		}
		var skip any
		err := r.Scan(&id, &skip)
		return id, err
	}, sql, args...)
	return out, perr.FromPostgres(err, "activity query ids")
}

// Count implements domain.Store
func (s *pg) Count(ctx context.Context, c query.Count) (int64, error) {
	sql, args := c.SQL()
	n, err := store.Scalar[int64](ctx, s.q, sql, args...)
	return n, perr.FromPostgres(err, "activity count")
}

// Insert implements domain.Store
// new rows start unnumbered, the caller's bounds are ignored until a rebuild pass writes them
func (s *pg) Insert(ctx context.Context, r domain.Record) (int64, error) {
	id, err := store.Scalar[int64](ctx, s.q, `
		INSERT INTO activity (user_id, component, type, action, content, primary_link, item_id,
			secondary_item_id, date_recorded, hide_sitewide, is_spam, mptt_left, mptt_right)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,0,0)
		RETURNING id`,
		r.UserID, r.Component, r.Type, r.Action, r.Content, r.PrimaryLink, r.ItemID,
		r.SecondaryItemID, r.DateRecorded.UTC(), r.HideSitewide, r.IsSpam)
	return id, perr.FromPostgresWithField(err, "activity insert")
}

// Update implements domain.Store
// nested-set bounds are owned by the rebuild pass and never written here
func (s *pg) Update(ctx context.Context, r domain.Record) (bool, error) {
	err := store.ExecOne(ctx, s.q, `
		UPDATE activity SET user_id = $2, component = $3, type = $4, action = $5, content = $6,
			primary_link = $7, item_id = $8, secondary_item_id = $9, date_recorded = $10,
			hide_sitewide = $11, is_spam = $12
		WHERE id = $1`,
		r.ID, r.UserID, r.Component, r.Type, r.Action, r.Content, r.PrimaryLink, r.ItemID,
		r.SecondaryItemID, r.DateRecorded.UTC(), r.HideSitewide, r.IsSpam)
	if errors.Is(err, perr.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, perr.FromPostgresWithField(err, "activity update")
	}
	return true, nil
}

// DeleteWhere implements domain.Store
func (s *pg) DeleteWhere(ctx context.Context, f domain.DeleteFilter) ([]domain.Record, error) {
	where, args := deleteWhere(f)
	if where == "" {
		return nil, perr.Validationf("delete filter selects every row")
	}
	out, err := store.Many(ctx, s.q, scanRecord, `DELETE FROM activity WHERE `+where+` RETURNING `+cols, args...)
	return out, perr.FromPostgres(err, "activity delete")
}

// deleteWhere renders f as an AND of equality and ANY constraints
func deleteWhere(f domain.DeleteFilter) (string, []any) {
	var (
		parts []string
		args  []any
	)
	add := func(frag string, v any) {
		args = append(args, v)
		parts = append(parts, strings.Replace(frag, "?", "$"+strconv.Itoa(len(args)), 1))
	}
	if len(f.IDs) > 0 {
		add("id = ANY(?)", f.IDs)
	}
	if len(f.UserIDs) > 0 {
		add("user_id = ANY(?)", f.UserIDs)
	}
	if len(f.ItemIDs) > 0 {
		add("item_id = ANY(?)", f.ItemIDs)
	}
	if len(f.SecondaryItemIDs) > 0 {
		add("secondary_item_id = ANY(?)", f.SecondaryItemIDs)
	}
	if f.Component != "" {
		add("component = ?", f.Component)
	}
	if f.Type != "" {
		add("type = ?", f.Type)
	}
	if f.Action != "" {
		add("action = ?", f.Action)
	}
	if f.Content != "" {
		add("content = ?", f.Content)
	}
	if f.PrimaryLink != "" {
		add("primary_link = ?", f.PrimaryLink)
	}
	if f.DateRecorded != nil {
		add("date_recorded = ?", f.DateRecorded.UTC())
	}
	if f.HideSitewide != nil {
		add("hide_sitewide = ?", *f.HideSitewide)
	}
	return strings.Join(parts, " AND "), args
}

// Descendants implements domain.Store
func (s *pg) Descendants(ctx context.Context, top, left, right int64, spam query.SpamPolicy) ([]domain.Record, error) {
	sql := `SELECT ` + cols + ` FROM activity
		WHERE type = $1 AND item_id = $2 AND mptt_left > $3 AND mptt_left < $4`
	switch spam.Normalize() {
	case query.HamOnly:
		sql += ` AND is_spam = false`
	case query.SpamOnly:
		sql += ` AND is_spam = true`
	}
	sql += ` ORDER BY date_recorded ASC, id ASC`
	out, err := store.Many(ctx, s.q, scanRecord, sql, domain.TypeComment, top, left, right)
	return out, perr.FromPostgres(err, "activity descendants")
}

// ChildIDs implements thread.Store
func (s *pg) ChildIDs(ctx context.Context, parent int64) ([]int64, error) {
	ids, err := store.Int64s(ctx, s.q,
		`SELECT id FROM activity WHERE type = $1 AND secondary_item_id = $2 ORDER BY id ASC`,
		domain.TypeComment, parent)
	return ids, perr.FromPostgres(err, "activity children")
}

// SetBounds implements thread.Store
func (s *pg) SetBounds(ctx context.Context, id, left, right int64, commentOnly bool) error {
	var err error
	if commentOnly {
		_, err = s.q.Exec(ctx, `UPDATE activity SET mptt_left = $2, mptt_right = $3 WHERE id = $1 AND type = $4`,
			id, left, right, domain.TypeComment)
	} else {
		_, err = s.q.Exec(ctx, `UPDATE activity SET mptt_left = $2, mptt_right = $3 WHERE id = $1`, id, left, right)
	}
	return perr.FromPostgres(err, "activity bounds")
}

// ThreadRoots implements domain.Store
func (s *pg) ThreadRoots(ctx context.Context) ([]int64, error) {
	ids, err := store.Int64s(ctx, s.q,
		`SELECT DISTINCT item_id FROM activity WHERE type = $1 AND item_id > 0 ORDER BY item_id ASC`,
		domain.TypeComment)
	return ids, perr.FromPostgres(err, "activity thread roots")
}

// LockTree implements domain.Store with a transaction scoped advisory lock keyed by the top-level id
func (s *pg) LockTree(ctx context.Context, top int64) error {
	_, err := s.q.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, top)
	return perr.FromPostgres(err, "activity tree lock")
}

// LastSeenID implements domain.Store, zero when the user has no bookkeeping row yet
func (s *pg) LastSeenID(ctx context.Context, userID int64) (int64, error) {
	id, err := store.Scalar[int64](ctx, s.q,
		`SELECT id FROM activity WHERE user_id = $1 AND component = $2 AND type = $3 ORDER BY id ASC LIMIT 1`,
		userID, domain.ComponentMembers, domain.TypeLastSeen)
	if errors.Is(err, perr.ErrNotFound) {
		return 0, nil
	}
	return id, perr.FromPostgres(err, "activity last seen")
}

// UpdateMeta implements domain.Store
func (s *pg) UpdateMeta(ctx context.Context, id int64, key, value string) error {
	_, err := s.q.Exec(ctx, `
		INSERT INTO activity_meta (activity_id, meta_key, meta_value) VALUES ($1, $2, $3)
		ON CONFLICT (activity_id, meta_key) DO UPDATE SET meta_value = EXCLUDED.meta_value`,
		id, key, value)
	return perr.FromPostgres(err, "activity meta update")
}

// Meta implements domain.Store
func (s *pg) Meta(ctx context.Context, id int64) ([]domain.MetaEntry, error) {
	out, err := store.Many(ctx, s.q, func(r store.Row) (domain.MetaEntry, error) {
		var m domain.MetaEntry
		err := r.Scan(&m.Key, &m.Value)
		return m, err
	}, `SELECT meta_key, meta_value FROM activity_meta WHERE activity_id = $1 ORDER BY meta_key`, id)
	return out, perr.FromPostgres(err, "activity meta")
}

// DeleteMeta implements domain.Store
func (s *pg) DeleteMeta(ctx context.Context, id int64, key string) error {
	var err error
	if key == "" {
		_, err = s.q.Exec(ctx, `DELETE FROM activity_meta WHERE activity_id = $1`, id)
	} else {
		_, err = s.q.Exec(ctx, `DELETE FROM activity_meta WHERE activity_id = $1 AND meta_key = $2`, id, key)
	}
	return perr.FromPostgres(err, "activity meta delete")
}

// DeleteMetaFor implements domain.Store
func (s *pg) DeleteMetaFor(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := s.q.Exec(ctx, `DELETE FROM activity_meta WHERE activity_id = ANY($1)`, ids)
	return perr.FromPostgres(err, "activity meta delete")
}
