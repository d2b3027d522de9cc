package service

import (
	"context"
	"slices"
	"sort"
	"strings"
	"time"

	"murmur/internal/core/query"
	"murmur/internal/core/thread"
	perr "murmur/internal/platform/errors"
	"murmur/internal/platform/metrics"
	"murmur/internal/platform/validate"
	"murmur/internal/services/activity/domain"
)

// ErrSaveFailed is the only save error callers see in bool error mode
var ErrSaveFailed = perr.New(perr.ErrorCodeInvalidArgument, "activity could not be saved, it is safe to retry")

// Archive ops
const (
	OpSave    = "save"
	OpComment = "comment"
	OpDelete  = "delete"
	OpSpam    = "spam"
	OpHam     = "ham"
)

var allGroups = []string{query.GroupFeed, query.GroupLatest}

// Save inserts r when it has no id and updates it otherwise. A comment is
// checked against its thread and its tree renumbered under the tree lock,
// same as AddComment.
func (s *Service) Save(ctx context.Context, r domain.Record) (int64, error) {
	id, err := s.save(ctx, r)
	return id, s.fail(ctx, "activity.save", err)
}

func (s *Service) save(ctx context.Context, r domain.Record) (int64, error) {
	if err := s.check(r); err != nil {
		return 0, err
	}
	st := s.store()

	var old domain.Record
	if r.ID != 0 {
		var err error
		if old, err = st.GetByID(ctx, r.ID); err != nil {
			return 0, perr.WithField(err, "id")
		}
		// an edit keeps its place in the stream unless it names a new date
		if r.DateRecorded.IsZero() {
			r.DateRecorded = old.DateRecorded
		}
	}
	if r.DateRecorded.IsZero() {
		r.DateRecorded = s.now()
	}
	// bounds are owned by the rebuild pass
	r.MPTTLeft, r.MPTTRight = old.MPTTLeft, old.MPTTRight
	if r.IsComment() && r.SecondaryItemID == 0 {
		r.SecondaryItemID = r.ItemID
	}

	insert := r.ID == 0
	trees := treesOf(old, r)
	var touched []int64
	// a comment without a usable item_id still goes through checkThread to be refused
	if len(trees) == 0 && !r.IsComment() {
		id, err := write(ctx, st, r, insert)
		if err != nil {
			return 0, err
		}
		r.ID = id
	} else {
		err := s.inTx(ctx, "activity.save", func(tx domain.Store) error {
			touched = nil
			for _, t := range trees {
				if err := tx.LockTree(ctx, t); err != nil {
					return err
				}
			}
			if err := checkThread(ctx, tx, r, old); err != nil {
				return err
			}
			id, err := write(ctx, tx, r, insert)
			if err != nil {
				return err
			}
			r.ID = id
			for _, t := range trees {
				ids, err := s.renumber(ctx, tx, t)
				if err != nil {
					return err
				}
				touched = append(touched, ids...)
			}
			return nil
		})
		if err != nil {
			return 0, err
		}
	}

	groups := allGroups
	if r.Type == domain.TypeLastSeen {
		groups = []string{query.GroupLatest}
	}
	s.invalidate(ctx, groups, append(append([]int64{r.ID}, touched...), trees...), trees)
	s.record(ctx, OpSave, r)
	return r.ID, nil
}

// write inserts or updates r and returns its id
func write(ctx context.Context, st domain.Store, r domain.Record, insert bool) (int64, error) {
	if insert {
		return st.Insert(ctx, r)
	}
	ok, err := st.Update(ctx, r)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, perr.WithField(perr.NotFoundf("activity %d not found", r.ID), "id")
	}
	return r.ID, nil
}

// treesOf lists, ascending, the trees a save of r over old reshapes
func treesOf(old, r domain.Record) []int64 {
	out := treeOf(r)
	if t := treeOf(old); len(t) > 0 && (len(out) == 0 || t[0] != out[0]) {
		out = append(out, t[0])
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// leavesThread reports whether an edit moves a record out of the position its replies hang from
func leavesThread(old, r domain.Record) bool {
	if old.ID == 0 {
		return false
	}
	return old.IsComment() != r.IsComment() || (r.IsComment() && old.ItemID != r.ItemID)
}

// checkThread keeps a saved comment attached to a real thread: item_id names a
// top-level record and secondary_item_id is that record or a comment below it.
// A record with replies cannot leave its thread.
func checkThread(ctx context.Context, st domain.Store, r, old domain.Record) error {
	if leavesThread(old, r) {
		kids, err := st.ChildIDs(ctx, r.ID)
		if err != nil {
			return err
		}
		if len(kids) > 0 {
			return perr.WithField(perr.Validationf("activity %d has replies and cannot leave its thread", r.ID), "item_id")
		}
	}
	if !r.IsComment() {
		return nil
	}
	if r.ItemID <= 0 {
		return perr.WithField(perr.Validationf("a comment needs the id of its top-level item"), "item_id")
	}
	top, err := st.GetByID(ctx, r.ItemID)
	if perr.IsCode(err, perr.ErrorCodeNotFound) {
		return perr.WithField(perr.Validationf("item %d does not exist", r.ItemID), "item_id")
	}
	if err != nil {
		return err
	}
	if top.IsComment() {
		return perr.WithField(perr.Validationf("item %d is a comment, use its top-level item", top.ID), "item_id")
	}
	if err := checkParent(ctx, st, top.ID, r.SecondaryItemID, "secondary_item_id"); err != nil {
		return err
	}
	if old.ID == 0 || r.SecondaryItemID == top.ID {
		return nil
	}
	below, err := subtree(ctx, st, r.ID)
	if err != nil {
		return err
	}
	if slices.Contains(below, r.SecondaryItemID) {
		return perr.WithField(perr.Validationf("comment %d cannot reply to itself or its replies", r.ID), "secondary_item_id")
	}
	return nil
}

// checkParent verifies parent is top itself or a comment in top's thread
func checkParent(ctx context.Context, st domain.Store, top, parent int64, field string) error {
	if parent == top {
		return nil
	}
	p, err := st.GetByID(ctx, parent)
	if perr.IsCode(err, perr.ErrorCodeNotFound) {
		return perr.WithField(perr.Validationf("parent %d does not exist", parent), field)
	}
	if err != nil {
		return err
	}
	if !p.IsComment() || p.ItemID != top {
		return perr.WithField(perr.Validationf("parent %d is not in the thread of %d", parent, top), field)
	}
	return nil
}

// check runs the struct rules then the per-type content policy
func (s *Service) check(r domain.Record) error {
	if err := validate.Struct(r); err != nil {
		return err
	}
	if _, ok := s.required[r.Type]; ok && strings.TrimSpace(r.Content) == "" {
		return perr.WithField(perr.Validationf("content is required for %s", r.Type), "content")
	}
	return nil
}

// fail applies the error mode, bool mode hides the cause behind ErrSaveFailed
func (s *Service) fail(ctx context.Context, op string, err error) error {
	if err == nil {
		return nil
	}
	if s.cfg.ErrorMode == ErrorModeBool {
		s.logc(ctx).Warn().Err(err).Str("op", op).Msg("save failed")
		return ErrSaveFailed
	}
	return perr.WithOp(err, op)
}

// AddComment stores a reply and renumbers its tree
func (s *Service) AddComment(ctx context.Context, in domain.NewComment) (int64, error) {
	id, err := s.addComment(ctx, in)
	return id, s.fail(ctx, "activity.comment", err)
}

func (s *Service) addComment(ctx context.Context, in domain.NewComment) (int64, error) {
	if err := validate.Struct(in); err != nil {
		return 0, err
	}
	st := s.store()
	top, err := st.GetByID(ctx, in.ActivityID)
	if err != nil {
		return 0, perr.WithField(err, "activity_id")
	}
	if top.IsComment() {
		return 0, perr.WithField(perr.Validationf("activity %d is a comment, reply to its top-level item", top.ID), "activity_id")
	}

	parent := in.ParentID
	if parent == 0 {
		parent = top.ID
	}
	if err := checkParent(ctx, st, top.ID, parent, "parent_id"); err != nil {
		return 0, err
	}

	rec := domain.Record{
		UserID:          in.UserID,
		Component:       domain.ComponentActivity,
		Type:            domain.TypeComment,
		Content:         in.Content,
		ItemID:          top.ID,
		SecondaryItemID: parent,
		HideSitewide:    top.HideSitewide,
		DateRecorded:    s.now(),
	}
	if err := s.check(rec); err != nil {
		return 0, err
	}

	var touched []int64
	err = s.inTx(ctx, "activity.comment", func(tx domain.Store) error {
		if err := tx.LockTree(ctx, top.ID); err != nil {
			return err
		}
		id, err := tx.Insert(ctx, rec)
		if err != nil {
			return err
		}
		rec.ID = id
		touched, err = s.renumber(ctx, tx, top.ID)
		return err
	})
	if err != nil {
		return 0, err
	}

	s.invalidate(ctx, allGroups, append(touched, top.ID), []int64{top.ID})
	s.record(ctx, OpComment, rec)
	return rec.ID, nil
}

// DeleteComment removes a comment with every reply below it and renumbers the tree
func (s *Service) DeleteComment(ctx context.Context, activityID, commentID int64) error {
	c, err := s.store().GetByID(ctx, commentID)
	if err != nil {
		return err
	}
	if !c.IsComment() || c.ItemID != activityID {
		return perr.WithField(perr.NotFoundf("comment %d not found on activity %d", commentID, activityID), "comment_id")
	}

	var deleted []domain.Record
	var touched []int64
	err = s.inTx(ctx, "activity.delete_comment", func(tx domain.Store) error {
		if err := tx.LockTree(ctx, activityID); err != nil {
			return err
		}
		ids, err := subtree(ctx, tx, commentID)
		if err != nil {
			return err
		}
		if deleted, err = tx.DeleteWhere(ctx, domain.DeleteFilter{IDs: ids}); err != nil {
			return err
		}
		if err := tx.DeleteMetaFor(ctx, ids); err != nil {
			return err
		}
		touched, err = s.renumber(ctx, tx, activityID)
		return err
	})
	if err != nil {
		return perr.WithOp(err, "activity.delete_comment")
	}

	s.invalidate(ctx, allGroups, append(idsOf(deleted), append(touched, activityID)...), []int64{activityID})
	s.record(ctx, OpDelete, deleted...)
	return nil
}

// subtree lists root and every comment below it, parents before children
func subtree(ctx context.Context, st domain.Store, root int64) ([]int64, error) {
	out := []int64{root}
	seen := map[int64]struct{}{root: {}}
	for i := 0; i < len(out); i++ {
		kids, err := st.ChildIDs(ctx, out[i])
		if err != nil {
			return nil, err
		}
		for _, k := range kids {
			if _, dup := seen[k]; dup {
				continue
			}
			seen[k] = struct{}{}
			out = append(out, k)
		}
	}
	return out, nil
}

// Delete removes every row matching f, the comments of deleted items,
// the replies of deleted comments and all their meta. Trees that lost
// comments but still exist are renumbered.
func (s *Service) Delete(ctx context.Context, f domain.DeleteFilter) ([]int64, error) {
	if f.Empty() {
		return nil, perr.Validationf("delete needs at least one filter field")
	}

	var deleted []domain.Record
	var touched, rebuilt []int64
	err := s.inTx(ctx, "activity.delete", func(tx domain.Store) error {
		touched, rebuilt = nil, nil
		first, err := tx.DeleteWhere(ctx, f)
		if err != nil {
			return err
		}
		deleted = first

		var tops, replies []int64
		for _, r := range first {
			if r.IsComment() {
				replies = append(replies, r.ID)
			} else {
				tops = append(tops, r.ID)
			}
		}
		if len(tops) > 0 {
			cs, err := tx.DeleteWhere(ctx, domain.DeleteFilter{Type: domain.TypeComment, ItemIDs: tops})
			if err != nil {
				return err
			}
			deleted = append(deleted, cs...)
		}
		for len(replies) > 0 {
			kids, err := tx.DeleteWhere(ctx, domain.DeleteFilter{Type: domain.TypeComment, SecondaryItemIDs: replies})
			if err != nil {
				return err
			}
			deleted = append(deleted, kids...)
			replies = idsOf(kids)
		}

		if err := tx.DeleteMetaFor(ctx, idsOf(deleted)); err != nil {
			return err
		}

		gone := make(map[int64]struct{}, len(deleted))
		for _, r := range deleted {
			gone[r.ID] = struct{}{}
		}
		for _, t := range survivingTops(deleted, gone) {
			if _, err := tx.GetByID(ctx, t); perr.IsCode(err, perr.ErrorCodeNotFound) {
				continue
			} else if err != nil {
				return err
			}
			if err := tx.LockTree(ctx, t); err != nil {
				return err
			}
			ids, err := s.renumber(ctx, tx, t)
			if err != nil {
				return err
			}
			touched = append(touched, ids...)
			rebuilt = append(rebuilt, t)
		}
		return nil
	})
	if err != nil {
		return nil, perr.WithOp(err, "activity.delete")
	}

	ids := idsOf(deleted)
	var trees []int64
	for _, r := range deleted {
		if !r.IsComment() {
			trees = append(trees, r.ID)
		}
	}
	s.invalidate(ctx, allGroups, append(ids, touched...), append(trees, rebuilt...))
	s.record(ctx, OpDelete, deleted...)
	return ids, nil
}

// survivingTops lists the trees of deleted comments whose top-level item was not deleted, ascending
func survivingTops(deleted []domain.Record, gone map[int64]struct{}) []int64 {
	set := map[int64]struct{}{}
	for _, r := range deleted {
		if !r.IsComment() || r.ItemID == 0 {
			continue
		}
		if _, g := gone[r.ItemID]; !g {
			set[r.ItemID] = struct{}{}
		}
	}
	out := make([]int64, 0, len(set))
	for t := range set {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// MarkSpam flags or clears the spam bit of one record
func (s *Service) MarkSpam(ctx context.Context, id int64, spam bool) error {
	st := s.store()
	r, err := st.GetByID(ctx, id)
	if err != nil {
		return err
	}
	r.IsSpam = spam
	ok, err := st.Update(ctx, r)
	if err != nil {
		return perr.WithOp(err, "activity.spam")
	}
	if !ok {
		return perr.WithField(perr.NotFoundf("activity %d not found", id), "id")
	}

	s.invalidate(ctx, allGroups, []int64{id}, treeOf(r))
	op := OpHam
	if spam {
		op = OpSpam
	}
	s.record(ctx, op, r)
	return nil
}

// UpdateMeta sets one meta key, listings are invalidated since meta sub-queries read it
func (s *Service) UpdateMeta(ctx context.Context, id int64, key, value string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return perr.WithField(perr.Validationf("meta key is required"), "key")
	}
	if err := s.store().UpdateMeta(ctx, id, key, value); err != nil {
		return perr.WithOp(err, "activity.meta")
	}
	s.invalidate(ctx, allGroups, nil, nil)
	return nil
}

// Meta lists the meta of one record ordered by key
func (s *Service) Meta(ctx context.Context, id int64) ([]domain.MetaEntry, error) {
	return s.store().Meta(ctx, id)
}

// DeleteMeta removes one key, or all keys when key is empty
func (s *Service) DeleteMeta(ctx context.Context, id int64, key string) error {
	if err := s.store().DeleteMeta(ctx, id, strings.TrimSpace(key)); err != nil {
		return perr.WithOp(err, "activity.meta")
	}
	s.invalidate(ctx, allGroups, nil, nil)
	return nil
}

// TouchLastSeen moves the user's last-seen bookkeeping row to at, creating it when missing
// only the short lived group is invalidated
func (s *Service) TouchLastSeen(ctx context.Context, userID int64, at time.Time) error {
	if userID <= 0 {
		return perr.WithField(perr.Validationf("user_id must be positive"), "user_id")
	}
	if at.IsZero() {
		at = s.now()
	}
	st := s.store()
	id, err := st.LastSeenID(ctx, userID)
	if err != nil {
		return err
	}
	r := domain.Record{UserID: userID, Component: domain.ComponentMembers, Type: domain.TypeLastSeen}
	if id > 0 {
		if r, err = st.GetByID(ctx, id); err != nil {
			return err
		}
	}
	r.DateRecorded = at.UTC()
	_, err = s.save(ctx, r)
	return err
}

// RebuildTree renumbers the tree of one top-level record under its lock
func (s *Service) RebuildTree(ctx context.Context, top int64) error {
	var touched []int64
	err := s.inTx(ctx, "activity.rebuild", func(tx domain.Store) error {
		if err := tx.LockTree(ctx, top); err != nil {
			return err
		}
		r, err := tx.GetByID(ctx, top)
		if err != nil {
			return err
		}
		if r.IsComment() {
			return perr.WithField(perr.Validationf("activity %d is a comment", top), "id")
		}
		touched, err = s.renumber(ctx, tx, top)
		return err
	})
	if err != nil {
		return perr.WithOp(err, "activity.rebuild")
	}
	s.invalidate(ctx, nil, touched, []int64{top})
	return nil
}

// RebuildAll renumbers every tree that has comments, each reports per tree outcomes
// it stops early only when ctx is done
func (s *Service) RebuildAll(ctx context.Context, each func(top int64, err error)) (int, error) {
	roots, err := s.store().ThreadRoots(ctx)
	if err != nil {
		return 0, perr.WithOp(err, "activity.rebuild_all")
	}
	done := 0
	for _, t := range roots {
		if err := ctx.Err(); err != nil {
			return done, err
		}
		err := s.RebuildTree(ctx, t)
		if err == nil {
			done++
		}
		if each != nil {
			each(t, err)
		}
	}
	return done, nil
}

// renumber runs the nested-set pass for top and returns every id whose bounds were written
func (s *Service) renumber(ctx context.Context, st domain.Store, top int64) ([]int64, error) {
	start := time.Now()
	rec := &boundsRecorder{Store: st}
	_, err := thread.Rebuild(ctx, rec, top, 1)
	metrics.ObserveRebuild(start)
	return rec.ids, err
}

// boundsRecorder notes which rows a rebuild wrote
type boundsRecorder struct {
	domain.Store
	ids []int64
}

func (b *boundsRecorder) SetBounds(ctx context.Context, id, left, right int64, commentOnly bool) error {
	if err := b.Store.SetBounds(ctx, id, left, right, commentOnly); err != nil {
		return err
	}
	b.ids = append(b.ids, id)
	return nil
}

// invalidate bumps listing groups, forgets cached items and every variant of the given trees
func (s *Service) invalidate(ctx context.Context, groups []string, items, trees []int64) {
	if len(items) > 0 {
		keys := make([]string, len(items))
		for i, id := range items {
			keys[i] = itemKey(id)
		}
		if err := s.cache.Delete(ctx, GroupItem, keys...); err != nil {
			s.logc(ctx).Warn().Err(err).Msg("item cache delete failed")
		}
	}
	s.dropTrees(ctx, trees...)
	for _, g := range groups {
		if _, err := s.cache.Bump(ctx, g); err != nil {
			s.logc(ctx).Error().Err(err).Str("group", g).Msg("cache epoch bump failed")
		}
	}
}

// record appends archive events, a failure is logged and counted but never fails the write
func (s *Service) record(ctx context.Context, op string, recs ...domain.Record) {
	if s.archive == nil || len(recs) == 0 {
		return
	}
	at := s.now()
	evs := make([]domain.Event, len(recs))
	for i, r := range recs {
		evs[i] = domain.Event{Op: op, At: at, Record: r}
	}
	if err := s.archive.Archive(ctx, evs...); err != nil {
		metrics.ArchiveFailure()
		s.logc(ctx).Error().Err(err).Str("op", op).Int("events", len(evs)).Msg("archive append failed")
	}
}

func treeOf(r domain.Record) []int64 {
	if r.IsComment() && r.ItemID > 0 {
		return []int64{r.ItemID}
	}
	return nil
}

func idsOf(recs []domain.Record) []int64 {
	out := make([]int64, len(recs))
	for i, r := range recs {
		out[i] = r.ID
	}
	return out
}
