package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"murmur/internal/core/query"
	"murmur/internal/modkit/repokit"
	"murmur/internal/platform/cache"
	perr "murmur/internal/platform/errors"
	"murmur/internal/services/activity/domain"
)

// memStore is an in-memory domain.Store with call counters
type memStore struct {
	mu     sync.Mutex
	rows   map[int64]domain.Record
	meta   map[int64]map[string]string
	nextID int64

	// ordered is what QueryIDs pages over, newest first
	ordered []int64

	calls map[string]int
	locks []int64

	failGetByIDs error
}

func newMemStore(recs ...domain.Record) *memStore {
	s := &memStore{
		rows:  map[int64]domain.Record{},
		meta:  map[int64]map[string]string{},
		calls: map[string]int{},
	}
	for _, r := range recs {
		s.rows[r.ID] = r
		if r.ID >= s.nextID {
			s.nextID = r.ID
		}
	}
	return s
}

func (s *memStore) hit(name string) {
	s.calls[name]++
}

func (s *memStore) count(name string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[name]
}

func (s *memStore) row(id int64) domain.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rows[id]
}

func (s *memStore) has(id int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.rows[id]
	return ok
}

func (s *memStore) GetByID(_ context.Context, id int64) (domain.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hit("GetByID")
	r, ok := s.rows[id]
	if !ok {
		return r, perr.WithField(perr.NotFoundf("activity %d not found", id), "id")
	}
	return r, nil
}

// GetByIDs answers in reverse order so callers cannot rely on it
func (s *memStore) GetByIDs(_ context.Context, ids []int64) ([]domain.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hit("GetByIDs")
	if s.failGetByIDs != nil {
		return nil, s.failGetByIDs
	}
	var out []domain.Record
	for i := len(ids) - 1; i >= 0; i-- {
		if r, ok := s.rows[ids[i]]; ok {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *memStore) QueryIDs(_ context.Context, sel query.Select) ([]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hit("QueryIDs")
	ids := s.ordered
	if sel.Offset >= len(ids) {
		return nil, nil
	}
	ids = ids[sel.Offset:]
	if sel.Limit > 0 && sel.Limit < len(ids) {
		ids = ids[:sel.Limit]
	}
	return append([]int64(nil), ids...), nil
}

func (s *memStore) Count(_ context.Context, _ query.Count) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hit("Count")
	return int64(len(s.ordered)), nil
}

func (s *memStore) Insert(_ context.Context, r domain.Record) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hit("Insert")
	s.nextID++
	r.ID = s.nextID
	r.MPTTLeft, r.MPTTRight = 0, 0
	s.rows[r.ID] = r
	return r.ID, nil
}

func (s *memStore) Update(_ context.Context, r domain.Record) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hit("Update")
	old, ok := s.rows[r.ID]
	if !ok {
		return false, nil
	}
	r.MPTTLeft, r.MPTTRight = old.MPTTLeft, old.MPTTRight
	s.rows[r.ID] = r
	return true, nil
}

func in(xs []int64, v int64) bool {
	for _, x := range xs {
		if x == v {
			return true
		}
	}
	return false
}

func (s *memStore) DeleteWhere(_ context.Context, f domain.DeleteFilter) ([]domain.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hit("DeleteWhere")
	if f.Empty() {
		return nil, errors.New("empty filter")
	}
	var out []domain.Record
	for id, r := range s.rows {
		switch {
		case len(f.IDs) > 0 && !in(f.IDs, r.ID),
			len(f.UserIDs) > 0 && !in(f.UserIDs, r.UserID),
			len(f.ItemIDs) > 0 && !in(f.ItemIDs, r.ItemID),
			len(f.SecondaryItemIDs) > 0 && !in(f.SecondaryItemIDs, r.SecondaryItemID),
			f.Component != "" && f.Component != r.Component,
			f.Type != "" && f.Type != r.Type:
			continue
		}
		out = append(out, r)
		delete(s.rows, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *memStore) Descendants(_ context.Context, top, left, right int64, spam query.SpamPolicy) ([]domain.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hit("Descendants")
	var out []domain.Record
	for _, r := range s.rows {
		if !r.IsComment() || r.ItemID != top || r.MPTTLeft <= left || r.MPTTLeft >= right {
			continue
		}
		if (spam == query.HamOnly && r.IsSpam) || (spam == query.SpamOnly && !r.IsSpam) {
			continue
		}
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].DateRecorded.Equal(out[j].DateRecorded) {
			return out[i].DateRecorded.Before(out[j].DateRecorded)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *memStore) ChildIDs(_ context.Context, parent int64) ([]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hit("ChildIDs")
	var out []int64
	for _, r := range s.rows {
		if r.IsComment() && r.SecondaryItemID == parent {
			out = append(out, r.ID)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

func (s *memStore) SetBounds(_ context.Context, id, left, right int64, commentOnly bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hit("SetBounds")
	r, ok := s.rows[id]
	if !ok || (commentOnly && !r.IsComment()) {
		return nil
	}
	r.MPTTLeft, r.MPTTRight = left, right
	s.rows[id] = r
	return nil
}

func (s *memStore) ThreadRoots(_ context.Context) ([]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	set := map[int64]struct{}{}
	for _, r := range s.rows {
		if r.IsComment() && r.ItemID > 0 {
			set[r.ItemID] = struct{}{}
		}
	}
	var out []int64
	for id := range set {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

func (s *memStore) LockTree(_ context.Context, top int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.locks = append(s.locks, top)
	return nil
}

func (s *memStore) LastSeenID(_ context.Context, userID int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var best int64
	for _, r := range s.rows {
		if r.UserID == userID && r.Type == domain.TypeLastSeen && (best == 0 || r.ID < best) {
			best = r.ID
		}
	}
	return best, nil
}

func (s *memStore) UpdateMeta(_ context.Context, id int64, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.meta[id] == nil {
		s.meta[id] = map[string]string{}
	}
	s.meta[id][key] = value
	return nil
}

func (s *memStore) Meta(_ context.Context, id int64) ([]domain.MetaEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.MetaEntry
	for k, v := range s.meta[id] {
		out = append(out, domain.MetaEntry{Key: k, Value: v})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func (s *memStore) DeleteMeta(_ context.Context, id int64, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if key == "" {
		delete(s.meta, id)
		return nil
	}
	delete(s.meta[id], key)
	return nil
}

func (s *memStore) DeleteMetaFor(_ context.Context, ids []int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		delete(s.meta, id)
	}
	return nil
}

// fakeDB runs Tx bodies inline and counts them
type fakeDB struct {
	txs int
	// failTx is handed out, one per transaction, before fn runs
	failTx []error
}

func (d *fakeDB) Exec(context.Context, string, ...any) (repokit.CommandTag, error) { return nil, nil }
func (d *fakeDB) Query(context.Context, string, ...any) (repokit.Rows, error)     { return nil, nil }
func (d *fakeDB) QueryRow(context.Context, string, ...any) repokit.Row            { return nil }
func (d *fakeDB) Tx(_ context.Context, fn func(repokit.Queryer) error) error {
	d.txs++
	if len(d.failTx) > 0 {
		err := d.failTx[0]
		d.failTx = d.failTx[1:]
		return err
	}
	return fn(d)
}

// fakeUsers counts directory round trips
type fakeUsers struct {
	calls int
	users map[int64]domain.User
	err   error
}

func (f *fakeUsers) Users(_ context.Context, ids []int64) (map[int64]domain.User, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	out := map[int64]domain.User{}
	for _, id := range ids {
		if u, ok := f.users[id]; ok {
			out[id] = u
		}
	}
	return out, nil
}

type fakeArchive struct {
	evs []domain.Event
	err error
}

func (f *fakeArchive) Archive(_ context.Context, evs ...domain.Event) error {
	if f.err != nil {
		return f.err
	}
	f.evs = append(f.evs, evs...)
	return nil
}

type harness struct {
	svc   *Service
	st    *memStore
	db    *fakeDB
	cache *cache.Memory
	users *fakeUsers
	arch  *fakeArchive
}

func newHarness(st *memStore, cfg Config, mut ...func(*Deps)) harness {
	h := harness{
		st:    st,
		db:    &fakeDB{},
		cache: cache.NewMemory(),
		users: &fakeUsers{users: map[int64]domain.User{
			7: {ID: 7, Login: "ada", DisplayName: "Ada"},
			8: {ID: 8, Login: "lin", DisplayName: "Lin"},
		}},
		arch: &fakeArchive{},
	}
	d := Deps{
		DB:      h.db,
		Binder:  repokit.BindFunc[domain.Store](func(repokit.Queryer) domain.Store { return st }),
		Cache:   h.cache,
		Scopes:  NewScopes(ScopeSources{}),
		Users:   h.users,
		Archive: h.arch,
	}
	for _, m := range mut {
		m(&d)
	}
	h.svc = New(d, cfg)
	h.svc.now = func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }
	return h
}

var t0 = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func update(id, user int64, mins int) domain.Record {
	return domain.Record{
		ID: id, UserID: user, Component: domain.ComponentActivity, Type: domain.TypeUpdate,
		Content: "hello", DateRecorded: t0.Add(time.Duration(mins) * time.Minute),
	}
}

func comment(id, top, parent, user int64, mins int) domain.Record {
	return domain.Record{
		ID: id, UserID: user, Component: domain.ComponentActivity, Type: domain.TypeComment,
		Content: "reply", ItemID: top, SecondaryItemID: parent,
		DateRecorded: t0.Add(time.Duration(mins) * time.Minute),
	}
}
