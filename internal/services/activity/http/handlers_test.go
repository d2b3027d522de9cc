package http

import (
	"context"
	"encoding/json"
	stdhttp "net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"murmur/internal/core/query"
	"murmur/internal/modkit/httpkit"
	perr "murmur/internal/platform/errors"
	phttp "murmur/internal/platform/net/http"
	"murmur/internal/platform/net/middleware"
	"murmur/internal/services/activity/domain"

	"github.com/go-chi/chi/v5"
)

// fakePorts records what the handlers forwarded
type fakePorts struct {
	spec    query.Spec
	page    domain.Page
	saved   domain.Record
	comment domain.NewComment
	filter  domain.DeleteFilter
	deleted []int64
	spam    *bool
	metaKV  [2]string
	touched int64
	policy  query.SpamPolicy
	err     error
}

func (f *fakePorts) List(_ context.Context, spec query.Spec) (domain.Page, error) {
	f.spec = spec
	return f.page, f.err
}

func (f *fakePorts) Get(_ context.Context, _, id int64) (domain.Activity, error) {
	if id != 1 {
		return domain.Activity{}, perr.NotFoundf("activity %d not found", id)
	}
	return domain.Activity{Record: domain.Record{ID: 1, Type: domain.TypeUpdate}}, nil
}

func (f *fakePorts) Comments(_ context.Context, _ int64, spam query.SpamPolicy) ([]*domain.CommentNode, error) {
	f.policy = spam
	return nil, f.err
}

func (f *fakePorts) Meta(context.Context, int64) ([]domain.MetaEntry, error) {
	return []domain.MetaEntry{{Key: "mood", Value: "sunny"}}, nil
}

func (f *fakePorts) Save(_ context.Context, r domain.Record) (int64, error) {
	f.saved = r
	if r.ID == 0 {
		return 11, f.err
	}
	return r.ID, f.err
}

func (f *fakePorts) AddComment(_ context.Context, in domain.NewComment) (int64, error) {
	f.comment = in
	return 12, f.err
}

func (f *fakePorts) DeleteComment(context.Context, int64, int64) error { return f.err }

func (f *fakePorts) Delete(_ context.Context, fl domain.DeleteFilter) ([]int64, error) {
	f.filter = fl
	return f.deleted, f.err
}

func (f *fakePorts) MarkSpam(_ context.Context, _ int64, spam bool) error {
	f.spam = &spam
	return f.err
}

func (f *fakePorts) UpdateMeta(_ context.Context, _ int64, key, value string) error {
	f.metaKV = [2]string{key, value}
	return f.err
}

func (f *fakePorts) DeleteMeta(_ context.Context, _ int64, key string) error {
	f.metaKV = [2]string{key, ""}
	return f.err
}

func (f *fakePorts) TouchLastSeen(_ context.Context, user int64, _ time.Time) error {
	f.touched = user
	return f.err
}

func router(p *fakePorts) stdhttp.Handler {
	m := chi.NewRouter()
	r := phttp.AdaptChi(m)
	r.Use(middleware.Viewer(middleware.HeaderViewer{}))
	r.Route("/activity", func(rr httpkit.Router) { Register(rr, p, p) })
	return m
}

func do(t *testing.T, h stdhttp.Handler, method, path, body string, viewer string) (*httptest.ResponseRecorder, httpkit.Envelope) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if viewer != "" {
		req.Header.Set(middleware.ViewerHeader, viewer)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	var env httpkit.Envelope
	if rec.Code != stdhttp.StatusNoContent && rec.Body.Len() > 0 {
		if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
			t.Fatalf("decode %q: %v", rec.Body.String(), err)
		}
	}
	return rec, env
}

func TestQuery(t *testing.T) {
	t.Parallel()

	total := int64(40)
	p := &fakePorts{page: domain.Page{
		Items:   []domain.Activity{{Record: domain.Record{ID: 3}}},
		HasMore: true,
		Total:   &total,
		Page:    1,
		PerPage: 20,
	}}
	h := router(p)

	rec, env := do(t, h, stdhttp.MethodPost, "/activity/query", `{"scope":["mine"],"count_total":true}`, "7")
	if rec.Code != stdhttp.StatusOK {
		t.Fatalf("status = %d body=%s", rec.Code, rec.Body)
	}
	if p.spec.ViewerID != 7 || p.spec.Page != DefaultPage || p.spec.PerPage != DefaultPerPage {
		t.Fatalf("forwarded spec = %+v", p.spec)
	}
	if env.Page == nil || !env.Page.HasMore || env.Page.Total == nil || *env.Page.Total != 40 {
		t.Fatalf("page = %+v", env.Page)
	}
	data, _ := env.Data.(map[string]any)
	if acts, _ := data["activities"].([]any); len(acts) != 1 {
		t.Fatalf("data = %+v", env.Data)
	}

	// an explicit max means unpaginated
	do(t, h, stdhttp.MethodPost, "/activity/query", `{"max":5}`, "")
	if p.spec.Page != 0 || p.spec.Max != 5 || p.spec.ViewerID != 0 {
		t.Fatalf("unpaginated spec = %+v", p.spec)
	}

	rec, env = do(t, h, stdhttp.MethodPost, "/activity/query", `{"count_only":true}`, "")
	if data, _ := env.Data.(map[string]any); rec.Code != stdhttp.StatusOK || data["total"] != float64(40) {
		t.Fatalf("count only = %d %+v", rec.Code, env.Data)
	}

	rec, _ = do(t, h, stdhttp.MethodPost, "/activity/query", `{"bogus":1}`, "")
	if rec.Code != stdhttp.StatusBadRequest {
		t.Fatalf("unknown field status = %d", rec.Code)
	}
}

func TestGetAndNotFound(t *testing.T) {
	t.Parallel()
	h := router(&fakePorts{})

	if rec, _ := do(t, h, stdhttp.MethodGet, "/activity/1", "", ""); rec.Code != stdhttp.StatusOK {
		t.Fatalf("get = %d", rec.Code)
	}
	if rec, _ := do(t, h, stdhttp.MethodGet, "/activity/2", "", ""); rec.Code != stdhttp.StatusNotFound {
		t.Fatalf("missing = %d", rec.Code)
	}
	if rec, env := do(t, h, stdhttp.MethodGet, "/activity/zero", "", ""); rec.Code != stdhttp.StatusBadRequest || env.Field != "id" {
		t.Fatalf("bad id = %d %+v", rec.Code, env)
	}
}

func TestWrites(t *testing.T) {
	t.Parallel()

	p := &fakePorts{deleted: []int64{4, 5}}
	h := router(p)

	rec, _ := do(t, h, stdhttp.MethodPost, "/activity", `{"id":99,"component":"activity","type":"activity_update","content":"hi"}`, "7")
	if rec.Code != stdhttp.StatusCreated || p.saved.ID != 0 || p.saved.UserID != 7 {
		t.Fatalf("create = %d saved=%+v", rec.Code, p.saved)
	}

	rec, _ = do(t, h, stdhttp.MethodPut, "/activity/4", `{"component":"activity","type":"activity_update","content":"x"}`, "")
	if rec.Code != stdhttp.StatusOK || p.saved.ID != 4 {
		t.Fatalf("update = %d saved=%+v", rec.Code, p.saved)
	}

	rec, env := do(t, h, stdhttp.MethodPost, "/activity", `{"type":"activity_update"}`, "7")
	if rec.Code != stdhttp.StatusBadRequest || env.Field != "component" {
		t.Fatalf("invalid create = %d %+v", rec.Code, env)
	}

	rec, _ = do(t, h, stdhttp.MethodDelete, "/activity/4", "", "")
	if rec.Code != stdhttp.StatusOK || len(p.filter.IDs) != 1 || p.filter.IDs[0] != 4 {
		t.Fatalf("delete = %d filter=%+v", rec.Code, p.filter)
	}

	rec, _ = do(t, h, stdhttp.MethodPost, "/activity/delete", `{"user_id":[7]}`, "")
	if rec.Code != stdhttp.StatusOK || len(p.filter.UserIDs) != 1 {
		t.Fatalf("delete where = %d filter=%+v", rec.Code, p.filter)
	}

	rec, _ = do(t, h, stdhttp.MethodPost, "/activity/4/spam", `{"spam":true}`, "")
	if rec.Code != stdhttp.StatusNoContent || p.spam == nil || !*p.spam {
		t.Fatalf("spam = %d", rec.Code)
	}
}

func TestDeleteMissingIs404(t *testing.T) {
	t.Parallel()
	h := router(&fakePorts{})
	if rec, _ := do(t, h, stdhttp.MethodDelete, "/activity/4", "", ""); rec.Code != stdhttp.StatusNotFound {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestComments(t *testing.T) {
	t.Parallel()

	p := &fakePorts{}
	h := router(p)

	rec, env := do(t, h, stdhttp.MethodGet, "/activity/1/comments?spam=all", "", "")
	if rec.Code != stdhttp.StatusOK || p.policy != query.AnySpam {
		t.Fatalf("comments = %d policy=%q", rec.Code, p.policy)
	}
	if nodes, ok := env.Data.([]any); !ok || len(nodes) != 0 {
		t.Fatalf("empty forest should be [] not %v", env.Data)
	}
	do(t, h, stdhttp.MethodGet, "/activity/1/comments?spam=weird", "", "")
	if p.policy != query.HamOnly {
		t.Fatalf("unknown policy = %q", p.policy)
	}

	rec, env = do(t, h, stdhttp.MethodPost, "/activity/1/comments", `{"content":"hey"}`, "")
	if rec.Code != stdhttp.StatusUnauthorized || env.Code != perr.ErrorCodeUnauthorized {
		t.Fatalf("anonymous comment = %d %+v", rec.Code, env)
	}

	rec, _ = do(t, h, stdhttp.MethodPost, "/activity/1/comments", `{"parent_id":3,"content":"hey"}`, "8")
	if rec.Code != stdhttp.StatusCreated || p.comment != (domain.NewComment{ActivityID: 1, ParentID: 3, UserID: 8, Content: "hey"}) {
		t.Fatalf("comment = %d %+v", rec.Code, p.comment)
	}

	if rec, _ = do(t, h, stdhttp.MethodDelete, "/activity/1/comments/3", "", ""); rec.Code != stdhttp.StatusNoContent {
		t.Fatalf("delete comment = %d", rec.Code)
	}
}

func TestMetaAndLastSeen(t *testing.T) {
	t.Parallel()

	p := &fakePorts{}
	h := router(p)

	if rec, env := do(t, h, stdhttp.MethodGet, "/activity/1/meta", "", ""); rec.Code != stdhttp.StatusOK || env.Data == nil {
		t.Fatalf("meta = %d", rec.Code)
	}
	if rec, _ := do(t, h, stdhttp.MethodPut, "/activity/1/meta", `{"key":"mood","value":"grey"}`, ""); rec.Code != stdhttp.StatusNoContent || p.metaKV != [2]string{"mood", "grey"} {
		t.Fatalf("put meta = %d %v", rec.Code, p.metaKV)
	}
	if rec, env := do(t, h, stdhttp.MethodPut, "/activity/1/meta", `{"value":"grey"}`, ""); rec.Code != stdhttp.StatusBadRequest || env.Field != "key" {
		t.Fatalf("put meta without key = %d %+v", rec.Code, env)
	}
	if rec, _ := do(t, h, stdhttp.MethodDelete, "/activity/1/meta/mood", "", ""); rec.Code != stdhttp.StatusNoContent || p.metaKV[0] != "mood" {
		t.Fatalf("delete meta = %d", rec.Code)
	}

	if rec, _ := do(t, h, stdhttp.MethodPost, "/activity/last-seen", "", ""); rec.Code != stdhttp.StatusUnauthorized {
		t.Fatalf("anonymous last seen = %d", rec.Code)
	}
	if rec, _ := do(t, h, stdhttp.MethodPost, "/activity/last-seen", "", "7"); rec.Code != stdhttp.StatusNoContent || p.touched != 7 {
		t.Fatalf("last seen = %d user=%d", rec.Code, p.touched)
	}
}
