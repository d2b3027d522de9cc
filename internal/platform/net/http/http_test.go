package http

import (
	"encoding/json"
	"errors"
	stdhttp "net/http"
	"net/http/httptest"
	"strings"
	"testing"

	perr "murmur/internal/platform/errors"

	"github.com/go-chi/chi/v5"
)

type echoIn struct {
	Name string `json:"name" validate:"required"`
}

func newTestRouter() (*chi.Mux, Router) {
	m := chi.NewRouter()
	return m, AdaptChi(m)
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) Envelope {
	t.Helper()
	var env Envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return env
}

func TestRoutesAndEnvelope(t *testing.T) {
	t.Parallel()

	m, r := newTestRouter()
	r.Route("/api", func(api Router) {
		GetJSON(api, "/items/{id}", func(req *stdhttp.Request) (any, error) {
			return map[string]string{"id": Param(req, "id")}, nil
		})
		PostJSON(api, "/echo", func(_ *stdhttp.Request, in echoIn) (any, error) {
			return Created(in), nil
		})
		DeleteJSON(api, "/items/{id}", func(*stdhttp.Request) (any, error) {
			return NoContent(), nil
		})
		GetJSON(api, "/missing", func(*stdhttp.Request) (any, error) {
			return nil, perr.NotFoundf("activity 3 not found")
		})
		GetJSON(api, "/raw", func(*stdhttp.Request) (any, error) {
			return nil, errors.New("pq: password authentication failed")
		})
		GetJSON(api, "/list", func(*stdhttp.Request) (any, error) {
			total := int64(3)
			return List([]int{1, 2}, Page{Page: 1, PerPage: 2, HasMore: true, Total: &total}), nil
		})
	})

	t.Run("get with param", func(t *testing.T) {
		rec := httptest.NewRecorder()
		m.ServeHTTP(rec, httptest.NewRequest(stdhttp.MethodGet, "/api/items/12", nil))
		env := decode(t, rec)
		if rec.Code != 200 || env.Data.(map[string]any)["id"] != "12" {
			t.Fatalf("got %d %+v", rec.Code, env)
		}
	})

	t.Run("post created", func(t *testing.T) {
		rec := httptest.NewRecorder()
		m.ServeHTTP(rec, httptest.NewRequest(stdhttp.MethodPost, "/api/echo", strings.NewReader(`{"name":"x"}`)))
		if rec.Code != stdhttp.StatusCreated {
			t.Fatalf("status = %d", rec.Code)
		}
	})

	t.Run("post invalid", func(t *testing.T) {
		rec := httptest.NewRecorder()
		m.ServeHTTP(rec, httptest.NewRequest(stdhttp.MethodPost, "/api/echo", strings.NewReader(`{}`)))
		env := decode(t, rec)
		if rec.Code != stdhttp.StatusUnprocessableEntity && rec.Code != stdhttp.StatusBadRequest {
			t.Fatalf("status = %d", rec.Code)
		}
		if env.Code != perr.ErrorCodeValidation || env.Field != "name" {
			t.Fatalf("envelope = %+v", env)
		}
	})

	t.Run("no content", func(t *testing.T) {
		rec := httptest.NewRecorder()
		m.ServeHTTP(rec, httptest.NewRequest(stdhttp.MethodDelete, "/api/items/1", nil))
		if rec.Code != stdhttp.StatusNoContent || rec.Body.Len() != 0 {
			t.Fatalf("got %d %q", rec.Code, rec.Body.String())
		}
	})

	t.Run("project error", func(t *testing.T) {
		rec := httptest.NewRecorder()
		m.ServeHTTP(rec, httptest.NewRequest(stdhttp.MethodGet, "/api/missing", nil))
		env := decode(t, rec)
		if rec.Code != stdhttp.StatusNotFound || env.Error != "activity 3 not found" {
			t.Fatalf("got %d %+v", rec.Code, env)
		}
	})

	t.Run("foreign error is masked", func(t *testing.T) {
		rec := httptest.NewRecorder()
		m.ServeHTTP(rec, httptest.NewRequest(stdhttp.MethodGet, "/api/raw", nil))
		env := decode(t, rec)
		if rec.Code != stdhttp.StatusInternalServerError || env.Error != "internal error" {
			t.Fatalf("got %d %+v", rec.Code, env)
		}
	})

	t.Run("list page", func(t *testing.T) {
		rec := httptest.NewRecorder()
		m.ServeHTTP(rec, httptest.NewRequest(stdhttp.MethodGet, "/api/list", nil))
		env := decode(t, rec)
		if env.Page == nil || !env.Page.HasMore || env.Page.Total == nil || *env.Page.Total != 3 {
			t.Fatalf("page = %+v", env.Page)
		}
	})
}

func TestGroupUsesMiddleware(t *testing.T) {
	t.Parallel()

	m, r := newTestRouter()
	r.Group(func(g Router) {
		g.Use(func(next stdhttp.Handler) stdhttp.Handler {
			return stdhttp.HandlerFunc(func(w stdhttp.ResponseWriter, req *stdhttp.Request) {
				w.Header().Set("X-Group", "1")
				next.ServeHTTP(w, req)
			})
		})
		g.Get("/g", func(w stdhttp.ResponseWriter, _ *stdhttp.Request) { w.WriteHeader(204) })
	})
	r.Get("/plain", func(w stdhttp.ResponseWriter, _ *stdhttp.Request) { w.WriteHeader(204) })

	rec := httptest.NewRecorder()
	m.ServeHTTP(rec, httptest.NewRequest(stdhttp.MethodGet, "/g", nil))
	if rec.Header().Get("X-Group") != "1" {
		t.Fatal("group middleware not applied")
	}
	rec = httptest.NewRecorder()
	m.ServeHTTP(rec, httptest.NewRequest(stdhttp.MethodGet, "/plain", nil))
	if rec.Header().Get("X-Group") != "" {
		t.Fatal("group middleware leaked")
	}
}

func TestMountProfiler(t *testing.T) {
	t.Parallel()

	m, r := newTestRouter()
	MountProfiler(r, "/debug", true)
	rec := httptest.NewRecorder()
	m.ServeHTTP(rec, httptest.NewRequest(stdhttp.MethodGet, "/debug/pprof/", nil))
	if rec.Code != 200 {
		t.Fatalf("pprof index status = %d", rec.Code)
	}

	m2, r2 := newTestRouter()
	MountProfiler(r2, "/debug", false)
	rec = httptest.NewRecorder()
	m2.ServeHTTP(rec, httptest.NewRequest(stdhttp.MethodGet, "/debug/pprof/", nil))
	if rec.Code != stdhttp.StatusNotFound {
		t.Fatalf("disabled profiler status = %d", rec.Code)
	}
}
