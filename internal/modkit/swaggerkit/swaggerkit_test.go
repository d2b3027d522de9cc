package swaggerkit

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"murmur/internal/platform/testkit"
)

func fetch(t *testing.T) (int, map[string]any) {
	t.Helper()
	rec := httptest.NewRecorder()
	serveDocJSON()(rec, httptest.NewRequest(http.MethodGet, "/api/docs/doc.json", nil))
	var spec map[string]any
	if rec.Code == http.StatusOK {
		if err := json.Unmarshal(rec.Body.Bytes(), &spec); err != nil {
			t.Fatalf("decode: %v", err)
		}
	}
	return rec.Code, spec
}

func TestServeDocJSON(t *testing.T) {
	testkit.Serial(t)

	code, spec := fetch(t)
	if code != http.StatusOK || spec["openapi"] != "3.0.3" {
		t.Fatalf("code=%d openapi=%v", code, spec["openapi"])
	}
	servers, _ := spec["servers"].([]any)
	if len(servers) != 1 {
		t.Fatalf("servers = %v", spec["servers"])
	}
	paths := spec["paths"].(map[string]any)
	op := paths["/activity/query"].(map[string]any)["post"].(map[string]any)
	resps := op["responses"].(map[string]any)
	if _, ok := resps["500"]; !ok {
		t.Fatal("default 500 missing")
	}
	if _, ok := spec["components"].(map[string]any)["schemas"].(map[string]any)["ErrorResponse"]; !ok {
		t.Fatal("error schema missing")
	}
}

func TestServeDocJSON_MutatorsAndBrokenDoc(t *testing.T) {
	testkit.Serial(t)

	testkit.Swap(t, &mutators, nil)
	Register(func(spec map[string]any) { spec["x-murmur"] = true })
	Register(nil)

	if _, spec := fetch(t); spec["x-murmur"] != true {
		t.Fatal("mutator not applied")
	}

	testkit.Swap(t, &docReader, func() []byte { return []byte("{") })
	if code, _ := fetch(t); code != http.StatusInternalServerError {
		t.Fatalf("broken doc code = %d", code)
	}
}

func TestEnsureServers(t *testing.T) {
	t.Parallel()

	spec := map[string]any{"swagger": "2.0"}
	ensureServers(spec, "/api/v1")
	if spec["openapi"] != "3.0.3" || spec["swagger"] != nil {
		t.Fatalf("spec = %v", spec)
	}
	spec = map[string]any{"openapi": "3.1.0", "servers": []any{}}
	ensureServers(spec, "/x")
	if spec["openapi"] != "3.0.3" || len(spec["servers"].([]any)) != 0 {
		t.Fatalf("spec = %v", spec)
	}
}
