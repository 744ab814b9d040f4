package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/newtron-network/ctlsh/pkg/util"
)

type fakeController struct {
	mu       sync.Mutex
	requests []string
	bodies   []map[string]interface{}
	rows     []Row
	status   int
	errBody  string
}

func (f *fakeController) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, r.Method+" "+r.URL.RequestURI())
	if r.Body != nil {
		data, _ := io.ReadAll(r.Body)
		if len(data) > 0 {
			var m map[string]interface{}
			_ = json.Unmarshal(data, &m)
			f.bodies = append(f.bodies, m)
		}
	}
	if f.status != 0 {
		w.WriteHeader(f.status)
		io.WriteString(w, f.errBody)
		return
	}
	if r.Method == http.MethodGet {
		json.NewEncoder(w).Encode(f.rows)
	}
}

func newTestREST(t *testing.T, f *fakeController, rec io.Writer) *RESTBackend {
	t.Helper()
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)
	return NewRESTBackend(RESTConfig{Controller: srv.URL, Recorder: rec})
}

func TestRESTBackend_QueryUsesCache(t *testing.T) {
	f := &fakeController{rows: []Row{{"id": "forwarding", "access-priority": 10}}}
	b := newTestREST(t, f, nil)
	ctx := context.Background()

	filter := map[string]interface{}{"id": "forwarding"}
	for i := 0; i < 3; i++ {
		rows, err := b.Query(ctx, "forwarding-config", filter)
		if err != nil {
			t.Fatalf("Query: %v", err)
		}
		if len(rows) != 1 || rows[0]["access-priority"] != float64(10) {
			t.Fatalf("rows = %v", rows)
		}
	}
	if diff := cmp.Diff([]string{"GET /rest/v1/model/forwarding-config/?id=forwarding"}, f.requests); diff != "" {
		t.Errorf("requests (-want +got):\n%s", diff)
	}

	b.ClearCache()
	b.Query(ctx, "forwarding-config", filter)
	if len(f.requests) != 2 {
		t.Errorf("cleared cache should refetch, requests = %v", f.requests)
	}
}

func TestRESTBackend_WritesInvalidateCache(t *testing.T) {
	f := &fakeController{}
	var rec bytes.Buffer
	b := newTestREST(t, f, &rec)
	ctx := context.Background()

	b.Query(ctx, "tag", nil)
	if b.Cache().Len() != 1 {
		t.Fatalf("query not cached")
	}
	if err := b.Update(ctx, "tag", "id", "default|a|1", Row{"persist": true}); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if b.Cache().Len() != 0 {
		t.Error("write should clear the cache")
	}
	if err := b.Create(ctx, "tag", "id", Row{"id": "default|b|2"}); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := b.Delete(ctx, "tag", map[string]interface{}{"name": "b", "namespace": "default"}); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	want := []string{
		"GET /rest/v1/model/tag/",
		"PUT /rest/v1/model/tag/?id=default%7Ca%7C1",
		"POST /rest/v1/model/tag/",
		"DELETE /rest/v1/model/tag/?name=b&namespace=default",
	}
	if diff := cmp.Diff(want, f.requests); diff != "" {
		t.Errorf("requests (-want +got):\n%s", diff)
	}
	if f.bodies[0]["persist"] != true {
		t.Errorf("PUT body = %v", f.bodies[0])
	}

	lines := strings.Split(strings.TrimSpace(rec.String()), "\n")
	if len(lines) != 4 || !strings.HasPrefix(lines[1], "PUT http://") {
		t.Errorf("recorded requests = %q", lines)
	}
}

func TestRESTBackend_ErrorMapping(t *testing.T) {
	f := &fakeController{
		status:  http.StatusBadRequest,
		errBody: `{"error_type": "validation", "description": "bad value"}`,
	}
	b := newTestREST(t, f, nil)

	err := b.Update(context.Background(), "tag", "id", "x", Row{"name": "y"})
	if !errors.Is(err, util.ErrRest) {
		t.Fatalf("expected REST error, got %v", err)
	}
	ce, _ := util.AsCommandError(err)
	if ce.ErrorType != "validation" || ce.Description != "bad value" {
		t.Errorf("error fields = %+v", ce)
	}
	if !strings.Contains(err.Error(), "type = validation") {
		t.Errorf("message = %q", err)
	}

	f.errBody = "not json"
	_, err = b.Query(context.Background(), "tag", nil)
	ce, _ = util.AsCommandError(err)
	if ce == nil || ce.ErrorType != "http 400" {
		t.Errorf("non-JSON error body should fall back to the status, got %v", err)
	}
}

func TestRESTBackend_ConnectionError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	b := NewRESTBackend(RESTConfig{Controller: srv.URL})
	srv.Close()

	_, err := b.Query(context.Background(), "tag", nil)
	ce, ok := util.AsCommandError(err)
	if !ok || ce.ErrorType != "connection" {
		t.Errorf("expected connection error, got %v", err)
	}
}

func TestRESTBackend_GetJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/rest/v1/system/version" {
			http.NotFound(w, r)
			return
		}
		io.WriteString(w, `[{"controller": "1.2"}]`)
	}))
	t.Cleanup(srv.Close)
	b := NewRESTBackend(RESTConfig{Controller: strings.TrimPrefix(srv.URL, "http://")})

	v, err := b.GetJSON(context.Background(), "/system/version")
	if err != nil {
		t.Fatalf("GetJSON: %v", err)
	}
	want := []interface{}{map[string]interface{}{"controller": "1.2"}}
	if diff := cmp.Diff(want, v); diff != "" {
		t.Errorf("GetJSON (-want +got):\n%s", diff)
	}
}
