package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"tagvis/internal/config"
	"tagvis/internal/expansion"
	"tagvis/internal/metrics"
	"tagvis/internal/render"
	"tagvis/internal/slogutil"
	"tagvis/internal/storage"
	"tagvis/internal/tagquery"
	"tagvis/internal/testutil"
	"tagvis/internal/tree"
	"tagvis/internal/vault"
)

type testServer struct {
	*Server
	engine *expansion.Engine
	latest *render.Latest
}

// newTestServer indexes a small vault and serves it
func newTestServer(t *testing.T, mutate func(*Deps)) *testServer {
	t.Helper()
	root := testutil.WriteVault(t, map[string]string{
		"a.md": "#project/alpha #idea",
		"b.md": "#project #idea #todo",
		"c.md": "#archive",
	})

	logger := slogutil.NewDiscardLogger()
	db, err := storage.Open(filepath.Join(root, ".tagvis", "index.db"), logger)
	if err != nil {
		t.Fatalf("Failed to open index: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	store := vault.NewStore(db)
	indexer := vault.NewIndexer(root, store, vault.IndexerConfig{}, logger)
	if _, err := indexer.Sync(context.Background(), false); err != nil {
		t.Fatalf("Failed to index vault: %v", err)
	}

	provider := vault.NewProvider(db)
	latest := render.NewLatest()
	collector := metrics.New()
	engine, err := expansion.New(provider, expansion.Options{},
		expansion.WithRenderer(latest),
		expansion.WithRecorder(collector),
	)
	if err != nil {
		t.Fatalf("Failed to create engine: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	deps := Deps{
		Engine:     engine,
		Latest:     latest,
		Provider:   provider,
		Store:      store,
		Metrics:    collector,
		Vis:        config.DefaultVisConfig(),
		RunContext: ctx,
	}
	if mutate != nil {
		mutate(&deps)
	}

	server, err := NewServer(":0", deps, logger)
	if err != nil {
		t.Fatalf("Failed to create server: %v", err)
	}
	return &testServer{Server: server, engine: engine, latest: latest}
}

func (ts *testServer) do(t *testing.T, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	w := httptest.NewRecorder()
	ts.ServeHTTP(w, req)
	return w
}

func (ts *testServer) runAndWait(t *testing.T, tag string) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	ts.engine.StartRun(ctx, tag)
	if err := ts.engine.Wait(ctx); err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), v); err != nil {
		t.Fatalf("Failed to parse response %q: %v", w.Body.String(), err)
	}
}

func TestNewServer_RequiresEngine(t *testing.T) {
	if _, err := NewServer(":0", Deps{}, slogutil.NewDiscardLogger()); err == nil {
		t.Error("NewServer() without engine should fail")
	}
}

func TestHealthEndpoint(t *testing.T) {
	ts := newTestServer(t, nil)

	w := ts.do(t, http.MethodGet, "/health", "")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	var resp HealthResponse
	decode(t, w, &resp)
	if resp.Status != "healthy" || resp.Epoch != 0 || resp.Renders != 0 {
		t.Errorf("health = %+v", resp)
	}

	if w := ts.do(t, http.MethodPost, "/health", ""); w.Code != http.StatusMethodNotAllowed {
		t.Errorf("POST /health status = %d, want 405", w.Code)
	}
}

func TestIndexEndpoint(t *testing.T) {
	ts := newTestServer(t, nil)

	w := ts.do(t, http.MethodGet, "/", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var resp map[string]interface{}
	decode(t, w, &resp)
	if resp["name"] != "tagvis HTTP API" {
		t.Errorf("name = %v", resp["name"])
	}

	if w := ts.do(t, http.MethodGet, "/nope", ""); w.Code != http.StatusNotFound {
		t.Errorf("unknown path status = %d, want 404", w.Code)
	}
}

func TestTreeEndpoint(t *testing.T) {
	ts := newTestServer(t, nil)

	// before any run the engine's placeholder root is served
	w := ts.do(t, http.MethodGet, "/api/tree", "")
	var before TreeResponse
	decode(t, w, &before)
	if before.Root == nil || before.Root.Name != tree.RootName || before.Version != 0 {
		t.Fatalf("tree before run = %+v", before)
	}

	ts.runAndWait(t, "")
	w = ts.do(t, http.MethodGet, "/api/tree", "")
	var after TreeResponse
	decode(t, w, &after)
	if after.Epoch != 1 || after.Version == 0 {
		t.Errorf("epoch/version = %d/%d", after.Epoch, after.Version)
	}
	if c := after.Root.Child("#idea"); c == nil || c.Value != 2 {
		t.Errorf("#idea child = %+v", c)
	}

	if w := ts.do(t, http.MethodGet, "/api/tree?since=abc", ""); w.Code != http.StatusBadRequest {
		t.Errorf("bad since status = %d, want 400", w.Code)
	}
}

func TestTreeEndpoint_LongPoll(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.longPollTimeout = 50 * time.Millisecond

	// nothing new: returns after the poll timeout with the same version
	start := time.Now()
	w := ts.do(t, http.MethodGet, "/api/tree?since=0", "")
	var resp TreeResponse
	decode(t, w, &resp)
	if resp.Version != 0 || time.Since(start) < 40*time.Millisecond {
		t.Errorf("timed-out poll returned version %d after %v", resp.Version, time.Since(start))
	}

	ts.longPollTimeout = 5 * time.Second
	go func() {
		time.Sleep(20 * time.Millisecond)
		ts.latest.Render(tree.NewRoot("#fresh"))
	}()
	w = ts.do(t, http.MethodGet, "/api/tree?since=0", "")
	decode(t, w, &resp)
	if resp.Version != 1 || resp.Root.Name != "#fresh" {
		t.Errorf("woken poll = %+v", resp)
	}
}

func TestTreeRenderings(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.runAndWait(t, "")

	w := ts.do(t, http.MethodGet, "/api/tree.svg", "")
	if w.Code != http.StatusOK || w.Header().Get("Content-Type") != "image/svg+xml" {
		t.Fatalf("svg status = %d, type = %q", w.Code, w.Header().Get("Content-Type"))
	}
	if !strings.Contains(w.Body.String(), "<svg") || !strings.Contains(w.Body.String(), "<path") {
		t.Error("svg body has no drawing")
	}

	w = ts.do(t, http.MethodGet, "/api/tree.txt", "")
	if !strings.HasPrefix(w.Body.String(), "#\n") || !strings.Contains(w.Body.String(), "#idea (2)") {
		t.Errorf("text body = %q", w.Body.String())
	}
}

func TestTreeSVG_BadLayout(t *testing.T) {
	ts := newTestServer(t, func(d *Deps) {
		d.Vis.Layout.Width = 10
		d.Vis.Layout.Height = 10
	})
	w := ts.do(t, http.MethodGet, "/api/tree.svg", "")
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestRootEndpoint(t *testing.T) {
	ts := newTestServer(t, nil)

	w := ts.do(t, http.MethodPost, "/api/root", `{"tag": "#project"}`)
	if w.Code != http.StatusAccepted {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	var resp RootResponse
	decode(t, w, &resp)
	if resp.Epoch != 1 || resp.Tag != "#project" {
		t.Errorf("response = %+v", resp)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := ts.engine.Wait(ctx); err != nil {
		t.Fatal(err)
	}
	root := ts.engine.Snapshot()
	if root.Name != "#project" || root.Child("#idea") == nil {
		t.Errorf("re-rooted tree = %s", render.Text(root, render.TextOptions{}))
	}

	// query parameter form
	w = ts.do(t, http.MethodPost, "/api/root?tag="+url.QueryEscape("#"), "")
	decode(t, w, &resp)
	if w.Code != http.StatusAccepted || resp.Epoch != 2 {
		t.Errorf("status = %d, epoch = %d", w.Code, resp.Epoch)
	}
}

func TestRootEndpoint_Errors(t *testing.T) {
	ts := newTestServer(t, nil)

	tests := []struct {
		name   string
		method string
		body   string
		status int
	}{
		{"wrong method", http.MethodGet, "", http.StatusMethodNotAllowed},
		{"bad json", http.MethodPost, `{"tag":`, http.StatusBadRequest},
		{"bad tag", http.MethodPost, `{"tag": "no hash"}`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := ts.do(t, tt.method, "/api/root", tt.body)
			if w.Code != tt.status {
				t.Errorf("status = %d, want %d", w.Code, tt.status)
			}
		})
	}
	if ts.engine.Epoch() != 0 {
		t.Error("rejected requests must not start runs")
	}
}

func TestFilesEndpoint(t *testing.T) {
	ts := newTestServer(t, nil)

	w := ts.do(t, http.MethodGet, "/api/files?tag="+url.QueryEscape("#idea")+"&tag="+url.QueryEscape("#project"), "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	var resp FilesResponse
	decode(t, w, &resp)
	if len(resp.Files) != 2 || resp.Files[0].Label != "a" || resp.Files[1].Label != "b" {
		t.Errorf("files = %+v", resp.Files)
	}

	w = ts.do(t, http.MethodGet, "/api/files?tag="+url.QueryEscape("#idea,#todo"), "")
	decode(t, w, &resp)
	if len(resp.Path) != 2 || len(resp.Files) != 1 {
		t.Errorf("comma form = %+v", resp)
	}

	if w := ts.do(t, http.MethodGet, "/api/files?tag=idea", ""); w.Code != http.StatusBadRequest {
		t.Errorf("invalid tag status = %d, want 400", w.Code)
	}
}

func TestQueryEndpoint(t *testing.T) {
	ts := newTestServer(t, nil)
	q := tagquery.BuildQuery([]string{"#project"}, nil, []string{"#project"}, 10, true)

	w := ts.do(t, http.MethodGet, "/api/query?q="+url.QueryEscape(q), "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	var res expansion.Result
	decode(t, w, &res)
	if !res.Successful || len(res.Values) != 3 {
		t.Errorf("result = %+v", res)
	}

	w = ts.do(t, http.MethodPost, "/api/query", q)
	if w.Code != http.StatusOK {
		t.Errorf("POST status = %d", w.Code)
	}

	w = ts.do(t, http.MethodPost, "/api/query", "LIST FROM #x")
	if w.Code != http.StatusUnprocessableEntity {
		t.Errorf("invalid query status = %d, want 422", w.Code)
	}
	var errResp ErrorResponse
	decode(t, w, &errResp)
	if errResp.Code != "QUERY_UNSUCCESSFUL" {
		t.Errorf("code = %q", errResp.Code)
	}

	if w := ts.do(t, http.MethodGet, "/api/query", ""); w.Code != http.StatusBadRequest {
		t.Errorf("missing query status = %d, want 400", w.Code)
	}
	if w := ts.do(t, http.MethodDelete, "/api/query", ""); w.Code != http.StatusMethodNotAllowed {
		t.Errorf("DELETE status = %d, want 405", w.Code)
	}
}

func TestQueryEndpoint_NoProvider(t *testing.T) {
	ts := newTestServer(t, func(d *Deps) { d.Provider = nil })
	w := ts.do(t, http.MethodGet, "/api/query?q=x", "")
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", w.Code)
	}
}

func TestIndexStatsEndpoint(t *testing.T) {
	ts := newTestServer(t, nil)
	w := ts.do(t, http.MethodGet, "/api/index", "")
	var stats vault.IndexStats
	decode(t, w, &stats)
	if stats.Files != 3 {
		t.Errorf("files = %d, want 3", stats.Files)
	}

	bare := newTestServer(t, func(d *Deps) { d.Store = nil })
	if w := bare.do(t, http.MethodGet, "/api/index", ""); w.Code != http.StatusNotFound {
		t.Errorf("status without store = %d, want 404", w.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.runAndWait(t, "")

	w := ts.do(t, http.MethodGet, "/metrics", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "tagvis_runs_total 1") {
		t.Error("metrics missing run counter")
	}
	// the root query plus one for each of its five children
	if !strings.Contains(w.Body.String(), `tagvis_queries_total{outcome="ok"} 6`) {
		t.Errorf("unexpected query count:\n%s", w.Body.String())
	}
}
