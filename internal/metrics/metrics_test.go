package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"tagvis/internal/expansion"
)

func TestCollector_Records(t *testing.T) {
	c := New()

	c.RunStarted()
	c.RunStarted()
	c.QueryObserved(expansion.OutcomeOK, 0.01)
	c.QueryObserved(expansion.OutcomeOK, 0.02)
	c.QueryObserved(expansion.OutcomeFailed, 0.5)
	c.StaleResultDiscarded()
	c.Rendered(12)
	c.Rendered(15)
	c.IndexSynced(40, nil)
	c.IndexSynced(0, errors.New("boom"))
	c.RequestShed("/api/query")

	checks := []struct {
		name string
		got  float64
		want float64
	}{
		{"runs", testutil.ToFloat64(c.runsTotal), 2},
		{"ok queries", testutil.ToFloat64(c.queriesTotal.WithLabelValues(expansion.OutcomeOK)), 2},
		{"failed queries", testutil.ToFloat64(c.queriesTotal.WithLabelValues(expansion.OutcomeFailed)), 1},
		{"stale", testutil.ToFloat64(c.staleTotal), 1},
		{"renders", testutil.ToFloat64(c.rendersTotal), 2},
		{"tree nodes", testutil.ToFloat64(c.treeNodes), 15},
		{"indexed files", testutil.ToFloat64(c.indexedFiles), 40},
		{"sync errors", testutil.ToFloat64(c.syncsTotal.WithLabelValues("error")), 1},
		{"shed", testutil.ToFloat64(c.shedTotal.WithLabelValues("/api/query")), 1},
	}
	for _, tt := range checks {
		if tt.got != tt.want {
			t.Errorf("%s = %v, want %v", tt.name, tt.got, tt.want)
		}
	}

	if n := testutil.CollectAndCount(c.queryDuration); n != 1 {
		t.Errorf("query histogram series = %d, want 1", n)
	}
}

func TestCollector_NilSafe(t *testing.T) {
	var c *Collector
	c.RunStarted()
	c.QueryObserved(expansion.OutcomeOK, 1)
	c.StaleResultDiscarded()
	c.Rendered(3)
	c.IndexSynced(1, nil)
	if c.Registry() != nil {
		t.Error("nil collector should have no registry")
	}

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("nil handler status = %d, want 404", rec.Code)
	}
}

func TestCollector_Handler(t *testing.T) {
	c := New()
	c.RunStarted()
	c.QueryObserved(expansion.OutcomeUnsuccessful, 0.001)

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	body := rec.Body.String()
	for _, want := range []string{
		"tagvis_runs_total 1",
		`tagvis_queries_total{outcome="unsuccessful"} 1`,
		"tagvis_query_duration_seconds_count 1",
		"go_goroutines",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics output missing %q", want)
		}
	}
}
