package reconciler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/atlasoi/tokensync/internal/api"
	"github.com/atlasoi/tokensync/internal/model"
	"github.com/atlasoi/tokensync/internal/store"
)

// wrap marshals data into the backend's response envelope.
func wrap(t *testing.T, data any) []byte {
	t.Helper()
	body, err := json.Marshal(map[string]any{
		"success":   true,
		"data":      data,
		"timestamp": "2024-06-01T12:00:00Z",
	})
	if err != nil {
		t.Fatalf("marshal envelope: %v", err)
	}
	return body
}

func fastClient(url string) *api.Client {
	return api.NewClient(url, api.WithRetries(0, time.Millisecond))
}

func TestReconciler_InitialPull(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/stats/current":
			w.Write(wrap(t, model.StatsSnapshot{
				TotalSessions: 9,
				TotalTokens:   45000,
			}))
		case "/api/stats/daily":
			if r.URL.Query().Get("start_date") == "" {
				t.Error("expected a start_date bound on the daily pull")
			}
			w.Write(wrap(t, []model.DailyActivity{
				{Date: "2024-06-01", SessionCount: 4, TotalTokens: 20000},
				{Date: "2024-05-31", SessionCount: 5, TotalTokens: 25000},
			}))
		default:
			t.Errorf("unexpected path %q", r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	st := store.New(nil)
	rec := New(Config{Interval: time.Hour}, fastClient(server.URL), st, nil)

	if err := rec.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer rec.Stop(context.Background())

	v := st.View()
	if v.Stats.TotalTokens != 45000 {
		t.Errorf("TotalTokens = %d, want 45000", v.Stats.TotalTokens)
	}
	if len(v.Daily) != 2 {
		t.Fatalf("len(Daily) = %d, want 2", len(v.Daily))
	}
	// The store keeps daily records ascending by date.
	if v.Daily[0].Date != "2024-05-31" || v.Daily[1].Date != "2024-06-01" {
		t.Errorf("daily order = %s, %s; want ascending", v.Daily[0].Date, v.Daily[1].Date)
	}

	stats := rec.Stats()
	if stats.Runs != 1 {
		t.Errorf("Runs = %d, want 1", stats.Runs)
	}
	if stats.LastSync.IsZero() {
		t.Error("LastSync should be stamped")
	}
}

func TestReconciler_Trigger(t *testing.T) {
	var pulls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/stats/current":
			n := atomic.AddInt32(&pulls, 1)
			w.Write(wrap(t, model.StatsSnapshot{TotalTokens: int64(n) * 1000}))
		case "/api/stats/daily":
			w.Write(wrap(t, []model.DailyActivity{}))
		}
	}))
	defer server.Close()

	st := store.New(nil)
	rec := New(Config{Interval: time.Hour}, fastClient(server.URL), st, nil)

	if err := rec.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer rec.Stop(context.Background())

	rec.Trigger()

	deadline := time.After(2 * time.Second)
	for rec.Stats().Runs < 2 {
		select {
		case <-deadline:
			t.Fatal("triggered pull never ran")
		case <-time.After(5 * time.Millisecond):
		}
	}

	if got := st.View().Stats.TotalTokens; got != 2000 {
		t.Errorf("TotalTokens = %d, want 2000 (second pull)", got)
	}
}

func TestReconciler_PeriodicPull(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/stats/current":
			w.Write(wrap(t, model.StatsSnapshot{TotalTokens: 100}))
		case "/api/stats/daily":
			w.Write(wrap(t, []model.DailyActivity{}))
		}
	}))
	defer server.Close()

	st := store.New(nil)
	rec := New(Config{Interval: 30 * time.Millisecond}, fastClient(server.URL), st, nil)

	if err := rec.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer rec.Stop(context.Background())

	deadline := time.After(2 * time.Second)
	for rec.Stats().Runs < 3 {
		select {
		case <-deadline:
			t.Fatalf("Runs = %d, want at least 3", rec.Stats().Runs)
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestReconciler_InitialFailureNonFatal(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"detail":"usage database offline"}`, http.StatusInternalServerError)
	}))
	defer server.Close()

	st := store.New(nil)
	rec := New(Config{Interval: time.Hour}, fastClient(server.URL), st, nil)

	if err := rec.Start(context.Background()); err != nil {
		t.Fatalf("Start should not fail on a bad initial pull, got %v", err)
	}
	defer rec.Stop(context.Background())

	stats := rec.Stats()
	if stats.Failures != 1 {
		t.Errorf("Failures = %d, want 1", stats.Failures)
	}
	if stats.Runs != 0 {
		t.Errorf("Runs = %d, want 0", stats.Runs)
	}
	if !st.View().LastUpdated.IsZero() {
		t.Error("store should be untouched after a failed pull")
	}
}

func TestReconciler_DailyFailureAppliesSnapshotAlone(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/stats/current":
			w.Write(wrap(t, model.StatsSnapshot{TotalTokens: 7500}))
		case "/api/stats/daily":
			http.Error(w, `{"detail":"daily rollup pending"}`, http.StatusServiceUnavailable)
		}
	}))
	defer server.Close()

	st := store.New(nil)
	rec := New(Config{Interval: time.Hour}, fastClient(server.URL), st, nil)

	if err := rec.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer rec.Stop(context.Background())

	v := st.View()
	if v.Stats.TotalTokens != 7500 {
		t.Errorf("TotalTokens = %d, want 7500", v.Stats.TotalTokens)
	}
	if len(v.Daily) != 0 {
		t.Errorf("len(Daily) = %d, want 0", len(v.Daily))
	}

	stats := rec.Stats()
	if stats.Runs != 1 {
		t.Errorf("Runs = %d, want 1", stats.Runs)
	}
	if stats.Failures != 0 {
		t.Errorf("Failures = %d, want 0 (a daily miss is not a failed run)", stats.Failures)
	}
}
