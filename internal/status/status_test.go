package status

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/atlasoi/tokensync/internal/api"
	"github.com/atlasoi/tokensync/internal/connection"
	"github.com/atlasoi/tokensync/internal/dispatch"
	"github.com/atlasoi/tokensync/internal/model"
	"github.com/atlasoi/tokensync/internal/platform"
	"github.com/atlasoi/tokensync/internal/reconciler"
	"github.com/atlasoi/tokensync/internal/store"
)

func testComponents(t *testing.T) (Components, *store.Store) {
	t.Helper()

	st := store.New(slog.Default())
	mgr := connection.NewManager(connection.Config{URL: "ws://localhost:9"}, platform.Headless{}, nil)
	disp := dispatch.New(make(chan connection.Inbound), st, platform.Headless{}, nil)
	rec := reconciler.New(reconciler.DefaultConfig(), api.NewClient("http://localhost:9"), st, nil)

	return Components{
		Store:      st,
		Connection: mgr,
		Dispatcher: disp,
		Reconciler: rec,
	}, st
}

func TestHandler_Health(t *testing.T) {
	comps, st := testComponents(t)
	server := httptest.NewServer(Handler(comps))
	defer server.Close()

	get := func() (status, conn string) {
		t.Helper()
		resp, err := http.Get(server.URL + "/health")
		if err != nil {
			t.Fatalf("GET /health error = %v", err)
		}
		defer resp.Body.Close()

		var body struct {
			Status     string `json:"status"`
			Connection string `json:"connection"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
			t.Fatalf("decode health: %v", err)
		}
		return body.Status, body.Connection
	}

	status, conn := get()
	if status != "degraded" {
		t.Errorf("status = %q, want degraded while disconnected", status)
	}
	if conn != "disconnected" {
		t.Errorf("connection = %q, want disconnected", conn)
	}

	st.SetConnectionState(model.StateConnected)

	status, conn = get()
	if status != "healthy" {
		t.Errorf("status = %q, want healthy while connected", status)
	}
	if conn != "connected" {
		t.Errorf("connection = %q, want connected", conn)
	}
}

func TestHandler_Stats(t *testing.T) {
	comps, st := testComponents(t)
	server := httptest.NewServer(Handler(comps))
	defer server.Close()

	st.ApplySnapshot(model.StatsSnapshot{
		TotalSessions: 7,
		TotalTokens:   123456,
		DailyActivities: []model.DailyActivity{
			{Date: "2024-06-01", TotalTokens: 123456},
		},
	})

	resp, err := http.Get(server.URL + "/stats")
	if err != nil {
		t.Fatalf("GET /stats error = %v", err)
	}
	defer resp.Body.Close()

	var body map[string]map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode stats: %v", err)
	}

	totals, ok := body["totals"]
	if !ok {
		t.Fatal("stats response missing totals")
	}
	if totals["total_tokens"].(float64) != 123456 {
		t.Errorf("total_tokens = %v, want 123456", totals["total_tokens"])
	}
	if totals["daily_days"].(float64) != 1 {
		t.Errorf("daily_days = %v, want 1", totals["daily_days"])
	}

	connStats, ok := body["connection"]
	if !ok {
		t.Fatal("stats response missing connection")
	}
	if connStats["state"].(string) != "disconnected" {
		t.Errorf("connection state = %v, want disconnected", connStats["state"])
	}

	if _, ok := body["archive"]; ok {
		t.Error("archive stats present without a feeder")
	}
}
