package model

import (
	"encoding/json"
	"testing"
	"time"
)

func TestModelUsageTotals(t *testing.T) {
	u := ModelUsage{
		ModelName:           "claude-3-5-sonnet-20241022",
		InputTokens:         1000,
		OutputTokens:        500,
		CacheReadTokens:     200,
		CacheCreationTokens: 100,
	}

	if got := u.TotalTokens(); got != 1500 {
		t.Errorf("TotalTokens() = %d, want 1500", got)
	}
	if got := u.TotalWithCache(); got != 1800 {
		t.Errorf("TotalWithCache() = %d, want 1800", got)
	}
}

func TestEnvelopeRoundTrip(t *testing.T) {
	raw := `{"type":"stats_update","data":{"total_sessions":3,"total_tokens":900},"timestamp":"2026-01-07T12:00:00Z"}`

	var env Envelope
	if err := json.Unmarshal([]byte(raw), &env); err != nil {
		t.Fatalf("unmarshal envelope: %v", err)
	}
	if env.Type != TypeStatsUpdate {
		t.Errorf("Type = %q, want %q", env.Type, TypeStatsUpdate)
	}

	var snap StatsSnapshot
	if err := json.Unmarshal(env.Data, &snap); err != nil {
		t.Fatalf("unmarshal data: %v", err)
	}
	if snap.TotalSessions != 3 || snap.TotalTokens != 900 {
		t.Errorf("snapshot = %+v, want sessions=3 tokens=900", snap)
	}
}

func TestOutboundIncludesTimestamp(t *testing.T) {
	out := Outbound{
		Type:      TypePing,
		Timestamp: Timestamp(time.Date(2026, 1, 7, 12, 0, 0, 0, time.UTC)),
	}

	data, err := json.Marshal(out)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if env.Type != TypePing {
		t.Errorf("Type = %q, want %q", env.Type, TypePing)
	}
	if env.Timestamp != "2026-01-07T12:00:00Z" {
		t.Errorf("Timestamp = %q, want RFC3339 UTC", env.Timestamp)
	}
}

func TestConnectionStateString(t *testing.T) {
	cases := []struct {
		state ConnectionState
		want  string
	}{
		{StateDisconnected, "disconnected"},
		{StateConnecting, "connecting"},
		{StateConnected, "connected"},
		{StateReconnecting, "reconnecting"},
		{StateErrored, "error"},
		{ConnectionState(99), "unknown"},
	}

	for _, tc := range cases {
		if got := tc.state.String(); got != tc.want {
			t.Errorf("%d.String() = %q, want %q", tc.state, got, tc.want)
		}
	}
}

func TestStatsSnapshotJSONFieldNames(t *testing.T) {
	snap := StatsSnapshot{
		TotalSessions: 100,
		TotalTokens:   50000,
		Models: map[string]ModelUsage{
			"claude-3-5-sonnet-20241022": {
				ModelName:   "claude-3-5-sonnet-20241022",
				InputTokens: 30000,
			},
		},
		DailyActivities: []DailyActivity{
			{Date: "2026-01-07", SessionCount: 5, TotalTokens: 10000},
		},
		LastUpdated: "2026-01-07T12:00:00Z",
	}

	data, err := json.Marshal(snap)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	for _, key := range []string{"total_sessions", "total_tokens", "models", "daily_activities", "last_updated"} {
		if _, ok := m[key]; !ok {
			t.Errorf("marshaled snapshot missing %q key", key)
		}
	}
}
