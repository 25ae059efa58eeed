package model

import (
	"encoding/json"
	"time"
)

// -----------------------------------------------------------------------------
// Wire Envelope
// -----------------------------------------------------------------------------

// Message types carried in the envelope's "type" field.
const (
	TypeStatsUpdate   = "stats_update"
	TypeDailyActivity = "daily_activity_update"
	TypeNotification  = "notification"
	TypePing          = "ping"
	TypePong          = "pong"
	TypeError         = "error"
	TypeConnected     = "connected" // server greeting after accept
)

// Envelope is the wire frame exchanged in both directions.
// Data stays raw until a handler claims the type.
type Envelope struct {
	Type      string          `json:"type"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp string          `json:"timestamp,omitempty"` // ISO-8601
}

// Outbound is a client→server frame with an arbitrary payload.
type Outbound struct {
	Type      string `json:"type"`
	Data      any    `json:"data,omitempty"`
	Timestamp string `json:"timestamp"`
}

// Timestamp formats t the way the backend emits envelope timestamps.
func Timestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// ServerError is the payload of an "error" frame.
type ServerError struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// -----------------------------------------------------------------------------
// Usage Statistics
// -----------------------------------------------------------------------------

// ModelUsage aggregates token consumption for a single model.
type ModelUsage struct {
	ModelName           string  `json:"model_name"`
	InputTokens         int64   `json:"input_tokens"`
	OutputTokens        int64   `json:"output_tokens"`
	CacheReadTokens     int64   `json:"cache_read_tokens"`
	CacheCreationTokens int64   `json:"cache_creation_tokens"`
	CostUSD             float64 `json:"cost_usd,omitempty"`
}

// TotalTokens returns input plus output tokens.
func (m ModelUsage) TotalTokens() int64 {
	return m.InputTokens + m.OutputTokens
}

// TotalWithCache returns the sum across all token categories.
func (m ModelUsage) TotalWithCache() int64 {
	return m.InputTokens + m.OutputTokens + m.CacheReadTokens + m.CacheCreationTokens
}

// DailyModelTokens is one model's token usage on one calendar day.
type DailyModelTokens struct {
	Date                string `json:"date"` // YYYY-MM-DD
	ModelName           string `json:"model_name"`
	InputTokens         int64  `json:"input_tokens"`
	OutputTokens        int64  `json:"output_tokens"`
	CacheReadTokens     int64  `json:"cache_read_tokens"`
	CacheCreationTokens int64  `json:"cache_creation_tokens"`
}

// DailyActivity is the per-day activity record. Date is the unique key;
// a later record for the same date replaces the earlier one.
type DailyActivity struct {
	Date         string             `json:"date"` // YYYY-MM-DD
	SessionCount int64              `json:"session_count"`
	TotalTokens  int64              `json:"total_tokens"`
	TotalCost    float64            `json:"total_cost,omitempty"`
	Models       []DailyModelTokens `json:"models,omitempty"`
}

// StatsSnapshot is the authoritative aggregate view, delivered both by
// stats_update frames and by GET /stats/current.
type StatsSnapshot struct {
	TotalSessions   int64                 `json:"total_sessions"`
	TotalTokens     int64                 `json:"total_tokens"`
	TotalCost       float64               `json:"total_cost,omitempty"`
	Models          map[string]ModelUsage `json:"models,omitempty"`
	DailyActivities []DailyActivity       `json:"daily_activities,omitempty"`
	LastUpdated     string                `json:"last_updated,omitempty"`
}

// Notification is a server-pushed alert. Only the latest one is retained.
type Notification struct {
	Title     string `json:"title"`
	Body      string `json:"body"`
	Level     string `json:"level,omitempty"` // info, warning, error
	Timestamp string `json:"timestamp,omitempty"`
}

// -----------------------------------------------------------------------------
// REST Payloads
// -----------------------------------------------------------------------------

// TrendSummary is the payload of GET /stats/trends.
type TrendSummary struct {
	Days                int             `json:"days"`
	StartDate           string          `json:"start_date"`
	EndDate             string          `json:"end_date"`
	TotalTokens         int64           `json:"total_tokens"`
	TotalSessions       int64           `json:"total_sessions"`
	AvgTokensPerDay     float64         `json:"avg_tokens_per_day"`
	AvgTokensPerSession float64         `json:"avg_tokens_per_session"`
	Daily               []DailyActivity `json:"daily_data,omitempty"`
}

// HistorySummary is the payload of GET /stats/history for a named range.
type HistorySummary struct {
	Range         string          `json:"range"`
	StartDate     string          `json:"start_date"`
	EndDate       string          `json:"end_date"`
	TotalSessions int64           `json:"total_sessions"`
	TotalTokens   int64           `json:"total_tokens"`
	TotalCost     float64         `json:"total_cost,omitempty"`
	Daily         []DailyActivity `json:"daily_data,omitempty"`
}

// HealthStatus is the payload of GET /health.
type HealthStatus struct {
	Status               string `json:"status"`
	Version              string `json:"version,omitempty"`
	WebsocketConnections int    `json:"websocket_connections,omitempty"`
}

// Export formats accepted by POST /export.
const (
	ExportJSON = "json"
	ExportCSV  = "csv"
	ExportXLSX = "xlsx"
)

// ExportRequest describes a statistics export.
type ExportRequest struct {
	Format         string // json, csv, or xlsx
	StartDate      string // YYYY-MM-DD, empty for unbounded
	EndDate        string // YYYY-MM-DD, empty for unbounded
	IncludeDetails bool   // include per-model breakdowns
}

// -----------------------------------------------------------------------------
// Connection State
// -----------------------------------------------------------------------------

// ConnectionState describes the lifecycle phase of the one logical
// WebSocket connection. Transitions are driven only by the connection
// manager; every other component just reads it.
type ConnectionState int

const (
	StateDisconnected ConnectionState = iota
	StateConnecting
	StateConnected
	StateReconnecting
	StateErrored
)

// String returns the lowercase state name.
func (s ConnectionState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	case StateErrored:
		return "error"
	default:
		return "unknown"
	}
}
