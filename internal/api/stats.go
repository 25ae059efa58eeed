package api

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/atlasoi/tokensync/internal/model"
)

// HistoryRanges are the range tokens GetHistory accepts.
var HistoryRanges = []string{"7d", "30d", "90d", "all"}

// GetCurrentStats fetches the authoritative aggregate statistics.
func (c *Client) GetCurrentStats(ctx context.Context) (*model.StatsSnapshot, error) {
	var snap model.StatsSnapshot
	if err := c.get(ctx, "/stats/current", nil, &snap); err != nil {
		return nil, fmt.Errorf("get current stats: %w", err)
	}
	return &snap, nil
}

// GetDailyStats fetches per-day activity records. Empty date bounds
// leave that side of the window to the server default.
func (c *Client) GetDailyStats(ctx context.Context, startDate, endDate string) ([]model.DailyActivity, error) {
	query := url.Values{}
	if startDate != "" {
		query.Set("start_date", startDate)
	}
	if endDate != "" {
		query.Set("end_date", endDate)
	}

	var daily []model.DailyActivity
	if err := c.get(ctx, "/stats/daily", query, &daily); err != nil {
		return nil, fmt.Errorf("get daily stats: %w", err)
	}
	return daily, nil
}

// GetHistory fetches the usage summary for a named range. rng must be
// one of HistoryRanges; anything else fails without touching the network.
func (c *Client) GetHistory(ctx context.Context, rng string) (*model.HistorySummary, error) {
	if !validRange(rng) {
		return nil, fmt.Errorf("invalid history range %q (want 7d, 30d, 90d, or all)", rng)
	}

	query := url.Values{}
	query.Set("range", rng)

	var hist model.HistorySummary
	if err := c.get(ctx, "/stats/history", query, &hist); err != nil {
		return nil, fmt.Errorf("get history: %w", err)
	}
	return &hist, nil
}

// GetModelStats fetches per-model usage over the trailing days window,
// ordered by total token consumption.
func (c *Client) GetModelStats(ctx context.Context, days int) ([]model.ModelUsage, error) {
	query := url.Values{}
	if days > 0 {
		query.Set("days", strconv.Itoa(days))
	}

	var models []model.ModelUsage
	if err := c.get(ctx, "/stats/models", query, &models); err != nil {
		return nil, fmt.Errorf("get model stats: %w", err)
	}
	return models, nil
}

// GetTrends fetches aggregate trend figures over the trailing days window.
func (c *Client) GetTrends(ctx context.Context, days int) (*model.TrendSummary, error) {
	query := url.Values{}
	if days > 0 {
		query.Set("days", strconv.Itoa(days))
	}

	var trends model.TrendSummary
	if err := c.get(ctx, "/stats/trends", query, &trends); err != nil {
		return nil, fmt.Errorf("get trends: %w", err)
	}
	return &trends, nil
}

// Health probes the backend health endpoint. It uses its own short
// timeout and is never retried; callers poll it on their own schedule.
func (c *Client) Health(ctx context.Context) (*model.HealthStatus, error) {
	ctx, cancel := context.WithTimeout(ctx, c.healthTimeout)
	defer cancel()

	opt := defaultRequestOptions()
	opt.retry = false

	var status model.HealthStatus
	if err := c.call(ctx, "GET", "/health", nil, &status, opt); err != nil {
		return nil, fmt.Errorf("health check: %w", err)
	}
	return &status, nil
}

func validRange(rng string) bool {
	for _, r := range HistoryRanges {
		if rng == r {
			return true
		}
	}
	return false
}
