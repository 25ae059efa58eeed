package store

import (
	"sort"
	"time"

	"github.com/atlasoi/tokensync/internal/model"
)

// View is a point-in-time copy of the store. The derived accessors
// below are pure functions over it; none of them mutate anything.
type View struct {
	Connection      model.ConnectionState
	ConnectionError string
	Stats           model.StatsSnapshot
	Daily           []model.DailyActivity
	Notification    *model.Notification
	LastUpdated     time.Time
}

// ModelsByUsage returns the per-model usage entries ordered by total
// token volume, largest first. Ties break on model name so the order
// is stable.
func (v View) ModelsByUsage() []model.ModelUsage {
	out := make([]model.ModelUsage, 0, len(v.Stats.Models))
	for _, m := range v.Stats.Models {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool {
		ti, tj := out[i].TotalWithCache(), out[j].TotalWithCache()
		if ti != tj {
			return ti > tj
		}
		return out[i].ModelName < out[j].ModelName
	})
	return out
}

// TopModel returns the model with the highest token volume, if any.
func (v View) TopModel() (model.ModelUsage, bool) {
	models := v.ModelsByUsage()
	if len(models) == 0 {
		return model.ModelUsage{}, false
	}
	return models[0], true
}

// CacheHitRatio returns the share of input-side tokens served from
// cache, in [0, 1]. Zero when no input tokens were recorded.
func (v View) CacheHitRatio() float64 {
	var read, input int64
	for _, m := range v.Stats.Models {
		read += m.CacheReadTokens
		input += m.InputTokens
	}
	total := read + input
	if total == 0 {
		return 0
	}
	return float64(read) / float64(total)
}

// Staleness returns how long ago the state was last written. ok is
// false when nothing has been applied yet.
func (v View) Staleness(now time.Time) (time.Duration, bool) {
	if v.LastUpdated.IsZero() {
		return 0, false
	}
	return now.Sub(v.LastUpdated), true
}
