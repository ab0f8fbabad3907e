package stats

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/lsy88/uptime-sentry/internal/model"
	"github.com/lsy88/uptime-sentry/internal/store"
)

// Stats is an aggregate over one monitor's probe results in a window.
// A monitor with no checks in the window reports 100% uptime: no
// evidence of downtime is not downtime.
type Stats struct {
	UptimePercent  float64 `json:"uptimePercent"`
	TotalChecks    int     `json:"totalChecks"`
	UpChecks       int     `json:"upChecks"`
	DownChecks     int     `json:"downChecks"`
	DegradedChecks int     `json:"degradedChecks"`
	AvgLatencyMs   int     `json:"avgLatencyMs"`
	P50LatencyMs   int     `json:"p50LatencyMs"`
	P95LatencyMs   int     `json:"p95LatencyMs"`
	P99LatencyMs   int     `json:"p99LatencyMs"`
}

// Summary carries the standard dashboard windows, each computed
// independently over the monitor's history.
type Summary struct {
	Last24h Stats `json:"last24h"`
	Last7d  Stats `json:"last7d"`
	Last30d Stats `json:"last30d"`
}

type Aggregator struct {
	store store.Store
}

func NewAggregator(s store.Store) *Aggregator {
	return &Aggregator{store: s}
}

// Window computes stats over the probe results recorded in the trailing
// window ending now. Only fully healthy checks count toward uptime;
// degraded ones are tallied separately.
func (a *Aggregator) Window(ctx context.Context, monitorID string, window time.Duration) (Stats, error) {
	since := time.Now().UTC().Add(-window)
	results, err := a.store.ProbeResultsSince(ctx, monitorID, since)
	if err != nil {
		return Stats{}, fmt.Errorf("load probe results for monitor %s: %w", monitorID, err)
	}
	return compute(results), nil
}

// Summary computes the 24h, 7d and 30d windows for a monitor.
func (a *Aggregator) Summary(ctx context.Context, monitorID string) (Summary, error) {
	var sum Summary
	windows := []struct {
		d   time.Duration
		dst *Stats
	}{
		{24 * time.Hour, &sum.Last24h},
		{7 * 24 * time.Hour, &sum.Last7d},
		{30 * 24 * time.Hour, &sum.Last30d},
	}
	for _, w := range windows {
		st, err := a.Window(ctx, monitorID, w.d)
		if err != nil {
			return Summary{}, err
		}
		*w.dst = st
	}
	return sum, nil
}

func compute(results []model.ProbeResult) Stats {
	st := Stats{TotalChecks: len(results)}
	if len(results) == 0 {
		st.UptimePercent = 100
		return st
	}

	latencies := make([]int, 0, len(results))
	totalLatency := 0
	for _, r := range results {
		switch r.Status {
		case model.StatusUp:
			st.UpChecks++
		case model.StatusDegraded:
			st.DegradedChecks++
		default:
			st.DownChecks++
		}
		latencies = append(latencies, r.LatencyMs)
		totalLatency += r.LatencyMs
	}

	st.UptimePercent = round2(float64(st.UpChecks) / float64(st.TotalChecks) * 100)
	st.AvgLatencyMs = totalLatency / st.TotalChecks

	sort.Ints(latencies)
	st.P50LatencyMs = percentileSorted(latencies, 50)
	st.P95LatencyMs = percentileSorted(latencies, 95)
	st.P99LatencyMs = percentileSorted(latencies, 99)
	return st
}

// Percentile returns the p-th percentile of the samples using the
// nearest-rank method. Empty input yields 0.
func Percentile(samples []int, p int) int {
	if len(samples) == 0 {
		return 0
	}
	sorted := make([]int, len(samples))
	copy(sorted, samples)
	sort.Ints(sorted)
	return percentileSorted(sorted, p)
}

func percentileSorted(sorted []int, p int) int {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(math.Ceil(float64(p)/100*float64(len(sorted)))) - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
