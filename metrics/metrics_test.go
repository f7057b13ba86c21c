package metrics_test

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/wage-engine/metrics"
	"github.com/warp/wage-engine/wage"
)

func gather(t *testing.T, reg *prometheus.Registry) map[string]*dto.MetricFamily {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	out := make(map[string]*dto.MetricFamily, len(families))
	for _, f := range families {
		out[f.GetName()] = f
	}
	return out
}

func counterWithLabels(f *dto.MetricFamily, labels map[string]string) float64 {
	for _, m := range f.GetMetric() {
		match := true
		for _, lp := range m.GetLabel() {
			if want, ok := labels[lp.GetName()]; ok && want != lp.GetValue() {
				match = false
			}
		}
		if match {
			return m.GetCounter().GetValue()
		}
	}
	return 0
}

func TestMetrics_ObservesEngineCache(t *testing.T) {
	// GIVEN: An engine wired to a fresh registry
	reg := prometheus.NewRegistry()
	m := metrics.New("wage", reg)
	e := wage.NewEngine(zerolog.Nop(), m)
	policy := wage.StatutoryJob("job-1", "Cafe").BreakTime

	// WHEN: One miss, two hits, one invalidation
	e.BreakTime(5*time.Hour, policy)
	e.BreakTime(5*time.Hour, policy)
	e.BreakTime(5*time.Hour, policy)
	e.PoliciesChanged()

	// THEN
	fams := gather(t, reg)
	lookups := fams["wage_derivation_cache_lookups_total"]
	require.NotNil(t, lookups)
	assert.Equal(t, 1.0, counterWithLabels(lookups, map[string]string{"kind": wage.CacheKindBreak, "result": "miss"}))
	assert.Equal(t, 2.0, counterWithLabels(lookups, map[string]string{"kind": wage.CacheKindBreak, "result": "hit"}))
	assert.Equal(t, 1.0, fams["wage_derivation_cache_invalidations_total"].GetMetric()[0].GetCounter().GetValue())
}

func TestMetrics_ReportAndRequests(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New("wage", reg)

	m.ObserveReportBuild(20 * time.Millisecond)
	m.ObserveRequest("GET", "/api/jobs", 200, time.Millisecond)
	m.ObserveWarmerRun("completed")

	fams := gather(t, reg)
	assert.Equal(t, uint64(1), fams["wage_monthly_report_build_duration_seconds"].GetMetric()[0].GetHistogram().GetSampleCount())
	assert.Equal(t, 1.0, counterWithLabels(fams["wage_http_requests_total"], map[string]string{"route": "/api/jobs", "status": "200"}))
	assert.Equal(t, 1.0, counterWithLabels(fams["wage_report_warmer_runs_total"], map[string]string{"status": "completed"}))
}
