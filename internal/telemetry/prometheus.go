package telemetry

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/lockwhz/iac-analytics-service/internal/analytics"
)

// GaugeSink mirrors the latest analytics values as prometheus gauges.
// Values that are neither numbers, issue breakdowns nor stage timings are ignored.
type GaugeSink struct {
	metric *prometheus.GaugeVec
	issues *prometheus.GaugeVec
	stages *prometheus.GaugeVec
}

var (
	_ Sink      = (*GaugeSink)(nil)
	_ Publisher = (*GaugeSink)(nil)
)

func NewGaugeSink(reg prometheus.Registerer) *GaugeSink {
	g := &GaugeSink{
		metric: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "iac",
			Subsystem: "analytics",
			Name:      "metric",
			Help:      "latest value of each numeric IaC analytics metric",
		}, []string{"key"}),
		issues: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "iac",
			Subsystem: "analytics",
			Name:      "issues",
			Help:      "issues of the latest scan by package manager and severity",
		}, []string{"type", "severity"}),
		stages: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "iac",
			Subsystem: "analytics",
			Name:      "stage_ms",
			Help:      "duration in milliseconds of each stage of the latest scan",
		}, []string{"stage"}),
	}
	reg.MustRegister(g.metric, g.issues, g.stages)
	return g
}

func (g *GaugeSink) Add(key string, value interface{}) {
	switch v := value.(type) {
	case analytics.IssuesByType:
		g.issues.Reset()
		for group, bySeverity := range v {
			for severity, count := range bySeverity {
				g.issues.With(prometheus.Labels{"type": group, "severity": severity}).Set(float64(count))
			}
		}
	case *analytics.PerformanceMetrics:
		if v == nil {
			return
		}
		for _, stage := range analytics.PerformanceKeys {
			if ms, ok := v.Get(stage); ok {
				g.stages.With(prometheus.Labels{"stage": string(stage)}).Set(ms)
			}
		}
	case []string:
		g.metric.With(prometheus.Labels{"key": key}).Set(float64(len(v)))
	default:
		if f, ok := toFloat(value); ok {
			g.metric.With(prometheus.Labels{"key": key}).Set(f)
		}
	}
}

// Publish applies every metric of a flushed event, so stage timings recorded
// after the analytics were added are included.
func (g *GaugeSink) Publish(_ context.Context, event Event) error {
	for key, value := range event.Metrics {
		g.Add(key, value)
	}
	return nil
}

func toFloat(value interface{}) (float64, bool) {
	switch v := value.(type) {
	case int:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case float32:
		return float64(v), true
	case float64:
		return v, true
	}
	return 0, false
}
