package analytics

import (
	"encoding/json"
	"sync"
	"time"
)

// PerformanceKey names a timed stage of a scan.
type PerformanceKey string

const (
	InitLocalCache   PerformanceKey = "cache-init-ms"
	FileLoading      PerformanceKey = "file-loading-ms"
	FileParsing      PerformanceKey = "file-parsing-ms"
	FileScanning     PerformanceKey = "file-scanning-ms"
	OrgSettings      PerformanceKey = "org-settings-ms"
	CustomSeverities PerformanceKey = "custom-severities-ms"
	ResultFormatting PerformanceKey = "results-formatting-ms"
	UsageTracking    PerformanceKey = "usage-tracking-ms"
	CacheCleanup     PerformanceKey = "cache-cleanup-ms"
	Total            PerformanceKey = "total-iac-ms"
)

// PerformanceKeys lists every stage in pipeline order.
var PerformanceKeys = []PerformanceKey{
	InitLocalCache,
	FileLoading,
	FileParsing,
	FileScanning,
	OrgSettings,
	CustomSeverities,
	ResultFormatting,
	UsageTracking,
	CacheCleanup,
	Total,
}

// PerformanceMetrics holds the elapsed milliseconds of each stage of one scan.
// Unmeasured stages encode as null.
type PerformanceMetrics struct {
	mu      sync.Mutex
	timings stageTimings
}

type stageTimings struct {
	CacheInit        *float64 `json:"cache-init-ms"`
	FileLoading      *float64 `json:"file-loading-ms"`
	FileParsing      *float64 `json:"file-parsing-ms"`
	FileScanning     *float64 `json:"file-scanning-ms"`
	OrgSettings      *float64 `json:"org-settings-ms"`
	CustomSeverities *float64 `json:"custom-severities-ms"`
	ResultFormatting *float64 `json:"results-formatting-ms"`
	UsageTracking    *float64 `json:"usage-tracking-ms"`
	CacheCleanup     *float64 `json:"cache-cleanup-ms"`
	Total            *float64 `json:"total-iac-ms"`
}

func NewPerformanceMetrics() *PerformanceMetrics {
	return &PerformanceMetrics{}
}

func (t *stageTimings) field(key PerformanceKey) **float64 {
	switch key {
	case InitLocalCache:
		return &t.CacheInit
	case FileLoading:
		return &t.FileLoading
	case FileParsing:
		return &t.FileParsing
	case FileScanning:
		return &t.FileScanning
	case OrgSettings:
		return &t.OrgSettings
	case CustomSeverities:
		return &t.CustomSeverities
	case ResultFormatting:
		return &t.ResultFormatting
	case UsageTracking:
		return &t.UsageTracking
	case CacheCleanup:
		return &t.CacheCleanup
	case Total:
		return &t.Total
	}
	return nil
}

// MarshalJSON encodes a consistent snapshot of the timings.
func (m *PerformanceMetrics) MarshalJSON() ([]byte, error) {
	m.mu.Lock()
	snapshot := m.timings
	m.mu.Unlock()
	return json.Marshal(snapshot)
}

// Set records d for key. Unknown keys are ignored.
func (m *PerformanceMetrics) Set(key PerformanceKey, d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	f := m.timings.field(key)
	if f == nil {
		return
	}
	ms := float64(d.Microseconds()) / 1000
	*f = &ms
}

// Track is meant to be deferred: defer perf.Track(analytics.FileScanning, time.Now()).
func (m *PerformanceMetrics) Track(key PerformanceKey, start time.Time) {
	m.Set(key, time.Since(start))
}

// Get returns the value recorded for key and whether it was set.
func (m *PerformanceMetrics) Get(key PerformanceKey) (float64, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	f := m.timings.field(key)
	if f == nil || *f == nil {
		return 0, false
	}
	return **f, true
}
