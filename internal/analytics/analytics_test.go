package analytics

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/lockwhz/iac-analytics-service/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSink struct {
	mu     sync.Mutex
	values map[string]interface{}
	calls  map[string]int
}

var _ Sink = (*recordingSink)(nil)

func newRecordingSink() *recordingSink {
	return &recordingSink{values: map[string]interface{}{}, calls: map[string]int{}}
}

func (r *recordingSink) Add(key string, value interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.values[key] = value
	r.calls[key]++
}

type staticCatalog struct {
	ids       []string
	requested string
}

func (s *staticCatalog) GetCustomRuleIDs(bundleRootPath string) []string {
	s.requested = bundleRootPath
	return s.ids
}

func result(pm string, findings ...models.PolicyMetadata) models.FormattedResult {
	return models.FormattedResult{
		PackageManager: pm,
		Result:         models.ScanResult{CloudConfigResults: findings},
	}
}

func TestAddIacAnalytics_EmptyResults(t *testing.T) {
	sink := newRecordingSink()
	perf := NewPerformanceMetrics()
	a := &Analytics{Sink: sink, Rules: &staticCatalog{}, Performance: perf}

	a.AddIacAnalytics(nil, 0)

	assert.Equal(t, 0, sink.values[KeyIssuesCount])
	assert.Equal(t, IssuesByType{}, sink.values[KeyType])
	assert.Equal(t, 0, sink.values[KeyTestCount])
	assert.Equal(t, 0.0, sink.values[KeyCustomRulesIssuesPercentage])
	assert.Equal(t, 0.0, sink.values[KeyCustomRulesPercentage])
	assert.Equal(t, []string{}, sink.values[KeyPackageManager])
	assert.Same(t, perf, sink.values[KeyMetrics])
}

func TestAddIacAnalytics_ReportsEveryKeyOnce(t *testing.T) {
	sink := newRecordingSink()
	a := &Analytics{Sink: sink, Rules: &staticCatalog{}, Performance: NewPerformanceMetrics()}

	a.AddIacAnalytics([]models.FormattedResult{result("k8s", models.PolicyMetadata{Severity: "low"})}, 3)

	keys := []string{
		KeyPackageManager, KeyIssuesCount, KeyIgnoredIssuesCount, KeyType, KeyMetrics, KeyTestCount,
		KeyCustomRulesIssuesCount, KeyCustomRulesIssuesPercentage, KeyCustomRulesCount,
		KeyCustomRulesPercentage, KeyCustomRulesCoverageCount,
	}
	require.Len(t, sink.calls, len(keys))
	for _, k := range keys {
		assert.Equal(t, 1, sink.calls[k], k)
	}
	assert.Equal(t, 3, sink.values[KeyIgnoredIssuesCount])
}

func TestAddIacAnalytics_CustomRuleBreakdown(t *testing.T) {
	sink := newRecordingSink()
	catalog := &staticCatalog{ids: []string{"R1", "R2"}}
	a := &Analytics{Sink: sink, Rules: catalog, BundlePath: ".iac-data", Performance: NewPerformanceMetrics()}

	results := []models.FormattedResult{
		result("terraform", models.PolicyMetadata{Severity: "high"}),
		result("terraform", models.PolicyMetadata{Severity: "high", IsGeneratedByCustomRule: true, PublicID: "R1"}),
	}
	a.AddIacAnalytics(results, 0)

	assert.Equal(t, ".iac-data", catalog.requested)
	assert.Equal(t, 2, sink.values[KeyIssuesCount])
	assert.Equal(t, IssuesByType{
		"terraform": {"high": 2},
		"custom":    {"high": 1},
	}, sink.values[KeyType])
	assert.Equal(t, 1, sink.values[KeyCustomRulesIssuesCount])
	assert.Equal(t, 1, sink.values[KeyCustomRulesCoverageCount])
	assert.Equal(t, 2, sink.values[KeyCustomRulesCount])
	assert.Equal(t, 50.0, sink.values[KeyCustomRulesIssuesPercentage])
	assert.Equal(t, 50.0, sink.values[KeyCustomRulesPercentage])
	assert.Equal(t, 2, sink.values[KeyTestCount])
}

func TestAddIacAnalytics_NoCustomFindings(t *testing.T) {
	sink := newRecordingSink()
	a := &Analytics{Sink: sink, Rules: &staticCatalog{ids: []string{"R1"}}, Performance: NewPerformanceMetrics()}

	a.AddIacAnalytics([]models.FormattedResult{
		result("k8s", models.PolicyMetadata{Severity: "medium"}, models.PolicyMetadata{Severity: "low"}),
	}, 0)

	byType := sink.values[KeyType].(IssuesByType)
	_, hasCustom := byType[CustomIssuesKey]
	assert.False(t, hasCustom)
	assert.Equal(t, 0, sink.values[KeyCustomRulesIssuesCount])
	assert.Equal(t, 0.0, sink.values[KeyCustomRulesPercentage])
}

func TestAddIacAnalytics_FindingIDsOutsideCatalogStillCount(t *testing.T) {
	sink := newRecordingSink()
	a := &Analytics{Sink: sink, Rules: &staticCatalog{}, Performance: NewPerformanceMetrics()}

	a.AddIacAnalytics([]models.FormattedResult{
		result("cloudformation",
			models.PolicyMetadata{Severity: "critical", IsGeneratedByCustomRule: true, PublicID: "UNKNOWN-1"},
			models.PolicyMetadata{Severity: "critical", IsGeneratedByCustomRule: true, PublicID: "UNKNOWN-1"},
		),
	}, 0)

	assert.Equal(t, 1, sink.values[KeyCustomRulesCoverageCount])
	assert.Equal(t, 0, sink.values[KeyCustomRulesCount])
	assert.Equal(t, 0.0, sink.values[KeyCustomRulesPercentage])
	assert.Equal(t, 100.0, sink.values[KeyCustomRulesIssuesPercentage])
}

func TestAddIacAnalytics_DeduplicatesPackageManagers(t *testing.T) {
	sink := newRecordingSink()
	a := &Analytics{Sink: sink, Rules: &staticCatalog{}, Performance: NewPerformanceMetrics()}

	a.AddIacAnalytics([]models.FormattedResult{result("terraform"), result("terraform"), result("k8s")}, 0)

	assert.ElementsMatch(t, []string{"terraform", "k8s"}, sink.values[KeyPackageManager])
	assert.Equal(t, 3, sink.values[KeyTestCount])
	assert.Equal(t, 0, sink.values[KeyIssuesCount])
}

func TestAddIacAnalytics_MetricsReflectLaterWrites(t *testing.T) {
	sink := newRecordingSink()
	perf := NewPerformanceMetrics()
	a := &Analytics{Sink: sink, Rules: &staticCatalog{}, Performance: perf}

	a.AddIacAnalytics(nil, 0)
	perf.Set(Total, 1500*time.Millisecond)

	reported := sink.values[KeyMetrics].(*PerformanceMetrics)
	v, ok := reported.Get(Total)
	require.True(t, ok)
	assert.Equal(t, 1500.0, v)
}

func TestPercentage(t *testing.T) {
	tests := []struct {
		num, den int
		expected float64
	}{
		{0, 0, 0},
		{5, 0, 0},
		{1, 2, 50},
		{2, 2, 100},
		{0, 7, 0},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.expected, Percentage(tc.num, tc.den))
	}
	assert.InDelta(t, 33.333, Percentage(1, 3), 0.001)
}

func TestIssuesByType(t *testing.T) {
	issues := IssuesByType{}
	assert.Equal(t, 0, issues.Count("terraform", "high"))

	issues.Increment("terraform", "high")
	issues.Increment("terraform", "high")
	issues.Increment("terraform", "low")

	assert.Equal(t, 2, issues.Count("terraform", "high"))
	assert.Equal(t, 1, issues.Count("terraform", "low"))
	assert.Equal(t, 0, issues.Count("k8s", "low"))
	assert.Len(t, issues, 1)
}

func TestPerformanceMetrics_JSON(t *testing.T) {
	perf := NewPerformanceMetrics()
	perf.Set(FileParsing, 250*time.Millisecond)
	perf.Set(PerformanceKey("not-a-stage"), time.Second)

	data, err := json.Marshal(perf)
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &decoded))
	require.Len(t, decoded, len(PerformanceKeys))
	for _, key := range PerformanceKeys {
		assert.Contains(t, decoded, string(key))
	}
	assert.Equal(t, 250.0, decoded[string(FileParsing)])
	assert.Nil(t, decoded[string(Total)])
}

func TestPerformanceMetrics_Track(t *testing.T) {
	perf := NewPerformanceMetrics()
	_, ok := perf.Get(CacheCleanup)
	assert.False(t, ok)

	perf.Track(CacheCleanup, time.Now().Add(-10*time.Millisecond))

	v, ok := perf.Get(CacheCleanup)
	require.True(t, ok)
	assert.GreaterOrEqual(t, v, 10.0)
}

func TestPerformanceMetrics_MarshalWhileRecording(t *testing.T) {
	perf := NewPerformanceMetrics()

	var wg sync.WaitGroup
	for _, key := range PerformanceKeys {
		wg.Add(1)
		go func(key PerformanceKey) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				perf.Set(key, time.Duration(i)*time.Millisecond)
			}
		}(key)
	}
	for i := 0; i < 100; i++ {
		_, err := json.Marshal(perf)
		require.NoError(t, err)
	}
	wg.Wait()

	data, err := json.Marshal(map[string]interface{}{KeyMetrics: perf})
	require.NoError(t, err)
	var decoded map[string]map[string]float64
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, 99.0, decoded[KeyMetrics][string(Total)])
}
