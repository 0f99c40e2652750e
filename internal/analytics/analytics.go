// Package analytics turns IaC scan results into usage metrics.
package analytics

import (
	"time"

	"github.com/lockwhz/iac-analytics-service/internal/logger"
	"github.com/lockwhz/iac-analytics-service/models"
)

// Metric keys reported by AddIacAnalytics.
const (
	KeyPackageManager              = "packageManager"
	KeyIssuesCount                 = "iac-issues-count"
	KeyIgnoredIssuesCount          = "iac-ignored-issues-count"
	KeyType                        = "iac-type"
	KeyMetrics                     = "iac-metrics"
	KeyTestCount                   = "iac-test-count"
	KeyCustomRulesIssuesCount      = "iac-custom-rules-issues-count"
	KeyCustomRulesIssuesPercentage = "iac-custom-rules-issues-percentage"
	KeyCustomRulesCount            = "iac-custom-rules-count"
	KeyCustomRulesPercentage       = "iac-custom-rules-percentage"
	KeyCustomRulesCoverageCount    = "iac-custom-rules-coverage-count"
)

// Sink receives one value per metric key.
type Sink interface {
	Add(key string, value interface{})
}

// RuleCatalog lists the custom rules installed under a bundle directory.
type RuleCatalog interface {
	GetCustomRuleIDs(bundleRootPath string) []string
}

// Analytics reports the usage metrics of one scan to Sink.
type Analytics struct {
	Sink        Sink
	Rules       RuleCatalog
	BundlePath  string
	Performance *PerformanceMetrics
}

// AddIacAnalytics reports issue counts, breakdowns and custom rule usage for
// results. ignoredIssuesCount is passed through as reported by the caller.
func (a *Analytics) AddIacAnalytics(results []models.FormattedResult, ignoredIssuesCount int) {
	defer logger.Trace("AddIacAnalytics", time.Now())

	var customRules []string
	if a.Rules != nil {
		customRules = a.Rules.GetCustomRuleIDs(a.BundlePath)
	}
	customRulesCount := len(customRules)

	totalIssuesCount := 0
	issuesFromCustomRulesCount := 0
	issuesByType := IssuesByType{}
	customRuleIDsSeen := make(map[string]struct{})
	var packageManagers []string

	for _, res := range results {
		findings := res.Result.CloudConfigResults
		totalIssuesCount += len(findings)
		packageManagers = append(packageManagers, res.PackageManager)

		for _, policy := range findings {
			issuesByType.Increment(res.PackageManager, policy.Severity)

			if policy.IsGeneratedByCustomRule {
				issuesFromCustomRulesCount++
				customRuleIDsSeen[policy.PublicID] = struct{}{}
				issuesByType.Increment(CustomIssuesKey, policy.Severity)
			}
		}
	}

	uniqueCustomRulesCount := len(customRuleIDsSeen)

	logger.Log.Debugf("analytics: %d results, %d issues, %d from custom rules, %d custom rules installed",
		len(results), totalIssuesCount, issuesFromCustomRulesCount, customRulesCount)

	a.Sink.Add(KeyPackageManager, unique(packageManagers))
	a.Sink.Add(KeyIssuesCount, totalIssuesCount)
	a.Sink.Add(KeyIgnoredIssuesCount, ignoredIssuesCount)
	a.Sink.Add(KeyType, issuesByType)
	a.Sink.Add(KeyMetrics, a.Performance)
	a.Sink.Add(KeyTestCount, len(results))
	a.Sink.Add(KeyCustomRulesIssuesCount, issuesFromCustomRulesCount)
	a.Sink.Add(KeyCustomRulesIssuesPercentage, Percentage(issuesFromCustomRulesCount, totalIssuesCount))
	a.Sink.Add(KeyCustomRulesCount, customRulesCount)
	a.Sink.Add(KeyCustomRulesPercentage, Percentage(uniqueCustomRulesCount, customRulesCount))
	a.Sink.Add(KeyCustomRulesCoverageCount, uniqueCustomRulesCount)
}

// unique keeps the first occurrence of each value.
func unique(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
