// Helpers for working with formatted results at application layer.
package scan

import "github.com/lockwhz/iac-analytics-service/models"

// CountByRule maps publicId to the number of findings it produced.
func CountByRule(results []models.FormattedResult) map[string]int {
	tally := make(map[string]int)
	for _, res := range results {
		for _, f := range res.Result.CloudConfigResults {
			tally[f.PublicID]++
		}
	}
	return tally
}

func knownSeverity(s string) bool {
	switch s {
	case models.SeverityLow, models.SeverityMedium, models.SeverityHigh, models.SeverityCritical:
		return true
	}
	return false
}

// ApplySeverityOverrides rewrites the severity of findings whose publicId has
// an organisation override, in place. Overrides to an unknown severity are
// ignored. It returns how many findings changed.
func ApplySeverityOverrides(results []models.FormattedResult, overrides map[string]string) int {
	if len(overrides) == 0 {
		return 0
	}
	changed := 0
	for i := range results {
		findings := results[i].Result.CloudConfigResults
		for j := range findings {
			sev, ok := overrides[findings[j].PublicID]
			if !ok || !knownSeverity(sev) || sev == findings[j].Severity {
				continue
			}
			findings[j].Severity = sev
			changed++
		}
	}
	return changed
}

// FilterIgnored returns a copy of results without findings whose publicId is
// ignored, and the number of findings removed. Results left without findings
// are kept since they were still tested.
func FilterIgnored(results []models.FormattedResult, ignoredIDs []string) ([]models.FormattedResult, int) {
	ignored := make(map[string]struct{}, len(ignoredIDs))
	for _, id := range ignoredIDs {
		ignored[id] = struct{}{}
	}

	out := make([]models.FormattedResult, 0, len(results))
	count := 0
	for _, res := range results {
		kept := make([]models.PolicyMetadata, 0, len(res.Result.CloudConfigResults))
		for _, f := range res.Result.CloudConfigResults {
			if _, ok := ignored[f.PublicID]; ok {
				count++
				continue
			}
			kept = append(kept, f)
		}
		res.Result.CloudConfigResults = kept
		out = append(out, res)
	}
	return out, count
}
