package analytics

// CustomIssuesKey groups findings produced by custom rules.
const CustomIssuesKey = "custom"

// IssuesByType counts findings per package manager and severity.
type IssuesByType map[string]map[string]int

// Increment adds one finding, creating the group on first use.
func (i IssuesByType) Increment(group, severity string) {
	bySeverity, ok := i[group]
	if !ok {
		bySeverity = make(map[string]int)
		i[group] = bySeverity
	}
	bySeverity[severity]++
}

// Count returns zero for groups or severities never seen.
func (i IssuesByType) Count(group, severity string) int {
	return i[group][severity]
}

// Percentage returns numerator/denominator*100, or 0 when denominator is 0.
func Percentage(numerator, denominator int) float64 {
	if denominator == 0 {
		return 0
	}
	return float64(numerator) / float64(denominator) * 100
}
