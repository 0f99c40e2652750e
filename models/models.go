package models

import "time"

// IacJob is the message read from the jobs queue.
type IacJob struct {
	ScanID            string            `json:"scan_id"`
	TargetPath        string            `json:"target_path"`
	IgnoredRuleIDs    []string          `json:"ignored_rule_ids"`
	SeverityOverrides map[string]string `json:"severity_overrides"` // publicId -> severity
	MessageCreatedAt  time.Time         `json:"message_created_at"`
}

// FormattedResult is the engine output for one scanned file.
type FormattedResult struct {
	Result         ScanResult `json:"result"`
	IsPrivate      bool       `json:"isPrivate"`
	PackageManager string     `json:"packageManager"`
	TargetFile     string     `json:"targetFile"`
	TargetFilePath string     `json:"targetFilePath,omitempty"`
}

type ScanResult struct {
	CloudConfigResults []PolicyMetadata `json:"cloudConfigResults"`
	ProjectType        string           `json:"projectType"`
}

// PolicyMetadata is a single finding produced by a rule.
type PolicyMetadata struct {
	ID                      string   `json:"id"`
	PublicID                string   `json:"publicId"`
	Title                   string   `json:"title"`
	Severity                string   `json:"severity"`
	IsGeneratedByCustomRule bool     `json:"isGeneratedByCustomRule"`
	MsgPath                 []string `json:"msg,omitempty"`
	LineNumber              int      `json:"lineNumber,omitempty"`
}

// Severities in ascending order.
const (
	SeverityLow      = "low"
	SeverityMedium   = "medium"
	SeverityHigh     = "high"
	SeverityCritical = "critical"
)
