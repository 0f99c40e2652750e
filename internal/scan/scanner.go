package scan

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/lockwhz/iac-analytics-service/internal/analytics"
	"github.com/lockwhz/iac-analytics-service/models"
)

// Scanner produces the formatted results for a target, recording the stages
// it runs into perf.
type Scanner interface {
	Run(ctx context.Context, targetPath string, perf *analytics.PerformanceMetrics) ([]models.FormattedResult, error)
}

// FileScanner reads results an engine already wrote; targetPath is the report.
type FileScanner struct{}

var _ Scanner = FileScanner{}

func (FileScanner) Run(ctx context.Context, targetPath string, perf *analytics.PerformanceMetrics) ([]models.FormattedResult, error) {
	loadStart := time.Now()
	data, err := os.ReadFile(targetPath)
	perf.Track(analytics.FileLoading, loadStart)
	if err != nil {
		return nil, fmt.Errorf("read results %s: %w", targetPath, err)
	}

	parseStart := time.Now()
	defer perf.Track(analytics.FileParsing, parseStart)
	return ParseResults(data)
}

// ParseResults accepts a JSON array of results or a single result object.
func ParseResults(data []byte) ([]models.FormattedResult, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return []models.FormattedResult{}, nil
	}

	if data[0] == '{' {
		var single models.FormattedResult
		if err := json.Unmarshal(data, &single); err != nil {
			return nil, fmt.Errorf("decode result: %w", err)
		}
		return []models.FormattedResult{single}, nil
	}

	var results []models.FormattedResult
	if err := json.Unmarshal(data, &results); err != nil {
		return nil, fmt.Errorf("decode results: %w", err)
	}
	if results == nil {
		results = []models.FormattedResult{}
	}
	return results, nil
}
