package scan

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"time"

	"github.com/lockwhz/iac-analytics-service/internal/analytics"
	"github.com/lockwhz/iac-analytics-service/internal/logger"
	"github.com/lockwhz/iac-analytics-service/models"
)

// EngineScanner runs the external policy engine and reads its JSON report.
type EngineScanner struct {
	EnginePath string
}

var _ Scanner = (*EngineScanner)(nil)

func (s *EngineScanner) Run(ctx context.Context, targetPath string, perf *analytics.PerformanceMetrics) ([]models.FormattedResult, error) {
	defer logger.Trace("EngineScanner.Run", time.Now())

	tempFile, err := os.CreateTemp("", "iac_report_*.json")
	if err != nil {
		return nil, fmt.Errorf("create temp report: %w", err)
	}
	reportPath := tempFile.Name()
	tempFile.Close()
	defer os.Remove(reportPath)

	scanStart := time.Now()
	cmd := exec.CommandContext(ctx, s.EnginePath,
		"--report-format=json",
		"--report-path="+reportPath,
		targetPath,
	)
	output, err := cmd.CombinedOutput()
	perf.Track(analytics.FileScanning, scanStart)
	if err != nil {
		// Exit code 1 means issues were found.
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) || exitErr.ExitCode() != 1 {
			return nil, fmt.Errorf("engine failed: %w, output: %s", err, string(output))
		}
	}

	return FileScanner{}.Run(ctx, reportPath, perf)
}
