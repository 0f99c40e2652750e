package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/lockwhz/iac-analytics-service/internal/analytics"
	"github.com/lockwhz/iac-analytics-service/internal/logger"
	"github.com/lockwhz/iac-analytics-service/internal/scan"
	"github.com/lockwhz/iac-analytics-service/internal/telemetry"
	"github.com/lockwhz/iac-analytics-service/models"
)

// BundleInstaller installs and removes the local custom rule bundle.
type BundleInstaller interface {
	Fetch(ctx context.Context, repoURL, dir string) error
	Remove(dir string) error
}

// Pipeline runs one IaC scan invocation and reports its analytics.
type Pipeline struct {
	Scanner       scan.Scanner
	Rules         analytics.RuleCatalog
	Bundle        BundleInstaller // nil disables fetching and cleanup
	BundleRepo    string
	BundleDir     string
	CleanupBundle bool
	Sinks         []telemetry.Sink      // receive values as they are added
	Publishers    []telemetry.Publisher // receive the flushed event

	bundleMu    sync.Mutex
	bundleUsers int // jobs currently reading BundleDir
}

// ProcessJob scans the job target, applies org settings, reports analytics
// and flushes them. Publisher failures are logged, not returned.
func (p *Pipeline) ProcessJob(ctx context.Context, job *models.IacJob) (telemetry.Event, error) {
	defer logger.TraceAuto()()
	start := time.Now()

	if _, err := uuid.Parse(job.ScanID); err != nil {
		return telemetry.Event{}, fmt.Errorf("ProcessService: invalid scan id %q: %w", job.ScanID, err)
	}

	perf := analytics.NewPerformanceMetrics()
	buffer := telemetry.NewBuffer(job.ScanID, p.Publishers...)

	releaseBundle := p.acquireBundle(ctx, job.ScanID, perf)

	results, err := p.Scanner.Run(ctx, job.TargetPath, perf)
	if err != nil {
		releaseBundle()
		return telemetry.Event{}, fmt.Errorf("ProcessService: scan %s: %w", job.TargetPath, err)
	}
	logger.Log.Debugf("ProcessService: %d results for job %s", len(results), job.ScanID)

	orgStart := time.Now()
	ignoredIDs := job.IgnoredRuleIDs
	overrides := job.SeverityOverrides
	perf.Track(analytics.OrgSettings, orgStart)

	sevStart := time.Now()
	changed := scan.ApplySeverityOverrides(results, overrides)
	perf.Track(analytics.CustomSeverities, sevStart)
	if changed > 0 {
		logger.Log.Debugf("ProcessService: %d severities overridden for job %s", changed, job.ScanID)
	}

	fmtStart := time.Now()
	filtered, ignoredCount := scan.FilterIgnored(results, ignoredIDs)
	perf.Track(analytics.ResultFormatting, fmtStart)
	logger.Log.Debugf("ProcessService: findings per rule for job %s: %v", job.ScanID, scan.CountByRule(filtered))

	usageStart := time.Now()
	a := &analytics.Analytics{
		Sink:        telemetry.Tee(append([]telemetry.Sink{buffer}, p.Sinks...)...),
		Rules:       p.Rules,
		BundlePath:  p.BundleDir,
		Performance: perf,
	}
	a.AddIacAnalytics(filtered, ignoredCount)
	perf.Track(analytics.UsageTracking, usageStart)

	releaseBundle()

	perf.Track(analytics.Total, start)

	event, err := buffer.Flush(ctx)
	if err != nil {
		logger.Log.Errorf("ProcessService: publishing analytics for job %s: %v", job.ScanID, err)
	}

	logger.Log.Debugf("ProcessService: job %s finished in %d ms", job.ScanID, time.Since(start).Milliseconds())
	return event, nil
}

// acquireBundle installs the rule bundle for the job and returns the func that
// releases it. Overlapping jobs share one install: only a job that finds no
// other user fetches, and only the last one out cleans up, so BundleDir never
// changes while a job may be reading its catalog.
func (p *Pipeline) acquireBundle(ctx context.Context, scanID string, perf *analytics.PerformanceMetrics) func() {
	if p.Bundle == nil {
		return func() {}
	}

	p.bundleMu.Lock()
	if p.bundleUsers == 0 {
		cacheStart := time.Now()
		err := p.Bundle.Fetch(ctx, p.BundleRepo, p.BundleDir)
		perf.Track(analytics.InitLocalCache, cacheStart)
		if err != nil {
			// Without a bundle there are simply no custom rules to report.
			logger.Log.Warnf("ProcessService: bundle fetch failed for job %s: %v", scanID, err)
		}
	} else {
		logger.Log.Debugf("ProcessService: job %s reuses bundle in %s", scanID, p.BundleDir)
	}
	p.bundleUsers++
	p.bundleMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { p.releaseBundle(perf) })
	}
}

func (p *Pipeline) releaseBundle(perf *analytics.PerformanceMetrics) {
	p.bundleMu.Lock()
	defer p.bundleMu.Unlock()

	p.bundleUsers--
	if p.bundleUsers > 0 || !p.CleanupBundle {
		return
	}
	cleanupStart := time.Now()
	if err := p.Bundle.Remove(p.BundleDir); err != nil {
		logger.Log.Warnf("ProcessService: %v", err)
	}
	perf.Track(analytics.CacheCleanup, cleanupStart)
}
