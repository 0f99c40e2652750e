package services

import (
	"context"
	"sync"

	"github.com/lockwhz/iac-analytics-service/internal/logger"
	"github.com/lockwhz/iac-analytics-service/internal/telemetry"
	"github.com/lockwhz/iac-analytics-service/models"
)

// JobProcessor handles one job.
type JobProcessor interface {
	ProcessJob(ctx context.Context, job *models.IacJob) (telemetry.Event, error)
}

var _ JobProcessor = (*Pipeline)(nil)

// DefaultJobConsumer processes jobs with a fixed pool of workers.
type DefaultJobConsumer struct{}

// Start blocks until jobChan is closed and every worker is done.
func (c *DefaultJobConsumer) Start(ctx context.Context, jobChan <-chan *models.IacJob, processor JobProcessor, numWorkers int) {
	if numWorkers <= 0 {
		numWorkers = 1
	}
	var wg sync.WaitGroup
	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			for job := range jobChan {
				logger.Log.Debugf("[Consumer Worker %d] processing job: %s", workerID, job.ScanID)
				if _, err := processor.ProcessJob(ctx, job); err != nil {
					logger.Log.Errorf("[Consumer Worker %d] job %s failed: %v", workerID, job.ScanID, err)
				} else {
					logger.Log.Debugf("[Consumer Worker %d] job %s done", workerID, job.ScanID)
				}
			}
		}(i)
	}
	wg.Wait()
}
