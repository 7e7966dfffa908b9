// Package scheduler
package scheduler

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	businessflow "github.com/amane-dev/kakaku-tracker/business_flow"
	"github.com/amane-dev/kakaku-tracker/config"
)

// MonitoringScheduler periodically runs keyword discovery and re-checks
// active products so their price history keeps accumulating without any
// external trigger.
type MonitoringScheduler struct {
	ingestFlow businessflow.IngestFlow
	changeFlow businessflow.ChangeDetectionFlow
	trackerCfg config.TrackerConfig
	logger     *log.Logger
	interval   time.Duration

	logFile *os.File
}

func NewMonitoringScheduler(
	ingestFlow businessflow.IngestFlow,
	changeFlow businessflow.ChangeDetectionFlow,
	trackerCfg config.TrackerConfig,
) *MonitoringScheduler {
	interval := trackerCfg.MonitoringInterval
	if interval <= 0 {
		interval = time.Hour
	}

	s := &MonitoringScheduler{
		ingestFlow: ingestFlow,
		changeFlow: changeFlow,
		trackerCfg: trackerCfg,
		interval:   interval,
	}

	// Initialize scheduler-specific logger (to stdout and persistent file)
	if err := s.initSchedulerLogger(); err != nil {
		// Fallback to default stdout logger if file logger init fails
		s.logger = log.Default()
		s.logger.Printf("scheduler: failed to initialize file logger: %v", err)
	}

	return s
}

// initSchedulerLogger configures a logger that writes to both stdout and a persistent file under data/ (or /data)
func (s *MonitoringScheduler) initSchedulerLogger() error {
	// Prefer relative data/ then fallback to /data for containerized environments
	candidates := []string{
		filepath.Join("data"),
		"/data",
	}
	for _, dir := range candidates {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			continue
		}
		logPath := filepath.Join(dir, "scheduler.log")
		f, err := os.OpenFile(logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			continue
		}
		s.logFile = f
		mw := io.MultiWriter(os.Stdout, f)
		s.logger = log.New(mw, "scheduler ", log.LstdFlags|log.Lmicroseconds|log.LUTC)
		return nil
	}
	return fmt.Errorf("could not create scheduler log file in any candidate directory")
}

// Start launches the scheduler loop in a background goroutine and returns a stop function
func (s *MonitoringScheduler) Start(parent context.Context) func() {
	ctx, cancel := context.WithCancel(parent)

	go func() {
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		s.runOnce(ctx)

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.runOnce(ctx)
			}
		}
	}()

	return cancel
}

func (s *MonitoringScheduler) runOnce(ctx context.Context) {
	keywords := s.trackerCfg.MonitoringKeywords
	if len(keywords) > 0 {
		s.runDiscovery(ctx, keywords)
	}

	result, err := s.ingestFlow.MonitorActiveProducts(ctx, s.trackerCfg.MonitoringBatchSize)
	if err != nil {
		s.logger.Printf("scheduler: monitoring pass failed: %v", err)
		return
	}
	s.logger.Printf("scheduler: monitoring pass done session=%s found=%d added=%d skipped=%d",
		result.SessionID, result.ProductsFound, result.ProductsAdded, result.ListingsSkipped)
}

// runDiscovery fans keyword discovery out over a bounded number of workers
func (s *MonitoringScheduler) runDiscovery(ctx context.Context, keywords []string) {
	concurrency := s.trackerCfg.SchedulerConcurrency
	if concurrency < 1 {
		concurrency = 1
	}

	sem := make(chan struct{}, concurrency)
	var wg sync.WaitGroup
	for _, keyword := range keywords {
		kw := keyword
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()

			result, err := s.ingestFlow.DiscoverKeyword(ctx, kw)
			if err != nil {
				s.logger.Printf("scheduler: discovery failed keyword=%q: %v", kw, err)
				return
			}
			s.logger.Printf("scheduler: discovery done keyword=%q session=%s found=%d added=%d skipped=%d",
				kw, result.SessionID, result.ProductsFound, result.ProductsAdded, result.ListingsSkipped)

			s.reportKeywordChanges(ctx, kw)
		}()
	}
	wg.Wait()
}

// reportKeywordChanges diffs the two latest captures of a keyword and logs
// what moved. Thin history is normal right after the first capture.
func (s *MonitoringScheduler) reportKeywordChanges(ctx context.Context, keyword string) {
	changes, err := s.changeFlow.GetKeywordChanges(ctx, keyword)
	if err != nil {
		s.logger.Printf("scheduler: keyword diff failed keyword=%q: %v", keyword, err)
		return
	}
	if !changes.HasSufficientData {
		return
	}
	if !changes.ChangesDetected {
		s.logger.Printf("scheduler: keyword diff keyword=%q no changes", keyword)
		return
	}
	s.logger.Printf("scheduler: keyword diff keyword=%q new=%d removed=%d price=%d availability=%d rating=%d notable=%d",
		keyword, changes.NewProducts, changes.RemovedProducts, changes.PriceChanges,
		changes.AvailabilityChanges, changes.RatingChanges, len(changes.NotableChanges))
}

// Close releases the scheduler log file
func (s *MonitoringScheduler) Close() error {
	if s.logFile != nil {
		return s.logFile.Close()
	}
	return nil
}
