package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// TrailingExporter exports the default trailing-year report.
type TrailingExporter interface {
	ExportTrailing(ctx context.Context) error
}

// ExportSchedulerConfig holds configuration for the export scheduler
type ExportSchedulerConfig struct {
	// Interval between exports (default: 1h)
	Interval time.Duration

	// RunOnStart exports once as soon as the scheduler starts (default: true)
	RunOnStart bool

	// Timeout bounds a single export run (default: 2m)
	Timeout time.Duration
}

// DefaultExportSchedulerConfig returns sensible defaults
func DefaultExportSchedulerConfig() ExportSchedulerConfig {
	return ExportSchedulerConfig{
		Interval:   time.Hour,
		RunOnStart: true,
		Timeout:    2 * time.Minute,
	}
}

// ExportScheduler periodically pushes a fresh report to the exporter so the
// destination stays current even when no explicit request arrives.
type ExportScheduler struct {
	exporter TrailingExporter
	config   ExportSchedulerConfig

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}

	lastRun   time.Time
	lastError error
	runs      int
}

func NewExportScheduler(exporter TrailingExporter, config ExportSchedulerConfig) *ExportScheduler {
	def := DefaultExportSchedulerConfig()
	if config.Interval <= 0 {
		config.Interval = def.Interval
	}
	if config.Timeout <= 0 {
		config.Timeout = def.Timeout
	}
	return &ExportScheduler{
		exporter: exporter,
		config:   config,
	}
}

// Start begins the export loop. Returns an error if already running.
func (s *ExportScheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("export scheduler is already running")
	}
	if s.exporter == nil {
		s.mu.Unlock()
		return fmt.Errorf("export scheduler has no exporter")
	}
	s.running = true
	stopCh, doneCh := make(chan struct{}), make(chan struct{})
	s.stopCh, s.doneCh = stopCh, doneCh
	s.mu.Unlock()

	go s.runLoop(ctx, stopCh, doneCh)

	slog.InfoContext(ctx, "Export scheduler started",
		"interval", s.config.Interval,
		"run_on_start", s.config.RunOnStart)

	return nil
}

// Stop signals the loop and waits for the current export to finish.
func (s *ExportScheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	stopCh, doneCh := s.stopCh, s.doneCh
	s.stopCh = nil
	s.mu.Unlock()

	// Only the first caller closes; later callers just wait.
	if stopCh != nil {
		close(stopCh)
	}

	select {
	case <-doneCh:
		slog.InfoContext(ctx, "Export scheduler stopped gracefully")
	case <-ctx.Done():
		slog.WarnContext(ctx, "Export scheduler stop timed out")
		return ctx.Err()
	}

	s.mu.Lock()
	s.running = false
	s.mu.Unlock()

	return nil
}

func (s *ExportScheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Stats returns the number of completed runs and the outcome of the last.
func (s *ExportScheduler) Stats() (runs int, lastRun time.Time, lastErr error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.runs, s.lastRun, s.lastError
}

func (s *ExportScheduler) runLoop(ctx context.Context, stopCh <-chan struct{}, doneCh chan<- struct{}) {
	defer close(doneCh)

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	if s.config.RunOnStart {
		s.runOnce(ctx)
	}

	for {
		select {
		case <-stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runOnce(ctx)
		}
	}
}

func (s *ExportScheduler) runOnce(ctx context.Context) {
	runCtx, cancel := context.WithTimeout(ctx, s.config.Timeout)
	defer cancel()

	start := time.Now()
	err := s.exporter.ExportTrailing(runCtx)

	s.mu.Lock()
	s.runs++
	s.lastRun = start
	s.lastError = err
	s.mu.Unlock()

	if err != nil {
		slog.ErrorContext(ctx, "Scheduled export failed", "error", err, "duration", time.Since(start))
		return
	}
	slog.InfoContext(ctx, "Scheduled export completed", "duration", time.Since(start))
}
