package services

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type countingExporter struct {
	calls atomic.Int32
	err   error
}

func (e *countingExporter) ExportTrailing(context.Context) error {
	e.calls.Add(1)
	return e.err
}

func TestDefaultExportSchedulerConfig(t *testing.T) {
	config := DefaultExportSchedulerConfig()

	if config.Interval != time.Hour {
		t.Errorf("expected Interval 1h, got %v", config.Interval)
	}
	if !config.RunOnStart {
		t.Error("expected RunOnStart true")
	}
	if config.Timeout != 2*time.Minute {
		t.Errorf("expected Timeout 2m, got %v", config.Timeout)
	}
}

func TestExportScheduler_Lifecycle(t *testing.T) {
	exp := &countingExporter{}
	s := NewExportScheduler(exp, ExportSchedulerConfig{Interval: 10 * time.Millisecond, RunOnStart: true})

	if s.IsRunning() {
		t.Fatal("scheduler should not be running initially")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := s.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := s.Start(ctx); err == nil {
		t.Error("expected error when starting already running scheduler")
	}

	deadline := time.Now().Add(2 * time.Second)
	for exp.calls.Load() < 3 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if exp.calls.Load() < 3 {
		t.Fatalf("expected at least 3 exports, got %d", exp.calls.Load())
	}

	stopCtx, stopCancel := context.WithTimeout(context.Background(), time.Second)
	defer stopCancel()
	if err := s.Stop(stopCtx); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if s.IsRunning() {
		t.Error("scheduler should not be running after Stop")
	}

	runs, lastRun, lastErr := s.Stats()
	if runs < 3 || lastRun.IsZero() || lastErr != nil {
		t.Errorf("Stats() = %d, %v, %v", runs, lastRun, lastErr)
	}
}

func TestExportScheduler_RecordsFailure(t *testing.T) {
	exp := &countingExporter{err: errors.New("sheets quota")}
	s := NewExportScheduler(exp, ExportSchedulerConfig{Interval: time.Hour, RunOnStart: true})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := s.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for exp.calls.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	if err := s.Stop(context.Background()); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if _, _, lastErr := s.Stats(); lastErr == nil {
		t.Error("expected last error to be recorded")
	}
}

func TestExportScheduler_StopNotRunning(t *testing.T) {
	s := NewExportScheduler(&countingExporter{}, DefaultExportSchedulerConfig())
	if err := s.Stop(context.Background()); err != nil {
		t.Errorf("Stop() on idle scheduler error = %v", err)
	}
}

func TestExportScheduler_StartWithoutExporter(t *testing.T) {
	s := NewExportScheduler(nil, DefaultExportSchedulerConfig())
	if err := s.Start(context.Background()); err == nil {
		t.Error("expected error when starting without exporter")
	}
}

func TestExportScheduler_ConcurrentStop(t *testing.T) {
	s := NewExportScheduler(&countingExporter{}, ExportSchedulerConfig{Interval: time.Hour})
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ctx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			errs <- s.Stop(ctx)
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Errorf("Stop() error = %v", err)
		}
	}
	if s.IsRunning() {
		t.Error("scheduler should not be running after Stop")
	}
}
