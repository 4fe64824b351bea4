package maintenance

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	drepo "OddsPulse/internal/domain/repository"
	applogger "OddsPulse/pkg/logger"
)

// Scheduler runs periodic store maintenance.
type Scheduler struct {
	cron    *cron.Cron
	store   drepo.RecordStore
	metrics drepo.Metrics
	timeout time.Duration
	l       *applogger.Logger

	running atomic.Bool
}

func NewScheduler(store drepo.RecordStore, metrics drepo.Metrics, timeout time.Duration, l *applogger.Logger) *Scheduler {
	if l == nil {
		l = applogger.Nop()
	}
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	return &Scheduler{
		cron:    cron.New(cron.WithSeconds()),
		store:   store,
		metrics: metrics,
		timeout: timeout,
		l:       l,
	}
}

// Register adds the compaction job. compactCron has six fields, seconds first.
func (s *Scheduler) Register(compactCron string) error {
	if _, err := s.cron.AddFunc(compactCron, func() { _ = s.CompactNow(context.Background()) }); err != nil {
		return fmt.Errorf("register compact task: %w", err)
	}
	return nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
	s.l.Info("maintenance scheduler started", applogger.Int("jobs", len(s.cron.Entries())))
}

// Stop stops the scheduler and waits for a running job to finish or ctx to expire.
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.cron.Stop().Done()
	select {
	case <-done:
	case <-ctx.Done():
		s.l.Warn("maintenance scheduler stop timed out")
	}
	s.l.Info("maintenance scheduler stopped")
}

// CompactNow compacts the store. Overlapping runs are skipped.
func (s *Scheduler) CompactNow(ctx context.Context) error {
	if !s.running.CompareAndSwap(false, true) {
		s.l.Debug("compact already running, skipped")
		return nil
	}
	defer s.running.Store(false)

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	if err := s.store.Compact(ctx); err != nil {
		s.metrics.RecordError("compact")
		s.l.Error("store compact failed", applogger.Error(err))
		return fmt.Errorf("compact: %w", err)
	}
	s.metrics.RecordLatency("compact", time.Since(start).Seconds())
	s.l.Info("store compacted", applogger.Duration("duration_ms", time.Since(start)))
	return nil
}
