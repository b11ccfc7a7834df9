package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/sidang-api/pkg/jobs"
)

type completionStore interface {
	MarkCompleted(ctx context.Context, now time.Time) (int64, error)
}

// CompletionService promotes scheduled exams whose window has passed to
// SELESAI. Reads already derive the completed status; the sweep makes the
// stored rows catch up so filters and exports see the same state.
type CompletionService struct {
	exams    completionStore
	metrics  *MetricsService
	interval time.Duration
	queue    *jobs.Queue
	logger   *zap.Logger
}

// NewCompletionService instantiates CompletionService. interval controls how
// often the sweep runs.
func NewCompletionService(exams completionStore, metrics *MetricsService, interval time.Duration, logger *zap.Logger) *CompletionService {
	if interval <= 0 {
		interval = 15 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &CompletionService{
		exams:    exams,
		metrics:  metrics,
		interval: interval,
		logger:   logger,
	}
	s.queue = jobs.NewQueue("completion-sweep", s.handleSweep, jobs.QueueConfig{
		Workers:    1,
		MaxRetries: 2,
		RetryDelay: 30 * time.Second,
		Logger:     logger,
	})
	return s
}

// Start launches the worker and the periodic ticker. The first sweep is
// enqueued immediately so a restart does not wait a full interval.
func (s *CompletionService) Start(ctx context.Context) {
	s.queue.Start(ctx)
	s.enqueueSweep()

	go func() {
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.enqueueSweep()
			}
		}
	}()
}

// Stop drains the worker.
func (s *CompletionService) Stop() {
	s.queue.Stop()
}

// SweepNow runs one sweep synchronously and returns the number of exams
// promoted. Exposed for the admin maintenance endpoint.
func (s *CompletionService) SweepNow(ctx context.Context) (int64, error) {
	promoted, err := s.exams.MarkCompleted(ctx, time.Now().UTC())
	if err != nil {
		return 0, err
	}
	s.metrics.RecordSweep(promoted)
	if promoted > 0 {
		s.logger.Info("completion sweep promoted exams", zap.Int64("count", promoted))
	}
	return promoted, nil
}

func (s *CompletionService) enqueueSweep() {
	job := jobs.Job{ID: uuid.NewString(), Type: "sweep"}
	if err := s.queue.Enqueue(job); err != nil {
		s.logger.Warn("failed to enqueue completion sweep", zap.Error(err))
	}
}

func (s *CompletionService) handleSweep(ctx context.Context, _ jobs.Job) error {
	_, err := s.SweepNow(ctx)
	return err
}
