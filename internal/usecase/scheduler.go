package usecase

import (
	"context"
	"time"

	"MemeFarm/internal/ports"
)

// Scheduler wires the ticker driver with a full pipeline pass.
type Scheduler struct {
	driver   ports.Scheduler
	pipeline *Pipeline
	params   RunParams
	onReport func([]Report, error)
}

// NewScheduler returns a helper to start/stop recurring passes.
func NewScheduler(driver ports.Scheduler, pipeline *Pipeline, params RunParams, onReport func([]Report, error)) *Scheduler {
	return &Scheduler{driver: driver, pipeline: pipeline, params: params, onReport: onReport}
}

// Start registers the pipeline with the provided scheduler.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.driver == nil || s.pipeline == nil {
		return nil
	}

	job := func(time.Time) {
		reports, err := s.pipeline.RunAll(ctx, s.params)
		if s.onReport != nil {
			s.onReport(reports, err)
		}
	}

	return s.driver.Start(ctx, job)
}

// Stop gracefully tears down the underlying scheduler.
func (s *Scheduler) Stop(ctx context.Context) error {
	if s.driver == nil {
		return nil
	}

	return s.driver.Stop(ctx)
}
