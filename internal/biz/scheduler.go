package biz

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"

	"InstantMBTA/internal/model"
	apperrors "InstantMBTA/pkg/errors"
)

// Fetcher retrieves predictions for one tracked request. Implemented by the
// data layer; the call must honor the context deadline.
type Fetcher interface {
	Fetch(ctx context.Context, req model.PredictionRequest) ([]model.Prediction, error)
}

// Renderer consumes a finished view model. How it is drawn is outside the
// core's concern.
type Renderer interface {
	Render(vm *model.ViewModel) error
}

// maxConcurrentFetches bounds the per-cycle fan-out; every tracked request
// hits the same upstream, so wider fan-out only invites rate limiting.
const maxConcurrentFetches = 4

// cycleBudgetFraction keeps the per-cycle wall clock strictly below the
// refresh interval so a slow upstream cannot push cycles into each other.
const cycleBudgetFraction = 0.8

// Scheduler drives the periodic fetch→aggregate→publish cycle and owns
// shutdown. Per-request failures are isolated: one route failing renders as
// an empty group while the others proceed.
type Scheduler struct {
	aggregator Aggregator
	fetcher    Fetcher
	renderer   Renderer
	interval   time.Duration
	clock      Clock
	logger     *log.Helper

	// runMu serializes cycles; the budget keeps a cycle inside its
	// interval, and the mutex holds that guarantee even when it cannot.
	runMu         sync.Mutex
	lastPublished *model.ViewModel
}

// NewScheduler creates a scheduler publishing at the given interval.
func NewScheduler(aggregator Aggregator, fetcher Fetcher, renderer Renderer, interval time.Duration, clock Clock, logger log.Logger) *Scheduler {
	if clock == nil {
		clock = SystemClock()
	}
	return &Scheduler{
		aggregator: aggregator,
		fetcher:    fetcher,
		renderer:   renderer,
		interval:   interval,
		clock:      clock,
		logger:     log.NewHelper(logger),
	}
}

// cycleBudget is the wall-clock allowance for one cycle's fetches.
func (s *Scheduler) cycleBudget() time.Duration {
	return time.Duration(float64(s.interval) * cycleBudgetFraction)
}

// RunOnce executes exactly one cycle and returns. Used for validation and
// one-shot invocations.
func (s *Scheduler) RunOnce(ctx context.Context) error {
	return s.runCycle(ctx)
}

// Run executes an immediate cycle, then repeats at the configured interval
// until the context is cancelled. Cancellation aborts in-flight fetches and
// prevents a new cycle from starting.
func (s *Scheduler) Run(ctx context.Context) error {
	if err := s.runCycle(ctx); err != nil && ctx.Err() == nil {
		s.logger.Errorw("initial cycle failed", "error", err)
	}

	c := cron.New()
	_, err := c.AddFunc(fmt.Sprintf("@every %s", s.interval), func() {
		if ctx.Err() != nil {
			return
		}
		if err := s.runCycle(ctx); err != nil && ctx.Err() == nil {
			s.logger.Errorw("cycle failed", "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("failed to register refresh schedule: %w", err)
	}

	c.Start()
	s.logger.Infow("refresh scheduler started", "interval", s.interval.String())

	<-ctx.Done()
	stopped := c.Stop()
	<-stopped.Done()
	s.logger.Infow("refresh scheduler stopped")
	return ctx.Err()
}

// runCycle performs one fetch→aggregate→publish pass. Fetches for
// independent requests run concurrently, each under its own deadline derived
// from the cycle budget, and are all joined before aggregation so the
// aggregator never sees a partial fetch set.
func (s *Scheduler) runCycle(ctx context.Context) error {
	s.runMu.Lock()
	defer s.runMu.Unlock()

	requests := s.aggregator.Requests()
	results := make([][]model.Prediction, len(requests))
	budget := s.cycleBudget()

	// One deadline bounds the whole fan-out. With more requests than
	// concurrent fetch slots, a late-starting fetch gets only what is left
	// of the budget, so back-to-back waves cannot push the cycle past its
	// interval.
	cycleCtx, cycleCancel := context.WithTimeout(ctx, budget)
	defer cycleCancel()

	var g errgroup.Group
	g.SetLimit(maxConcurrentFetches)
	for i, req := range requests {
		i, req := i, req
		g.Go(func() error {
			fetchCtx, cancel := context.WithTimeout(cycleCtx, budget)
			defer cancel()

			preds, err := s.fetcher.Fetch(fetchCtx, req)
			if err != nil {
				// Failure isolation: the group renders empty, the
				// others proceed, and the next scheduled cycle is
				// the retry.
				s.logFetchFailure(req, err)
				return nil
			}
			results[i] = preds
			return nil
		})
	}
	_ = g.Wait()

	if ctx.Err() != nil {
		return ctx.Err()
	}

	vm := s.aggregator.Build(results, s.clock.Now())

	if s.lastPublished != nil && vm.Equal(s.lastPublished) {
		s.logger.Debugw("view model unchanged, skipping publish")
		return nil
	}
	if err := s.renderer.Render(vm); err != nil {
		return fmt.Errorf("failed to publish view model: %w", err)
	}
	s.lastPublished = vm
	return nil
}

func (s *Scheduler) logFetchFailure(req model.PredictionRequest, err error) {
	switch {
	case apperrors.IsCircuitOpen(err):
		s.logger.Warnw("fetch skipped, circuit open",
			"station", req.StationID, "route", req.RouteID, "direction", req.Direction.String())
	case apperrors.IsDecode(err):
		s.logger.Warnw("fetch returned malformed payload",
			"station", req.StationID, "route", req.RouteID, "error", err)
	default:
		s.logger.Warnw("fetch failed",
			"station", req.StationID, "route", req.RouteID, "direction", req.Direction.String(), "error", err)
	}
}
