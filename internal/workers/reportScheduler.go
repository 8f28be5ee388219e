package workers

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sol1corejz/topgo-reports/internal/logger"
	"github.com/sol1corejz/topgo-reports/internal/metrics"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

const (
	TriggerDaily     = "daily"
	TriggerWeekly    = "weekly"
	TriggerApprovals = "approvals"
)

type Reporter interface {
	CourierPersonal(ctx context.Context) error
	CourierCurators(ctx context.Context) error
	RestaurantSettlement(ctx context.Context) error
}

type Approver interface {
	ProcessApprovals(ctx context.Context) error
}

type LocationPruner interface {
	PruneStale(ctx context.Context, maxAge time.Duration) (int, error)
}

type Schedule struct {
	Daily       string
	Weekly      string
	Approvals   string
	TickTimeout time.Duration
	LocationTTL time.Duration
	Location    *time.Location
}

// Scheduler owns the three report triggers. Each trigger has its own guard, so
// a tick that arrives while the previous run of the same trigger is still
// going is skipped; different triggers may run side by side.
type Scheduler struct {
	cron      *cron.Cron
	schedule  Schedule
	reports   Reporter
	approvals Approver
	locations LocationPruner

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewScheduler accepts a nil pruner when Redis is not configured.
func NewScheduler(schedule Schedule, reports Reporter, approvals Approver, locations LocationPruner) *Scheduler {
	loc := schedule.Location
	if loc == nil {
		loc = time.Local
	}

	cl := cronLogger{l: logger.Log.Sugar()}
	ctx, cancel := context.WithCancel(context.Background())

	return &Scheduler{
		cron: cron.New(
			cron.WithLocation(loc),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl)),
		),
		schedule:  schedule,
		reports:   reports,
		approvals: approvals,
		locations: locations,
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Start registers the triggers, runs the daily reports once right away and
// starts the schedule.
func (s *Scheduler) Start() error {
	daily := guard(TriggerDaily, s.runDaily)
	jobs := []struct {
		name string
		spec string
		job  cron.Job
	}{
		{TriggerDaily, s.schedule.Daily, daily},
		{TriggerWeekly, s.schedule.Weekly, guard(TriggerWeekly, s.runWeekly)},
		{TriggerApprovals, s.schedule.Approvals, guard(TriggerApprovals, s.runApprovals)},
	}

	for _, j := range jobs {
		if _, err := s.cron.AddJob(j.spec, j.job); err != nil {
			return fmt.Errorf("%s trigger %q: %w", j.name, j.spec, err)
		}
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		daily.Run()
	}()

	s.cron.Start()
	logger.Log.Info("Report scheduler started",
		zap.String("daily", s.schedule.Daily),
		zap.String("weekly", s.schedule.Weekly),
		zap.String("approvals", s.schedule.Approvals))
	return nil
}

// Stop cancels running trigger bodies and waits for them to return.
func (s *Scheduler) Stop() {
	s.cancel()
	<-s.cron.Stop().Done()
	s.wg.Wait()
	logger.Log.Info("Report scheduler stopped")
}

func (s *Scheduler) tick(trigger string, body func(ctx context.Context) error) {
	ctx := s.ctx
	if s.schedule.TickTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.schedule.TickTimeout)
		defer cancel()
	}

	start := time.Now()
	err := body(ctx)
	metrics.ObserveTrigger(trigger, time.Since(start), err)

	if err != nil {
		logger.Log.Error("Trigger finished with errors",
			zap.String("trigger", trigger),
			zap.Duration("took", time.Since(start)),
			zap.Error(err))
		return
	}
	logger.Log.Info("Trigger finished", zap.String("trigger", trigger), zap.Duration("took", time.Since(start)))
}

func (s *Scheduler) runDaily() {
	s.tick(TriggerDaily, func(ctx context.Context) error {
		// curators get their report even when some couriers failed
		return multierr.Append(
			s.reports.CourierPersonal(ctx),
			s.reports.CourierCurators(ctx),
		)
	})
}

func (s *Scheduler) runWeekly() {
	s.tick(TriggerWeekly, s.reports.RestaurantSettlement)
}

func (s *Scheduler) runApprovals() {
	s.tick(TriggerApprovals, func(ctx context.Context) error {
		err := s.approvals.ProcessApprovals(ctx)
		if err != nil {
			err = fmt.Errorf("process approvals: %w", err)
		}

		if s.locations != nil && s.schedule.LocationTTL > 0 {
			n, pruneErr := s.locations.PruneStale(ctx, s.schedule.LocationTTL)
			if pruneErr != nil {
				err = multierr.Append(err, fmt.Errorf("prune locations: %w", pruneErr))
			} else if n > 0 {
				logger.Log.Debug("Stale courier locations removed", zap.Int("count", n))
			}
		}
		return err
	})
}

// guard skips a run while the previous run of the same trigger is in progress.
func guard(trigger string, fn func()) cron.Job {
	var mu sync.Mutex
	return cron.FuncJob(func() {
		if !mu.TryLock() {
			metrics.RecordSkip(trigger)
			logger.Log.Warn("Previous run still in progress, tick skipped", zap.String("trigger", trigger))
			return
		}
		defer mu.Unlock()
		fn()
	})
}

type cronLogger struct {
	l *zap.SugaredLogger
}

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.l.Debugw(msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.l.Errorw(msg, append(keysAndValues, "error", err)...)
}
