package scheduler

import (
	"context"
	"fmt"
	"iotd/internal/archive"
	"iotd/internal/monitoring"
	"iotd/internal/providers"
	"iotd/internal/scheduler/interfaces"
	"iotd/internal/structures"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/atomic"
)

const (
	JobTimeoutCheck   = "timeout_check"
	JobAlertCheck     = "alert_check"
	JobArchive        = "archive"
	JobArchiveCleanup = "archive_cleanup"
)

const stopTimeout = 30 * time.Second

type job struct {
	spec     string
	run      func(ctx context.Context)
	inFlight *atomic.Int32
}

// Scheduler drives the periodic sweeps and archive jobs. Runs of the same job
// may overlap; an overlapping start is logged, not prevented.
type Scheduler struct {
	config   *structures.Config
	logger   providers.Logger
	metrics  providers.MetricsProviderInterface
	tracker  monitoring.TrackerInterface
	pipeline archive.PipelineInterface
	cold     *archive.ColdStore
	cron     *cron.Cron
	jobs     map[string]*job
	ctx      context.Context
	cancel   context.CancelFunc
}

func NewScheduler(config *structures.Config, logger providers.Logger, metrics providers.MetricsProviderInterface, tracker monitoring.TrackerInterface, pipeline archive.PipelineInterface, cold *archive.ColdStore) interfaces.SchedulerInterface {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		config:   config,
		logger:   logger,
		metrics:  metrics,
		tracker:  tracker,
		pipeline: pipeline,
		cold:     cold,
		ctx:      ctx,
		cancel:   cancel,
	}
	s.jobs = map[string]*job{
		JobTimeoutCheck:   {spec: every(config.Monitoring.TimeoutCheckInterval), run: s.checkTimeouts},
		JobAlertCheck:     {spec: every(config.Monitoring.AlertCheckInterval), run: s.checkAlerts},
		JobArchive:        {spec: config.Archive.Schedule, run: s.archive},
		JobArchiveCleanup: {spec: config.Archive.CleanupSchedule, run: s.cleanup},
	}
	for _, j := range s.jobs {
		j.inFlight = atomic.NewInt32(0)
	}
	return s
}

func every(d time.Duration) string {
	return "@every " + d.String()
}

func (s *Scheduler) Init() error {
	log := cronLogger{logger: s.logger}
	s.cron = cron.New(
		cron.WithSeconds(),
		cron.WithLocation(time.UTC),
		cron.WithLogger(log),
		cron.WithChain(cron.Recover(log)),
	)

	for _, name := range []string{JobTimeoutCheck, JobAlertCheck, JobArchive, JobArchiveCleanup} {
		j := s.jobs[name]
		name := name
		if _, err := s.cron.AddFunc(j.spec, func() { s.execute(name, j) }); err != nil {
			return fmt.Errorf("schedule %s %q: %w", name, j.spec, err)
		}
		s.logger.Infof(providers.TypeApp, "Scheduled job %s (%s)", name, j.spec)
	}

	s.cron.Start()
	return nil
}

func (s *Scheduler) execute(name string, j *job) {
	if n := j.inFlight.Inc(); n > 1 {
		s.logger.Warnf(providers.TypeApp, "Job %s started while %d previous run(s) still executing", name, n-1)
	}
	defer j.inFlight.Dec()

	start := time.Now()
	j.run(s.ctx)
	s.metrics.ObserveJobDuration(name, time.Since(start))
}

// Trigger runs the job once in the background.
func (s *Scheduler) Trigger(name string) error {
	j, ok := s.jobs[name]
	if !ok {
		return fmt.Errorf("unknown job %q", name)
	}
	go s.execute(name, j)
	return nil
}

func (s *Scheduler) Stop() {
	if s.cron != nil {
		select {
		case <-s.cron.Stop().Done():
		case <-time.After(stopTimeout):
			s.logger.Warnf(providers.TypeApp, "Scheduled jobs still running after %s", stopTimeout)
		}
	}
	s.cancel()
}

// Restore reloads the cold archive index when a cold store is configured.
func (s *Scheduler) Restore() error {
	if s.cold == nil {
		return nil
	}
	if err := s.cold.RestoreIndex(); err != nil {
		return err
	}
	s.logger.Infof(providers.TypeArchive, "Cold archive index restored, %d device files", s.cold.Files())
	return nil
}

func (s *Scheduler) checkTimeouts(ctx context.Context) {
	n, err := s.tracker.CheckTimeouts(ctx)
	if err != nil {
		s.logger.Errorf(providers.TypeMonitor, "Timeout check failed: %s", err)
		return
	}
	if n > 0 {
		s.logger.Infof(providers.TypeMonitor, "Timeout check marked %d device(s) offline", n)
	}
}

func (s *Scheduler) checkAlerts(ctx context.Context) {
	if _, err := s.tracker.CheckAlerts(ctx); err != nil {
		s.logger.Errorf(providers.TypeMonitor, "Alert check failed: %s", err)
	}
}

func (s *Scheduler) archive(ctx context.Context) {
	s.pipeline.ScheduledArchive(ctx)
}

func (s *Scheduler) cleanup(ctx context.Context) {
	if _, err := s.pipeline.CleanupOldArchives(ctx); err != nil {
		s.logger.Errorf(providers.TypeArchive, "Archive cleanup failed: %s", err)
	}
}
