package cron

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/bher20/fuelkl/internal/alerting"
	"github.com/bher20/fuelkl/internal/logger"
	"github.com/bher20/fuelkl/internal/metrics"
	"github.com/bher20/fuelkl/internal/prices"
	"github.com/bher20/fuelkl/internal/storage"
)

const (
	// JobName identifies the refresh in metrics and the scheduled_jobs table.
	JobName = "refresh_prices"
	// ScheduleSetting is the settings key that overrides the configured schedule.
	ScheduleSetting = "fetch_schedule"
	// DefaultSchedule refreshes every six hours.
	DefaultSchedule = "0 */6 * * *"

	lockKey      int64 = 7305
	defaultPoll        = 10 * time.Second
	fallbackWait       = 6 * time.Hour
)

// Fetcher runs a single price refresh. *prices.Updater satisfies it.
type Fetcher interface {
	Run(ctx context.Context) (prices.Snapshot, error)
}

// Locker guards a run across replicas. *storage.PostgresLocker satisfies it.
type Locker interface {
	AcquireAdvisoryLock(ctx context.Context, key int64) (bool, error)
	ReleaseAdvisoryLock(ctx context.Context, key int64) (bool, error)
}

// Notifier is told about failed runs. *alerting.Alerter satisfies it.
type Notifier interface {
	SendFetchAlert(ctx context.Context, alert alerting.FetchAlert) error
}

// Deps configures the worker. Store is required; Locker and Alerter are optional.
type Deps struct {
	Fetcher   Fetcher
	Store     storage.Storage
	Locker    Locker
	Alerter   Notifier
	Schedule  string
	SourceURL string
	// PollInterval controls how often the loop checks the schedule and the
	// settings override. Defaults to 10s.
	PollInterval time.Duration
}

// NextRun returns the next run time after last for a schedule given as an
// integer number of seconds or a standard five-field cron expression. An
// unparsable schedule falls back to six hours.
func NextRun(setting string, last time.Time) time.Time {
	if v, err := strconv.Atoi(setting); err == nil && v > 0 {
		return last.Add(time.Duration(v) * time.Second)
	}
	if sched, err := cron.ParseStandard(setting); err == nil {
		return sched.Next(last)
	}
	return last.Add(fallbackWait)
}

// ValidSchedule reports whether setting is accepted by NextRun without falling back.
func ValidSchedule(setting string) bool {
	if v, err := strconv.Atoi(setting); err == nil {
		return v > 0
	}
	_, err := cron.ParseStandard(setting)
	return err == nil
}

// Job executes refreshes and keeps the failure streak used for alerting.
type Job struct {
	deps Deps

	mu       sync.Mutex
	failures int
}

func NewJob(deps Deps) *Job {
	return &Job{deps: deps}
}

// Failures returns the number of consecutive failed runs.
func (j *Job) Failures() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.failures
}

// RunOnce performs one guarded refresh. It returns the refresh error, or nil
// when the run succeeded or was skipped because another replica holds the lock.
func (j *Job) RunOnce(ctx context.Context) error {
	log := logger.WithModule("cron")
	started := time.Now()

	if j.deps.Locker != nil {
		ok, err := j.deps.Locker.AcquireAdvisoryLock(ctx, lockKey)
		if err != nil {
			log.Errorf("acquire advisory lock failed: %v", err)
			metrics.UpdateJobMetrics(JobName, started, err)
			return err
		}
		if !ok {
			log.Info("advisory lock held by another worker, skipping run")
			return nil
		}
		defer func() {
			if _, err := j.deps.Locker.ReleaseAdvisoryLock(ctx, lockKey); err != nil {
				log.Errorf("release advisory lock failed: %v", err)
			}
		}()
	}

	_, runErr := j.deps.Fetcher.Run(ctx)

	metrics.UpdateJobMetrics(JobName, started, runErr)
	dur := time.Since(started)
	errMsg := ""
	if runErr != nil {
		errMsg = runErr.Error()
	}
	if err := j.deps.Store.UpdateScheduledJob(ctx, JobName, started, dur, runErr == nil, errMsg); err != nil {
		log.Warnf("update scheduled_jobs failed: %v", err)
	}

	j.mu.Lock()
	if runErr != nil {
		j.failures++
	} else {
		j.failures = 0
	}
	failures := j.failures
	j.mu.Unlock()

	if runErr == nil {
		log.Infof("job %s completed successfully (duration=%s)", JobName, dur)
		return nil
	}

	log.Errorf("job %s completed with error: %v (duration=%s)", JobName, runErr, dur)
	if j.deps.Alerter != nil {
		alert := alerting.FetchAlert{
			JobName:             JobName,
			SourceURL:           j.deps.SourceURL,
			Error:               errMsg,
			ExitCode:            prices.ExitCode(runErr),
			ConsecutiveFailures: failures,
			Duration:            dur,
			Timestamp:           started,
		}
		if err := j.deps.Alerter.SendFetchAlert(ctx, alert); err != nil {
			log.Warnf("send alert failed: %v", err)
		}
	}
	return runErr
}

// Run refreshes prices immediately and then on every scheduled tick until ctx
// is cancelled. The "fetch_schedule" setting, when present, overrides
// deps.Schedule and is re-read on every poll.
func Run(ctx context.Context, deps Deps) error {
	log := logger.WithModule("cron")
	if deps.Schedule == "" {
		deps.Schedule = DefaultSchedule
	}
	poll := deps.PollInterval
	if poll <= 0 {
		poll = defaultPoll
	}

	schedule := deps.Schedule
	if val, err := deps.Store.GetSetting(ctx, ScheduleSetting); err == nil && val != "" {
		schedule = val
	}
	if !ValidSchedule(schedule) {
		log.Warnf("schedule %q is not valid, falling back to %s", schedule, fallbackWait)
	}

	job := NewJob(deps)
	log.Infof("cron worker starting, schedule=%q", schedule)

	_ = job.RunOnce(ctx)
	next := NextRun(schedule, time.Now())

	ticker := time.NewTicker(poll)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if val, err := deps.Store.GetSetting(ctx, ScheduleSetting); err == nil && val != "" && val != schedule {
				log.Infof("schedule updated from %q to %q", schedule, val)
				schedule = val
				next = NextRun(schedule, time.Now())
			}

			if time.Now().Before(next) {
				continue
			}
			_ = job.RunOnce(ctx)
			next = NextRun(schedule, time.Now())
		}
	}
}
