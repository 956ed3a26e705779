package cron

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/bher20/utilityrates/internal/alerting"
	"github.com/bher20/utilityrates/internal/metrics"
	"github.com/bher20/utilityrates/internal/rates"
	"github.com/bher20/utilityrates/internal/storage"
)

const (
	JobName = "refresh_submissions"
	// IntervalSettingKey overrides the configured interval at runtime.
	IntervalSettingKey = "refresh_interval"

	lockKey         int64 = 42
	defaultInterval       = 5 * time.Minute
	releaseTimeout        = 5 * time.Second
)

// Refresher re-runs a lookup bypassing stored snapshots.
type Refresher interface {
	ForceRefresh(ctx context.Context, l rates.Lookup) (*rates.LookupResponse, error)
}

// Notifier is told about runs in which at least one submission failed.
type Notifier interface {
	Notify(ctx context.Context, r alerting.RunReport) error
}

// Worker periodically refreshes the rates of every stored submission.
// In a multi-instance deployment on postgres only the instance holding the
// advisory lock executes a run.
type Worker struct {
	store    storage.Storage
	rates    Refresher
	notifier Notifier
	log      logrus.FieldLogger
	interval string
	tick     time.Duration
	now      func() time.Time
}

// NewWorker returns a worker. interval is integer seconds or a standard cron
// expression.
func NewWorker(st storage.Storage, r Refresher, interval string, log logrus.FieldLogger) *Worker {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Worker{
		store:    st,
		rates:    r,
		log:      log.WithField("job", JobName),
		interval: interval,
		tick:     10 * time.Second,
		now:      time.Now,
	}
}

// WithNotifier sets the notifier used for failed runs.
func (w *Worker) WithNotifier(n Notifier) *Worker {
	w.notifier = n
	return w
}

// NextRun computes when the job should next run after lastRun.
func NextRun(setting string, lastRun time.Time) time.Time {
	// Try integer seconds
	if v, err := strconv.Atoi(setting); err == nil && v > 0 {
		return lastRun.Add(time.Duration(v) * time.Second)
	}
	if sched, err := cron.ParseStandard(setting); err == nil {
		return sched.Next(lastRun)
	}
	return lastRun.Add(defaultInterval)
}

// ValidInterval reports whether setting is a positive number of seconds or a
// parsable cron expression.
func ValidInterval(setting string) bool {
	if v, err := strconv.Atoi(setting); err == nil {
		return v > 0
	}
	_, err := cron.ParseStandard(setting)
	return err == nil
}

func (w *Worker) currentInterval(ctx context.Context) string {
	if val, err := w.store.GetSetting(ctx, IntervalSettingKey); err == nil && val != "" {
		return val
	}
	return w.interval
}

// Run executes the job immediately and then on schedule until ctx is done.
func (w *Worker) Run(ctx context.Context) error {
	interval := w.currentInterval(ctx)
	nextRun := w.now()

	ticker := time.NewTicker(w.tick)
	defer ticker.Stop()

	w.log.WithField("interval", interval).Info("cron worker starting")

	for {
		if !w.now().Before(nextRun) {
			if _, err := w.RunOnce(ctx); err != nil && !errors.Is(err, context.Canceled) {
				w.log.WithError(err).Warn("cron: run finished with errors")
			}
			nextRun = NextRun(interval, w.now())
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		if val := w.currentInterval(ctx); val != interval {
			w.log.WithFields(logrus.Fields{"from": interval, "to": val}).Info("cron: interval updated")
			interval = val
			nextRun = NextRun(interval, w.now())
		}
	}
}

// RunOnce refreshes every submission once. It returns the number of
// submissions refreshed; the first failure, if any, is returned after all
// submissions have been attempted. A run skipped because another instance
// holds the lock returns (0, nil).
func (w *Worker) RunOnce(ctx context.Context) (int, error) {
	started := w.now()

	if locker, ok := w.store.(storage.Locker); ok {
		release, acquired, err := locker.AcquireAdvisoryLock(ctx, lockKey)
		if err != nil {
			metrics.UpdateJobMetrics(JobName, started, err)
			return 0, fmt.Errorf("acquire advisory lock: %w", err)
		}
		if !acquired {
			w.log.Info("cron: advisory lock held by another worker, skipping run")
			return 0, nil
		}
		defer func() {
			// Release even when ctx was canceled mid-run.
			rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), releaseTimeout)
			defer cancel()
			if err := release(rctx); err != nil {
				w.log.WithError(err).Warn("cron: release advisory lock failed")
			}
		}()
	}

	total, failures, runErr := w.refreshAll(ctx)
	refreshed := total - len(failures)

	metrics.UpdateJobMetrics(JobName, started, runErr)
	dur := w.now().Sub(started)
	errMsg := ""
	if runErr != nil {
		errMsg = runErr.Error()
	}
	if err := w.store.UpdateScheduledJob(ctx, JobName, started, dur, runErr == nil, errMsg); err != nil {
		w.log.WithError(err).Warn("cron: update scheduled_jobs failed")
	}

	if w.notifier != nil && len(failures) > 0 {
		report := alerting.RunReport{
			JobName:   JobName,
			Total:     total,
			Succeeded: refreshed,
			Failures:  failures,
			Duration:  dur,
			Timestamp: started,
		}
		if err := w.notifier.Notify(ctx, report); err != nil {
			w.log.WithError(err).Warn("cron: alert failed")
		}
	}

	w.log.WithFields(logrus.Fields{
		"refreshed": refreshed,
		"duration":  dur.String(),
	}).Info("cron: job completed")
	return refreshed, runErr
}

func (w *Worker) refreshAll(ctx context.Context) (int, []alerting.Failure, error) {
	subs, err := w.store.ListSubmissions(ctx)
	if err != nil {
		return 0, nil, fmt.Errorf("list submissions: %w", err)
	}

	var (
		runErr   error
		failures []alerting.Failure
	)
	attempted := 0
	for _, s := range subs {
		if err := ctx.Err(); err != nil {
			return attempted, failures, err
		}
		attempted++
		_, err := w.rates.ForceRefresh(ctx, rates.Lookup{
			Address:         s.Address,
			Consumption:     s.Consumption,
			PercentageScale: s.PercentageScale,
		})
		if err != nil {
			w.log.WithError(err).WithField("submission", s.ID).Warn("cron: refresh failed")
			failures = append(failures, alerting.Failure{SubmissionID: s.ID, Address: s.Address, Error: err.Error()})
			if runErr == nil {
				runErr = fmt.Errorf("submission %s: %w", s.ID, err)
			}
		}
	}
	return attempted, failures, runErr
}
