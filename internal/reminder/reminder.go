// Package reminder runs the scheduled job that nudges districts about
// submissions still waiting for review and retries queued notifications.
package reminder

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"forestclient/internal/submission/models"
)

// PendingFinder lists submissions left in review longer than olderThan.
type PendingFinder interface {
	FindPending(ctx context.Context, olderThan time.Duration) ([]models.DistrictSummary, error)
}

// Dispatcher sends reminders and owns the notification resend queue.
type Dispatcher interface {
	Remind(ctx context.Context, pending models.DistrictSummary, interval time.Duration) (string, error)
	ResendQueued(ctx context.Context, max int) int
}

// Result summarizes one run.
type Result struct {
	Pending  int
	Reminded int
	Failed   int
	Resent   int
}

// Job is the reminder and resend job.
type Job struct {
	finder      PendingFinder
	dispatcher  Dispatcher
	olderThan   time.Duration
	resendBatch int
	timeout     time.Duration
	logger      *slog.Logger

	mu      sync.Mutex
	cron    *cron.Cron
	entryID cron.EntryID
}

// Option configures a Job.
type Option func(*Job)

// WithOlderThan sets how long a submission may wait before a reminder is sent.
func WithOlderThan(d time.Duration) Option {
	return func(j *Job) {
		if d > 0 {
			j.olderThan = d
		}
	}
}

// WithResendBatch bounds how many queued notifications one run retries.
func WithResendBatch(n int) Option {
	return func(j *Job) {
		if n > 0 {
			j.resendBatch = n
		}
	}
}

// WithRunTimeout bounds a scheduled run.
func WithRunTimeout(d time.Duration) Option {
	return func(j *Job) {
		if d > 0 {
			j.timeout = d
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(j *Job) {
		j.logger = logger
	}
}

func New(finder PendingFinder, dispatcher Dispatcher, opts ...Option) *Job {
	j := &Job{
		finder:      finder,
		dispatcher:  dispatcher,
		olderThan:   48 * time.Hour,
		resendBatch: 100,
		timeout:     5 * time.Minute,
		logger:      slog.Default(),
		cron:        cron.New(),
	}
	for _, opt := range opts {
		opt(j)
	}
	return j
}

// Start schedules the job with a standard five-field cron expression.
func (j *Job) Start(schedule string) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	id, err := j.cron.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
		defer cancel()
		if _, err := j.Run(ctx); err != nil {
			j.logger.ErrorContext(ctx, "reminder run failed", "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("schedule reminder job %q: %w", schedule, err)
	}
	j.entryID = id
	j.cron.Start()
	j.logger.Info("reminder job scheduled", "schedule", schedule, "older_than", j.olderThan)
	return nil
}

// Stop unschedules the job and waits for a running invocation, or for ctx.
func (j *Job) Stop(ctx context.Context) {
	j.mu.Lock()
	j.cron.Remove(j.entryID)
	done := j.cron.Stop()
	j.mu.Unlock()

	select {
	case <-done.Done():
	case <-ctx.Done():
	}
}

// Run retries queued notifications, then reminds districts about every
// submission pending longer than the configured age. A failed reminder is
// queued by the dispatcher and does not stop the run.
func (j *Job) Run(ctx context.Context) (Result, error) {
	var res Result
	res.Resent = j.dispatcher.ResendQueued(ctx, j.resendBatch)

	pending, err := j.finder.FindPending(ctx, j.olderThan)
	if err != nil {
		return res, fmt.Errorf("find pending submissions: %w", err)
	}
	res.Pending = len(pending)

	for _, p := range pending {
		if ctx.Err() != nil {
			return res, ctx.Err()
		}
		if p.District.Email == "" {
			j.logger.WarnContext(ctx, "district has no mailbox, skipping reminder",
				"submission_id", p.SubmissionID,
				"district", p.District.Code,
			)
			res.Failed++
			continue
		}
		if _, err := j.dispatcher.Remind(ctx, p, j.olderThan); err != nil {
			res.Failed++
			continue
		}
		res.Reminded++
	}

	j.logger.InfoContext(ctx, "reminder run complete",
		"pending", res.Pending,
		"reminded", res.Reminded,
		"failed", res.Failed,
		"resent", res.Resent,
	)
	return res, nil
}
