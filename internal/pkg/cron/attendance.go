package cron

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// StaleSessionCloser closes open attendance sessions dated before a cutoff.
type StaleSessionCloser interface {
	CloseStaleSessions(ctx context.Context, before time.Time) (int, error)
}

type AttendanceJobs struct {
	closer   StaleSessionCloser
	interval time.Duration
	now      func() time.Time
	logger   *slog.Logger
}

func NewAttendanceJobs(closer StaleSessionCloser, interval time.Duration, now func() time.Time, logger *slog.Logger) *AttendanceJobs {
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &AttendanceJobs{
		closer:   closer,
		interval: interval,
		now:      now,
		logger:   logger,
	}
}

func (j *AttendanceJobs) RegisterJobs(scheduler *Scheduler) {
	scheduler.AddJob("auto_close_stale_attendances", j.interval, j.AutoCloseStaleAttendances)
}

// AutoCloseStaleAttendances closes every session left open on an earlier
// day. Sessions from today stay open.
func (j *AttendanceJobs) AutoCloseStaleAttendances(ctx context.Context) error {
	closed, err := j.closer.CloseStaleSessions(ctx, j.now())
	if err != nil {
		return fmt.Errorf("failed to close stale sessions: %w", err)
	}

	if closed == 0 {
		j.logger.Debug("Cron: No stale attendances found")
		return nil
	}
	j.logger.Info("Cron: Auto-closed stale attendances", "closed_count", closed)
	return nil
}
