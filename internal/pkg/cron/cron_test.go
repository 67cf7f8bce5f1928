package cron

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

type fakeCloser struct {
	before []time.Time
	closed int
	err    error
}

func (f *fakeCloser) CloseStaleSessions(ctx context.Context, before time.Time) (int, error) {
	f.before = append(f.before, before)
	return f.closed, f.err
}

func TestScheduler_RunOnce(t *testing.T) {
	s := NewScheduler(discard)

	var calls []string
	s.AddJob("first", time.Hour, func(ctx context.Context) error {
		calls = append(calls, "first")
		return nil
	})
	s.AddJob("second", time.Hour, func(ctx context.Context) error {
		calls = append(calls, "second")
		return errors.New("boom")
	})

	err := s.RunOnce(context.Background())
	assert.EqualError(t, err, "boom")
	assert.Equal(t, []string{"first", "second"}, calls)
}

func TestScheduler_RunStopsOnCancel(t *testing.T) {
	s := NewScheduler(discard)

	var runs atomic.Int32
	s.AddJob("tick", 10*time.Millisecond, func(ctx context.Context) error {
		runs.Add(1)
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	require.Eventually(t, func() bool { return runs.Load() >= 2 }, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop")
	}
}

func TestAttendanceJobs_AutoClose(t *testing.T) {
	now := time.Date(2025, 1, 16, 0, 30, 0, 0, time.UTC)
	closer := &fakeCloser{closed: 2}
	jobs := NewAttendanceJobs(closer, time.Hour, func() time.Time { return now }, discard)

	require.NoError(t, jobs.AutoCloseStaleAttendances(context.Background()))
	assert.Equal(t, []time.Time{now}, closer.before)

	closer.err = errors.New("store down")
	err := jobs.AutoCloseStaleAttendances(context.Background())
	assert.ErrorContains(t, err, "store down")
}

func TestAttendanceJobs_RegisterJobs(t *testing.T) {
	s := NewScheduler(discard)
	NewAttendanceJobs(&fakeCloser{}, 15*time.Minute, nil, discard).RegisterJobs(s)

	jobs := s.Jobs()
	require.Len(t, jobs, 1)
	assert.Equal(t, "auto_close_stale_attendances", jobs[0].Name)
	assert.Equal(t, 15*time.Minute, jobs[0].Interval)
}
