package workers

import (
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSchedulerRunsJobsPeriodically(t *testing.T) {
	s := NewScheduler()
	defer s.Stop()

	var runs atomic.Int32
	require.NoError(t, s.AddJob("tick", 10*time.Millisecond, func() error {
		runs.Add(1)
		return nil
	}))
	require.NoError(t, s.Start())

	assert.Eventually(t, func() bool {
		return runs.Load() >= 3
	}, time.Second, 5*time.Millisecond)
}

func TestSchedulerRetriesFailedJobOnNextTick(t *testing.T) {
	s := NewScheduler()
	defer s.Stop()

	var runs atomic.Int32
	require.NoError(t, s.AddJob("flaky", 10*time.Millisecond, func() error {
		if runs.Add(1) == 1 {
			return errors.New("transient")
		}
		return nil
	}))
	require.NoError(t, s.Start())

	// a failure must not stop the job from firing again
	assert.Eventually(t, func() bool {
		return runs.Load() >= 2
	}, time.Second, 5*time.Millisecond)
}

func TestSchedulerRejectsJobAfterStart(t *testing.T) {
	s := NewScheduler()
	defer s.Stop()

	require.NoError(t, s.Start())
	err := s.AddJob("late", time.Minute, func() error { return nil })
	assert.Error(t, err)
}

func TestSchedulerRejectsNonPositiveInterval(t *testing.T) {
	s := NewScheduler()
	assert.Error(t, s.AddJob("bad", 0, func() error { return nil }))
	assert.Error(t, s.AddJob("bad", -time.Second, func() error { return nil }))
}

func TestSchedulerStartTwiceFails(t *testing.T) {
	s := NewScheduler()
	defer s.Stop()

	require.NoError(t, s.Start())
	assert.Error(t, s.Start())
}

func TestSchedulerStopWaitsForJobs(t *testing.T) {
	s := NewScheduler()

	started := make(chan struct{})
	var finished atomic.Bool
	require.NoError(t, s.AddJob("slow", 5*time.Millisecond, func() error {
		select {
		case started <- struct{}{}:
		default:
		}
		time.Sleep(20 * time.Millisecond)
		finished.Store(true)
		return nil
	}))
	require.NoError(t, s.Start())

	<-started
	s.Stop()
	assert.True(t, finished.Load(), "Stop must wait for a mid-run job")
}

func TestSchedulerStopWithoutStartIsNoop(t *testing.T) {
	s := NewScheduler()
	s.Stop()
}

func TestSchedulerStopTwiceIsSafe(t *testing.T) {
	s := NewScheduler()
	require.NoError(t, s.AddJob("tick", time.Minute, func() error { return nil }))
	require.NoError(t, s.Start())

	s.Stop()
	assert.NotPanics(t, func() { s.Stop() })
}
