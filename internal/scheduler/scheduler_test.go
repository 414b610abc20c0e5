package scheduler_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"email-analyzer-backend/internal/scheduler"
)

func TestNextRunHonoursTimezone(t *testing.T) {
	s, err := scheduler.New("9 8 * * *", "Asia/Kolkata", func(context.Context) {})
	require.NoError(t, err)

	from := time.Date(2026, 10, 16, 0, 0, 0, 0, time.UTC) // 05:30 in Kolkata
	next := s.Next(from)
	assert.True(t, next.Equal(time.Date(2026, 10, 16, 2, 39, 0, 0, time.UTC)), next.String())

	after := s.Next(next)
	assert.Equal(t, 24*time.Hour, after.Sub(next))
}

func TestNewRejectsBadInput(t *testing.T) {
	_, err := scheduler.New("not a schedule", "UTC", func(context.Context) {})
	assert.Error(t, err)

	_, err = scheduler.New("9 8 * * *", "Mars/Olympus", func(context.Context) {})
	assert.Error(t, err)
}

func TestRunNowSkipsWhileRunning(t *testing.T) {
	var runs int32
	started := make(chan struct{})
	release := make(chan struct{})

	s, err := scheduler.New("9 8 * * *", "UTC", func(context.Context) {
		if atomic.AddInt32(&runs, 1) == 1 {
			close(started)
			<-release
		}
	})
	require.NoError(t, err)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		s.RunNow()
	}()
	<-started

	s.RunNow()
	assert.Equal(t, int32(1), atomic.LoadInt32(&runs), "overlapping run is skipped")

	close(release)
	wg.Wait()

	s.RunNow()
	assert.Equal(t, int32(2), atomic.LoadInt32(&runs))
}
