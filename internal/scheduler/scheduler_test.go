package scheduler_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vasiliy-maslov/ecommerce-microservices/marketplace-service/internal/scheduler"
)

func TestNew_DisabledAndInvalidJobs(t *testing.T) {
	noop := func(context.Context) error { return nil }

	s, err := scheduler.New(time.UTC,
		scheduler.Job{Name: "streaks", Every: time.Minute, Run: noop},
		scheduler.Job{Name: "reminders", Every: 0, Run: noop},
	)
	require.NoError(t, err)
	assert.Equal(t, []string{"streaks"}, s.Jobs())

	_, err = scheduler.New(time.UTC, scheduler.Job{Name: "fast", Every: time.Millisecond, Run: noop})
	require.Error(t, err)
}

func TestScheduler_RunsAndStops(t *testing.T) {
	var runs atomic.Int32
	started := make(chan struct{}, 1)

	s, err := scheduler.New(time.UTC, scheduler.Job{
		Name:  "tick",
		Every: time.Second,
		Run: func(ctx context.Context) error {
			runs.Add(1)
			select {
			case started <- struct{}{}:
			default:
			}
			<-ctx.Done()
			return ctx.Err()
		},
	})
	require.NoError(t, err)

	s.Start()

	select {
	case <-started:
	case <-time.After(3 * time.Second):
		t.Fatal("job did not run")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, s.Stop(ctx), "running job observes cancellation")
	assert.Equal(t, int32(1), runs.Load(), "overlapping tick was skipped")
}

func TestScheduler_FirstRunOnStart(t *testing.T) {
	ran := make(chan struct{}, 1)

	s, err := scheduler.New(time.UTC, scheduler.Job{
		Name:  "hourly",
		Every: time.Hour,
		Run: func(context.Context) error {
			select {
			case ran <- struct{}{}:
			default:
			}
			return nil
		},
	})
	require.NoError(t, err)

	s.Start()

	select {
	case <-ran:
	case <-time.After(2 * time.Second):
		t.Fatal("job did not run on start")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, s.Stop(ctx))
}
