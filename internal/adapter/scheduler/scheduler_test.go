package scheduler

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func newTestScheduler(t *testing.T) *Scheduler {
	t.Helper()

	s := New(context.Background(), slog.New(slog.NewTextHandler(io.Discard, nil)))
	t.Cleanup(func() {
		_ = s.Stop(context.Background())
	})
	return s
}

func waitForAtLeast(t *testing.T, counter *int64, expected int64, timeout time.Duration) {
	t.Helper()

	require.Eventually(t, func() bool {
		return atomic.LoadInt64(counter) >= expected
	}, timeout, 10*time.Millisecond, "значение счётчика не достигло ожидаемого уровня")
}

func TestScheduler_New(t *testing.T) {
	s := New(context.Background(), nil)

	assert.NotNil(t, s.cron)
	assert.NotNil(t, s.logger)
	assert.NoError(t, s.ctx.Err())
	require.NoError(t, s.Stop(context.Background()))
	assert.Error(t, s.ctx.Err())
}

func TestScheduler_Add(t *testing.T) {
	s := newTestScheduler(t)

	var counter int64
	_, err := s.Add(Job{
		Name:     "tick",
		Schedule: "@every 1s",
		Run: func(ctx context.Context) error {
			atomic.AddInt64(&counter, 1)
			return nil
		},
	})
	require.NoError(t, err)

	s.Start()

	waitForAtLeast(t, &counter, 1, 3*time.Second)
}

func TestScheduler_InvalidSchedule(t *testing.T) {
	s := newTestScheduler(t)

	_, err := s.Add(Job{Name: "bad", Schedule: "invalid schedule", Run: func(context.Context) error { return nil }})
	assert.Error(t, err)

	_, err = s.Add(Job{Name: "no-run", Schedule: "@hourly"})
	assert.Error(t, err)
}

func TestParseSchedule(t *testing.T) {
	for _, spec := range []string{"@every 1h", "@hourly", "0 3 * * *", "0 0 3 * * *"} {
		assert.NoError(t, ParseSchedule(spec), spec)
	}
	assert.Error(t, ParseSchedule("every hour"))
}

func TestScheduler_JobErrorAndPanic(t *testing.T) {
	s := newTestScheduler(t)

	var runs int64
	_, err := s.Add(Job{
		Name:     "flaky",
		Schedule: "@every 1s",
		Run: func(ctx context.Context) error {
			switch atomic.AddInt64(&runs, 1) {
			case 1:
				panic("test panic")
			case 2:
				return errors.New("test error")
			}
			return nil
		},
	})
	require.NoError(t, err)

	s.Start()

	// Задача продолжает выполняться после паники и ошибки
	waitForAtLeast(t, &runs, 3, 5*time.Second)
}

func TestScheduler_JobTimeout(t *testing.T) {
	s := newTestScheduler(t)

	var deadlineHit int64
	_, err := s.Add(Job{
		Name:     "slow",
		Schedule: "@every 1s",
		Timeout:  50 * time.Millisecond,
		Run: func(ctx context.Context) error {
			<-ctx.Done()
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				atomic.AddInt64(&deadlineHit, 1)
			}
			return ctx.Err()
		},
	})
	require.NoError(t, err)

	s.Start()

	waitForAtLeast(t, &deadlineHit, 1, 3*time.Second)
}

func TestScheduler_RepeatedPanicsDoNotStopJob(t *testing.T) {
	s := newTestScheduler(t)

	var runs int64
	_, err := s.Add(Job{
		Name:     "always-panics",
		Schedule: "@every 1s",
		Run: func(ctx context.Context) error {
			atomic.AddInt64(&runs, 1)
			panic("maintenance exploded")
		},
	})
	require.NoError(t, err)

	s.Start()

	waitForAtLeast(t, &runs, 3, 5*time.Second)
}

func TestScheduler_ChainRecoversBeforeSkip(t *testing.T) {
	var buf syncBuffer
	s := New(context.Background(), slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))
	t.Cleanup(func() { _ = s.Stop(context.Background()) })

	var runs int64
	_, err := s.cron.AddJob("@every 1s", cron.FuncJob(func() {
		atomic.AddInt64(&runs, 1)
		panic("raw job panic")
	}))
	require.NoError(t, err)

	s.Start()

	waitForAtLeast(t, &runs, 2, 4*time.Second)
	assert.NotContains(t, buf.String(), "msg=skip")
}

func TestScheduler_Entries(t *testing.T) {
	s := newTestScheduler(t)

	id, err := s.Add(Job{Name: "maintenance", Schedule: "@hourly", Run: func(context.Context) error { return nil }})
	require.NoError(t, err)

	s.Start()

	entries := s.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, "maintenance", entries[0].Name)
	assert.Equal(t, id, entries[0].ID)
	assert.False(t, entries[0].Next.IsZero())
}

func TestScheduler_ParentContextStops(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	s := New(ctx, slog.New(slog.NewTextHandler(io.Discard, nil)))
	s.Start()

	cancel()

	assert.Eventually(t, func() bool { return s.ctx.Err() != nil }, time.Second, 10*time.Millisecond)
	require.NoError(t, s.Stop(context.Background()))
}

func TestScheduler_StopWaitsForRunningJob(t *testing.T) {
	s := newTestScheduler(t)

	started := make(chan struct{}, 1)
	var finished int64
	_, err := s.Add(Job{
		Name:     "long",
		Schedule: "@every 1s",
		Run: func(ctx context.Context) error {
			select {
			case started <- struct{}{}:
			default:
			}
			time.Sleep(200 * time.Millisecond)
			atomic.StoreInt64(&finished, 1)
			return nil
		},
	})
	require.NoError(t, err)

	s.Start()

	select {
	case <-started:
	case <-time.After(3 * time.Second):
		t.Fatal("job did not start")
	}

	require.NoError(t, s.Stop(context.Background()))
	assert.Equal(t, int64(1), atomic.LoadInt64(&finished))
}

func TestScheduler_StopDeadline(t *testing.T) {
	s := newTestScheduler(t)

	started := make(chan struct{}, 1)
	_, err := s.Add(Job{
		Name:     "stuck",
		Schedule: "@every 1s",
		Run: func(ctx context.Context) error {
			select {
			case started <- struct{}{}:
			default:
			}
			time.Sleep(500 * time.Millisecond)
			return nil
		},
	})
	require.NoError(t, err)

	s.Start()
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, s.Stop(ctx), context.DeadlineExceeded)
}
