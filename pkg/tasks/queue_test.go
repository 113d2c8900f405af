package tasks

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runQueue(t *testing.T, q *Queue) context.CancelFunc {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		q.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return cancel
}

func TestQueueRunsSubmittedTask(t *testing.T) {
	q := NewQueue(2, 0, time.Millisecond, nil)

	got := make(chan Args, 1)
	q.Register("echo", func(ctx context.Context, args Args) error {
		got <- args
		return nil
	})
	runQueue(t, q)

	h, err := q.Submit("echo", Args{"k": "v"})
	require.NoError(t, err)
	assert.Equal(t, "echo", h.Name)
	assert.False(t, h.ID.IsZero())

	select {
	case args := <-got:
		assert.Equal(t, Args{"k": "v"}, args)
	case <-time.After(2 * time.Second):
		t.Fatal("task never ran")
	}
}

func TestQueueRejectsUnknownTask(t *testing.T) {
	q := NewQueue(1, 0, time.Millisecond, nil)
	_, err := q.Submit("nope", nil)
	assert.Error(t, err)
}

func TestQueueRetriesUntilSuccess(t *testing.T) {
	q := NewQueue(1, 3, time.Millisecond, nil)

	var attempts atomic.Int32
	done := make(chan struct{})
	q.Register("flaky", func(ctx context.Context, args Args) error {
		if attempts.Add(1) < 3 {
			return errors.New("transient")
		}
		close(done)
		return nil
	})
	runQueue(t, q)

	_, err := q.Submit("flaky", nil)
	require.NoError(t, err)

	select {
	case <-done:
		assert.Equal(t, int32(3), attempts.Load())
	case <-time.After(2 * time.Second):
		t.Fatal("task never succeeded")
	}
}

func TestQueueGivesUpAfterMaxRetries(t *testing.T) {
	q := NewQueue(1, 2, time.Millisecond, nil)

	var attempts atomic.Int32
	q.Register("doomed", func(ctx context.Context, args Args) error {
		attempts.Add(1)
		return errors.New("permanent")
	})
	runQueue(t, q)

	_, err := q.Submit("doomed", nil)
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		return attempts.Load() == 3 // 1 initial + 2 retries
	}, 2*time.Second, 5*time.Millisecond)

	// No further attempts after terminal failure.
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int32(3), attempts.Load())
}

func TestSchedulerValidatesExpressions(t *testing.T) {
	s := NewScheduler(NewQueue(1, 0, time.Millisecond, nil))

	assert.NoError(t, s.Every("*/15 * * * *", "sweep", nil))
	assert.Error(t, s.Every("not a cron", "sweep", nil))
}

func TestSchedulerSubmitsDueJobs(t *testing.T) {
	sub := &recordingSubmitter{}
	s := NewScheduler(sub)
	require.NoError(t, s.Every("* * * * *", "sweep", Args{"a": "b"}))

	s.tick(time.Date(2026, 3, 1, 18, 0, 0, 0, time.UTC))

	submitted := sub.calls()
	require.Len(t, submitted, 1)
	assert.Equal(t, "sweep", submitted[0].name)
	assert.Equal(t, Args{"a": "b"}, submitted[0].args)
}

type submitCall struct {
	name string
	args Args
}

type recordingSubmitter struct {
	mu   sync.Mutex
	subs []submitCall
}

func (r *recordingSubmitter) Submit(name string, args Args) (Handle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.subs = append(r.subs, submitCall{name: name, args: args})
	return Handle{Name: name}, nil
}

func (r *recordingSubmitter) calls() []submitCall {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]submitCall(nil), r.subs...)
}
