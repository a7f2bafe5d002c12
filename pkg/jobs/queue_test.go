package jobs

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

func TestQueueProcessesJobs(t *testing.T) {
	var mu sync.Mutex
	seen := make([]string, 0)
	q := NewQueue("test", func(_ context.Context, job Job) error {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, job.Payload.(string))
		return nil
	}, QueueConfig{Workers: 2, BufferSize: 8})

	require.ErrorIs(t, q.Enqueue(Job{Type: "t", Payload: "early"}), ErrQueueStopped)

	q.Start(context.Background())
	for _, p := range []string{"a", "b", "c"} {
		require.NoError(t, q.Enqueue(Job{Type: "t", Payload: p}))
	}
	q.Stop()

	mu.Lock()
	defer mu.Unlock()
	assert.ElementsMatch(t, []string{"a", "b", "c"}, seen)
	assert.ErrorIs(t, q.Enqueue(Job{Type: "t", Payload: "late"}), ErrQueueStopped)
}

func TestQueueRetriesFailedJobs(t *testing.T) {
	var calls int32
	done := make(chan struct{})
	outcomes := make(chan string, 8)
	q := NewQueue("retry", func(context.Context, Job) error {
		if atomic.AddInt32(&calls, 1) < 3 {
			return errors.New("transient")
		}
		close(done)
		return nil
	}, QueueConfig{
		MaxRetries: 3,
		RetryDelay: time.Millisecond,
		OnResult:   func(_ string, outcome string) { outcomes <- outcome },
	})
	q.Start(context.Background())
	defer q.Stop()

	require.NoError(t, q.Enqueue(Job{Type: "t"}))
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("job was not retried")
	}
	assert.EqualValues(t, 3, atomic.LoadInt32(&calls))
	assert.Equal(t, OutcomeRetried, <-outcomes)
	assert.Equal(t, OutcomeRetried, <-outcomes)
}

func TestQueueFullDoesNotBlock(t *testing.T) {
	block := make(chan struct{})
	q := NewQueue("full", func(ctx context.Context, _ Job) error {
		<-block
		return nil
	}, QueueConfig{Workers: 1, BufferSize: 1})
	q.Start(context.Background())

	// one job held by the worker, one buffered, the next must be rejected
	require.NoError(t, q.Enqueue(Job{Type: "t"}))
	require.Eventually(t, func() bool { return q.Len() == 0 }, time.Second, time.Millisecond)
	require.NoError(t, q.Enqueue(Job{Type: "t"}))
	assert.ErrorIs(t, q.Enqueue(Job{Type: "t"}), ErrQueueFull)

	close(block)
	q.Stop()
}
