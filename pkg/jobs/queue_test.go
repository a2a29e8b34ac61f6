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
	seen := map[string]int{}

	q := New("test", func(_ context.Context, job Job[int]) error {
		mu.Lock()
		seen[job.ID] = job.Payload
		mu.Unlock()
		return nil
	}, Config{Workers: 2, BufferSize: 8})
	q.Start(context.Background())

	require.NoError(t, q.Enqueue(context.Background(), Job[int]{ID: "a", Payload: 1}))
	require.NoError(t, q.Enqueue(context.Background(), Job[int]{ID: "b", Payload: 2}))
	q.Stop()

	assert.Equal(t, map[string]int{"a": 1, "b": 2}, seen)
}

func TestQueueRetriesUntilSuccess(t *testing.T) {
	var calls int32
	done := make(chan struct{})

	q := New("retry", func(_ context.Context, job Job[string]) error {
		if atomic.AddInt32(&calls, 1) < 3 {
			return errors.New("transient")
		}
		close(done)
		return nil
	}, Config{Workers: 1, MaxRetries: 3, RetryDelay: time.Millisecond})
	q.Start(context.Background())
	defer q.Stop()

	require.NoError(t, q.Enqueue(context.Background(), Job[string]{ID: "x"}))

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("job was not retried")
	}
	assert.EqualValues(t, 3, atomic.LoadInt32(&calls))
}

func TestQueueRejectsWhenStopped(t *testing.T) {
	q := New("idle", func(context.Context, Job[int]) error { return nil }, Config{})

	err := q.Enqueue(context.Background(), Job[int]{ID: "a"})
	assert.ErrorIs(t, err, ErrNotRunning)

	q.Start(context.Background())
	q.Stop()
	assert.ErrorIs(t, q.TryEnqueue(Job[int]{ID: "b"}), ErrNotRunning)
}

func TestTryEnqueueFull(t *testing.T) {
	block := make(chan struct{})
	q := New("full", func(context.Context, Job[int]) error {
		<-block
		return nil
	}, Config{Workers: 1, BufferSize: 1})
	q.Start(context.Background())

	require.NoError(t, q.TryEnqueue(Job[int]{ID: "1"}))
	// The worker may or may not have picked up job 1 yet, so fill until full.
	var err error
	for i := 0; i < 3 && err == nil; i++ {
		err = q.TryEnqueue(Job[int]{ID: "n"})
	}
	assert.ErrorIs(t, err, ErrQueueFull)

	close(block)
	q.Stop()
}
