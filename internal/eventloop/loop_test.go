package eventloop

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoop_RunsInOrder(t *testing.T) {
	l := New()
	defer l.Close()

	var got []int
	for i := 0; i < 100; i++ {
		i := i
		require.True(t, l.Post(func() { got = append(got, i) }))
	}
	require.NoError(t, l.Do(context.Background(), func() {}))

	require.Len(t, got, 100)
	for i, v := range got {
		assert.Equal(t, i, v)
	}
}

func TestLoop_TasksNeverOverlap(t *testing.T) {
	l := New()
	defer l.Close()

	var running, overlaps int32
	for i := 0; i < 50; i++ {
		go l.Post(func() {
			if atomic.AddInt32(&running, 1) > 1 {
				atomic.AddInt32(&overlaps, 1)
			}
			time.Sleep(100 * time.Microsecond)
			atomic.AddInt32(&running, -1)
		})
	}
	time.Sleep(20 * time.Millisecond)
	require.NoError(t, l.Do(context.Background(), func() {}))
	assert.Zero(t, atomic.LoadInt32(&overlaps))
}

func TestLoop_TaskCanPost(t *testing.T) {
	l := New()
	defer l.Close()

	var order []string
	require.NoError(t, l.Do(context.Background(), func() {
		l.Post(func() { order = append(order, "second") })
		order = append(order, "first")
	}))
	require.NoError(t, l.Do(context.Background(), func() {}))
	assert.Equal(t, []string{"first", "second"}, order)
}

func TestLoop_Close(t *testing.T) {
	l := New()
	l.Close()
	l.Close()

	assert.False(t, l.Post(func() {}))
	assert.ErrorIs(t, l.Do(context.Background(), func() {}), ErrClosed)

	select {
	case <-l.Done():
	default:
		t.Fatal("loop goroutine still running")
	}
}

func TestLoop_DoHonoursContext(t *testing.T) {
	l := New()
	defer l.Close()

	block := make(chan struct{})
	l.Post(func() { <-block })
	defer close(block)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, l.Do(ctx, func() {}), context.DeadlineExceeded)
}
