package uithread

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func newTestLooper(t *testing.T) (*Looper, *FakeClock) {
	t.Helper()
	clock := NewFakeClock(time.Unix(0, 0))
	l := New(clock, zaptest.NewLogger(t))
	l.Start()
	t.Cleanup(l.Stop)
	return l, clock
}

func TestLooper_RunsTasksInOrder(t *testing.T) {
	l, _ := newTestLooper(t)

	var mu sync.Mutex
	var got []int
	for i := 0; i < 50; i++ {
		i := i
		require.True(t, l.Post(func() {
			mu.Lock()
			got = append(got, i)
			mu.Unlock()
		}))
	}
	require.NoError(t, l.Sync(context.Background()))

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, got, 50)
	for i, v := range got {
		assert.Equal(t, i, v)
	}
}

func TestLooper_CallReturnsError(t *testing.T) {
	l, _ := newTestLooper(t)
	want := errors.New("boom")
	assert.ErrorIs(t, l.Call(context.Background(), func() error { return want }), want)
	assert.NoError(t, l.Call(context.Background(), func() error { return nil }))
}

func TestLooper_CallRecoversPanic(t *testing.T) {
	l, _ := newTestLooper(t)
	err := l.Call(context.Background(), func() error { panic("bad view") })
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad view")
	// The loop survives.
	assert.NoError(t, l.Sync(context.Background()))
}

func TestLooper_CallHonoursContext(t *testing.T) {
	l, _ := newTestLooper(t)
	release := make(chan struct{})
	l.Post(func() { <-release })
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := l.Call(ctx, func() error { return nil })
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestLooper_PostDelayed(t *testing.T) {
	l, clock := newTestLooper(t)
	ctx := context.Background()

	var fired []time.Time
	l.PostDelayed(500*time.Millisecond, func() { fired = append(fired, clock.Now()) })

	clock.Advance(499 * time.Millisecond)
	require.NoError(t, l.Sync(ctx))
	assert.Empty(t, fired)

	clock.Advance(time.Millisecond)
	require.NoError(t, l.Sync(ctx))
	require.Len(t, fired, 1)
	assert.Equal(t, time.Unix(0, 0).Add(500*time.Millisecond), fired[0])
}

func TestLooper_CancelSkipsFiredButUnrunTask(t *testing.T) {
	l, clock := newTestLooper(t)
	ctx := context.Background()

	ran := false
	var h *Handle
	release := make(chan struct{})
	require.NoError(t, l.Call(ctx, func() error {
		h = l.PostDelayed(time.Second, func() { ran = true })
		return nil
	}))

	// Block the loop, let the timer fire (queuing its task), then cancel
	// from the loop before the queued task gets to run.
	l.Post(func() {
		<-release
		h.Cancel()
	})
	clock.Advance(time.Second)
	close(release)

	require.NoError(t, l.Sync(ctx))
	assert.False(t, ran)
}

func TestLooper_StoppedRejectsWork(t *testing.T) {
	l := New(nil, nil)
	l.Start()
	l.Stop()
	assert.False(t, l.Post(func() {}))
	assert.ErrorIs(t, l.Call(context.Background(), func() error { return nil }), ErrStopped)
	l.Stop() // idempotent
}

func TestLooper_StopWithoutStart(t *testing.T) {
	l := New(nil, nil)
	l.Stop()
	assert.False(t, l.Post(func() {}))
}

func TestHandle_NilCancel(t *testing.T) {
	var h *Handle
	h.Cancel()
}
