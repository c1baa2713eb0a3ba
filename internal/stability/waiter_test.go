package stability

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/mj1618/uibridge/internal/uithread"
)

func newWaiter(t *testing.T) (*Waiter, *uithread.FakeClock, *uithread.Looper) {
	t.Helper()
	clock := uithread.NewFakeClock(time.Unix(1000, 0))
	looper := uithread.New(clock, zaptest.NewLogger(t))
	looper.Start()
	t.Cleanup(looper.Stop)
	return NewWaiter(looper, DefaultTiming(), zaptest.NewLogger(t)), clock, looper
}

func advanceLoop(t *testing.T, clock *uithread.FakeClock, looper *uithread.Looper, d time.Duration) {
	t.Helper()
	for d > 0 {
		require.NoError(t, looper.Sync(context.Background()))
		clock.Advance(tick)
		d -= tick
	}
	require.NoError(t, looper.Sync(context.Background()))
}

func TestWaiterFirstLoad(t *testing.T) {
	w, clock, looper := newWaiter(t)
	w.ArmForInstruction()
	advanceLoop(t, clock, looper, DefaultFirstLoadDelay)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	c, err := w.Wait(ctx)
	require.NoError(t, err)
	assert.Equal(t, ReasonFirstLoad, c.Reason)

	st, err := w.State(ctx)
	require.NoError(t, err)
	assert.False(t, st.Armed, "Wait acknowledges the capture")
}

func TestWaiterDropsUncollectedCapture(t *testing.T) {
	w, clock, looper := newWaiter(t)
	w.ArmForAction("click")
	advanceLoop(t, clock, looper, DefaultCeilingDelay)

	w.ArmForAction("input")
	w.Notify("test")
	advanceLoop(t, clock, looper, DefaultSettleDelay)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	c, err := w.Wait(ctx)
	require.NoError(t, err)
	assert.Equal(t, ReasonSettled, c.Reason)
	assert.NoError(t, c.Err)
}

func TestWaiterContextDone(t *testing.T) {
	w, _, looper := newWaiter(t)
	w.ArmForAction("click")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := w.Wait(ctx)
	assert.ErrorIs(t, err, context.Canceled)

	require.NoError(t, looper.Sync(context.Background()))
	st, err := w.State(context.Background())
	require.NoError(t, err)
	assert.Equal(t, State{}, st)
}
