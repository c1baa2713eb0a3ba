package uithread

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFakeClock_FiresInDeadlineOrder(t *testing.T) {
	start := time.Unix(100, 0)
	c := NewFakeClock(start)

	var order []string
	var at []time.Duration
	record := func(name string) func() {
		return func() {
			order = append(order, name)
			at = append(at, c.Now().Sub(start))
		}
	}
	c.AfterFunc(3*time.Second, record("c"))
	c.AfterFunc(time.Second, record("a"))
	c.AfterFunc(time.Second, record("a2"))
	c.AfterFunc(2*time.Second, record("b"))

	c.Advance(5 * time.Second)
	assert.Equal(t, []string{"a", "a2", "b", "c"}, order)
	assert.Equal(t, []time.Duration{time.Second, time.Second, 2 * time.Second, 3 * time.Second}, at)
	assert.Equal(t, start.Add(5*time.Second), c.Now())
	assert.Zero(t, c.PendingTimers())
}

func TestFakeClock_StopAndReschedule(t *testing.T) {
	c := NewFakeClock(time.Unix(0, 0))
	fired := 0
	tm := c.AfterFunc(time.Second, func() { fired++ })
	assert.True(t, tm.Stop())
	assert.False(t, tm.Stop())

	// A timer scheduled from inside a firing timer is honoured within the
	// same Advance call.
	c.AfterFunc(time.Second, func() {
		c.AfterFunc(time.Second, func() { fired++ })
	})
	c.Advance(3 * time.Second)
	assert.Equal(t, 1, fired)
}
