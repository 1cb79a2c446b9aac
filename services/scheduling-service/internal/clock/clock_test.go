package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFakeFiresTimersInOrder(t *testing.T) {
	start := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	c := NewFake(start)

	var fired []string
	c.AfterFunc(2*time.Minute, func() { fired = append(fired, "b") })
	c.AfterFunc(time.Minute, func() { fired = append(fired, "a") })
	stopped := c.AfterFunc(90*time.Second, func() { fired = append(fired, "x") })
	assert.True(t, stopped.Stop())
	assert.False(t, stopped.Stop())

	c.Advance(30 * time.Second)
	assert.Empty(t, fired)
	assert.Equal(t, 2, c.Pending())

	c.Advance(5 * time.Minute)
	assert.Equal(t, []string{"a", "b"}, fired)
	assert.Equal(t, start.Add(5*time.Minute+30*time.Second), c.Now())
	assert.Zero(t, c.Pending())
}

func TestFakeRearmFromCallback(t *testing.T) {
	c := NewFake(time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC))
	ticks := 0
	var tick func()
	tick = func() {
		ticks++
		c.AfterFunc(time.Minute, tick)
	}
	c.AfterFunc(time.Minute, tick)

	c.Advance(3*time.Minute + 10*time.Second)
	assert.Equal(t, 3, ticks)
	assert.Equal(t, 1, c.Pending())
}
