package cooldown

import (
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
)

func TestGlobalLimiter(t *testing.T) {
	clock := clockwork.NewFakeClock()
	l := NewGlobalLimiter(clock, time.Second, 1)

	assert.True(t, l.Allow(1))
	assert.False(t, l.Allow(1))
	assert.True(t, l.Allow(2)) // 各用户独立
	clock.Advance(time.Second)
	assert.True(t, l.Allow(1))

	clock.Advance(2 * time.Minute)
	assert.Equal(t, 2, l.GC())
	assert.True(t, l.Allow(1))
}

func TestGlobalLimiterDisabled(t *testing.T) {
	l := NewGlobalLimiter(clockwork.NewFakeClock(), 0, 0)
	for i := 0; i < 10; i++ {
		assert.True(t, l.Allow(1))
	}
	l.Reset(time.Minute, 2)
	assert.Equal(t, time.Minute, l.CD())
	assert.True(t, l.Allow(1))
	assert.True(t, l.Allow(1))
	assert.False(t, l.Allow(1))
}
