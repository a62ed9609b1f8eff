package middleware

import (
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
)

func TestRateLimiter_SlidingWindow(t *testing.T) {
	clock := clockwork.NewFakeClock()
	rl := NewRateLimiter(2, time.Minute, clock)
	defer rl.Close()

	assert.True(t, rl.Allow("U1"))
	assert.True(t, rl.Allow("U1"))
	assert.False(t, rl.Allow("U1"))
	// Другой пользователь считается отдельно
	assert.True(t, rl.Allow("U2"))

	clock.Advance(time.Minute)
	assert.True(t, rl.Allow("U1"))
}

func TestRecoverFromPanic(t *testing.T) {
	assert.NotPanics(t, func() {
		defer RecoverFromPanic("app_mention")
		panic("boom")
	})
}
