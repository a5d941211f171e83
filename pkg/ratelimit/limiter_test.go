package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLimiter_DisabledWhenMaxRequestsZero(t *testing.T) {
	l := New(0, time.Minute)
	defer l.Stop()
	for i := 0; i < 10; i++ {
		assert.True(t, l.Allow("peer").Allowed)
	}
}

func TestLimiter_AllowsUpToMaxThenRejects(t *testing.T) {
	l := New(2, time.Minute)
	defer l.Stop()

	assert.True(t, l.Allow("peer").Allowed)
	assert.True(t, l.Allow("peer").Allowed)
	result := l.Allow("peer")
	assert.False(t, result.Allowed)
	assert.Greater(t, result.RetryAfter, time.Duration(0))
}

func TestLimiter_SeparateKeysHaveIndependentBuckets(t *testing.T) {
	l := New(1, time.Minute)
	defer l.Stop()

	assert.True(t, l.Allow("a").Allowed)
	assert.True(t, l.Allow("b").Allowed)
	assert.False(t, l.Allow("a").Allowed)
}

func TestLimiter_WindowResetsLazily(t *testing.T) {
	l := New(1, time.Minute)
	defer l.Stop()
	now := time.Now()
	l.nowFunc = func() time.Time { return now }

	assert.True(t, l.Allow("peer").Allowed)
	assert.False(t, l.Allow("peer").Allowed)

	now = now.Add(2 * time.Minute)
	assert.True(t, l.Allow("peer").Allowed)
}

func TestPeerKey_PrefersLeftmostForwardedFor(t *testing.T) {
	assert.Equal(t, "1.2.3.4", PeerKey("10.0.0.1:1234", "1.2.3.4, 5.6.7.8"))
	assert.Equal(t, "10.0.0.1:1234", PeerKey("10.0.0.1:1234", ""))
	assert.Equal(t, "10.0.0.1:1234", PeerKey("10.0.0.1:1234", "   "))
}
