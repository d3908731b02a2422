package retry

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBackoff(t *testing.T) {
	config := ExpConfig{Min: time.Minute, Max: 10 * time.Minute, Scale: 2.0}
	b := newExpBackoff(config)
	for _, expected := range []time.Duration{time.Minute, 2 * time.Minute, 4 * time.Minute, 8 * time.Minute, 10 * time.Minute, 10 * time.Minute} {
		assert.Equal(t, expected, b.next())
	}
}

func TestExpDelays(t *testing.T) {
	delays := ExpConfig{Min: time.Second, Max: 3 * time.Second, Scale: 2}.Delays()
	for _, expected := range []time.Duration{0, time.Second, 2 * time.Second, 3 * time.Second} {
		d, ok := delays()
		assert.True(t, ok)
		assert.Equal(t, expected, d)
	}
}

func TestExpDelaysInstant(t *testing.T) {
	delays := ExpConfig{Min: time.Second, Max: time.Minute, Scale: 2, Instant: true}.Delays()
	d, ok := delays()
	assert.True(t, ok)
	assert.Equal(t, time.Second, d)
}

func TestExpMaxAttempts(t *testing.T) {
	delays := ExpConfig{Min: time.Millisecond, Max: time.Second, Scale: 2, MaxAttempts: 3}.Delays()
	for _, expected := range []time.Duration{0, time.Millisecond, 2 * time.Millisecond} {
		d, ok := delays()
		assert.True(t, ok)
		assert.Equal(t, expected, d)
	}
	_, ok := delays()
	assert.False(t, ok)
}
