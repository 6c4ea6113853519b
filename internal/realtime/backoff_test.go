package realtime

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestReconnectDelaysGrowAndCap(t *testing.T) {
	d := newReconnectDelays(Config{ReconnectDelay: time.Second, ReconnectDelayMax: 5 * time.Second})

	var got []time.Duration
	for i := 0; i < 5; i++ {
		got = append(got, d.next().Truncate(time.Millisecond))
	}
	assert.Equal(t, []time.Duration{
		1 * time.Second,
		2 * time.Second,
		4 * time.Second,
		5 * time.Second,
		5 * time.Second,
	}, got)

	d.reset()
	assert.Equal(t, time.Second, d.next().Truncate(time.Millisecond))
}

func TestReconnectDelaysJitterStaysInRange(t *testing.T) {
	d := newReconnectDelays(Config{ReconnectDelay: time.Second, ReconnectDelayMax: 5 * time.Second, ReconnectJitter: 0.5})
	for i := 0; i < 20; i++ {
		delay := d.next()
		assert.Greater(t, delay, time.Duration(0))
		assert.LessOrEqual(t, delay, 5*time.Second)
	}
}

func TestSleepStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.False(t, sleep(ctx, time.Hour))
	assert.True(t, sleep(context.Background(), time.Millisecond))
}
