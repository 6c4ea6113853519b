package realtime

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// reconnectDelays yields the capped, increasing delays between attempts.
type reconnectDelays struct {
	b   *backoff.ExponentialBackOff
	max time.Duration
}

func newReconnectDelays(cfg Config) *reconnectDelays {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = cfg.ReconnectDelay
	b.MaxInterval = cfg.ReconnectDelayMax
	b.Multiplier = 2
	b.RandomizationFactor = cfg.ReconnectJitter
	b.Reset()
	return &reconnectDelays{b: b, max: cfg.ReconnectDelayMax}
}

func (d *reconnectDelays) next() time.Duration {
	delay := d.b.NextBackOff()
	if delay == backoff.Stop || delay > d.max {
		delay = d.max
	}
	return delay
}

func (d *reconnectDelays) reset() {
	d.b.Reset()
}

// sleep waits for delay or until ctx is done; it reports whether the full
// delay elapsed.
func sleep(ctx context.Context, delay time.Duration) bool {
	if delay <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}
