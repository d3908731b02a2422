package retry

import "time"

// ExpConfig defines exponentially growing retry intervals
type ExpConfig struct {
	Min   time.Duration // delay before the first retry
	Max   time.Duration // cap on the delay
	Scale float64       // growth factor of the delay

	// Instant makes the first attempt wait Min too; by default it starts
	// immediately
	Instant bool

	// MaxAttempts is the maximum number of attempts taken; 0 = unlimited
	MaxAttempts int
}

// Delays implements interface Config
func (ec ExpConfig) Delays() DelayFn {
	b := newExpBackoff(ec)
	attempts := 0
	return func() (time.Duration, bool) {
		attempts++
		switch {
		case attempts == 1 && !ec.Instant:
			return 0, true
		case ec.MaxAttempts != 0 && attempts > ec.MaxAttempts:
			return 0, false
		default:
			return b.next(), true
		}
	}
}

type expBackoff struct {
	config  ExpConfig
	current time.Duration
}

func newExpBackoff(config ExpConfig) *expBackoff {
	return &expBackoff{
		config:  config,
		current: config.Min,
	}
}

// next returns the delay to wait and grows the following one
func (b *expBackoff) next() time.Duration {
	d := b.current
	b.current = time.Duration(float64(b.current) * b.config.Scale)
	if b.current > b.config.Max {
		b.current = b.config.Max
	}
	return d
}
