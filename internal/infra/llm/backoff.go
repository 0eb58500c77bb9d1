package llm

import (
	"math/rand/v2"
	"time"
)

// linearBackOff даёт задержку base×attempt плюс случайную добавку.
type linearBackOff struct {
	base    time.Duration
	jitter  func() time.Duration
	attempt int
}

func newLinearBackOff(base time.Duration, jitter func() time.Duration) *linearBackOff {
	if jitter == nil {
		jitter = func() time.Duration { return 0 }
	}
	return &linearBackOff{base: base, jitter: jitter}
}

// NextBackOff реализует backoff.BackOff.
func (b *linearBackOff) NextBackOff() time.Duration {
	b.attempt++
	return b.base*time.Duration(b.attempt) + b.jitter()
}

// Reset реализует backoff.BackOff.
func (b *linearBackOff) Reset() {
	b.attempt = 0
}

func defaultJitter() time.Duration {
	return time.Duration(rand.Int64N(int64(time.Second)))
}
