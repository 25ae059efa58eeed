package connection

import "time"

// ReconnectPolicy tracks the backoff schedule for one reconnect
// sequence. The delay grows geometrically up to a ceiling and resets
// whenever a connection succeeds. Not safe for concurrent use; the
// manager's run loop owns it.
type ReconnectPolicy struct {
	initialDelay time.Duration
	maxDelay     time.Duration
	multiplier   float64
	maxAttempts  int

	attempts int
	delay    time.Duration
}

// NewReconnectPolicy builds a policy starting at initial and growing by
// multiplier per attempt, capped at max.
func NewReconnectPolicy(initial, max time.Duration, multiplier float64, maxAttempts int) *ReconnectPolicy {
	return &ReconnectPolicy{
		initialDelay: initial,
		maxDelay:     max,
		multiplier:   multiplier,
		maxAttempts:  maxAttempts,
		delay:        initial,
	}
}

// NextDelay returns the wait before the next attempt and advances the
// schedule. The first call after a reset returns the initial delay.
func (p *ReconnectPolicy) NextDelay() time.Duration {
	d := p.delay

	p.attempts++
	next := time.Duration(float64(p.delay) * p.multiplier)
	if next > p.maxDelay {
		next = p.maxDelay
	}
	p.delay = next

	return d
}

// Exhausted reports whether the attempt budget is spent.
func (p *ReconnectPolicy) Exhausted() bool {
	return p.attempts >= p.maxAttempts
}

// Reset restores the initial schedule. Called on every successful
// connect and on manual disconnect.
func (p *ReconnectPolicy) Reset() {
	p.attempts = 0
	p.delay = p.initialDelay
}

// Attempts returns how many reconnects this sequence has scheduled.
func (p *ReconnectPolicy) Attempts() int {
	return p.attempts
}
