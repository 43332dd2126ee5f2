package audit

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// BreakerSink guards a delivery sink with a circuit. A run of consecutive
// failures opens the circuit; while open, events are dropped without
// touching the sink, and once the cooldown expires the next delivery is let
// through to test whether the sink recovered.
type BreakerSink struct {
	sink   Sink
	logger *slog.Logger

	threshold int
	cooldown  time.Duration
	now       func() time.Time

	mu        sync.Mutex
	failures  int
	openUntil time.Time
	open      bool
}

// BreakerOption configures a BreakerSink.
type BreakerOption func(*BreakerSink)

// WithFailureThreshold sets how many consecutive failures open the circuit.
func WithFailureThreshold(n int) BreakerOption {
	return func(b *BreakerSink) { b.threshold = n }
}

// WithCooldown sets how long the circuit stays open.
func WithCooldown(d time.Duration) BreakerOption {
	return func(b *BreakerSink) { b.cooldown = d }
}

// WithBreakerClock injects time for cooldown tests.
func WithBreakerClock(now func() time.Time) BreakerOption {
	return func(b *BreakerSink) { b.now = now }
}

// NewBreakerSink wraps a sink. Defaults: five failures open the circuit for
// one minute.
func NewBreakerSink(sink Sink, logger *slog.Logger, opts ...BreakerOption) *BreakerSink {
	b := &BreakerSink{
		sink:      sink,
		logger:    logger,
		threshold: 5,
		cooldown:  time.Minute,
		now:       time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(b)
		}
	}
	return b
}

// Append delivers the event unless the circuit is open. Dropped events are
// logged, not returned as errors; the audit trail is best-effort and must
// never take the session down with it.
func (b *BreakerSink) Append(ctx context.Context, ev Event) error {
	if !b.allow() {
		b.logger.WarnContext(ctx, "audit circuit open, dropping event",
			"action", string(ev.Action), "code", ev.Code)
		return nil
	}
	if err := b.sink.Append(ctx, ev); err != nil {
		b.recordFailure()
		return err
	}
	b.recordSuccess()
	return nil
}

// IsOpen reports whether deliveries are currently being dropped.
func (b *BreakerSink) IsOpen() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.open
}

func (b *BreakerSink) allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.open {
		return true
	}
	if b.now().After(b.openUntil) {
		b.open = false
		b.failures = 0
		return true
	}
	return false
}

func (b *BreakerSink) recordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures++
	if b.failures >= b.threshold {
		b.open = true
		b.openUntil = b.now().Add(b.cooldown)
	}
}

func (b *BreakerSink) recordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures = 0
	b.open = false
}
