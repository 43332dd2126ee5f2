package audit

import (
	"context"
	"time"
)

// Publisher captures structured audit events. It is append-only and delivers
// through a sink so tests can swap implementations easily.
type Publisher struct {
	sink Sink
	now  func() time.Time
}

func NewPublisher(sink Sink) *Publisher {
	return &Publisher{sink: sink, now: time.Now}
}

func (p *Publisher) Emit(ctx context.Context, ev Event) error {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = p.now()
	}
	return p.sink.Append(ctx, ev)
}
