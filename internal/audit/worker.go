package audit

import "context"

// Worker consumes audit events from a channel and forwards them to a sink.
// It decouples request handling from delivery latency.
type Worker struct {
	sink  Sink
	inbox <-chan Event
}

func NewWorker(sink Sink, inbox <-chan Event) *Worker {
	return &Worker{sink: sink, inbox: inbox}
}

func (w *Worker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev := <-w.inbox:
			if err := w.sink.Append(ctx, ev); err != nil {
				return err
			}
		}
	}
}
