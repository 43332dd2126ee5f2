package persist

import "context"

// EnvelopeStore is the keyed envelope keyspace: one entry per access code
// plus one pointer to the most recently used code. Get returns
// sentinel.ErrNotFound for absent codes; writes replace the whole envelope.
type EnvelopeStore interface {
	Get(ctx context.Context, code string) (Envelope, error)
	Put(ctx context.Context, code string, env Envelope) error
	Delete(ctx context.Context, code string) error
	// List returns every stored envelope keyed by code. The sweeper is the
	// only caller; stores may read lazily but must return a consistent
	// snapshot of codes.
	List(ctx context.Context) (map[string]Envelope, error)

	SetLastCode(ctx context.Context, code string) error
	LastCode(ctx context.Context) (string, error)
}
