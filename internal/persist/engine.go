package persist

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"intake/internal/attachment"
	"intake/internal/form"
	"intake/internal/platform/metrics"
	"intake/pkg/platform/sentinel"
)

// Engine orchestrates envelope storage: keyed load/save under an access code,
// staleness expiry, and orphaned-attachment cleanup. It reads record
// snapshots and writes full replacements, never partial patches.
type Engine struct {
	envelopes   EnvelopeStore
	attachments attachment.Store
	codec       *Codec
	retention   time.Duration
	logger      *slog.Logger
	metrics     *metrics.Metrics
	now         func() time.Time

	// sweepGate keeps saves and sweeps from interleaving: an attachment
	// written between the sweep's envelope snapshot and its GC pass would
	// be missing from the live set and collected while still referenced.
	sweepGate sync.RWMutex
}

// Option configures the engine.
type Option func(*Engine)

// WithRetention overrides the 7-day default expiry window.
func WithRetention(d time.Duration) Option {
	return func(e *Engine) { e.retention = d }
}

// WithMetrics attaches Prometheus counters.
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithClock injects time for expiry tests.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// DefaultRetention is how long an untouched envelope survives.
const DefaultRetention = 7 * 24 * time.Hour

// NewEngine wires the persistence engine.
func NewEngine(envelopes EnvelopeStore, attachments attachment.Store, logger *slog.Logger, opts ...Option) *Engine {
	e := &Engine{
		envelopes:   envelopes,
		attachments: attachments,
		codec:       NewCodec(attachments, logger),
		retention:   DefaultRetention,
		logger:      logger,
		now:         time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	return e
}

// Load reads the record stored under a code. Absent code, invalid code
// length, or an expired envelope all yield an empty record; expired
// envelopes are deleted on the way out.
func (e *Engine) Load(ctx context.Context, code string) (form.Record, error) {
	if !form.CodeOK(code) {
		return form.Empty(), nil
	}

	start := e.now()
	env, err := e.envelopes.Get(ctx, code)
	if errors.Is(err, sentinel.ErrNotFound) {
		return form.Empty(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("load envelope %s: %w", code, err)
	}

	if env.Age(e.now()) > e.retention {
		e.logger.InfoContext(ctx, "envelope expired, deleting", "code", code)
		if err := e.envelopes.Delete(ctx, code); err != nil {
			e.logger.WarnContext(ctx, "failed to delete expired envelope", "code", code, "error", err)
		}
		return form.Empty(), nil
	}

	r, err := e.codec.Deserialize(ctx, env)
	if err != nil {
		return nil, err
	}
	if e.metrics != nil {
		e.metrics.ObserveLoad(e.now().Sub(start))
	}
	return r, nil
}

// Save serializes and stores the record under the code, replacing any prior
// envelope entirely. Codes outside the length bound make it a no-op.
func (e *Engine) Save(ctx context.Context, code string, r form.Record) error {
	if !form.CodeOK(code) {
		return nil
	}

	e.sweepGate.RLock()
	defer e.sweepGate.RUnlock()

	start := e.now()
	env, err := e.codec.Serialize(ctx, r, code, e.now())
	if err != nil {
		return err
	}
	if err := e.envelopes.Put(ctx, code, env); err != nil {
		return fmt.Errorf("save envelope %s: %w", code, err)
	}
	if err := e.envelopes.SetLastCode(ctx, code); err != nil {
		e.logger.WarnContext(ctx, "failed to update last-code pointer", "error", err)
	}
	if e.metrics != nil {
		e.metrics.ObserveSave(e.now().Sub(start))
	}
	return nil
}

// Delete removes the envelope for a code. Attachments are left to the next
// sweep.
func (e *Engine) Delete(ctx context.Context, code string) error {
	err := e.envelopes.Delete(ctx, code)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil
	}
	return err
}

// LastCode returns the most recently saved access code, or "" when none.
func (e *Engine) LastCode(ctx context.Context) (string, error) {
	code, err := e.envelopes.LastCode(ctx)
	if errors.Is(err, sentinel.ErrNotFound) {
		return "", nil
	}
	return code, err
}

// SweepExpired removes stale envelopes and then garbage-collects attachments
// against the refs of the survivors. The order matters: expiring first and
// collecting against what remains guarantees a borderline envelope that
// survived this pass keeps all of its attachments.
func (e *Engine) SweepExpired(ctx context.Context) error {
	e.sweepGate.Lock()
	defer e.sweepGate.Unlock()

	all, err := e.envelopes.List(ctx)
	if err != nil {
		return fmt.Errorf("list envelopes: %w", err)
	}

	now := e.now()
	swept := 0
	for code, env := range all {
		if env.Age(now) <= e.retention {
			continue
		}
		if err := e.envelopes.Delete(ctx, code); err != nil {
			e.logger.WarnContext(ctx, "failed to delete expired envelope", "code", code, "error", err)
			continue
		}
		delete(all, code)
		swept++
	}

	live := map[string]struct{}{}
	for _, env := range all {
		collectRefs(env, live)
	}

	removed, err := e.attachments.GarbageCollect(ctx, live)
	if err != nil {
		return fmt.Errorf("garbage collect attachments: %w", err)
	}

	if e.metrics != nil {
		e.metrics.EnvelopesSwept.Add(float64(swept))
		e.metrics.AttachmentsGCed.Add(float64(removed))
	}
	e.logger.InfoContext(ctx, "sweep completed",
		"envelopes_swept", swept,
		"attachments_removed", removed,
		"envelopes_remaining", len(all),
	)
	return nil
}

// collectRefs extracts attachment keys from an envelope's image fields.
func collectRefs(env Envelope, into map[string]struct{}) {
	for name, raw := range env.Fields {
		spec, ok := form.Spec(name)
		if !ok || spec.Kind != form.KindImages {
			continue
		}
		var keys []string
		if err := json.Unmarshal(raw, &keys); err != nil {
			continue
		}
		for _, key := range keys {
			into[key] = struct{}{}
		}
	}
}
