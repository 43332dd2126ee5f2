package persist

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"intake/internal/attachment"
	"intake/internal/form"
	"intake/pkg/platform/sentinel"
)

// engineFixture wires an engine over in-memory stores with a settable clock.
type engineFixture struct {
	engine      *Engine
	envelopes   *InMemoryEnvelopeStore
	attachments *attachment.InMemoryStore
	now         time.Time
}

func newEngineFixture(opts ...Option) *engineFixture {
	f := &engineFixture{
		envelopes:   NewInMemoryEnvelopeStore(),
		attachments: attachment.NewInMemory(),
		now:         day(2026, time.March, 1),
	}
	opts = append(opts, WithClock(func() time.Time { return f.now }))
	f.engine = NewEngine(f.envelopes, f.attachments, testLogger(), opts...)
	return f
}

func (f *engineFixture) advance(d time.Duration) { f.now = f.now.Add(d) }

func TestEngine_SaveLoad(t *testing.T) {
	ctx := context.Background()
	f := newEngineFixture()

	in := richRecord()
	require.NoError(t, f.engine.Save(ctx, "AB123", in))

	out, err := f.engine.Load(ctx, "AB123")
	require.NoError(t, err)
	assert.Equal(t, in, out)

	last, err := f.engine.LastCode(ctx)
	require.NoError(t, err)
	assert.Equal(t, "AB123", last)
}

func TestEngine_CodeLengthGate(t *testing.T) {
	ctx := context.Background()
	f := newEngineFixture()

	t.Run("short code makes save a no-op", func(t *testing.T) {
		require.NoError(t, f.engine.Save(ctx, "AB", richRecord()))
		_, err := f.envelopes.Get(ctx, "AB")
		assert.ErrorIs(t, err, sentinel.ErrNotFound)
	})

	t.Run("overlong code loads empty without touching the store", func(t *testing.T) {
		r, err := f.engine.Load(ctx, "ABCDEFGHIJK")
		require.NoError(t, err)
		assert.Empty(t, r)
	})
}

func TestEngine_LoadUnknownCodeIsEmpty(t *testing.T) {
	f := newEngineFixture()
	r, err := f.engine.Load(context.Background(), "ZZ999")
	require.NoError(t, err)
	require.NotNil(t, r)
	assert.Empty(t, r)
}

func TestEngine_ExpiryOnLoad(t *testing.T) {
	ctx := context.Background()
	f := newEngineFixture()

	require.NoError(t, f.engine.Save(ctx, "AB123", richRecord()))

	t.Run("just inside the window still loads", func(t *testing.T) {
		f.advance(DefaultRetention - time.Minute)
		r, err := f.engine.Load(ctx, "AB123")
		require.NoError(t, err)
		assert.Equal(t, form.String("Jana"), r["firstName"])
	})

	t.Run("past the window loads empty and deletes", func(t *testing.T) {
		f.advance(2 * time.Minute)
		r, err := f.engine.Load(ctx, "AB123")
		require.NoError(t, err)
		assert.Empty(t, r)

		_, err = f.envelopes.Get(ctx, "AB123")
		assert.ErrorIs(t, err, sentinel.ErrNotFound)
	})
}

func TestEngine_SaveResetsExpiry(t *testing.T) {
	ctx := context.Background()
	f := newEngineFixture()

	require.NoError(t, f.engine.Save(ctx, "AB123", richRecord()))
	f.advance(5 * 24 * time.Hour)
	require.NoError(t, f.engine.Save(ctx, "AB123", richRecord()))
	f.advance(5 * 24 * time.Hour)

	// Ten days after the first save but only five after the second.
	r, err := f.engine.Load(ctx, "AB123")
	require.NoError(t, err)
	assert.NotEmpty(t, r)
}

func TestEngine_Delete(t *testing.T) {
	ctx := context.Background()
	f := newEngineFixture()

	require.NoError(t, f.engine.Save(ctx, "AB123", richRecord()))
	require.NoError(t, f.engine.Delete(ctx, "AB123"))

	r, err := f.engine.Load(ctx, "AB123")
	require.NoError(t, err)
	assert.Empty(t, r)

	// Deleting again is not an error.
	assert.NoError(t, f.engine.Delete(ctx, "AB123"))
}

func TestEngine_SweepExpired(t *testing.T) {
	ctx := context.Background()
	f := newEngineFixture(WithRetention(48 * time.Hour))

	require.NoError(t, f.engine.Save(ctx, "OLD12", richRecord()))
	f.advance(72 * time.Hour)
	require.NoError(t, f.engine.Save(ctx, "NEW34", richRecord()))

	require.NoError(t, f.engine.SweepExpired(ctx))

	t.Run("expired envelope is gone", func(t *testing.T) {
		_, err := f.envelopes.Get(ctx, "OLD12")
		assert.ErrorIs(t, err, sentinel.ErrNotFound)
	})

	t.Run("expired envelope's attachments are collected", func(t *testing.T) {
		_, err := f.attachments.Get(ctx, attachment.DeriveKey("OLD12", "idCardFront", 0))
		assert.ErrorIs(t, err, sentinel.ErrNotFound)
	})

	t.Run("survivor keeps envelope and attachments", func(t *testing.T) {
		r, err := f.engine.Load(ctx, "NEW34")
		require.NoError(t, err)
		require.Len(t, r["idCardFront"].Images, 2)
	})
}

// listPauseStore stalls the sweep right after its envelope listing so a
// concurrent save can try to land before the GC pass.
type listPauseStore struct {
	*InMemoryEnvelopeStore
	once   sync.Once
	during func()
}

func (s *listPauseStore) List(ctx context.Context) (map[string]Envelope, error) {
	all, err := s.InMemoryEnvelopeStore.List(ctx)
	s.once.Do(s.during)
	return all, err
}

func TestEngine_SweepDoesNotCollectConcurrentSave(t *testing.T) {
	ctx := context.Background()
	attachments := attachment.NewInMemory()
	store := &listPauseStore{InMemoryEnvelopeStore: NewInMemoryEnvelopeStore()}

	var engine *Engine
	saved := make(chan struct{})
	store.during = func() {
		go func() {
			defer close(saved)
			assert.NoError(t, engine.Save(ctx, "NEW34", richRecord()))
		}()
		// Let the save reach the engine before the sweep resumes.
		time.Sleep(50 * time.Millisecond)
	}
	engine = NewEngine(store, attachments, testLogger())

	require.NoError(t, engine.SweepExpired(ctx))
	<-saved

	r, err := engine.Load(ctx, "NEW34")
	require.NoError(t, err)
	assert.Len(t, r["idCardFront"].Images, 2, "attachments written during the sweep survive it")
}

func TestEngine_LastCodeFollowsSaves(t *testing.T) {
	ctx := context.Background()
	f := newEngineFixture()

	last, err := f.engine.LastCode(ctx)
	require.NoError(t, err)
	assert.Empty(t, last)

	require.NoError(t, f.engine.Save(ctx, "AB123", richRecord()))
	require.NoError(t, f.engine.Save(ctx, "CD456", richRecord()))

	last, err = f.engine.LastCode(ctx)
	require.NoError(t, err)
	assert.Equal(t, "CD456", last)
}
