package persist

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/suite"

	"intake/pkg/platform/sentinel"
)

type MemoryEnvelopeStoreSuite struct {
	suite.Suite
	store *InMemoryEnvelopeStore
}

func TestMemoryEnvelopeStoreSuite(t *testing.T) {
	suite.Run(t, new(MemoryEnvelopeStoreSuite))
}

func (s *MemoryEnvelopeStoreSuite) SetupTest() {
	s.store = NewInMemoryEnvelopeStore()
}

func (s *MemoryEnvelopeStoreSuite) envelope(name string) Envelope {
	return Envelope{
		Fields:  map[string]json.RawMessage{"firstName": json.RawMessage(`"` + name + `"`)},
		SavedAt: 1756684800000,
	}
}

func (s *MemoryEnvelopeStoreSuite) TestPutGetDelete() {
	ctx := context.Background()

	s.Run("put then get round trips", func() {
		s.Require().NoError(s.store.Put(ctx, "AB123", s.envelope("Jana")))
		got, err := s.store.Get(ctx, "AB123")
		s.Require().NoError(err)
		s.Equal(s.envelope("Jana"), got)
	})

	s.Run("put replaces the whole envelope", func() {
		s.Require().NoError(s.store.Put(ctx, "AB123", s.envelope("Petr")))
		got, err := s.store.Get(ctx, "AB123")
		s.Require().NoError(err)
		s.Equal(s.envelope("Petr"), got)
	})

	s.Run("missing code is not found", func() {
		_, err := s.store.Get(ctx, "ZZ999")
		s.Require().ErrorIs(err, sentinel.ErrNotFound)
	})

	s.Run("delete removes, second delete reports not found", func() {
		s.Require().NoError(s.store.Delete(ctx, "AB123"))
		s.Require().ErrorIs(s.store.Delete(ctx, "AB123"), sentinel.ErrNotFound)
	})
}

func (s *MemoryEnvelopeStoreSuite) TestList() {
	ctx := context.Background()

	all, err := s.store.List(ctx)
	s.Require().NoError(err)
	s.Empty(all)

	s.Require().NoError(s.store.Put(ctx, "AB123", s.envelope("Jana")))
	s.Require().NoError(s.store.Put(ctx, "CD456", s.envelope("Petr")))

	all, err = s.store.List(ctx)
	s.Require().NoError(err)
	s.Len(all, 2)
	s.Equal(s.envelope("Jana"), all["AB123"])

	// Mutating the listing must not reach the store.
	delete(all, "AB123")
	_, err = s.store.Get(ctx, "AB123")
	s.NoError(err)
}

func (s *MemoryEnvelopeStoreSuite) TestLastCode() {
	ctx := context.Background()

	_, err := s.store.LastCode(ctx)
	s.Require().ErrorIs(err, sentinel.ErrNotFound)

	s.Require().NoError(s.store.SetLastCode(ctx, "AB123"))
	s.Require().NoError(s.store.SetLastCode(ctx, "CD456"))

	code, err := s.store.LastCode(ctx)
	s.Require().NoError(err)
	s.Equal("CD456", code)
}
