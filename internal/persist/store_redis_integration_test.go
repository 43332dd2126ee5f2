//go:build integration

package persist_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/suite"

	"intake/internal/persist"
	"intake/pkg/platform/sentinel"
	"intake/pkg/testutil/containers"
)

type RedisEnvelopeStoreSuite struct {
	suite.Suite
	redis *containers.RedisContainer
	store *persist.RedisEnvelopeStore
}

func TestRedisEnvelopeStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(RedisEnvelopeStoreSuite))
}

func (s *RedisEnvelopeStoreSuite) SetupSuite() {
	s.redis = containers.NewRedisContainer(s.T())
	s.store = persist.NewRedisEnvelopeStore(s.redis.Client)
}

func (s *RedisEnvelopeStoreSuite) SetupTest() {
	s.Require().NoError(s.redis.FlushAll(context.Background()))
}

func envelope(name string, savedAt int64) persist.Envelope {
	return persist.Envelope{
		Fields:  map[string]json.RawMessage{"firstName": json.RawMessage(`"` + name + `"`)},
		SavedAt: savedAt,
	}
}

func (s *RedisEnvelopeStoreSuite) TestRoundTrip() {
	ctx := context.Background()

	in := envelope("Jana", 1756684800000)
	s.Require().NoError(s.store.Put(ctx, "AB123", in))

	out, err := s.store.Get(ctx, "AB123")
	s.Require().NoError(err)
	s.Equal(in, out)
}

func (s *RedisEnvelopeStoreSuite) TestMissingIsNotFound() {
	_, err := s.store.Get(context.Background(), "ZZ999")
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *RedisEnvelopeStoreSuite) TestPutReplaces() {
	ctx := context.Background()

	s.Require().NoError(s.store.Put(ctx, "AB123", envelope("Jana", 1)))
	s.Require().NoError(s.store.Put(ctx, "AB123", envelope("Petr", 2)))

	out, err := s.store.Get(ctx, "AB123")
	s.Require().NoError(err)
	s.Equal(int64(2), out.SavedAt)
	s.Equal(json.RawMessage(`"Petr"`), out.Fields["firstName"])
}

func (s *RedisEnvelopeStoreSuite) TestDelete() {
	ctx := context.Background()

	s.Require().NoError(s.store.Put(ctx, "AB123", envelope("Jana", 1)))
	s.Require().NoError(s.store.Delete(ctx, "AB123"))
	s.ErrorIs(s.store.Delete(ctx, "AB123"), sentinel.ErrNotFound)
}

func (s *RedisEnvelopeStoreSuite) TestListScansAllCodes() {
	ctx := context.Background()

	s.Require().NoError(s.store.Put(ctx, "AB123", envelope("Jana", 1)))
	s.Require().NoError(s.store.Put(ctx, "CD456", envelope("Petr", 2)))
	// Unrelated keys under other prefixes must not surface.
	s.Require().NoError(s.redis.Client.Set(ctx, "att:deadbeef", "x", 0).Err())

	all, err := s.store.List(ctx)
	s.Require().NoError(err)
	s.Len(all, 2)
	s.Contains(all, "AB123")
	s.Contains(all, "CD456")
}

func (s *RedisEnvelopeStoreSuite) TestLastCode() {
	ctx := context.Background()

	_, err := s.store.LastCode(ctx)
	s.ErrorIs(err, sentinel.ErrNotFound)

	s.Require().NoError(s.store.SetLastCode(ctx, "AB123"))
	s.Require().NoError(s.store.SetLastCode(ctx, "CD456"))

	code, err := s.store.LastCode(ctx)
	s.Require().NoError(err)
	s.Equal("CD456", code)
}
