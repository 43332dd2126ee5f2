//go:build integration

package attachment_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/suite"

	"intake/internal/attachment"
	"intake/pkg/platform/sentinel"
	"intake/pkg/testutil/containers"
)

type RedisStoreSuite struct {
	suite.Suite
	redis *containers.RedisContainer
	store *attachment.RedisStore
}

func TestRedisStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(RedisStoreSuite))
}

func (s *RedisStoreSuite) SetupSuite() {
	s.redis = containers.NewRedisContainer(s.T())
	s.store = attachment.NewRedis(s.redis.Client)
}

func (s *RedisStoreSuite) SetupTest() {
	s.Require().NoError(s.redis.FlushAll(context.Background()))
}

func (s *RedisStoreSuite) TestRoundTrip() {
	ctx := context.Background()
	key := attachment.DeriveKey("AB123", "idCardFront", 0)

	s.Require().NoError(s.store.Put(ctx, key, []byte("payload")))

	got, err := s.store.Get(ctx, key)
	s.Require().NoError(err)
	s.Equal([]byte("payload"), got)
}

func (s *RedisStoreSuite) TestMissingIsNotFound() {
	_, err := s.store.Get(context.Background(), attachment.DeriveKey("ZZ999", "photo", 0))
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *RedisStoreSuite) TestGarbageCollect() {
	ctx := context.Background()

	keep := attachment.DeriveKey("AB123", "idCardFront", 0)
	drop := attachment.DeriveKey("CD456", "idCardFront", 0)
	s.Require().NoError(s.store.Put(ctx, keep, []byte("keep")))
	s.Require().NoError(s.store.Put(ctx, drop, []byte("drop")))
	// Keys outside the attachment prefix must survive a sweep.
	s.Require().NoError(s.redis.Client.Set(ctx, "env:code:AB123", "{}", 0).Err())

	removed, err := s.store.GarbageCollect(ctx, map[string]struct{}{keep: {}})
	s.Require().NoError(err)
	s.Equal(1, removed)

	_, err = s.store.Get(ctx, drop)
	s.ErrorIs(err, sentinel.ErrNotFound)
	_, err = s.store.Get(ctx, keep)
	s.NoError(err)

	exists, err := s.redis.Client.Exists(ctx, "env:code:AB123").Result()
	s.Require().NoError(err)
	s.Equal(int64(1), exists)
}
