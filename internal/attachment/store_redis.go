package attachment

import (
	"context"
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"

	"intake/pkg/platform/sentinel"
)

var gcRemoved = promauto.NewCounter(prometheus.CounterOpts{
	Name: "intake_attachment_store_gc_removed_total",
	Help: "Attachments removed by garbage collection in the Redis store",
})

// RedisStore persists payloads in Redis under the shared att: prefix. GC
// scans that prefix so the attachment keyspace must stay flat.
type RedisStore struct {
	client *redis.Client
}

func NewRedis(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Put(ctx context.Context, key string, payload []byte) error {
	// No TTL: attachment lifetime is governed by envelope GC, not time.
	return s.client.Set(ctx, key, payload, 0).Err()
}

func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, error) {
	payload, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return payload, nil
}

func (s *RedisStore) GarbageCollect(ctx context.Context, live map[string]struct{}) (int, error) {
	var (
		cursor  uint64
		removed int
	)
	for {
		keys, next, err := s.client.Scan(ctx, cursor, keyPrefix+"*", 200).Result()
		if err != nil {
			return removed, err
		}

		var dead []string
		for _, key := range keys {
			if _, ok := live[key]; !ok {
				dead = append(dead, key)
			}
		}
		if len(dead) > 0 {
			n, err := s.client.Del(ctx, dead...).Result()
			removed += int(n)
			if err != nil {
				return removed, err
			}
		}

		cursor = next
		if cursor == 0 {
			break
		}
	}
	gcRemoved.Add(float64(removed))
	return removed, nil
}
