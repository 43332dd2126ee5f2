package persist

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"

	"intake/pkg/platform/sentinel"
)

var envelopePutDurationMs = promauto.NewHistogram(prometheus.HistogramOpts{
	Name:    "intake_envelope_redis_put_duration_ms",
	Help:    "Latency of envelope writes to Redis in milliseconds",
	Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 25},
})

const (
	envelopeKeyPrefix = "env:code:"
	lastCodeKey       = "env:last"

	// Backstop TTL against abandoned keys. Twice the logical retention so
	// the savedAt-based expiry always fires first; the sweeper remains the
	// authority.
	envelopeBackstopTTL = 14 * 24 * time.Hour
)

// RedisEnvelopeStore persists envelopes as JSON strings, one key per access
// code, plus the most-recently-used pointer.
type RedisEnvelopeStore struct {
	client *redis.Client
}

func NewRedisEnvelopeStore(client *redis.Client) *RedisEnvelopeStore {
	return &RedisEnvelopeStore{client: client}
}

func (s *RedisEnvelopeStore) Get(ctx context.Context, code string) (Envelope, error) {
	data, err := s.client.Get(ctx, envelopeKeyPrefix+code).Bytes()
	if errors.Is(err, redis.Nil) {
		return Envelope{}, sentinel.ErrNotFound
	}
	if err != nil {
		return Envelope{}, err
	}
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Envelope{}, err
	}
	return env, nil
}

func (s *RedisEnvelopeStore) Put(ctx context.Context, code string, env Envelope) error {
	start := time.Now()
	defer func() {
		envelopePutDurationMs.Observe(float64(time.Since(start).Microseconds()) / 1000.0)
	}()

	data, err := json.Marshal(env)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, envelopeKeyPrefix+code, data, envelopeBackstopTTL).Err()
}

func (s *RedisEnvelopeStore) Delete(ctx context.Context, code string) error {
	n, err := s.client.Del(ctx, envelopeKeyPrefix+code).Result()
	if err != nil {
		return err
	}
	if n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *RedisEnvelopeStore) List(ctx context.Context) (map[string]Envelope, error) {
	out := map[string]Envelope{}
	var cursor uint64
	for {
		keys, next, err := s.client.Scan(ctx, cursor, envelopeKeyPrefix+"*", 100).Result()
		if err != nil {
			return nil, err
		}
		for _, key := range keys {
			data, err := s.client.Get(ctx, key).Bytes()
			if errors.Is(err, redis.Nil) {
				continue // deleted between scan and get
			}
			if err != nil {
				return nil, err
			}
			var env Envelope
			if err := json.Unmarshal(data, &env); err != nil {
				continue // corrupt entry, leave for the backstop TTL
			}
			out[strings.TrimPrefix(key, envelopeKeyPrefix)] = env
		}
		cursor = next
		if cursor == 0 {
			return out, nil
		}
	}
}

func (s *RedisEnvelopeStore) SetLastCode(ctx context.Context, code string) error {
	return s.client.Set(ctx, lastCodeKey, code, envelopeBackstopTTL).Err()
}

func (s *RedisEnvelopeStore) LastCode(ctx context.Context) (string, error) {
	code, err := s.client.Get(ctx, lastCodeKey).Result()
	if errors.Is(err, redis.Nil) {
		return "", sentinel.ErrNotFound
	}
	return code, err
}
