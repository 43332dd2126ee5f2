// Package attachment stores image payloads out-of-band from form envelopes.
// Keys are derived deterministically from (code, field, index) so re-saving a
// slot overwrites instead of duplicating, and keeping payloads out of the
// envelope keeps single-key writes small.
package attachment

import (
	"context"
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/blake2b"
)

// Store is a flat binary keyspace. Get on a missing key returns
// sentinel.ErrNotFound; callers treat that as a skippable condition, not a
// failure.
type Store interface {
	Put(ctx context.Context, key string, payload []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
	// GarbageCollect deletes every entry whose key is not in live and
	// returns how many were removed.
	GarbageCollect(ctx context.Context, live map[string]struct{}) (int, error)
}

const keyPrefix = "att:"

// DeriveKey maps (code, field, index) to an opaque store key. The same triple
// always yields the same key; callers never invent keys themselves.
func DeriveKey(code, field string, index int) string {
	sum := blake2b.Sum256(fmt.Appendf(nil, "%s\x00%s\x00%d", code, field, index))
	return keyPrefix + hex.EncodeToString(sum[:16])
}
