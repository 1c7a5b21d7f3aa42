// Package redispointer keeps period pointers in Redis so several processes
// can share them without a SQL database.
package redispointer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/colonyops/cadence/internal/core/period"
	"github.com/colonyops/cadence/internal/core/storeerr"
	"github.com/colonyops/cadence/internal/core/workitem"
)

// DefaultPrefix namespaces pointer keys.
const DefaultPrefix = "cadence:pointer:"

// swapScript is a compare-and-set on a string key. A missing key compares
// equal to the empty string, which stands for an unset pointer.
// KEYS[1] = pointer key
// ARGV[1] = expected current value ("" when unset)
// ARGV[2] = new value
var swapScript = redis.NewScript(`
local current = redis.call("GET", KEYS[1])
if not current then
    current = ""
end
if current ~= ARGV[1] then
    return 0
end
redis.call("SET", KEYS[1], ARGV[2])
return 1
`)

// Store implements workitem.PointerStore using Redis.
type Store struct {
	client redis.UniversalClient
	prefix string
}

var _ workitem.PointerStore = (*Store)(nil)

// New creates a pointer store over client. An empty prefix uses DefaultPrefix.
func New(client redis.UniversalClient, prefix string) *Store {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Store{client: client, prefix: prefix}
}

// Pointer returns the item's pointer, Unset if the key does not exist.
func (s *Store) Pointer(ctx context.Context, itemID string) (workitem.Pointer, error) {
	val, err := s.client.Get(ctx, s.key(itemID)).Result()
	if errors.Is(err, redis.Nil) {
		return workitem.Unset(), nil
	}
	if err != nil {
		return workitem.Pointer{}, wrapErr("read pointer", err)
	}
	return workitem.Recorded(period.Key(val)), nil
}

// SwapPointer atomically replaces prev with next.
func (s *Store) SwapPointer(ctx context.Context, itemID string, prev workitem.Pointer, next period.Key) error {
	expected, _ := prev.Key()

	swapped, err := swapScript.Run(ctx, s.client, []string{s.key(itemID)}, string(expected), string(next)).Int()
	if err != nil {
		return wrapErr("swap pointer", err)
	}
	if swapped != 1 {
		return workitem.ErrStalePointer
	}
	return nil
}

func (s *Store) key(itemID string) string {
	return s.prefix + itemID
}

func wrapErr(op string, err error) error {
	if isTransient(err) {
		return storeerr.Wrap(op, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

// isTransient covers dropped connections and servers that are loading or
// failing over.
func isTransient(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) || errors.Is(err, io.EOF) {
		return true
	}
	msg := err.Error()
	for _, prefix := range []string{"LOADING", "TRYAGAIN", "CLUSTERDOWN", "MASTERDOWN", "READONLY"} {
		if strings.HasPrefix(msg, prefix) {
			return true
		}
	}
	return false
}
