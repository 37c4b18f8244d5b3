// README: Redis-backed session lock (cross-instance single flight) and snapshot cache.
package session

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"wayfarer/internal/types"
)

const (
	DefaultLockTTL     = 60 * time.Second
	DefaultSnapshotTTL = 24 * time.Hour
)

// releaseScript deletes the lock only if it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

type Cache struct {
	rdb         *redis.Client
	lockTTL     time.Duration
	snapshotTTL time.Duration
}

// NewCache returns a Cache. Non-positive lockTTL falls back to DefaultLockTTL.
func NewCache(rdb *redis.Client, lockTTL time.Duration) *Cache {
	if lockTTL <= 0 {
		lockTTL = DefaultLockTTL
	}
	return &Cache{rdb: rdb, lockTTL: lockTTL, snapshotTTL: DefaultSnapshotTTL}
}

// Acquire takes the session's submission lock. ok is false when another holder has it.
func (c *Cache) Acquire(ctx context.Context, id types.ID) (token string, ok bool, err error) {
	token = uuid.NewString()
	ok, err = c.rdb.SetNX(ctx, lockKey(id), token, c.lockTTL).Result()
	if err != nil {
		return "", false, err
	}
	return token, ok, nil
}

// Release drops the lock if token still owns it.
func (c *Cache) Release(ctx context.Context, id types.ID, token string) error {
	return releaseScript.Run(ctx, c.rdb, []string{lockKey(id)}, token).Err()
}

// Put stores the session view under its snapshot key.
func (c *Cache) Put(ctx context.Context, sess *Session) error {
	payload, err := json.Marshal(sess)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, snapshotKey(sess.ID), payload, c.snapshotTTL).Err()
}

// Get returns nil, nil on a cache miss.
func (c *Cache) Get(ctx context.Context, id types.ID) (*Session, error) {
	payload, err := c.rdb.Get(ctx, snapshotKey(id)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var sess Session
	if err := json.Unmarshal(payload, &sess); err != nil {
		return nil, fmt.Errorf("decode cached session: %w", err)
	}
	return &sess, nil
}

func lockKey(id types.ID) string {
	return fmt.Sprintf("wayfarer:session:%s:lock", string(id))
}

func snapshotKey(id types.ID) string {
	return fmt.Sprintf("wayfarer:session:%s:snapshot", string(id))
}
