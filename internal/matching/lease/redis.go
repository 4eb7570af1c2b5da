package lease

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"dadcircles/pkg/platform/sentinel"
)

const (
	defaultKey = "dadcircles:matching:lease"
	defaultTTL = 5 * time.Minute
)

// releaseScript deletes the lease only when the stored token still matches,
// so a holder whose lease expired cannot release a successor's.
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0`)

// Redis is a cross-process lease on a single key: SET NX EX to acquire,
// check-and-del to release. The TTL bounds how long a crashed holder blocks
// the next run.
type Redis struct {
	client *redis.Client
	key    string
	ttl    time.Duration
}

// NewRedis creates a lease on the given key. Zero values pick the defaults.
func NewRedis(client *redis.Client, key string, ttl time.Duration) *Redis {
	if key == "" {
		key = defaultKey
	}
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &Redis{client: client, key: key, ttl: ttl}
}

// Acquire takes the lease or reports sentinel.ErrConflict.
func (l *Redis) Acquire(ctx context.Context) (func(ctx context.Context) error, error) {
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, l.key, token, l.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("acquire run lease: %w", err)
	}
	if !ok {
		return nil, sentinel.ErrConflict
	}
	return func(ctx context.Context) error {
		if err := releaseScript.Run(ctx, l.client, []string{l.key}, token).Err(); err != nil {
			return fmt.Errorf("release run lease: %w", err)
		}
		return nil
	}, nil
}
