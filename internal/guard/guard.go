// Package guard rejects overlapping submissions of the same transition.
// A key is held from Acquire until the returned release func runs or the
// ttl lapses.
package guard

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// ErrBusy is returned when the key is already held.
var ErrBusy = errors.New("another submission for this record is in progress")

// Guard hands out short-lived exclusive holds on string keys.
type Guard interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (release func(), err error)
}

// MemoryGuard is a process-local Guard.
type MemoryGuard struct {
	mu   sync.Mutex
	held map[string]time.Time
	now  func() time.Time
}

// NewMemoryGuard creates an empty MemoryGuard.
func NewMemoryGuard() *MemoryGuard {
	return &MemoryGuard{held: make(map[string]time.Time), now: time.Now}
}

func (g *MemoryGuard) Acquire(_ context.Context, key string, ttl time.Duration) (func(), error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	now := g.now()
	if until, ok := g.held[key]; ok && now.Before(until) {
		return nil, errors.Wrapf(ErrBusy, "%s", key)
	}
	until := now.Add(ttl)
	g.held[key] = until
	return func() {
		g.mu.Lock()
		defer g.mu.Unlock()
		if g.held[key].Equal(until) {
			delete(g.held, key)
		}
	}, nil
}

// releaseScript deletes the key only while it still carries our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisGuard shares holds across replicas through SET NX.
type RedisGuard struct {
	client redis.UniversalClient
	prefix string
}

// NewRedisGuard creates a RedisGuard namespacing keys under prefix.
func NewRedisGuard(client redis.UniversalClient, prefix string) *RedisGuard {
	return &RedisGuard{client: client, prefix: prefix}
}

func (g *RedisGuard) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	k := g.prefix + key
	token := uuid.NewString()
	ok, err := g.client.SetNX(ctx, k, token, ttl).Result()
	if err != nil {
		return nil, errors.Wrapf(err, "acquiring %s", k)
	}
	if !ok {
		return nil, errors.Wrapf(ErrBusy, "%s", key)
	}
	return func() {
		// The caller's ctx may already be cancelled.
		rctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = releaseScript.Run(rctx, g.client, []string{k}, token).Err()
	}, nil
}
