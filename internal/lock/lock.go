package lock

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Locker grants at most one holder at a time. TryAcquire never waits: when the
// lock is taken it returns ok=false. release is idempotent.
type Locker interface {
	TryAcquire(ctx context.Context) (release func(), ok bool, err error)
}

// Local is an in-process lock backed by a compare-and-swap flag
type Local struct {
	held atomic.Bool
}

// NewLocal creates an unlocked Local
func NewLocal() *Local {
	return &Local{}
}

func (l *Local) TryAcquire(ctx context.Context) (func(), bool, error) {
	if !l.held.CompareAndSwap(false, true) {
		return nil, false, nil
	}
	var once sync.Once
	return func() { once.Do(func() { l.held.Store(false) }) }, true, nil
}

// Held reports whether the lock is currently taken
func (l *Local) Held() bool {
	return l.held.Load()
}

// releaseScript deletes the key only if it still carries our token, so an
// expired lease re-acquired by another process is never released by us.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// refreshScript extends the lease only while it still carries our token
var refreshScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)

// Redis is a lease stored under one key with SET NX PX. The TTL bounds how
// long a crashed holder can keep others out; a live holder refreshes the
// lease every third of the TTL until it releases.
type Redis struct {
	client       *redis.Client
	key          string
	ttl          time.Duration
	refreshEvery time.Duration
}

// NewRedis creates a lease lock on key
func NewRedis(client *redis.Client, key string, ttl time.Duration) *Redis {
	return &Redis{client: client, key: key, ttl: ttl, refreshEvery: ttl / 3}
}

func (r *Redis) TryAcquire(ctx context.Context) (func(), bool, error) {
	token := uuid.NewString()

	ok, err := r.client.SetNX(ctx, r.key, token, r.ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("failed to acquire lease %s: %w", r.key, err)
	}
	if !ok {
		return nil, false, nil
	}

	stop := make(chan struct{})
	go r.keepAlive(token, stop)

	var once sync.Once
	release := func() {
		once.Do(func() {
			close(stop)
			// the caller's context may already be cancelled
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = releaseScript.Run(ctx, r.client, []string{r.key}, token).Err()
		})
	}
	return release, true, nil
}

// keepAlive refreshes the lease until stop is closed or the lease is lost
func (r *Redis) keepAlive(token string, stop <-chan struct{}) {
	if r.refreshEvery <= 0 {
		return
	}
	ticker := time.NewTicker(r.refreshEvery)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			n, err := refreshScript.Run(ctx, r.client, []string{r.key}, token, r.ttl.Milliseconds()).Int()
			cancel()
			if errors.Is(err, redis.ErrClosed) || (err == nil && n == 0) {
				return
			}
		}
	}
}

// Chain acquires every locker in order and releases them in reverse. It fails
// fast on the first locker that is held or errors.
type Chain []Locker

func (c Chain) TryAcquire(ctx context.Context) (func(), bool, error) {
	releases := make([]func(), 0, len(c))
	releaseAll := func() {
		for i := len(releases) - 1; i >= 0; i-- {
			releases[i]()
		}
	}

	for _, l := range c {
		release, ok, err := l.TryAcquire(ctx)
		if err != nil || !ok {
			releaseAll()
			return nil, false, err
		}
		releases = append(releases, release)
	}
	return releaseAll, true, nil
}
