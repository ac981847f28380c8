package lock

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Failed to start miniredis: %v", err)
	}
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		client.Close()
		mr.Close()
	})
	return mr, client
}

func TestLocalRejectsSecondHolder(t *testing.T) {
	l := NewLocal()
	ctx := context.Background()

	release, ok, err := l.TryAcquire(ctx)
	if err != nil || !ok {
		t.Fatalf("first acquire failed: ok=%v err=%v", ok, err)
	}
	if _, ok, _ := l.TryAcquire(ctx); ok {
		t.Fatal("second acquire must be rejected while held")
	}

	release()
	release()
	if l.Held() {
		t.Fatal("lock should be free after release")
	}
	if _, ok, _ := l.TryAcquire(ctx); !ok {
		t.Fatal("acquire after release must succeed")
	}
}

func TestLocalSingleWinnerUnderContention(t *testing.T) {
	l := NewLocal()
	var winners atomic.Int32
	var wg sync.WaitGroup
	start := make(chan struct{})

	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			if _, ok, _ := l.TryAcquire(context.Background()); ok {
				winners.Add(1)
			}
		}()
	}
	close(start)
	wg.Wait()

	if winners.Load() != 1 {
		t.Fatalf("expected exactly one winner, got %d", winners.Load())
	}
}

func TestRedisLease(t *testing.T) {
	mr, client := newRedis(t)
	ctx := context.Background()
	a := NewRedis(client, "import:lock", time.Minute)
	b := NewRedis(client, "import:lock", time.Minute)

	release, ok, err := a.TryAcquire(ctx)
	if err != nil || !ok {
		t.Fatalf("first acquire failed: ok=%v err=%v", ok, err)
	}
	if _, ok, _ := b.TryAcquire(ctx); ok {
		t.Fatal("second process must not acquire a held lease")
	}

	release()
	if mr.Exists("import:lock") {
		t.Fatal("release must delete the lease")
	}
	releaseB, ok, _ := b.TryAcquire(ctx)
	if !ok {
		t.Fatal("lease should be free after release")
	}
	releaseB()
}

// waitFor polls cond until it holds or a second has passed
func waitFor(t *testing.T, cond func() bool) bool {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return cond()
}

func TestRedisLeaseIsRefreshedWhileHeld(t *testing.T) {
	mr, client := newRedis(t)
	ctx := context.Background()
	l := NewRedis(client, "import:lock", time.Minute)
	l.refreshEvery = 10 * time.Millisecond

	release, ok, err := l.TryAcquire(ctx)
	if err != nil || !ok {
		t.Fatalf("acquire failed: ok=%v err=%v", ok, err)
	}

	// a long import: most of the lease has elapsed
	mr.FastForward(55 * time.Second)
	if !waitFor(t, func() bool { return mr.TTL("import:lock") > 30*time.Second }) {
		t.Fatalf("lease was not refreshed, ttl %s", mr.TTL("import:lock"))
	}

	mr.FastForward(55 * time.Second)
	if !mr.Exists("import:lock") {
		t.Fatal("refreshed lease must outlive its original ttl")
	}
	if _, ok, _ := NewRedis(client, "import:lock", time.Minute).TryAcquire(ctx); ok {
		t.Fatal("another process acquired a lease that is still held")
	}

	release()
	if mr.Exists("import:lock") {
		t.Fatal("release must delete the lease")
	}
}

func TestRedisLeaseRefreshSkipsForeignToken(t *testing.T) {
	mr, client := newRedis(t)
	l := NewRedis(client, "import:lock", time.Minute)
	l.refreshEvery = 10 * time.Millisecond

	release, ok, _ := l.TryAcquire(context.Background())
	if !ok {
		t.Fatal("acquire failed")
	}
	defer release()

	// the lease expired and another process took it with a short ttl
	mr.Set("import:lock", "someone-else")
	mr.SetTTL("import:lock", 5*time.Second)

	time.Sleep(50 * time.Millisecond)
	if ttl := mr.TTL("import:lock"); ttl > 5*time.Second {
		t.Fatalf("refresh extended a lease it does not own, ttl %s", ttl)
	}
}

func TestRedisLeaseExpiryIsNotReleasedByOldHolder(t *testing.T) {
	mr, client := newRedis(t)
	ctx := context.Background()
	a := NewRedis(client, "import:lock", time.Second)
	b := NewRedis(client, "import:lock", time.Minute)

	releaseA, ok, _ := a.TryAcquire(ctx)
	if !ok {
		t.Fatal("first acquire failed")
	}
	mr.FastForward(2 * time.Second)

	if _, ok, _ := b.TryAcquire(ctx); !ok {
		t.Fatal("expired lease should be acquirable")
	}
	releaseA()
	if !mr.Exists("import:lock") {
		t.Fatal("stale holder released someone else's lease")
	}
}

func TestRedisErrorsAreReported(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer client.Close()

	_, ok, err := NewRedis(client, "k", time.Second).TryAcquire(context.Background())
	if ok || err == nil {
		t.Fatalf("expected an error from an unreachable redis, got ok=%v err=%v", ok, err)
	}
}

func TestChainReleasesOnPartialFailure(t *testing.T) {
	first, second := NewLocal(), NewLocal()
	_, _, _ = second.TryAcquire(context.Background())

	if _, ok, _ := (Chain{first, second}).TryAcquire(context.Background()); ok {
		t.Fatal("chain must fail when any member is held")
	}
	if first.Held() {
		t.Fatal("chain must release members acquired before the failure")
	}
}
