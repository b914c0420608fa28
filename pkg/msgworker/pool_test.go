package msgworker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// chatsOnDistinctShards devuelve n chat keys que caen en workers distintos.
func chatsOnDistinctShards(t *testing.T, p *Pool, tenant string, n int) []string {
	t.Helper()
	seen := map[int]bool{}
	var keys []string
	for i := 0; len(keys) < n && i < 10000; i++ {
		chat := fmt.Sprintf("+5199900%04d", i)
		shard := p.shardFor(Job{TenantID: tenant, ChatKey: chat}.key())
		if !seen[shard] {
			seen[shard] = true
			keys = append(keys, chat)
		}
	}
	require.Len(t, keys, n)
	return keys
}

// Dispatch debe retornar sin esperar al handler
func TestPool_DispatchNonBlocking(t *testing.T) {
	pool := NewPool(2, 10)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool.Start(ctx)
	defer pool.Stop()

	start := time.Now()
	pool.Dispatch(Job{
		TenantID: "t1",
		ChatKey:  "+123",
		Handler: func(ctx context.Context) error {
			time.Sleep(100 * time.Millisecond)
			return nil
		},
	})

	assert.Less(t, time.Since(start), 10*time.Millisecond, "Dispatch debe ser no bloqueante")
}

// Jobs del mismo chat se procesan en orden de llegada
func TestPool_SameChatSequentialProcessing(t *testing.T) {
	pool := NewPool(4, 100)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool.Start(ctx)
	defer pool.Stop()

	var results []int
	var mu sync.Mutex
	var wg sync.WaitGroup

	for i := 1; i <= 5; i++ {
		val := i
		wg.Add(1)
		pool.Dispatch(Job{
			TenantID: "t1",
			ChatKey:  "+51999888777",
			Handler: func(ctx context.Context) error {
				defer wg.Done()
				time.Sleep(5 * time.Millisecond)
				mu.Lock()
				results = append(results, val)
				mu.Unlock()
				return nil
			},
		})
	}

	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, []int{1, 2, 3, 4, 5}, results)
}

// Chats en distintos workers corren en paralelo
func TestPool_DifferentChatsParallelProcessing(t *testing.T) {
	pool := NewPool(4, 100)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool.Start(ctx)
	defer pool.Stop()

	var activeCount, maxActive int32
	release := make(chan struct{})
	var wg sync.WaitGroup

	for _, chat := range chatsOnDistinctShards(t, pool, "t1", 2) {
		wg.Add(1)
		pool.Dispatch(Job{
			TenantID: "t1",
			ChatKey:  chat,
			Handler: func(ctx context.Context) error {
				defer wg.Done()
				current := atomic.AddInt32(&activeCount, 1)
				for {
					m := atomic.LoadInt32(&maxActive)
					if current <= m || atomic.CompareAndSwapInt32(&maxActive, m, current) {
						break
					}
				}
				<-release
				atomic.AddInt32(&activeCount, -1)
				return nil
			},
		})
	}

	assert.Eventually(t, func() bool { return atomic.LoadInt32(&maxActive) == 2 }, time.Second, 5*time.Millisecond)
	close(release)
	wg.Wait()
}

// Nunca hay más jobs simultáneos que workers
func TestPool_RespectsMaxWorkers(t *testing.T) {
	maxWorkers := 3
	pool := NewPool(maxWorkers, 100)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool.Start(ctx)
	defer pool.Stop()

	var activeCount, maxActive int32
	var wg sync.WaitGroup

	for i := 0; i < 10; i++ {
		wg.Add(1)
		pool.Dispatch(Job{
			TenantID: "t1",
			ChatKey:  fmt.Sprintf("chat-%d", i),
			Handler: func(ctx context.Context) error {
				defer wg.Done()
				current := atomic.AddInt32(&activeCount, 1)
				for {
					m := atomic.LoadInt32(&maxActive)
					if current <= m || atomic.CompareAndSwapInt32(&maxActive, m, current) {
						break
					}
				}
				time.Sleep(10 * time.Millisecond)
				atomic.AddInt32(&activeCount, -1)
				return nil
			},
		})
	}

	wg.Wait()
	assert.LessOrEqual(t, atomic.LoadInt32(&maxActive), int32(maxWorkers))
}

// Stop espera a que terminen los jobs en curso y los encolados
func TestPool_GracefulShutdownDrainsQueue(t *testing.T) {
	pool := NewPool(1, 10)
	ctx, cancel := context.WithCancel(context.Background())

	pool.Start(ctx)

	var completed int32
	for i := 0; i < 3; i++ {
		pool.Dispatch(Job{
			TenantID: "t1",
			ChatKey:  "+1",
			Handler: func(ctx context.Context) error {
				time.Sleep(10 * time.Millisecond)
				assert.NoError(t, ctx.Err(), "drained jobs keep a live context")
				atomic.AddInt32(&completed, 1)
				return nil
			},
		})
	}

	cancel()
	pool.Stop()

	assert.Equal(t, int32(3), atomic.LoadInt32(&completed))
}

func TestPool_DispatchAfterStopIsDropped(t *testing.T) {
	pool := NewPool(1, 1)
	pool.Start(context.Background())
	pool.Stop()

	var dropped []string
	pool.OnDrop = func(chatKey string) { dropped = append(dropped, chatKey) }

	ok := pool.TryDispatch(Job{TenantID: "t1", ChatKey: "+1", Handler: func(ctx context.Context) error { return nil }})

	assert.False(t, ok)
	assert.Equal(t, []string{"t1|+1"}, dropped)
	assert.Equal(t, int64(1), pool.GetStats().TotalDropped)
}

func TestPool_QueueFullIsDropped(t *testing.T) {
	pool := NewPool(1, 1)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	pool.Start(ctx)
	defer pool.Stop()

	block := make(chan struct{})
	started := make(chan struct{})
	pool.Dispatch(Job{TenantID: "t1", ChatKey: "a", Handler: func(ctx context.Context) error {
		close(started)
		<-block
		return nil
	}})
	<-started

	noop := func(ctx context.Context) error { return nil }
	assert.True(t, pool.TryDispatch(Job{TenantID: "t1", ChatKey: "a", Handler: noop}))
	assert.False(t, pool.TryDispatch(Job{TenantID: "t1", ChatKey: "a", Handler: noop}))

	close(block)
}

func TestPool_ErrorsAndPanicsAreCounted(t *testing.T) {
	pool := NewPool(1, 10)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var ended int32
	pool.OnJobEnd = func(workerID int, chatKey string, err error) { atomic.AddInt32(&ended, 1) }
	pool.Start(ctx)

	pool.Dispatch(Job{TenantID: "t1", ChatKey: "a", Handler: func(ctx context.Context) error { return errors.New("boom") }})
	pool.Dispatch(Job{TenantID: "t1", ChatKey: "a", Handler: func(ctx context.Context) error { panic("kaboom") }})
	pool.Dispatch(Job{TenantID: "t1", ChatKey: "a", Handler: func(ctx context.Context) error { return nil }})

	pool.Stop()

	stats := pool.GetStats()
	assert.Equal(t, int64(3), stats.TotalProcessed)
	assert.Equal(t, int64(2), stats.TotalErrors)
	assert.Equal(t, int32(3), atomic.LoadInt32(&ended))
}

func TestPool_TenantStats(t *testing.T) {
	pool := NewPool(2, 10)
	pool.Start(context.Background())

	noop := func(ctx context.Context) error { return nil }
	pool.Dispatch(Job{TenantID: "acme", ChatKey: "+1", Handler: noop})
	pool.Dispatch(Job{TenantID: "acme", ChatKey: "+2", Handler: func(ctx context.Context) error { return errors.New("boom") }})
	pool.Dispatch(Job{TenantID: "globex", ChatKey: "+1", Handler: noop})
	pool.Stop()
	pool.Dispatch(Job{TenantID: "globex", ChatKey: "+1", Handler: noop})

	tenants := pool.GetStats().Tenants
	assert.Equal(t, TenantStats{Dispatched: 2, Processed: 2, Errors: 1}, tenants["acme"])
	assert.Equal(t, TenantStats{Dispatched: 1, Processed: 1, Dropped: 1}, tenants["globex"])
}

func TestPool_JobTimeout(t *testing.T) {
	pool := NewPool(1, 10)
	pool.JobTimeout = 20 * time.Millisecond
	pool.Start(context.Background())

	var got error
	pool.Dispatch(Job{TenantID: "t1", ChatKey: "a", Handler: func(ctx context.Context) error {
		<-ctx.Done()
		got = ctx.Err()
		return got
	}})
	pool.Stop()

	assert.ErrorIs(t, got, context.DeadlineExceeded)
	assert.Equal(t, int64(1), pool.GetStats().TotalErrors)
}

// Mismo chat siempre al mismo worker
func TestPool_ConsistentHashing(t *testing.T) {
	pool := NewPool(4, 100)
	key := Job{TenantID: "t1", ChatKey: "+51999888777"}.key()

	shard := pool.shardFor(key)
	for i := 0; i < 5; i++ {
		assert.Equal(t, shard, pool.shardFor(key))
	}
	assert.GreaterOrEqual(t, shard, 0)
	assert.Less(t, shard, 4)
}

// Distribución razonablemente uniforme
func TestPool_FairDistribution(t *testing.T) {
	numWorkers := 4
	pool := NewPool(numWorkers, 100)

	shardCounts := make(map[int]int)
	for i := 0; i < 1000; i++ {
		shardCounts[pool.shardFor(Job{TenantID: "t1", ChatKey: fmt.Sprintf("+519%08d", i)}.key())]++
	}

	require.Len(t, shardCounts, numWorkers)
	for shard, count := range shardCounts {
		assert.Greater(t, count, 190, "worker %d", shard)
		assert.Less(t, count, 310, "worker %d", shard)
	}
}
