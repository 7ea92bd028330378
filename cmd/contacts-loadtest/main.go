package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MrEthical07/goContacts/internal/stores/memory"
	"github.com/MrEthical07/goContacts/jwt"
	"github.com/MrEthical07/goContacts/session"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func main() {
	var (
		users       = flag.Int("users", 10000, "number of users to seed")
		concurrency = flag.Int("concurrency", 128, "number of concurrent workers")
		ops         = flag.Int("ops", 100000, "resolves in the warm phase")
		redisAddr   = flag.String("redis-addr", "", "redis address; if empty, REDIS_ADDR env or miniredis is used")
		prefix      = flag.String("prefix", session.DefaultKeyPrefix, "principal cache key prefix")
		storeDelay  = flag.Duration("store-delay", 0, "simulated user store latency per lookup")
	)
	flag.Parse()

	if *users <= 0 || *concurrency <= 0 || *ops <= 0 {
		fmt.Fprintln(os.Stderr, "users, concurrency, and ops must be > 0")
		os.Exit(2)
	}

	ctx := context.Background()

	addr := *redisAddr
	if addr == "" {
		addr = os.Getenv("REDIS_ADDR")
	}

	var (
		cleanup func()
		client  redis.UniversalClient
	)
	if addr == "" {
		mr, err := miniredis.Run()
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to start miniredis: %v\n", err)
			os.Exit(1)
		}
		client = redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{mr.Addr()}})
		cleanup = func() {
			_ = client.Close()
			mr.Close()
		}
		fmt.Printf("using miniredis at %s\n", mr.Addr())
	} else {
		client = redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{addr}})
		cleanup = func() { _ = client.Close() }
		fmt.Printf("using redis at %s\n", addr)
	}
	defer cleanup()

	tokens, err := jwt.NewManager(jwt.Config{
		SigningMethod: jwt.MethodHS256,
		PrivateKey:    []byte("loadtest-secret-loadtest-secret!"),
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "token manager: %v\n", err)
		os.Exit(1)
	}

	store := memory.NewUsers()
	access := make([]string, *users)
	fmt.Printf("seeding %d users...\n", *users)
	startSeed := time.Now()
	for i := 0; i < *users; i++ {
		email := fmt.Sprintf("user%d@example.com", i)
		if _, err := store.Create(ctx, &session.Principal{
			Username:  fmt.Sprintf("user%d", i),
			Email:     email,
			Confirmed: true,
		}); err != nil {
			fmt.Fprintf(os.Stderr, "seed failed: %v\n", err)
			os.Exit(1)
		}
		tok, err := tokens.IssueAccess(email, time.Hour)
		if err != nil {
			fmt.Fprintf(os.Stderr, "issue failed: %v\n", err)
			os.Exit(1)
		}
		access[i] = tok
	}
	fmt.Printf("seeded in %s\n", time.Since(startSeed).Round(time.Millisecond))

	var counts cacheCounts
	finder := session.PrincipalFinderFunc(func(ctx context.Context, email string) (*session.Principal, error) {
		if *storeDelay > 0 {
			time.Sleep(*storeDelay)
		}
		return store.FindByEmail(ctx, email)
	})
	resolver := session.NewResolver(tokens, session.NewRedisCache(client), finder,
		session.WithKeyPrefix(*prefix),
		session.WithHooks(counts.hooks()),
	)

	// Cold: every user once, in order, against an empty cache.
	for i := 0; i < *users; i++ {
		_ = resolver.Invalidate(ctx, fmt.Sprintf("user%d@example.com", i))
	}
	cold := runPhase(ctx, resolver, access, *users, *concurrency, func(i int, _ *rand.Rand) int { return i })
	coldCounts := counts.snapshot()

	warm := runPhase(ctx, resolver, access, *ops, *concurrency, func(_ int, r *rand.Rand) int { return r.Intn(len(access)) })
	warmCounts := counts.snapshot().sub(coldCounts)

	fmt.Println("---- results ----")
	printStats("cold", cold, coldCounts)
	printStats("warm", warm, warmCounts)
}

type cacheCounts struct {
	hits, misses, errors atomic.Int64
}

type countSnapshot struct {
	hits, misses, errors int64
}

func (c *cacheCounts) hooks() session.Hooks {
	return session.Hooks{
		OnCacheHit:   func() { c.hits.Add(1) },
		OnCacheMiss:  func() { c.misses.Add(1) },
		OnCacheError: func(string, error) { c.errors.Add(1) },
	}
}

func (c *cacheCounts) snapshot() countSnapshot {
	return countSnapshot{hits: c.hits.Load(), misses: c.misses.Load(), errors: c.errors.Load()}
}

func (s countSnapshot) sub(o countSnapshot) countSnapshot {
	return countSnapshot{hits: s.hits - o.hits, misses: s.misses - o.misses, errors: s.errors - o.errors}
}

func runPhase(ctx context.Context, resolver *session.Resolver, access []string, ops, concurrency int, pick func(int, *rand.Rand) int) phaseStats {
	var (
		wg        sync.WaitGroup
		cursor    int64
		failures  int64
		latencies = make([]time.Duration, 0, ops)
		mu        sync.Mutex
	)

	start := time.Now()
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			r := rand.New(rand.NewSource(time.Now().UnixNano() + int64(worker)*7919))
			for {
				i := int(atomic.AddInt64(&cursor, 1)) - 1
				if i >= ops {
					return
				}
				t0 := time.Now()
				_, err := resolver.Resolve(ctx, access[pick(i, r)])
				d := time.Since(t0)
				if err != nil {
					atomic.AddInt64(&failures, 1)
				}
				mu.Lock()
				latencies = append(latencies, d)
				mu.Unlock()
			}
		}(w)
	}
	wg.Wait()
	return computeStats(time.Since(start), latencies, failures)
}

type phaseStats struct {
	total    time.Duration
	ops      int
	failures int64
	p50      time.Duration
	p95      time.Duration
	p99      time.Duration
	opsPerS  float64
}

func computeStats(total time.Duration, samples []time.Duration, failures int64) phaseStats {
	if len(samples) == 0 {
		return phaseStats{total: total}
	}
	sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })
	return phaseStats{
		total:    total,
		ops:      len(samples),
		failures: failures,
		p50:      percentile(samples, 50),
		p95:      percentile(samples, 95),
		p99:      percentile(samples, 99),
		opsPerS:  float64(len(samples)) / total.Seconds(),
	}
}

func percentile(samples []time.Duration, p int) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	if p <= 0 {
		return samples[0]
	}
	if p >= 100 {
		return samples[len(samples)-1]
	}
	return samples[(len(samples)-1)*p/100]
}

func printStats(name string, s phaseStats, c countSnapshot) {
	fmt.Printf("%s: ops=%d failures=%d total=%s ops/sec=%.0f p50=%s p95=%s p99=%s hits=%d misses=%d cache_errors=%d\n",
		name,
		s.ops,
		s.failures,
		s.total.Round(time.Millisecond),
		s.opsPerS,
		s.p50.Round(time.Microsecond),
		s.p95.Round(time.Microsecond),
		s.p99.Round(time.Microsecond),
		c.hits, c.misses, c.errors,
	)
}
