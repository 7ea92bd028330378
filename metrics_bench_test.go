package goContacts

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func BenchmarkMetricsIncParallel(b *testing.B) {
	m := NewMetrics(MetricsConfig{Enabled: true})
	b.ReportAllocs()
	b.ResetTimer()

	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			m.Inc(MetricCacheHit)
		}
	})
}

func BenchmarkMetricsObserveResolveLatency(b *testing.B) {
	m := NewMetrics(MetricsConfig{Enabled: true, EnableLatencyHistograms: true})
	b.ReportAllocs()
	b.ResetTimer()

	b.RunParallel(func(pb *testing.PB) {
		d := time.Duration(0)
		for pb.Next() {
			m.Observe(MetricResolveLatency, d)
			d = (d + 137*time.Microsecond) % (600 * time.Millisecond)
		}
	})
}

func BenchmarkMetricsSnapshot(b *testing.B) {
	m := NewMetrics(MetricsConfig{Enabled: true, EnableLatencyHistograms: true})
	for id := MetricID(0); id < metricIDCount; id++ {
		m.Inc(id)
	}
	b.ReportAllocs()
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		_ = m.Snapshot()
	}
}

// newBenchEngine wires an engine over miniredis with one confirmed account
// and returns its access token.
func newBenchEngine(b *testing.B) (*Engine, string) {
	b.Helper()
	mr := miniredis.RunT(b)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	b.Cleanup(func() { _ = rdb.Close() })

	users := newMockUserStore()
	mailer := &mockMailer{}
	engine, err := New().
		WithConfig(accountTestConfig()).
		WithRedis(rdb).
		WithUserStore(users).
		WithContactStore(newMockContactStore()).
		WithMailer(mailer).
		Build()
	if err != nil {
		b.Fatalf("Build: %v", err)
	}
	b.Cleanup(engine.Close)

	ctx := context.Background()
	if _, err := engine.Signup(ctx, SignupRequest{Username: "bench", Email: "bench@example.com", Password: "bench-pass"}); err != nil {
		b.Fatalf("Signup: %v", err)
	}
	msg, _ := mailer.last()
	if err := engine.ConfirmEmail(ctx, msg.Token); err != nil {
		b.Fatalf("ConfirmEmail: %v", err)
	}
	pair, err := engine.Login(ctx, "bench@example.com", "bench-pass")
	if err != nil {
		b.Fatalf("Login: %v", err)
	}
	return engine, pair.AccessToken
}

func BenchmarkCurrentUserCached(b *testing.B) {
	engine, token := newBenchEngine(b)
	ctx := context.Background()
	if _, err := engine.CurrentUser(ctx, token); err != nil {
		b.Fatalf("warm: %v", err)
	}
	b.ReportAllocs()
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		if _, err := engine.CurrentUser(ctx, token); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkContactLimiterAllow(b *testing.B) {
	engine, _ := newBenchEngine(b)
	limiter := engine.ContactLimiter()
	ctx := context.Background()
	b.ReportAllocs()
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		// distinct keys keep every call under budget
		_ = limiter.Allow(ctx, strconv.Itoa(i))
	}
}
