package otel

import (
	"context"
	"sync"
	"testing"

	goContacts "github.com/MrEthical07/goContacts"
	"github.com/MrEthical07/goContacts/internal/stores/memory"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

type fakeSource struct {
	mu       sync.RWMutex
	snapshot goContacts.MetricsSnapshot
	dropped  uint64
}

func (f *fakeSource) MetricsSnapshot() goContacts.MetricsSnapshot {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := goContacts.MetricsSnapshot{
		Counters:   make(map[goContacts.MetricID]uint64, len(f.snapshot.Counters)),
		Histograms: make(map[goContacts.MetricID][]uint64, len(f.snapshot.Histograms)),
	}
	for k, v := range f.snapshot.Counters {
		out.Counters[k] = v
	}
	for k, b := range f.snapshot.Histograms {
		out.Histograms[k] = append([]uint64(nil), b...)
	}
	return out
}

func (f *fakeSource) AuditDropped() uint64 {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.dropped
}

func newReader(t *testing.T) (*sdkmetric.ManualReader, *sdkmetric.MeterProvider) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })
	return reader, provider
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Metrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	out := make(map[string]metricdata.Metrics)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m
		}
	}
	return out
}

func sumValue(t *testing.T, m metricdata.Metrics) int64 {
	t.Helper()
	sum, ok := m.Data.(metricdata.Sum[int64])
	if !ok || len(sum.DataPoints) != 1 {
		t.Fatalf("%s: expected one int64 sum point, got %T", m.Name, m.Data)
	}
	return sum.DataPoints[0].Value
}

func TestExporterCountersAndLatencyBuckets(t *testing.T) {
	reader, provider := newReader(t)
	src := &fakeSource{
		snapshot: goContacts.MetricsSnapshot{
			Counters: map[goContacts.MetricID]uint64{
				goContacts.MetricLoginSuccess:   7,
				goContacts.MetricContactCreated: 2,
			},
			Histograms: map[goContacts.MetricID][]uint64{
				goContacts.MetricResolveLatency: {1, 2, 3, 4, 5, 6, 7, 8},
			},
		},
		dropped: 3,
	}

	exp, err := NewExporter(provider.Meter("contacts-test"), src)
	if err != nil {
		t.Fatalf("NewExporter: %v", err)
	}
	defer func() {
		if err := exp.Close(); err != nil {
			t.Fatalf("Close: %v", err)
		}
	}()

	got := collect(t, reader)
	if v := sumValue(t, got["contacts.login_success"]); v != 7 {
		t.Fatalf("login_success = %d, want 7", v)
	}
	if v := sumValue(t, got["contacts.contact_created"]); v != 2 {
		t.Fatalf("contact_created = %d, want 2", v)
	}
	if v := sumValue(t, got["contacts.audit_dropped"]); v != 3 {
		t.Fatalf("audit_dropped = %d, want 3", v)
	}

	gauge, ok := got["contacts.resolve_latency.bucket"].Data.(metricdata.Gauge[int64])
	if !ok {
		t.Fatalf("expected bucket gauge, got %T", got["contacts.resolve_latency.bucket"].Data)
	}
	byLE := make(map[string]int64, len(gauge.DataPoints))
	for _, dp := range gauge.DataPoints {
		le, _ := dp.Attributes.Value("le")
		byLE[le.AsString()] = dp.Value
	}
	if byLE["0.005"] != 1 || byLE["0.5"] != 28 || byLE["+Inf"] != 36 {
		t.Fatalf("unexpected cumulative buckets %v", byLE)
	}

	count, ok := got["contacts.resolve_latency.count"].Data.(metricdata.Gauge[int64])
	if !ok || len(count.DataPoints) != 1 || count.DataPoints[0].Value != 36 {
		t.Fatalf("unexpected sample count %+v", got["contacts.resolve_latency.count"].Data)
	}
}

func TestExporterRejectsNilArguments(t *testing.T) {
	_, provider := newReader(t)
	if _, err := NewExporter(provider.Meter("contacts-test"), nil); err != ErrNilSource {
		t.Fatalf("expected ErrNilSource, got %v", err)
	}
	if _, err := NewExporter(nil, &fakeSource{}); err != ErrNilMeter {
		t.Fatalf("expected ErrNilMeter, got %v", err)
	}
}

func TestExporterCloseStopsObservation(t *testing.T) {
	reader, provider := newReader(t)
	src := &fakeSource{snapshot: goContacts.MetricsSnapshot{
		Counters: map[goContacts.MetricID]uint64{goContacts.MetricLogout: 1},
	}}
	exp, err := NewExporter(provider.Meter("contacts-test"), src)
	if err != nil {
		t.Fatalf("NewExporter: %v", err)
	}
	if err := exp.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if m, ok := collect(t, reader)["contacts.logout"]; ok {
		if sum, _ := m.Data.(metricdata.Sum[int64]); len(sum.DataPoints) != 0 {
			t.Fatalf("expected no points after Close, got %+v", sum.DataPoints)
		}
	}
}

func TestExporterConcurrentCollect(t *testing.T) {
	reader, provider := newReader(t)
	src := &fakeSource{snapshot: goContacts.MetricsSnapshot{
		Counters: map[goContacts.MetricID]uint64{goContacts.MetricCacheHit: 0},
	}}
	exp, err := NewExporter(provider.Meter("contacts-test"), src)
	if err != nil {
		t.Fatalf("NewExporter: %v", err)
	}
	defer exp.Close()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(v uint64) {
			defer wg.Done()
			src.mu.Lock()
			src.snapshot.Counters[goContacts.MetricCacheHit] = v
			src.mu.Unlock()

			var rm metricdata.ResourceMetrics
			_ = reader.Collect(context.Background(), &rm)
		}(uint64(i + 1))
	}
	wg.Wait()
}

func TestExporterReadsEngine(t *testing.T) {
	cfg := goContacts.DefaultConfig()
	cfg.JWT.SecretKey = "0123456789abcdef0123456789abcdef"
	cfg.Audit.Enabled = false
	engine, err := goContacts.New().
		WithConfig(cfg).
		WithUserStore(memory.NewUsers()).
		WithContactStore(memory.NewContacts()).
		Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	defer engine.Close()

	reader, provider := newReader(t)
	exp, err := NewExporter(provider.Meter("contacts-test"), engine)
	if err != nil {
		t.Fatalf("NewExporter: %v", err)
	}
	defer exp.Close()

	got := collect(t, reader)
	if _, ok := got["contacts.signup_success"]; !ok {
		t.Fatal("expected engine counters to be observed")
	}
	if v := sumValue(t, got["contacts.audit_dropped"]); v != 0 {
		t.Fatalf("audit_dropped = %d, want 0", v)
	}
}
