package goContacts

import (
	"sync/atomic"
	"time"
)

// MetricID names one engine counter.
type MetricID uint16

const (
	MetricSignupSuccess MetricID = iota
	MetricSignupDuplicate
	MetricLoginSuccess
	MetricLoginFailure
	MetricLoginRateLimited
	MetricRefreshSuccess
	MetricRefreshInvalid
	MetricLogout
	MetricResolveFailure
	MetricCacheHit
	MetricCacheMiss
	MetricCacheError
	MetricEmailConfirmationRequested
	MetricEmailConfirmed
	MetricAvatarUpdated
	MetricContactRateLimited
	MetricContactCreated
	MetricContactUpdated
	MetricContactDeleted
	// MetricResolveLatency only carries a histogram.
	MetricResolveLatency
	metricIDCount
)

// MetricName returns the snake_case name used by exporters.
func (id MetricID) MetricName() string {
	if id >= metricIDCount {
		return ""
	}
	return metricNames[id]
}

var metricNames = [metricIDCount]string{
	MetricSignupSuccess:              "signup_success",
	MetricSignupDuplicate:            "signup_duplicate",
	MetricLoginSuccess:               "login_success",
	MetricLoginFailure:               "login_failure",
	MetricLoginRateLimited:           "login_rate_limited",
	MetricRefreshSuccess:             "refresh_success",
	MetricRefreshInvalid:             "refresh_invalid",
	MetricLogout:                     "logout",
	MetricResolveFailure:             "resolve_failure",
	MetricCacheHit:                   "cache_hit",
	MetricCacheMiss:                  "cache_miss",
	MetricCacheError:                 "cache_error",
	MetricEmailConfirmationRequested: "email_confirmation_requested",
	MetricEmailConfirmed:             "email_confirmed",
	MetricAvatarUpdated:              "avatar_updated",
	MetricContactRateLimited:         "contact_rate_limited",
	MetricContactCreated:             "contact_created",
	MetricContactUpdated:             "contact_updated",
	MetricContactDeleted:             "contact_deleted",
	MetricResolveLatency:             "resolve_latency",
}

// HistogramBounds are the upper bounds of the latency buckets, in seconds.
// The last bucket is +Inf.
var HistogramBounds = [histBucketCount - 1]float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5}

const (
	histBucketCount = 8
	cacheLineSize   = 64
)

type metricHistogram struct {
	buckets [histBucketCount]uint64
}

type paddedCounter struct {
	value uint64
	_     [cacheLineSize - 8]byte
}

// Metrics holds lock-free counters. A nil *Metrics ignores every call.
type Metrics struct {
	enabled       bool
	enableLatency bool
	counters      [metricIDCount]paddedCounter
	histograms    [metricIDCount]metricHistogram
}

// MetricsSnapshot is a point-in-time copy of every counter. Histogram
// buckets are non-cumulative.
type MetricsSnapshot struct {
	Counters   map[MetricID]uint64
	Histograms map[MetricID][]uint64
}

func NewMetrics(cfg MetricsConfig) *Metrics {
	return &Metrics{
		enabled:       cfg.Enabled,
		enableLatency: cfg.Enabled && cfg.EnableLatencyHistograms,
	}
}

func (m *Metrics) Enabled() bool {
	return m != nil && m.enabled
}

func (m *Metrics) Inc(id MetricID) {
	if m == nil || !m.enabled || id >= metricIDCount {
		return
	}
	atomic.AddUint64(&m.counters[id].value, 1)
}

// Observe records d in the histogram of id. Only MetricResolveLatency
// keeps a histogram.
func (m *Metrics) Observe(id MetricID, d time.Duration) {
	if m == nil || !m.enableLatency || id != MetricResolveLatency {
		return
	}
	atomic.AddUint64(&m.histograms[id].buckets[bucketIndex(d)], 1)
}

func (m *Metrics) Value(id MetricID) uint64 {
	if m == nil || id >= metricIDCount {
		return 0
	}
	return atomic.LoadUint64(&m.counters[id].value)
}

func (m *Metrics) Snapshot() MetricsSnapshot {
	if m == nil || !m.enabled {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}

	s := MetricsSnapshot{
		Counters:   make(map[MetricID]uint64, int(metricIDCount)),
		Histograms: make(map[MetricID][]uint64, 1),
	}
	for id := MetricID(0); id < metricIDCount; id++ {
		if id == MetricResolveLatency {
			continue
		}
		s.Counters[id] = atomic.LoadUint64(&m.counters[id].value)
	}
	if m.enableLatency {
		buckets := make([]uint64, histBucketCount)
		for i := range buckets {
			buckets[i] = atomic.LoadUint64(&m.histograms[MetricResolveLatency].buckets[i])
		}
		s.Histograms[MetricResolveLatency] = buckets
	}
	return s
}

func bucketIndex(d time.Duration) int {
	secs := d.Seconds()
	for i, bound := range HistogramBounds {
		if secs <= bound {
			return i
		}
	}
	return histBucketCount - 1
}
