package prometheus

import (
	goContacts "github.com/MrEthical07/goContacts"
	prom "github.com/prometheus/client_golang/prometheus"
)

const namespace = "contacts"

// MetricsSource is what [Collector] reads. *goContacts.Engine satisfies it.
type MetricsSource interface {
	MetricsSnapshot() goContacts.MetricsSnapshot
	AuditDropped() uint64
}

// Collector implements prometheus.Collector over a [MetricsSource].
type Collector struct {
	source   MetricsSource
	counters map[goContacts.MetricID]*prom.Desc
	latency  *prom.Desc
	dropped  *prom.Desc
}

var _ prom.Collector = (*Collector)(nil)

// NewCollector builds one descriptor per engine counter.
func NewCollector(source MetricsSource) *Collector {
	c := &Collector{
		source:   source,
		counters: make(map[goContacts.MetricID]*prom.Desc),
		latency: prom.NewDesc(
			prom.BuildFQName(namespace, "", "resolve_latency_seconds"),
			"Latency of access token resolution.",
			nil, nil,
		),
		dropped: prom.NewDesc(
			prom.BuildFQName(namespace, "", "audit_dropped_total"),
			"Audit events dropped because the dispatcher buffer was full.",
			nil, nil,
		),
	}
	for id := goContacts.MetricID(0); id.MetricName() != ""; id++ {
		if id == goContacts.MetricResolveLatency {
			continue
		}
		c.counters[id] = prom.NewDesc(
			prom.BuildFQName(namespace, "", id.MetricName()+"_total"),
			"Engine counter "+id.MetricName()+".",
			nil, nil,
		)
	}
	return c
}

func (c *Collector) Describe(ch chan<- *prom.Desc) {
	for _, d := range c.counters {
		ch <- d
	}
	ch <- c.latency
	ch <- c.dropped
}

func (c *Collector) Collect(ch chan<- prom.Metric) {
	if c.source == nil {
		return
	}
	snap := c.source.MetricsSnapshot()
	for id, d := range c.counters {
		v, ok := snap.Counters[id]
		if !ok {
			continue
		}
		ch <- prom.MustNewConstMetric(d, prom.CounterValue, float64(v))
	}

	if raw, ok := snap.Histograms[goContacts.MetricResolveLatency]; ok {
		count, buckets := cumulativeBuckets(raw)
		// Bucket counts are kept, durations are not, so the sum is unknown.
		ch <- prom.MustNewConstHistogram(c.latency, count, 0, buckets)
	}

	ch <- prom.MustNewConstMetric(c.dropped, prom.CounterValue, float64(c.source.AuditDropped()))
}

// cumulativeBuckets turns the engine's per-bucket counts into the
// cumulative upper-bound map Prometheus expects. The last engine bucket is
// +Inf and only contributes to the total count.
func cumulativeBuckets(raw []uint64) (uint64, map[float64]uint64) {
	out := make(map[float64]uint64, len(goContacts.HistogramBounds))
	var running uint64
	for i, bound := range goContacts.HistogramBounds {
		if i < len(raw) {
			running += raw[i]
		}
		out[bound] = running
	}
	for i := len(goContacts.HistogramBounds); i < len(raw); i++ {
		running += raw[i]
	}
	return running, out
}
