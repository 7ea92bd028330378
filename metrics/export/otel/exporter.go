package otel

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	goContacts "github.com/MrEthical07/goContacts"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const prefix = "contacts."

var (
	ErrNilMeter  = errors.New("nil meter")
	ErrNilSource = errors.New("nil metrics source")
)

// MetricsSource is what [Exporter] reads. *goContacts.Engine satisfies it.
type MetricsSource interface {
	MetricsSnapshot() goContacts.MetricsSnapshot
	AuditDropped() uint64
}

// Exporter keeps the instruments and callback registration alive. Close
// unregisters the callback.
type Exporter struct {
	source       MetricsSource
	registration metric.Registration

	counters     map[goContacts.MetricID]metric.Int64ObservableCounter
	buckets      metric.Int64ObservableGauge
	samples      metric.Int64ObservableGauge
	auditDropped metric.Int64ObservableCounter

	// bucketAttrs holds one le= option per latency bucket, +Inf last.
	bucketAttrs []metric.ObserveOption
}

// NewExporter registers the engine's instruments on meter.
func NewExporter(meter metric.Meter, source MetricsSource) (*Exporter, error) {
	if meter == nil {
		return nil, ErrNilMeter
	}
	if source == nil {
		return nil, ErrNilSource
	}

	e := &Exporter{
		source:   source,
		counters: make(map[goContacts.MetricID]metric.Int64ObservableCounter),
	}
	observables := make([]metric.Observable, 0, int(goContacts.MetricResolveLatency)+3)

	for id := goContacts.MetricID(0); id.MetricName() != ""; id++ {
		if id == goContacts.MetricResolveLatency {
			continue
		}
		name := prefix + id.MetricName()
		ins, err := meter.Int64ObservableCounter(name, metric.WithDescription("Engine counter "+id.MetricName()+"."))
		if err != nil {
			return nil, fmt.Errorf("create observable counter %s: %w", name, err)
		}
		e.counters[id] = ins
		observables = append(observables, ins)
	}

	var err error
	e.buckets, err = meter.Int64ObservableGauge(prefix+"resolve_latency.bucket",
		metric.WithDescription("Cumulative count of token resolutions at or below the le bound, in seconds."))
	if err != nil {
		return nil, fmt.Errorf("create latency bucket gauge: %w", err)
	}
	e.samples, err = meter.Int64ObservableGauge(prefix+"resolve_latency.count",
		metric.WithDescription("Total token resolutions timed."))
	if err != nil {
		return nil, fmt.Errorf("create latency count gauge: %w", err)
	}
	e.auditDropped, err = meter.Int64ObservableCounter(prefix+"audit_dropped",
		metric.WithDescription("Audit events dropped because the dispatcher buffer was full."))
	if err != nil {
		return nil, fmt.Errorf("create audit dropped counter: %w", err)
	}
	observables = append(observables, e.buckets, e.samples, e.auditDropped)

	for _, bound := range goContacts.HistogramBounds {
		le := strconv.FormatFloat(bound, 'g', -1, 64)
		e.bucketAttrs = append(e.bucketAttrs, metric.WithAttributes(attribute.String("le", le)))
	}
	e.bucketAttrs = append(e.bucketAttrs, metric.WithAttributes(attribute.String("le", "+Inf")))

	e.registration, err = meter.RegisterCallback(e.observe, observables...)
	if err != nil {
		return nil, fmt.Errorf("register callback: %w", err)
	}
	return e, nil
}

func (e *Exporter) observe(_ context.Context, o metric.Observer) error {
	snap := e.source.MetricsSnapshot()
	for id, ins := range e.counters {
		if v, ok := snap.Counters[id]; ok {
			o.ObserveInt64(ins, int64(v))
		}
	}

	if raw, ok := snap.Histograms[goContacts.MetricResolveLatency]; ok {
		var running uint64
		for i, attrs := range e.bucketAttrs {
			if i < len(raw) {
				running += raw[i]
			}
			o.ObserveInt64(e.buckets, int64(running), attrs)
		}
		for i := len(e.bucketAttrs); i < len(raw); i++ {
			running += raw[i]
		}
		o.ObserveInt64(e.samples, int64(running))
	}

	o.ObserveInt64(e.auditDropped, int64(e.source.AuditDropped()))
	return nil
}

func (e *Exporter) Close() error {
	if e == nil || e.registration == nil {
		return nil
	}
	return e.registration.Unregister()
}
