// Package prometheus exposes engine counters to a Prometheus registry.
//
// [Collector] reads [goContacts.Engine.MetricsSnapshot] on every scrape, so
// the engine keeps its lock-free atomic counters and pays nothing between
// scrapes.
package prometheus
