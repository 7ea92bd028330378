// Package otel publishes engine counters through an OpenTelemetry Meter.
//
// [NewExporter] registers one observable counter per engine counter, a
// bucket gauge for the resolve latency histogram, and a single callback
// that reads [goContacts.Engine.MetricsSnapshot] on each collection cycle.
// The caller owns the MeterProvider and its readers.
package otel
