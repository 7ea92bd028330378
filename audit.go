package goContacts

import (
	"io"

	internalaudit "github.com/MrEthical07/goContacts/internal/audit"
	"github.com/MrEthical07/goContacts/internal/logging"
)

// AuditEvent is one audit record emitted by the engine.
type AuditEvent = internalaudit.Event

// AuditSink receives audit events from the dispatcher goroutine.
type AuditSink = internalaudit.Sink

// AuditBatchSink is an AuditSink that also accepts several queued events in
// one call. See [AuditConfig.MaxBatch].
type AuditBatchSink = internalaudit.BatchSink

// NoOpSink drops every event.
type NoOpSink = internalaudit.NoOpSink

// ChannelSink buffers events in a channel; handy in tests.
type ChannelSink = internalaudit.ChannelSink

// JSONWriterSink writes newline-delimited JSON.
type JSONWriterSink = internalaudit.JSONWriterSink

func NewChannelSink(buffer int) *ChannelSink {
	return internalaudit.NewChannelSink(buffer)
}

func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return internalaudit.NewJSONWriterSink(w)
}

// NewLoggerSink writes events through log.
func NewLoggerSink(log logging.Logger) AuditSink {
	return internalaudit.NewLoggerSink(log)
}
