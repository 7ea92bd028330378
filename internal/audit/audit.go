package audit

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"time"

	"github.com/MrEthical07/goContacts/internal/logging"
)

// Event is one audit record.
type Event struct {
	Timestamp time.Time         `json:"timestamp"`
	Type      string            `json:"event_type"`
	UserID    int64             `json:"user_id,omitempty"`
	Email     string            `json:"email,omitempty"`
	IP        string            `json:"ip,omitempty"`
	RequestID string            `json:"request_id,omitempty"`
	Success   bool              `json:"success"`
	Error     string            `json:"error,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// Sink receives dispatched events.
type Sink interface {
	Emit(ctx context.Context, event Event)
}

// NoOpSink drops every event.
type NoOpSink struct{}

func (NoOpSink) Emit(context.Context, Event) {}

// ChannelSink pushes events into a buffered channel, mostly for tests.
type ChannelSink struct {
	events chan Event
}

func NewChannelSink(buffer int) *ChannelSink {
	if buffer <= 0 {
		buffer = 1
	}
	return &ChannelSink{events: make(chan Event, buffer)}
}

func (s *ChannelSink) Emit(ctx context.Context, event Event) {
	select {
	case s.events <- event:
	case <-ctx.Done():
	}
}

func (s *ChannelSink) Events() <-chan Event {
	return s.events
}

// JSONWriterSink writes one JSON object per line.
type JSONWriterSink struct {
	mu sync.Mutex
	w  io.Writer
}

func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return &JSONWriterSink{w: w}
}

func (s *JSONWriterSink) Emit(ctx context.Context, event Event) {
	s.EmitBatch(ctx, []Event{event})
}

// EmitBatch writes every event that encodes with a single Write.
func (s *JSONWriterSink) EmitBatch(_ context.Context, events []Event) {
	if s == nil || s.w == nil {
		return
	}
	var buf []byte
	for _, e := range events {
		data, err := json.Marshal(e)
		if err != nil {
			continue
		}
		buf = append(append(buf, data...), '\n')
	}
	if len(buf) == 0 {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	_, _ = s.w.Write(buf)
}

// LoggerSink writes each event as a structured log line.
type LoggerSink struct {
	log logging.Logger
}

func NewLoggerSink(log logging.Logger) *LoggerSink {
	return &LoggerSink{log: log.With("component", "audit")}
}

func (s *LoggerSink) Emit(ctx context.Context, e Event) {
	args := []any{
		"event_type", e.Type,
		"success", e.Success,
		"at", e.Timestamp,
	}
	if e.UserID != 0 {
		args = append(args, "user_id", e.UserID)
	}
	if e.Email != "" {
		args = append(args, "email", e.Email)
	}
	if e.IP != "" {
		args = append(args, "ip", e.IP)
	}
	if e.RequestID != "" {
		args = append(args, "request_id", e.RequestID)
	}
	if e.Error != "" {
		args = append(args, "error", e.Error)
	}
	for k, v := range e.Metadata {
		args = append(args, "meta."+k, v)
	}
	s.log.Info(ctx, "audit", args...)
}
