package authsession

import (
	"io"

	"github.com/swipewise/authsession/internal/audit"
)

// AuditEvent is one security-relevant engine event.
type AuditEvent = audit.Event

// AuditSink receives audit events from the engine's dispatcher goroutine.
type AuditSink = audit.Sink

// NewJSONAuditSink writes one JSON object per event to w.
func NewJSONAuditSink(w io.Writer) AuditSink {
	return audit.NewJSONWriterSink(w)
}

// NewChannelAuditSink buffers events on a channel, mostly for tests.
func NewChannelAuditSink(buffer int) *audit.ChannelSink {
	return audit.NewChannelSink(buffer)
}

// NewKafkaAuditSink publishes events as JSON to topic, keyed by subject id.
// Close it after the engine.
func NewKafkaAuditSink(brokers []string, topic string) *audit.KafkaSink {
	return audit.NewKafkaSink(brokers, topic)
}
