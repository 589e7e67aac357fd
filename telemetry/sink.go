// Package telemetry carries structured governance events to external
// observers and exposes Prometheus instrumentation for the governance
// subsystem. Event delivery is fire-and-forget: no caller ever depends on
// a sink for correctness.
package telemetry

import (
	"time"

	logging "github.com/ipfs/go-log/v2"
)

var log = logging.Logger("adaptivegov/telemetry")

// EventType identifies the kind of governance event being published.
type EventType string

const (
	EventTierChange        EventType = "tier_change"
	EventEmergencyThrottle EventType = "emergency_throttle"
	EventSLAChange         EventType = "sla_change"
	EventSLAWarning        EventType = "sla_warning"
)

// Event is a structured governance event.
type Event struct {
	Type      EventType              `json:"type"`
	Message   string                 `json:"message"`
	Fields    map[string]interface{} `json:"fields,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

// Sink receives governance events. Publish must not block the caller for
// longer than it takes to hand the event off; slow transports should
// deliver asynchronously.
type Sink interface {
	Publish(event Event)
}

type nopSink struct{}

func (nopSink) Publish(Event) {}

// Nop returns a sink that discards every event.
func Nop() Sink {
	return nopSink{}
}

type logSink struct{}

// NewLogSink returns a sink that writes events to the structured log.
func NewLogSink() Sink {
	return logSink{}
}

func (logSink) Publish(event Event) {
	kvs := make([]interface{}, 0, 2+2*len(event.Fields))
	kvs = append(kvs, "type", string(event.Type))
	for k, v := range event.Fields {
		kvs = append(kvs, k, v)
	}
	switch event.Type {
	case EventEmergencyThrottle, EventSLAWarning:
		log.Warnw(event.Message, kvs...)
	default:
		log.Infow(event.Message, kvs...)
	}
}

type multiSink struct {
	sinks []Sink
}

// Multi returns a sink that fans events out to all given sinks.
func Multi(sinks ...Sink) Sink {
	out := make([]Sink, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			out = append(out, s)
		}
	}
	return multiSink{sinks: out}
}

func (m multiSink) Publish(event Event) {
	for _, s := range m.sinks {
		s.Publish(event)
	}
}
