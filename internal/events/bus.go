// Package events provides a publish/subscribe event bus for operational
// observability. Events flow from components (appliance ledger, agent
// loop, schedulers, safety monitor) to subscribers (WebSocket handler,
// MQTT publisher). The bus is nil-safe: calling Publish on a nil *Bus
// is a no-op, so components do not need guard checks.
package events

import (
	"sync"
	"time"
)

// Source constants identify which component published an event.
const (
	// SourceLedger identifies events from the appliance ledger.
	SourceLedger = "ledger"
	// SourceAgent identifies events from the orchestration loop.
	SourceAgent = "agent"
	// SourceRoutine identifies events from the routine scheduler.
	SourceRoutine = "routine"
	// SourceSafety identifies events from the safety monitor.
	SourceSafety = "safety"
	// SourceAutonomous identifies events from the autonomous analysis runner.
	SourceAutonomous = "autonomous"
)

// Kind constants describe the type of event within a source.
const (
	// KindStateChange signals an appliance state transition.
	// Data: uid, name, state, trigger, energy_kwh (off transitions).
	KindStateChange = "state_change"

	// KindTurnStart signals the beginning of an orchestration turn.
	// Data: turn_id, message_len.
	KindTurnStart = "turn_start"
	// KindModelCall signals the start of a reasoning-engine round trip.
	// Data: turn_id, round, model.
	KindModelCall = "model_call"
	// KindToolCall signals the start of a tool execution.
	// Data: turn_id, tool.
	KindToolCall = "tool_call"
	// KindToolDone signals completion of a tool execution.
	// Data: turn_id, tool, ok, duration_ms.
	KindToolDone = "tool_done"
	// KindTurnComplete signals the end of an orchestration turn.
	// Data: turn_id, rounds, tool_calls, elapsed_ms.
	KindTurnComplete = "turn_complete"

	// KindRoutineFired signals a routine's schedule matched and its
	// actions were executed. Data: routine_id, name, actions.
	KindRoutineFired = "routine_fired"

	// KindAnomalyFlagged signals a long-running appliance was flagged.
	// Data: uid, name, hours_on.
	KindAnomalyFlagged = "anomaly_flagged"
	// KindForcedOff signals max-on-duration enforcement turned an
	// appliance off. Data: uid, name, minutes_on, budget_minutes.
	KindForcedOff = "forced_off"

	// KindAutonomousAction signals the hourly analysis acted on the
	// home. Data: action, detail.
	KindAutonomousAction = "autonomous_action"
)

// Event represents a single operational event published by a component.
type Event struct {
	// Timestamp is when the event occurred.
	Timestamp time.Time `json:"ts"`
	// Source identifies the component that published the event.
	Source string `json:"source"`
	// Kind describes the type of event within the source.
	Kind string `json:"kind"`
	// Data holds event-specific key/value pairs.
	Data map[string]any `json:"data,omitempty"`
}

// Bus is a non-blocking broadcast event bus. Subscribers receive events
// on buffered channels; slow subscribers miss events rather than
// blocking publishers.
type Bus struct {
	mu   sync.RWMutex
	subs map[chan Event]struct{}
	// recvToSend maps the receive-only channel returned by Subscribe
	// back to the bidirectional channel stored in subs, so that
	// Unsubscribe can accept <-chan Event (the caller's view).
	recvToSend map[<-chan Event]chan Event
}

// New creates a new event bus ready for use.
func New() *Bus {
	return &Bus{
		subs:       make(map[chan Event]struct{}),
		recvToSend: make(map[<-chan Event]chan Event),
	}
}

// Publish sends an event to all subscribers. Non-blocking: if a
// subscriber's channel is full, the event is dropped for that
// subscriber. Safe to call on a nil receiver (no-op).
func (b *Bus) Publish(e Event) {
	if b == nil {
		return
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch := range b.subs {
		select {
		case ch <- e:
		default:
			// Subscriber is full, drop the event rather than block.
		}
	}
}

// Subscribe returns a channel that receives published events. The
// caller must eventually call Unsubscribe to avoid resource leaks.
// bufSize controls the channel buffer; 64 is a reasonable default for
// WebSocket consumers.
func (b *Bus) Subscribe(bufSize int) <-chan Event {
	ch := make(chan Event, bufSize)
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs[ch] = struct{}{}
	b.recvToSend[ch] = ch
	return ch
}

// Unsubscribe removes a subscription and closes the channel. Safe to
// call with a channel that is already unsubscribed (no-op).
func (b *Bus) Unsubscribe(ch <-chan Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	sendCh, ok := b.recvToSend[ch]
	if !ok {
		return
	}
	delete(b.subs, sendCh)
	delete(b.recvToSend, ch)
	close(sendCh)
}

// SubscriberCount returns the number of active subscribers.
func (b *Bus) SubscriberCount() int {
	if b == nil {
		return 0
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
