// Package broadcast fans out emit-result notifications (C12, spec.md
// §4.11) to local WebSocket subscribers and, when Redis is configured, to
// every other OMEN instance sharing the same channel. A broadcaster
// failure is always swallowed at the call site — a signal is already
// durably recorded by the time it reaches this package, so a dropped
// notification never affects the emit outcome.
package broadcast

import "time"

const channelPrefix = "omen:realtime:"

// Message is one fan-out event. Event is always "signal_emitted" today;
// the type is kept open for future event kinds named by spec.md §4.11.
type Message struct {
	Channel        string    `json:"-"`
	EventType      string    `json:"event_type"`
	SignalID       string    `json:"signal_id,omitempty"`
	Title          string    `json:"title,omitempty"`
	Category       string    `json:"category,omitempty"`
	Status         string    `json:"status,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
	SenderInstance string    `json:"sender_instance"`
}
