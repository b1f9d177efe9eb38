package kafka

import "context"

// LiveEvent represents a live-session state change.
type LiveEvent struct {
	Type      string `json:"type"` // "live_started" | "live_stopped"
	RoomID    string `json:"room_id"`
	HostID    string `json:"host_id,omitempty"`
	StartedAt int64  `json:"started_at,omitempty"`
	Reason    string `json:"reason,omitempty"` // "explicit" | "timeout"
	Timestamp int64  `json:"timestamp"`
}

// Event types
const (
	EventLiveStarted = "live_started"
	EventLiveStopped = "live_stopped"
)

// Stop reasons
const (
	ReasonExplicit = "explicit"
	ReasonTimeout  = "timeout"
)

// LiveEventProducer publishes live-session events.
type LiveEventProducer interface {
	Produce(ctx context.Context, event *LiveEvent) error
	Close() error
}
