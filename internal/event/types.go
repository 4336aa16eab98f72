package event

import "time"

// Event is the interface that all events implement.
type Event interface {
	// EventType returns "category.action", e.g. "message.written".
	EventType() string
	// Timestamp returns when the event occurred.
	Timestamp() time.Time
}

// Event type names.
const (
	TypeExperimentCreated = "experiment.created"
	TypeIDCollision       = "experiment.collision"
	TypeMessageWritten    = "message.written"
	TypeMessageDrift      = "message.drift"
	TypeRoundFailed       = "round.failed"
)

// baseEvent provides common fields for all events.
type baseEvent struct {
	eventType string
	timestamp time.Time
}

func (e baseEvent) EventType() string    { return e.eventType }
func (e baseEvent) Timestamp() time.Time { return e.timestamp }

func newBaseEvent(eventType string) baseEvent {
	return baseEvent{
		eventType: eventType,
		timestamp: time.Now(),
	}
}

// -----------------------------------------------------------------------------
// Experiment Events
// -----------------------------------------------------------------------------

// ExperimentCreatedEvent is emitted once a new experiment is registered and
// its first observation is stored.
type ExperimentCreatedEvent struct {
	baseEvent
	Index        int
	ExperimentID string
	Attempts     int // identifiers tried, 1 when there was no collision
}

// NewExperimentCreatedEvent creates an ExperimentCreatedEvent.
func NewExperimentCreatedEvent(index int, id string, attempts int) ExperimentCreatedEvent {
	return ExperimentCreatedEvent{
		baseEvent:    newBaseEvent(TypeExperimentCreated),
		Index:        index,
		ExperimentID: id,
		Attempts:     attempts,
	}
}

// IDCollisionEvent is emitted when a generated identifier is rejected.
type IDCollisionEvent struct {
	baseEvent
	Candidate string
	Reason    string // "registered" or "mailbox"
}

// NewIDCollisionEvent creates an IDCollisionEvent.
func NewIDCollisionEvent(candidate, reason string) IDCollisionEvent {
	return IDCollisionEvent{
		baseEvent: newBaseEvent(TypeIDCollision),
		Candidate: candidate,
		Reason:    reason,
	}
}

// -----------------------------------------------------------------------------
// Message Events
// -----------------------------------------------------------------------------

// MessageWrittenEvent is emitted after a message is stored.
type MessageWrittenEvent struct {
	baseEvent
	Channel      string
	ExperimentID string
	Iteration    int
	FileName     string
	Existed      bool // identical content was already present
}

// NewMessageWrittenEvent creates a MessageWrittenEvent.
func NewMessageWrittenEvent(channel, id string, iteration int, fileName string, existed bool) MessageWrittenEvent {
	return MessageWrittenEvent{
		baseEvent:    newBaseEvent(TypeMessageWritten),
		Channel:      channel,
		ExperimentID: id,
		Iteration:    iteration,
		FileName:     fileName,
		Existed:      existed,
	}
}

// MessageDriftEvent is emitted when a message is resent to an address that
// already holds identical content. It usually means the caller's iteration
// numbering has fallen behind the mailbox.
type MessageDriftEvent struct {
	baseEvent
	Channel      string
	ExperimentID string
	Iteration    int
}

// NewMessageDriftEvent creates a MessageDriftEvent.
func NewMessageDriftEvent(channel, id string, iteration int) MessageDriftEvent {
	return MessageDriftEvent{
		baseEvent:    newBaseEvent(TypeMessageDrift),
		Channel:      channel,
		ExperimentID: id,
		Iteration:    iteration,
	}
}

// -----------------------------------------------------------------------------
// Round Events
// -----------------------------------------------------------------------------

// RoundFailedEvent is emitted when a controller operation fails.
type RoundFailedEvent struct {
	baseEvent
	Operation       string // "start", "intervene", "observe"
	ExperimentIndex int    // -1 for start
	Iteration       int
	Kind            string // stable error kind
	Err             error
}

// NewRoundFailedEvent creates a RoundFailedEvent.
func NewRoundFailedEvent(operation string, index, iteration int, kind string, err error) RoundFailedEvent {
	return RoundFailedEvent{
		baseEvent:       newBaseEvent(TypeRoundFailed),
		Operation:       operation,
		ExperimentIndex: index,
		Iteration:       iteration,
		Kind:            kind,
		Err:             err,
	}
}
