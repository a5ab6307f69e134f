package capture

import (
	"bytes"
	"crypto/subtle"
	"errors"
	"fmt"
	"strconv"
)

// CollectionSize is the number of entities in the collection (IDs 1..151).
const CollectionSize = 151

// Outcome is the result of recording a capture.
type Outcome int

const (
	OutcomeNew Outcome = iota + 1
	OutcomeDuplicate
)

// String returns the metrics label for o.
func (o Outcome) String() string {
	switch o {
	case OutcomeNew:
		return "new"
	case OutcomeDuplicate:
		return "duplicate"
	default:
		return "unknown"
	}
}

// Action returns the wire value sent to viewers for o.
func (o Outcome) Action() string {
	switch o {
	case OutcomeNew:
		return ActionNewCapture
	case OutcomeDuplicate:
		return ActionDuplicateCapture
	default:
		return ""
	}
}

// Event describes one observed capture attempt. It is broadcast, never stored.
type Event struct {
	ID      int
	Name    string
	Outcome Outcome
}

// Message returns the viewer-facing form of e.
func (e Event) Message() CaptureMessage {
	return CaptureMessage{ID: e.ID, Name: e.Name, Action: e.Outcome.Action()}
}

// Wire values exchanged with viewers.
const (
	MessageTypeInitialState = "initial_state"
	MessageTypePing         = "ping"
	MessageTypePong         = "pong"

	ActionNewCapture       = "new_capture"
	ActionDuplicateCapture = "duplicate_capture"
)

// StateMessage is the full-state snapshot sent on connect and after reset/complete.
type StateMessage struct {
	Type     string `json:"type"`
	Captured []int  `json:"captured"`
}

// NewStateMessage builds a snapshot message. A nil ids encodes as [].
func NewStateMessage(ids []int) StateMessage {
	if ids == nil {
		ids = []int{}
	}
	return StateMessage{Type: MessageTypeInitialState, Captured: ids}
}

// CaptureMessage announces a single capture to viewers.
type CaptureMessage struct {
	ID     int    `json:"id"`
	Name   string `json:"name"`
	Action string `json:"action"`
}

// ControlMessage carries keepalive traffic in both directions.
type ControlMessage struct {
	Type string `json:"type"`
}

var (
	// ErrMissingID is returned when a capture carries no id (or id 0).
	ErrMissingID = errors.New("capture id is required")

	// ErrMissingName is returned when a capture carries no name.
	ErrMissingName = errors.New("capture name is required")

	// ErrInvalidID is returned when the id is not an integer.
	ErrInvalidID = errors.New("capture id must be an integer")

	// ErrIDOutOfRange is returned when range enforcement is on and the id
	// falls outside 1..CollectionSize.
	ErrIDOutOfRange = errors.New("capture id out of range")
)

// EntityID is a capture id as sent by the webhook. The sender may encode it
// as a JSON number or as a decimal string; null decodes to zero.
type EntityID int

// UnmarshalJSON implements json.Unmarshaler.
func (id *EntityID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = 0
		return nil
	}

	raw := string(data)
	if len(data) > 0 && data[0] == '"' {
		s, err := strconv.Unquote(raw)
		if err != nil {
			return fmt.Errorf("%w: %s", ErrInvalidID, raw)
		}
		raw = s
	}

	n, err := strconv.Atoi(raw)
	if err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidID, raw)
	}
	*id = EntityID(n)
	return nil
}

// CaptureRequest is the body of POST /capture.
type CaptureRequest struct {
	ID   EntityID `json:"id"`
	Name string   `json:"name"`
}

// Validate checks required fields. Range is only checked when enforceRange is set.
func (r CaptureRequest) Validate(enforceRange bool) error {
	if r.ID == 0 {
		return ErrMissingID
	}
	if r.Name == "" {
		return ErrMissingName
	}
	if enforceRange && (r.ID < 1 || r.ID > CollectionSize) {
		return fmt.Errorf("%w: %d not in 1..%d", ErrIDOutOfRange, r.ID, CollectionSize)
	}
	return nil
}

// AdminRequest is the body of every /admin endpoint.
type AdminRequest struct {
	Secret string `json:"secret"`
}

// Secret is an optional shared credential. The zero value is unconfigured.
type Secret struct {
	value string
}

// NewSecret wraps v. An empty v yields an unconfigured Secret.
func NewSecret(v string) Secret {
	return Secret{value: v}
}

// Configured reports whether a secret value was supplied.
func (s Secret) Configured() bool {
	return s.value != ""
}

// Matches compares candidate byte-for-byte. An unconfigured secret matches nothing.
func (s Secret) Matches(candidate string) bool {
	if !s.Configured() {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(s.value), []byte(candidate)) == 1
}

// String keeps the value out of logs.
func (s Secret) String() string {
	if !s.Configured() {
		return "<unset>"
	}
	return "<redacted>"
}
