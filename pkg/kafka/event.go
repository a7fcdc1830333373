package kafka

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// TopicPrefix namespaces every topic the console writes to.
const TopicPrefix = "deposit"

// Topic builds a topic name of the form deposit.<domain>.<action>.
func Topic(domain, action string) string {
	return TopicPrefix + "." + domain + "." + action
}

// Event is the JSON envelope of an audit message. Subject identifies the
// record the event is about and doubles as the partition key.
type Event struct {
	ID            string            `json:"id"`
	Type          string            `json:"type"`
	Source        string            `json:"source"`
	SubjectType   string            `json:"subject_type"`
	Subject       string            `json:"subject"`
	OccurredAt    time.Time         `json:"occurred_at"`
	CorrelationID string            `json:"correlation_id,omitempty"`
	SessionID     string            `json:"session_id,omitempty"`
	Attributes    map[string]string `json:"attributes,omitempty"`
	Data          json.RawMessage   `json:"data"`
}

// NewEvent wraps data in an envelope stamped with a fresh id and the current
// UTC time.
func NewEvent(source, eventType, subjectType, subject string, data any) (*Event, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", eventType, err)
	}
	return &Event{
		ID:          uuid.NewString(),
		Type:        eventType,
		Source:      source,
		SubjectType: subjectType,
		Subject:     subject,
		OccurredAt:  time.Now().UTC(),
		Data:        raw,
	}, nil
}

// SetAttribute records a free-form string attribute.
func (e *Event) SetAttribute(key, value string) {
	if e.Attributes == nil {
		e.Attributes = make(map[string]string, 1)
	}
	e.Attributes[key] = value
}

// DecodeData unmarshals the payload into target.
func (e *Event) DecodeData(target any) error {
	if len(e.Data) == 0 {
		return fmt.Errorf("event %s has no payload", e.ID)
	}
	return json.Unmarshal(e.Data, target)
}

// DecodeEvent parses a message value produced by Producer.Publish.
func DecodeEvent(value []byte) (*Event, error) {
	var e Event
	if err := json.Unmarshal(value, &e); err != nil {
		return nil, fmt.Errorf("decode event: %w", err)
	}
	return &e, nil
}
