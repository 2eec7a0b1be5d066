// Package event defines the domain events published by the generation pipeline.
package event

import (
	"time"

	"github.com/google/uuid"
)

// Event represents a domain event about a template or a generation
type Event struct {
	ID            string                 `json:"id"`
	Type          Type                   `json:"type"`
	SubjectID     int64                  `json:"subject_id"`
	Payload       map[string]interface{} `json:"payload"`
	Timestamp     time.Time              `json:"timestamp"`
	CorrelationID string                 `json:"correlation_id"`
}

// NewEvent creates an event starting a new correlation chain
func NewEvent(eventType Type, subjectID int64, payload map[string]interface{}) *Event {
	return NewEventWithCorrelation(eventType, subjectID, payload, uuid.NewString())
}

// NewEventWithCorrelation creates an event linked to an existing correlation chain
func NewEventWithCorrelation(eventType Type, subjectID int64, payload map[string]interface{}, correlationID string) *Event {
	return &Event{
		ID:            uuid.NewString(),
		Type:          eventType,
		SubjectID:     subjectID,
		Payload:       payload,
		Timestamp:     time.Now(),
		CorrelationID: correlationID,
	}
}

// Follow creates an event continuing e's correlation chain
func (e *Event) Follow(eventType Type, subjectID int64, payload map[string]interface{}) *Event {
	return NewEventWithCorrelation(eventType, subjectID, payload, e.CorrelationID)
}

// WithPayload returns a copy of e with key set in its payload
func (e *Event) WithPayload(key string, value interface{}) *Event {
	payload := make(map[string]interface{}, len(e.Payload)+1)
	for k, v := range e.Payload {
		payload[k] = v
	}
	payload[key] = value

	cp := *e
	cp.Payload = payload
	return &cp
}

// GetPayloadString retrieves a string value from the payload
func (e *Event) GetPayloadString(key string) string {
	if s, ok := e.Payload[key].(string); ok {
		return s
	}
	return ""
}

// GetPayloadInt retrieves an integer value from the payload
func (e *Event) GetPayloadInt(key string) int64 {
	switch v := e.Payload[key].(type) {
	case int64:
		return v
	case int:
		return int64(v)
	case float64:
		return int64(v)
	}
	return 0
}

// GetPayloadBool retrieves a bool value from the payload
func (e *Event) GetPayloadBool(key string) bool {
	b, _ := e.Payload[key].(bool)
	return b
}
