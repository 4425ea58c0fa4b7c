package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// SimulationEvent represents an immutable notable occurrence in the simulation
type SimulationEvent struct {
	ID        uuid.UUID `json:"id"`
	Timestamp time.Time `json:"timestamp"`

	// Empty for system-level events
	DeviceID   string `json:"deviceId,omitempty"`
	DeviceName string `json:"deviceName,omitempty"`

	Type     EventType     `json:"type"`
	Severity EventSeverity `json:"severity"`
	Message  string        `json:"message"`

	Details Variables `json:"details,omitempty"`
}

// Clone returns a deep copy of the event
func (e *SimulationEvent) Clone() *SimulationEvent {
	out := *e
	if e.Details != nil {
		out.Details = make(Variables, len(e.Details))
		for k, v := range e.Details {
			out.Details[k] = v
		}
	}
	return &out
}

// EventType represents event types
type EventType string

const (
	EventTypeInfo       EventType = "info"
	EventTypeWarning    EventType = "warning"
	EventTypeAlert      EventType = "alert"
	EventTypeAttack     EventType = "attack"
	EventTypeDefense    EventType = "defense"
	EventTypeCompromise EventType = "compromise"
	EventTypeTampering  EventType = "tampering"
	EventTypeRiskChange EventType = "risk_change"
)

// EventSeverity represents event severity levels
type EventSeverity string

const (
	SeverityLow      EventSeverity = "low"
	SeverityMedium   EventSeverity = "medium"
	SeverityHigh     EventSeverity = "high"
	SeverityCritical EventSeverity = "critical"
	SeverityInfo     EventSeverity = "info"
)

// Variables represents a JSON object for storing arbitrary event detail
type Variables map[string]interface{}

// Value implements driver.Valuer interface
func (v Variables) Value() (driver.Value, error) {
	if v == nil {
		return nil, nil
	}
	return json.Marshal(v)
}

// Scan implements sql.Scanner interface
func (v *Variables) Scan(value interface{}) error {
	if value == nil {
		*v = make(Variables)
		return nil
	}

	switch data := value.(type) {
	case []byte:
		return json.Unmarshal(data, v)
	case string:
		return json.Unmarshal([]byte(data), v)
	default:
		return json.Unmarshal([]byte(data.(string)), v)
	}
}
