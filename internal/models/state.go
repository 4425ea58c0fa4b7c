package models

import (
	"time"
)

// AttackState represents the process-wide attack configuration
type AttackState struct {
	SynFlood         float64 `json:"synFlood"`
	DictionaryAttack float64 `json:"dictionaryAttack"`
	MQTTFlood        float64 `json:"mqttFlood"`
	FirmwareTamper   bool    `json:"firmwareTamper"`
}

// AttackUpdate is a partial merge into AttackState; nil fields are unchanged
type AttackUpdate struct {
	SynFlood         *float64 `json:"synFlood,omitempty" validate:"omitempty,gte=0,lte=100"`
	DictionaryAttack *float64 `json:"dictionaryAttack,omitempty" validate:"omitempty,gte=0,lte=100"`
	MQTTFlood        *float64 `json:"mqttFlood,omitempty" validate:"omitempty,gte=0,lte=100"`
	FirmwareTamper   *bool    `json:"firmwareTamper,omitempty"`
}

// DefenseState represents the process-wide defense configuration
type DefenseState struct {
	RateLimiting   bool `json:"rateLimiting"`
	AccountLockout bool `json:"accountLockout"`
	SignatureCheck bool `json:"signatureCheck"`
}

// DefenseUpdate is a partial merge into DefenseState; nil fields are unchanged
type DefenseUpdate struct {
	RateLimiting   *bool `json:"rateLimiting,omitempty"`
	AccountLockout *bool `json:"accountLockout,omitempty"`
	SignatureCheck *bool `json:"signatureCheck,omitempty"`
}

// SimulationState is the root aggregate owned by the engine. External
// readers only ever see copies produced by Clone.
type SimulationState struct {
	Running      bool         `json:"running"`
	TickInterval int          `json:"tickInterval"` // milliseconds
	Devices      []*Device    `json:"devices"`
	Attack       AttackState  `json:"attack"`
	Defense      DefenseState `json:"defense"`
	LastUpdated  time.Time    `json:"lastUpdated"`
	StartedAt    *time.Time   `json:"startedAt,omitempty"`
}

// Clone returns a deep, independent copy of the state
func (s *SimulationState) Clone() *SimulationState {
	out := *s
	out.Devices = make([]*Device, len(s.Devices))
	for i, d := range s.Devices {
		out.Devices[i] = d.Clone()
	}
	if s.StartedAt != nil {
		t := *s.StartedAt
		out.StartedAt = &t
	}
	return &out
}

// Device returns the device with the given id, or nil
func (s *SimulationState) Device(id string) *Device {
	for _, d := range s.Devices {
		if d.ID == id {
			return d
		}
	}
	return nil
}
