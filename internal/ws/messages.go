package ws

import (
	"encoding/json"
)

// Push message types sent to clients
const (
	PushState = "state"
	PushEvent = "event"
	PushError = "error"
)

// Command types accepted from clients
const (
	CommandStart      = "start"
	CommandPause      = "pause"
	CommandReset      = "reset"
	CommandSetAttack  = "set_attack"
	CommandSetDefense = "set_defense"
)

// Envelope wraps every frame pushed to clients
type Envelope struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload,omitempty"`
}

// Command is an inbound client frame
type Command struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}
