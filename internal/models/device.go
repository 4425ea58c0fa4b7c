package models

import (
	"time"
)

// DeviceCategory represents the kind of simulated IoT endpoint
type DeviceCategory string

const (
	CategoryCCTV       DeviceCategory = "cctv"
	CategorySmartBulb  DeviceCategory = "smart_bulb"
	CategoryThermostat DeviceCategory = "thermostat"
	CategoryDoorLock   DeviceCategory = "door_lock"
	CategoryIPCamera   DeviceCategory = "ip_camera"
)

// AllCategories returns the closed set of device categories
func AllCategories() []DeviceCategory {
	return []DeviceCategory{
		CategoryCCTV,
		CategorySmartBulb,
		CategoryThermostat,
		CategoryDoorLock,
		CategoryIPCamera,
	}
}

// DisplayName returns a human-readable category name
func (c DeviceCategory) DisplayName() string {
	switch c {
	case CategoryCCTV:
		return "CCTV Camera"
	case CategorySmartBulb:
		return "Smart Bulb"
	case CategoryThermostat:
		return "Thermostat"
	case CategoryDoorLock:
		return "Door Lock"
	case CategoryIPCamera:
		return "IP Camera"
	default:
		return string(c)
	}
}

// DeviceMetrics represents a device's metrics snapshot
type DeviceMetrics struct {
	CPU          float64    `json:"cpu"`
	Memory       float64    `json:"memory"`
	NetworkIn    float64    `json:"networkIn"`
	NetworkOut   float64    `json:"networkOut"`
	MessageRate  *float64   `json:"messageRate,omitempty"`
	BatteryLevel *float64   `json:"batteryLevel,omitempty"`
	FailedAuth   float64    `json:"failedAuth"`
	UpdatedAt    time.Time  `json:"updatedAt"`
}

// Clone returns a deep copy of the metrics snapshot
func (m DeviceMetrics) Clone() DeviceMetrics {
	out := m
	if m.MessageRate != nil {
		v := *m.MessageRate
		out.MessageRate = &v
	}
	if m.BatteryLevel != nil {
		v := *m.BatteryLevel
		out.BatteryLevel = &v
	}
	return out
}

// Device represents one simulated IoT endpoint
type Device struct {
	// Identity
	ID       string         `json:"id"`
	Name     string         `json:"name"`
	Category DeviceCategory `json:"category"`

	// Static security posture, assigned once at creation
	FirmwareVersion string `json:"firmwareVersion"`
	WeakPassword    bool   `json:"weakPassword"`
	OpenPorts       []int  `json:"openPorts"`

	// Dynamic security state
	Compromised   bool `json:"compromised"`
	IntegrityRisk bool `json:"integrityRisk"`

	Metrics DeviceMetrics `json:"metrics"`

	// Derived
	RiskScore float64          `json:"riskScore"`
	LastEvent *SimulationEvent `json:"lastEvent,omitempty"`
}

// Clone returns a deep copy of the device
func (d *Device) Clone() *Device {
	out := *d
	out.OpenPorts = append([]int(nil), d.OpenPorts...)
	out.Metrics = d.Metrics.Clone()
	if d.LastEvent != nil {
		out.LastEvent = d.LastEvent.Clone()
	}
	return &out
}
