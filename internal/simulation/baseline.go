package simulation

import (
	"github.com/simshield/simshield-server/internal/models"
)

// baseline holds the fixed per-category metric baselines used when
// synthesizing a fresh metrics snapshot, plus the category risk base.
type baseline struct {
	CPU        float64
	Memory     float64
	NetworkIn  float64
	NetworkOut float64

	// Only MQTT-speaking categories report a message rate
	HasMessageRate bool
	MessageRate    float64

	// Only battery-capable categories report a battery level
	HasBattery bool

	RiskBase float64
}

// Cameras push continuous streams, so their network baselines sit well
// above the low-duty sensors. Risk bases reflect the blast radius of a
// takeover, not traffic volume.
var baselines = map[models.DeviceCategory]baseline{
	models.CategoryCCTV: {
		CPU: 25, Memory: 40, NetworkIn: 300, NetworkOut: 450,
		RiskBase: 40,
	},
	models.CategoryIPCamera: {
		CPU: 30, Memory: 45, NetworkIn: 320, NetworkOut: 480,
		RiskBase: 45,
	},
	models.CategoryThermostat: {
		CPU: 10, Memory: 25, NetworkIn: 10, NetworkOut: 8,
		HasMessageRate: true, MessageRate: 6,
		RiskBase: 30,
	},
	models.CategorySmartBulb: {
		CPU: 8, Memory: 20, NetworkIn: 5, NetworkOut: 3,
		HasMessageRate: true, MessageRate: 12,
		HasBattery: true,
		RiskBase:   25,
	},
	models.CategoryDoorLock: {
		CPU: 6, Memory: 18, NetworkIn: 4, NetworkOut: 2,
		HasMessageRate: true, MessageRate: 2,
		HasBattery: true,
		RiskBase:   60,
	},
}

// defaultOpenPorts maps each category to web ports plus its service port
var defaultOpenPorts = map[models.DeviceCategory][]int{
	models.CategoryCCTV:       {80, 443, 554},
	models.CategoryIPCamera:   {80, 443, 8554},
	models.CategoryThermostat: {80, 443, 1883},
	models.CategorySmartBulb:  {80, 1883},
	models.CategoryDoorLock:   {80, 443, 8883},
}

// baselineFor returns the metric baseline for a category
func baselineFor(category models.DeviceCategory) baseline {
	return baselines[category]
}

// openPortsFor returns a fresh copy of the category's default port list
func openPortsFor(category models.DeviceCategory) []int {
	return append([]int(nil), defaultOpenPorts[category]...)
}
