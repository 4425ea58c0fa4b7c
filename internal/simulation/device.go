package simulation

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/simshield/simshield-server/internal/models"
)

// newDeviceBatch creates the fixed device batch for a fresh simulation
// state. Categories are picked uniformly at random, weak passwords are
// assigned with the configured probability, and initial metrics are
// synthesized with no attack or tamper factor.
func newDeviceBatch(count int, weakPasswordProb float64, rng Rand) []*models.Device {
	categories := models.AllCategories()
	devices := make([]*models.Device, 0, count)

	for i := 0; i < count; i++ {
		idx := int(rng.Float64() * float64(len(categories)))
		if idx >= len(categories) {
			idx = len(categories) - 1
		}
		category := categories[idx]
		b := baselineFor(category)

		d := &models.Device{
			ID:              uuid.New().String(),
			Name:            fmt.Sprintf("%s %d", category.DisplayName(), i+1),
			Category:        category,
			FirmwareVersion: randomFirmwareVersion(rng),
			WeakPassword:    rng.Float64() < weakPasswordProb,
			OpenPorts:       openPortsFor(category),
			Metrics:         synthesizeMetrics(b, 1.0, 1.0, rng),
		}

		if b.HasBattery {
			level := 60 + 40*rng.Float64()
			d.Metrics.BatteryLevel = &level
		}

		d.RiskScore = riskScore(d)
		devices = append(devices, d)
	}

	return devices
}

func randomFirmwareVersion(rng Rand) string {
	major := 1 + int(rng.Float64()*3)
	minor := int(rng.Float64() * 10)
	patch := int(rng.Float64() * 10)
	return fmt.Sprintf("%d.%d.%d", major, minor, patch)
}
