package simulation

import (
	"time"

	"github.com/simshield/simshield-server/internal/models"
)

// synthesizeMetrics builds a fresh metrics snapshot from a category
// baseline. Attack and tamper multipliers scale cpu/mem/netIn/netOut and
// message rate before an independent ±20% jitter is applied to each value.
// CPU and memory are clamped to [0,100]. Stateful fields (failedAuth,
// battery) are not part of the synthesis; the caller carries them across.
func synthesizeMetrics(b baseline, attackMult, tamperMult float64, rng Rand) models.DeviceMetrics {
	factor := attackMult * tamperMult

	m := models.DeviceMetrics{
		CPU:        clamp(jitter(b.CPU*factor, rng), 0, 100),
		Memory:     clamp(jitter(b.Memory*factor, rng), 0, 100),
		NetworkIn:  max0(jitter(b.NetworkIn*factor, rng)),
		NetworkOut: max0(jitter(b.NetworkOut*factor, rng)),
		UpdatedAt:  time.Now(),
	}

	if b.HasMessageRate {
		v := max0(jitter(b.MessageRate*factor, rng))
		m.MessageRate = &v
	}

	return m
}

// jitter applies an independent uniform draw from [0.8, 1.2)
func jitter(v float64, rng Rand) float64 {
	return v * (0.8 + 0.4*rng.Float64())
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func max0(v float64) float64 {
	if v < 0 {
		return 0
	}
	return v
}

// normalizeMetrics enforces metric bounds after a tick has applied attack
// effects and defense mitigations
func normalizeMetrics(m *models.DeviceMetrics) {
	m.CPU = clamp(m.CPU, 0, 100)
	m.Memory = clamp(m.Memory, 0, 100)
	m.NetworkIn = max0(m.NetworkIn)
	m.NetworkOut = max0(m.NetworkOut)
	m.FailedAuth = max0(m.FailedAuth)
	if m.MessageRate != nil {
		*m.MessageRate = max0(*m.MessageRate)
	}
	if m.BatteryLevel != nil {
		*m.BatteryLevel = clamp(*m.BatteryLevel, 0, 100)
	}
}
