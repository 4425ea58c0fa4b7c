package simulation

import (
	"fmt"
	"math"

	"github.com/simshield/simshield-server/internal/models"
)

// applyAttackEffects applies the configured attack vectors to one device.
// Vectors are evaluated independently, in a fixed order, and all of them
// can fire within the same tick. Caller holds the engine lock.
func (e *Engine) applyAttackEffects(d *models.Device) {
	atk := e.state.Attack

	// SYN flood: inbound traffic and CPU pressure
	if atk.SynFlood > 0 {
		s := atk.SynFlood / 100
		d.Metrics.NetworkIn += 500 * s * (1 + e.rng.Float64())
		d.Metrics.CPU += 10 * s * (1 + e.rng.Float64())

		if e.rng.Float64() < 0.1*s {
			severity := models.SeverityMedium
			if atk.SynFlood > 70 {
				severity = models.SeverityHigh
			}
			e.emitDeviceEvent(d, models.EventTypeAttack, severity,
				fmt.Sprintf("Unusual inbound network activity on %s", d.Name),
				models.Variables{
					"vector":    "syn_flood",
					"intensity": atk.SynFlood,
					"networkIn": d.Metrics.NetworkIn,
				})
		}
	}

	// Dictionary attack: failed logins, possible compromise of weak devices
	if atk.DictionaryAttack > 0 && !d.Compromised {
		s := atk.DictionaryAttack / 100
		d.Metrics.FailedAuth += math.Floor(5 * s)

		if d.WeakPassword && e.rng.Float64() < 0.05*s {
			d.Compromised = true
			e.emitDeviceEvent(d, models.EventTypeCompromise, models.SeverityCritical,
				fmt.Sprintf("%s compromised via dictionary attack", d.Name),
				models.Variables{
					"vector":     "dictionary",
					"intensity":  atk.DictionaryAttack,
					"failedAuth": d.Metrics.FailedAuth,
				})
		}
	}

	// MQTT flood: message rate and CPU pressure. Devices without a message
	// rate still pay the CPU cost of the broker churn.
	if atk.MQTTFlood > 0 {
		s := atk.MQTTFlood / 100
		if d.Metrics.MessageRate != nil {
			*d.Metrics.MessageRate += 50 * s * (1 + e.rng.Float64())
		}
		d.Metrics.CPU += 5 * s * (1 + e.rng.Float64())

		if e.rng.Float64() < 0.1*s {
			severity := models.SeverityMedium
			if atk.MQTTFlood > 70 {
				severity = models.SeverityHigh
			}
			e.emitDeviceEvent(d, models.EventTypeAttack, severity,
				fmt.Sprintf("Abnormally high message rate on %s", d.Name),
				models.Variables{
					"vector":    "mqtt_flood",
					"intensity": atk.MQTTFlood,
				})
		}
	}

	// Firmware tamper: one-shot integrity flag per device
	if atk.FirmwareTamper && !d.IntegrityRisk {
		if e.rng.Float64() < 0.05 {
			d.IntegrityRisk = true
			e.emitDeviceEvent(d, models.EventTypeTampering, models.SeverityCritical,
				fmt.Sprintf("Firmware tampering detected on %s", d.Name),
				models.Variables{
					"firmwareVersion": d.FirmwareVersion,
				})
		}
	}
}
