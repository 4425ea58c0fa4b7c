package simulation

import (
	"fmt"

	"github.com/simshield/simshield-server/internal/models"
)

const (
	rateLimitNetworkIn   = 1000
	rateLimitMessageRate = 100
	lockoutThreshold     = 5
)

// applyDefenseMitigations applies the enabled defenses to one device,
// reading the same-tick attack output. Caller holds the engine lock.
func (e *Engine) applyDefenseMitigations(d *models.Device) {
	def := e.state.Defense

	// Rate limiting caps inbound traffic and message throughput
	if def.RateLimiting {
		if d.Metrics.NetworkIn > rateLimitNetworkIn {
			d.Metrics.NetworkIn = rateLimitNetworkIn
		}
		if d.Metrics.MessageRate != nil && *d.Metrics.MessageRate > rateLimitMessageRate {
			*d.Metrics.MessageRate = rateLimitMessageRate
		}
	}

	// Account lockout holds the failed-auth counter at the threshold; it
	// does not reset it.
	if def.AccountLockout && d.Metrics.FailedAuth > lockoutThreshold {
		d.Metrics.FailedAuth = lockoutThreshold
	}

	// Signature check clears a pending integrity risk
	if def.SignatureCheck && d.IntegrityRisk {
		d.IntegrityRisk = false
		e.emitDeviceEvent(d, models.EventTypeDefense, models.SeverityInfo,
			fmt.Sprintf("Firmware integrity restored on %s by signature verification", d.Name),
			models.Variables{
				"firmwareVersion": d.FirmwareVersion,
			})
	}
}
