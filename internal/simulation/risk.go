package simulation

import (
	"github.com/simshield/simshield-server/internal/models"
)

// riskScore recomputes a device's risk as a pure function of its current
// fields, clamped to [0,100]. A missing failedAuth counts as zero.
func riskScore(d *models.Device) float64 {
	score := baselineFor(d.Category).RiskBase

	if d.WeakPassword {
		score += 20
	}

	switch {
	case d.Metrics.CPU > 80:
		score += 15
	case d.Metrics.CPU > 50:
		score += 7
	}

	if d.Metrics.NetworkIn > 500 || d.Metrics.NetworkOut > 500 {
		score += 15
	} else if d.Metrics.NetworkIn > 200 || d.Metrics.NetworkOut > 200 {
		score += 7
	}

	switch {
	case d.Metrics.FailedAuth > 5:
		score += 20
	case d.Metrics.FailedAuth > 0:
		score += 5
	}

	if d.Compromised {
		score += 30
	}
	if d.IntegrityRisk {
		score += 25
	}

	return clamp(score, 0, 100)
}
