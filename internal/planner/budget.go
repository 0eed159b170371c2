package planner

import "github.com/blackwell-systems/homepilot/internal/model"

// EnergyBudget scales the base capacity by readiness. Readiness is clamped to
// [0,100] and the result is truncated toward zero.
func (p *Planner) EnergyBudget(b model.BiometricSample) int {
	return energyBudget(p.cfg.BaseEnergy, b.ReadinessScore)
}

func energyBudget(base, readiness int) int {
	if base < 0 {
		base = 0
	}
	switch {
	case readiness < 0:
		readiness = 0
	case readiness > 100:
		readiness = 100
	}
	return base * readiness / 100
}
