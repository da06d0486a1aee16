package detection

import (
	"fmt"
	"os"

	"vehicle_inspection_backend/internal/assessments/domain"

	"gopkg.in/yaml.v3"
)

// CostPolicy holds the base repair cost per severity.
type CostPolicy struct {
	Minor    float64 `yaml:"minor"`
	Moderate float64 `yaml:"moderate"`
	Severe   float64 `yaml:"severe"`
}

// DefaultCostPolicy returns the built-in base costs.
func DefaultCostPolicy() CostPolicy {
	return CostPolicy{Minor: 200, Moderate: 500, Severe: 1200}
}

// LoadCostPolicy reads base costs from a YAML file such as
//
//	minor: 250
//	severe: 1500
//
// Keys left out keep their default. An empty path returns the defaults.
func LoadCostPolicy(path string) (CostPolicy, error) {
	policy := DefaultCostPolicy()
	if path == "" {
		return policy, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return CostPolicy{}, fmt.Errorf("read cost policy: %w", err)
	}
	if err := yaml.Unmarshal(raw, &policy); err != nil {
		return CostPolicy{}, fmt.Errorf("parse cost policy %s: %w", path, err)
	}
	if policy.Minor < 0 || policy.Moderate < 0 || policy.Severe < 0 {
		return CostPolicy{}, fmt.Errorf("cost policy %s: costs must be non-negative", path)
	}
	return policy, nil
}

// Base returns the unscaled cost for a severity. Unknown severities cost nothing.
func (p CostPolicy) Base(sev domain.Severity) float64 {
	switch sev {
	case domain.SeverityMinor:
		return p.Minor
	case domain.SeverityModerate:
		return p.Moderate
	case domain.SeveritySevere:
		return p.Severe
	}
	return 0
}

// Estimate scales the base cost by confidence: half the base at zero
// confidence, the full base at 1.0. Rounded to cents.
func (p CostPolicy) Estimate(sev domain.Severity, confidence float64) float64 {
	return domain.RoundCents(p.Base(sev) * (0.5 + clamp01(confidence)/2))
}
