package matching

import (
	"dadcircles/pkg/domain"
	dErrors "dadcircles/pkg/domain-errors"
)

// Config holds the partitioning and orchestration knobs of a matching run.
// Deploy-time overrides arrive through internal/platform/config; the gap
// ceilings are product policy and default here.
type Config struct {
	// MinGroupSize and MaxGroupSize bound every created group.
	MinGroupSize int
	MaxGroupSize int
	// MaxGapMonths caps the intra-group age spread per stage, in months.
	MaxGapMonths map[domain.LifeStage]float64
	// Concurrency bounds how many buckets a run processes in parallel.
	Concurrency int
}

// DefaultConfig returns the product defaults: groups of four to six, tighter
// age spreads the younger the children.
func DefaultConfig() Config {
	return Config{
		MinGroupSize: 4,
		MaxGroupSize: 6,
		Concurrency:  4,
		MaxGapMonths: map[domain.LifeStage]float64{
			domain.LifeStageExpecting: 1,
			domain.LifeStageNewborn:   3,
			domain.LifeStageInfant:    6,
			domain.LifeStageToddler:   9,
		},
	}
}

// Validate rejects configurations the partitioner cannot honor.
func (c Config) Validate() error {
	if c.MinGroupSize < 2 {
		return dErrors.Newf(dErrors.CodeValidation, "min group size %d must be at least 2", c.MinGroupSize)
	}
	if c.MaxGroupSize < c.MinGroupSize {
		return dErrors.Newf(dErrors.CodeValidation,
			"max group size %d below min group size %d", c.MaxGroupSize, c.MinGroupSize)
	}
	if c.Concurrency < 1 {
		return dErrors.Newf(dErrors.CodeValidation, "concurrency %d must be at least 1", c.Concurrency)
	}
	for _, stage := range domain.LifeStages() {
		if c.MaxGapMonths[stage] <= 0 {
			return dErrors.Newf(dErrors.CodeValidation, "missing gap ceiling for stage %q", stage)
		}
	}
	return nil
}

// GapCeiling returns the spread ceiling for a stage, in months.
func (c Config) GapCeiling(stage domain.LifeStage) float64 {
	return c.MaxGapMonths[stage]
}
