package matching

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dadcircles/pkg/domain"
	dErrors "dadcircles/pkg/domain-errors"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 4, cfg.MinGroupSize)
	assert.Equal(t, 6, cfg.MaxGroupSize)
	assert.InDelta(t, 1.0, cfg.GapCeiling(domain.LifeStageExpecting), 1e-9)
	assert.InDelta(t, 9.0, cfg.GapCeiling(domain.LifeStageToddler), 1e-9)
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(cfg *Config)
	}{
		{"min below two", func(cfg *Config) { cfg.MinGroupSize = 1 }},
		{"max below min", func(cfg *Config) { cfg.MaxGroupSize = cfg.MinGroupSize - 1 }},
		{"zero concurrency", func(cfg *Config) { cfg.Concurrency = 0 }},
		{"missing stage ceiling", func(cfg *Config) { delete(cfg.MaxGapMonths, domain.LifeStageInfant) }},
		{"negative stage ceiling", func(cfg *Config) { cfg.MaxGapMonths[domain.LifeStageNewborn] = -1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)

			err := cfg.Validate()
			require.Error(t, err)
			assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
		})
	}
}
