package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "dadcircles/pkg/domain-errors"
)

func TestParseLifeStage(t *testing.T) {
	t.Run("accepts every supported stage", func(t *testing.T) {
		for _, stage := range LifeStages() {
			parsed, err := ParseLifeStage(stage.String())
			require.NoError(t, err)
			assert.Equal(t, stage, parsed)
		}
	})

	t.Run("rejects empty and unknown values", func(t *testing.T) {
		for _, input := range []string{"", "teenager", "EXPECTING", "new born"} {
			_, err := ParseLifeStage(input)
			require.Error(t, err, "input %q", input)
			assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
		}
	})
}

func TestLifeStageOrder(t *testing.T) {
	// Pipeline order keeps bucket listings stable across runs.
	assert.Less(t, LifeStageExpecting.Order(), LifeStageNewborn.Order())
	assert.Less(t, LifeStageNewborn.Order(), LifeStageInfant.Order())
	assert.Less(t, LifeStageInfant.Order(), LifeStageToddler.Order())
	assert.Greater(t, LifeStage("").Order(), LifeStageToddler.Order())
}

func TestLifeStageDisplay(t *testing.T) {
	assert.Equal(t, "Expecting", LifeStageExpecting.Display())
	assert.Equal(t, "Toddler", LifeStageToddler.Display())
	assert.Equal(t, "Unknown", LifeStage("").Display())
}
