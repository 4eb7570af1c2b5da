package domain

import dErrors "dadcircles/pkg/domain-errors"

// LifeStage is a domain value that buckets children by developmental phase.
// Invariant: the value must be one of the supported stages; the zero value
// means unknown (no children, or all children aged out of the program).
//
// Usage: construct via ParseLifeStage at trust boundaries to enforce the
// allowlist; direct casting bypasses validation.
type LifeStage string

// Supported life stages, in pipeline order.
const (
	LifeStageExpecting LifeStage = "expecting"
	LifeStageNewborn   LifeStage = "newborn"
	LifeStageInfant    LifeStage = "infant"
	LifeStageToddler   LifeStage = "toddler"
)

// stageOrder is the single source of truth for valid stages and their
// pipeline order (expecting sorts before newborn, and so on).
var stageOrder = map[LifeStage]int{
	LifeStageExpecting: 0,
	LifeStageNewborn:   1,
	LifeStageInfant:    2,
	LifeStageToddler:   3,
}

var stageDisplay = map[LifeStage]string{
	LifeStageExpecting: "Expecting",
	LifeStageNewborn:   "Newborn",
	LifeStageInfant:    "Infant",
	LifeStageToddler:   "Toddler",
}

// ParseLifeStage constructs a LifeStage from external input.
//
// Errors: returns CodeInvalidInput when the value is empty or unsupported; no
// other errors are expected.
func ParseLifeStage(s string) (LifeStage, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "life stage cannot be empty")
	}
	stage := LifeStage(s)
	if !stage.IsValid() {
		return "", dErrors.New(dErrors.CodeInvalidInput, "invalid life stage")
	}
	return stage, nil
}

// LifeStages returns the supported stages in pipeline order.
func LifeStages() []LifeStage {
	return []LifeStage{LifeStageExpecting, LifeStageNewborn, LifeStageInfant, LifeStageToddler}
}

// IsValid checks if the stage is one of the supported enum values.
func (s LifeStage) IsValid() bool {
	_, ok := stageOrder[s]
	return ok
}

// Order returns the pipeline position of the stage. Unknown stages sort last.
func (s LifeStage) Order() int {
	if rank, ok := stageOrder[s]; ok {
		return rank
	}
	return len(stageOrder)
}

// Display returns the human-readable form used in group names.
func (s LifeStage) Display() string {
	if d, ok := stageDisplay[s]; ok {
		return d
	}
	return "Unknown"
}

// String returns the string representation of the stage.
func (s LifeStage) String() string {
	return string(s)
}
