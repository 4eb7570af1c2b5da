package matching

import (
	"sort"

	"dadcircles/pkg/domain"
)

// PartitionBucket cuts one bucket into candidate groups: sort by priority,
// walk consecutive windows of MaxGroupSize, keep a short final window only
// when it reaches MinGroupSize, and drop any window whose age spread exceeds
// the stage ceiling. Dropped members stay unmatched this run; the partitioner
// never re-splits a window or borrows across windows, trading coverage for
// groups with a tight age spread. Surviving windows return in sorted order
// for the caller to number.
func PartitionBucket(members []Member, stage domain.LifeStage, cfg Config) [][]Member {
	sorted := make([]Member, len(members))
	copy(sorted, members)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Priority != sorted[j].Priority {
			return sorted[i].Priority < sorted[j].Priority
		}
		// Equal priorities order by user id to keep runs reproducible.
		return sorted[i].Profile.ID.String() < sorted[j].Profile.ID.String()
	})

	ceiling := cfg.GapCeiling(stage)
	var windows [][]Member
	for start := 0; start < len(sorted); start += cfg.MaxGroupSize {
		end := start + cfg.MaxGroupSize
		if end > len(sorted) {
			end = len(sorted)
		}
		window := sorted[start:end]
		if len(window) < cfg.MinGroupSize {
			break
		}
		if windowGap(window, stage) > ceiling {
			continue
		}
		windows = append(windows, window)
	}
	return windows
}

func windowGap(window []Member, stage domain.LifeStage) float64 {
	priorities := make([]float64, len(window))
	for i, m := range window {
		priorities[i] = m.Priority
	}
	return GapMonths(priorities, stage)
}
