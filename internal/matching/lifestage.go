package matching

import (
	"time"

	"dadcircles/internal/profile"
	"dadcircles/pkg/domain"
)

// defaultBirthMonth stands in when onboarding captured only a year. June
// splits the year evenly, so the age error is at most six months.
const defaultBirthMonth = 6

// dueDay pins month-precision due dates to mid-month for the countdown.
const dueDay = 15

// daysPerMonth converts due-date spreads to months (mean Gregorian month).
const daysPerMonth = 30.44

// StageOf classifies a child against the reference time. Classification works
// at year+month granularity; days inside the month are ignored. A birth date
// in a strictly future month is a due date and classifies as expecting. The
// zero LifeStage means the child has aged out of the program.
func StageOf(child profile.Child, now time.Time) domain.LifeStage {
	birth := monthIndex(child.BirthYear, birthMonth(child))
	current := monthIndex(now.Year(), int(now.Month()))
	if birth > current {
		return domain.LifeStageExpecting
	}
	switch age := current - birth; {
	case age < 6:
		return domain.LifeStageNewborn
	case age < 18:
		return domain.LifeStageInfant
	case age <= 36:
		return domain.LifeStageToddler
	default:
		return ""
	}
}

// PriorityOf returns the sort key for a classified child; smaller sorts
// earlier. Expecting children count signed days until the due date, everyone
// else counts age in whole months.
func PriorityOf(child profile.Child, stage domain.LifeStage, now time.Time) float64 {
	month := birthMonth(child)
	if stage == domain.LifeStageExpecting {
		due := time.Date(child.BirthYear, time.Month(month), dueDay, 0, 0, 0, 0, time.UTC)
		return due.Sub(now).Hours() / 24
	}
	return float64(monthIndex(now.Year(), int(now.Month())) - monthIndex(child.BirthYear, month))
}

// Classify resolves a profile's stage and priority from its primary child.
// Only the first child drives matching. The zero stage means the profile sits
// out this run: no children, or the child has aged out.
func Classify(p profile.Profile, now time.Time) (domain.LifeStage, float64) {
	child := p.PrimaryChild()
	if child == nil {
		return "", 0
	}
	stage := StageOf(*child, now)
	if !stage.IsValid() {
		return "", 0
	}
	return stage, PriorityOf(*child, stage, now)
}

// GapMonths measures the spread of a window's priorities in months. Expecting
// priorities are day counts and divide by the mean month length; the others
// already are months.
func GapMonths(priorities []float64, stage domain.LifeStage) float64 {
	if len(priorities) == 0 {
		return 0
	}
	lo, hi := priorities[0], priorities[0]
	for _, p := range priorities[1:] {
		if p < lo {
			lo = p
		}
		if p > hi {
			hi = p
		}
	}
	if stage == domain.LifeStageExpecting {
		return (hi - lo) / daysPerMonth
	}
	return hi - lo
}

func birthMonth(child profile.Child) int {
	if child.BirthMonth != nil {
		return *child.BirthMonth
	}
	return defaultBirthMonth
}

// monthIndex counts months since year zero, which makes age arithmetic borrow
// correctly across year boundaries (2026-01 minus three months is 2025-10).
func monthIndex(year, month int) int {
	return year*12 + month - 1
}
