// Package profile holds member profiles and the stores that persist them.
// Matching runs only read profiles and patch their group assignment; profile
// creation and onboarding edits arrive from outside the matching engine.
package profile

import (
	"strings"
	"time"

	"dadcircles/pkg/domain"
	dErrors "dadcircles/pkg/domain-errors"
	"dadcircles/pkg/email"
)

const minBirthYear = 1990

// birthYearSlack allows due dates up to two calendar years ahead, covering
// expecting dads who sign up early.
const birthYearSlack = 2

// Child is one child on a profile. BirthMonth is optional; age computations
// default it to mid-year. A birth date in the future marks an expected child.
// Gender is onboarding vocabulary the matching engine never consults.
type Child struct {
	BirthYear  int     `json:"birth_year"`
	BirthMonth *int    `json:"birth_month,omitempty"`
	Gender     *string `json:"gender,omitempty"`
}

// Validate bounds the birth year to 1990..now+2 and the month to 1..12.
func (c Child) Validate(now time.Time) error {
	if c.BirthYear < minBirthYear || c.BirthYear > now.Year()+birthYearSlack {
		return dErrors.Newf(dErrors.CodeValidation, "child birth year %d out of range", c.BirthYear)
	}
	if c.BirthMonth != nil && (*c.BirthMonth < 1 || *c.BirthMonth > 12) {
		return dErrors.Newf(dErrors.CodeValidation, "child birth month %d out of range", *c.BirthMonth)
	}
	return nil
}

// Profile is the member record consulted by matching runs.
//
// Invariants:
//   - ID is a valid non-nil UUID
//   - GroupID == nil means unmatched; the matching pool is
//     EligibleForMatching AND GroupID == nil
//   - only the first child drives life-stage classification
type Profile struct {
	ID                  domain.UserID   `json:"id"`
	Email               string          `json:"email"`
	FirstName           string          `json:"first_name"`
	City                string          `json:"city"`
	RegionCode          string          `json:"region_code"`
	Children            []Child         `json:"children"`
	EligibleForMatching bool            `json:"eligible_for_matching"`
	GroupID             *domain.GroupID `json:"group_id,omitempty"`
	CreatedAt           time.Time       `json:"created_at"`
	UpdatedAt           time.Time       `json:"updated_at"`
}

// Validate checks the fields the stores refuse to persist unchecked. A
// profile without a location or children is still valid; it is skipped at
// bucketing time rather than rejected here.
func (p *Profile) Validate(now time.Time) error {
	if p.ID.IsNil() {
		return dErrors.New(dErrors.CodeValidation, "profile id is required")
	}
	for _, c := range p.Children {
		if err := c.Validate(now); err != nil {
			return err
		}
	}
	return nil
}

// Normalize canonicalizes free-text fields before persistence. Bucket keys
// compare city and region byte-for-byte, so stray whitespace or lowercase
// region codes would split a city into separate pools.
func (p *Profile) Normalize() {
	p.Email = strings.TrimSpace(p.Email)
	p.FirstName = strings.TrimSpace(p.FirstName)
	p.City = strings.TrimSpace(p.City)
	p.RegionCode = strings.ToUpper(strings.TrimSpace(p.RegionCode))
}

// DisplayName returns the name introductions greet the member by: the first
// name when present, a name derived from the email otherwise, "there" as the
// last resort.
func (p *Profile) DisplayName() string {
	if p.FirstName != "" {
		return p.FirstName
	}
	if name := email.DeriveNameFromEmail(p.Email); name != "" {
		return name
	}
	return "there"
}

// Matched reports whether the member already belongs to a group.
func (p *Profile) Matched() bool {
	return p.GroupID != nil
}

// PrimaryChild returns the first child, or nil when the profile has none.
func (p *Profile) PrimaryChild() *Child {
	if len(p.Children) == 0 {
		return nil
	}
	return &p.Children[0]
}

// Clone returns a deep copy so stores can hand out profiles without aliasing
// their internal state.
func (p *Profile) Clone() *Profile {
	cp := *p
	if p.GroupID != nil {
		gid := *p.GroupID
		cp.GroupID = &gid
	}
	if p.Children != nil {
		cp.Children = make([]Child, len(p.Children))
		for i, c := range p.Children {
			cp.Children[i] = c
			if c.BirthMonth != nil {
				m := *c.BirthMonth
				cp.Children[i].BirthMonth = &m
			}
			if c.Gender != nil {
				g := *c.Gender
				cp.Children[i].Gender = &g
			}
		}
	}
	return &cp
}
