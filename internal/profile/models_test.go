package profile

import (
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"dadcircles/pkg/domain"
	dErrors "dadcircles/pkg/domain-errors"
)

type ProfileModelSuite struct {
	suite.Suite
	now time.Time
}

func (s *ProfileModelSuite) SetupTest() {
	s.now = time.Date(2024, time.March, 15, 12, 0, 0, 0, time.UTC)
}

func TestProfileModelSuite(t *testing.T) {
	suite.Run(t, new(ProfileModelSuite))
}

func intPtr(v int) *int { return &v }

func (s *ProfileModelSuite) validProfile() *Profile {
	return &Profile{
		ID:         domain.NewUserID(),
		Email:      "tom@example.com",
		FirstName:  "Tom",
		City:       "Berlin",
		RegionCode: "BE",
		Children:   []Child{{BirthYear: 2023, BirthMonth: intPtr(4)}},
		CreatedAt:  s.now,
		UpdatedAt:  s.now,
	}
}

func (s *ProfileModelSuite) TestValidate() {
	s.Run("accepts a complete profile", func() {
		s.NoError(s.validProfile().Validate(s.now))
	})

	s.Run("accepts missing location and children", func() {
		p := s.validProfile()
		p.City = ""
		p.RegionCode = ""
		p.Children = nil
		s.NoError(p.Validate(s.now))
	})

	s.Run("rejects nil id", func() {
		p := s.validProfile()
		p.ID = domain.UserID{}
		err := p.Validate(s.now)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("rejects birth year before 1990", func() {
		p := s.validProfile()
		p.Children = []Child{{BirthYear: 1989}}
		s.Error(p.Validate(s.now))
	})

	s.Run("accepts due date two years ahead", func() {
		p := s.validProfile()
		p.Children = []Child{{BirthYear: s.now.Year() + 2, BirthMonth: intPtr(1)}}
		s.NoError(p.Validate(s.now))
	})

	s.Run("rejects birth year three years ahead", func() {
		p := s.validProfile()
		p.Children = []Child{{BirthYear: s.now.Year() + 3}}
		s.Error(p.Validate(s.now))
	})

	s.Run("rejects out-of-range month", func() {
		p := s.validProfile()
		p.Children = []Child{{BirthYear: 2023, BirthMonth: intPtr(13)}}
		s.Error(p.Validate(s.now))

		p.Children = []Child{{BirthYear: 2023, BirthMonth: intPtr(0)}}
		s.Error(p.Validate(s.now))
	})

	s.Run("accepts absent month", func() {
		p := s.validProfile()
		p.Children = []Child{{BirthYear: 2023}}
		s.NoError(p.Validate(s.now))
	})
}

func (s *ProfileModelSuite) TestNormalize() {
	p := s.validProfile()
	p.Email = "  tom@example.com "
	p.FirstName = " Tom "
	p.City = " Berlin "
	p.RegionCode = " be "

	p.Normalize()

	s.Equal("tom@example.com", p.Email)
	s.Equal("Tom", p.FirstName)
	s.Equal("Berlin", p.City)
	s.Equal("BE", p.RegionCode)
}

func (s *ProfileModelSuite) TestDisplayName() {
	s.Run("prefers first name", func() {
		p := s.validProfile()
		s.Equal("Tom", p.DisplayName())
	})

	s.Run("falls back to email local part", func() {
		p := s.validProfile()
		p.FirstName = ""
		p.Email = "mike.r@example.com"
		s.Equal("Mike", p.DisplayName())
	})

	s.Run("falls back to there", func() {
		p := s.validProfile()
		p.FirstName = ""
		p.Email = ""
		s.Equal("there", p.DisplayName())
	})
}

func (s *ProfileModelSuite) TestMatchedAndPrimaryChild() {
	p := s.validProfile()
	s.False(p.Matched())

	gid := domain.NewGroupID()
	p.GroupID = &gid
	s.True(p.Matched())

	s.Require().NotNil(p.PrimaryChild())
	s.Equal(2023, p.PrimaryChild().BirthYear)

	p.Children = nil
	s.Nil(p.PrimaryChild())
}

func (s *ProfileModelSuite) TestCloneIsDeep() {
	p := s.validProfile()
	gid := domain.NewGroupID()
	p.GroupID = &gid

	cp := p.Clone()
	*cp.GroupID = domain.NewGroupID()
	*cp.Children[0].BirthMonth = 12
	cp.Children[0].BirthYear = 1999

	s.Equal(gid, *p.GroupID)
	s.Equal(4, *p.Children[0].BirthMonth)
	s.Equal(2023, p.Children[0].BirthYear)
}
