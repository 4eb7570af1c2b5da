package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"dadcircles/pkg/domain"
	dErrors "dadcircles/pkg/domain-errors"
)

type GroupModelSuite struct {
	suite.Suite
	now     time.Time
	members []domain.UserID
}

func (s *GroupModelSuite) SetupTest() {
	s.now = time.Date(2024, time.March, 15, 12, 0, 0, 0, time.UTC)
	s.members = []domain.UserID{
		domain.NewUserID(), domain.NewUserID(), domain.NewUserID(), domain.NewUserID(),
	}
}

func TestGroupModelSuite(t *testing.T) {
	suite.Run(t, new(GroupModelSuite))
}

func (s *GroupModelSuite) params() NewGroupParams {
	return NewGroupParams{
		Name:       GroupName("Berlin", domain.LifeStageToddler, 1),
		City:       "Berlin",
		RegionCode: "BE",
		Stage:      domain.LifeStageToddler,
		MemberIDs:  s.members,
		MinSize:    4,
		MaxSize:    6,
		Now:        s.now,
	}
}

func (s *GroupModelSuite) newGroup() *Group {
	g, err := NewGroup(s.params())
	s.Require().NoError(err)
	return g
}

func (s *GroupModelSuite) TestStatusTransitions() {
	cases := []struct {
		from    Status
		to      Status
		allowed bool
	}{
		{StatusPending, StatusActive, true},
		{StatusPending, StatusDeleted, true},
		{StatusActive, StatusDeleted, true},
		{StatusActive, StatusPending, false},
		{StatusActive, StatusActive, false},
		{StatusDeleted, StatusPending, false},
		{StatusDeleted, StatusActive, false},
		{StatusDeleted, StatusDeleted, false},
		{StatusPending, StatusPending, false},
	}
	for _, tc := range cases {
		s.Equal(tc.allowed, tc.from.CanTransitionTo(tc.to), "%s -> %s", tc.from, tc.to)
	}
}

func (s *GroupModelSuite) TestParseStatus() {
	for _, valid := range []string{"pending", "active", "deleted"} {
		st, err := ParseStatus(valid)
		s.Require().NoError(err)
		s.True(st.IsValid())
	}

	_, err := ParseStatus("archived")
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
}

func (s *GroupModelSuite) TestGroupName() {
	s.Equal("Berlin Toddler Dads – Group 2", GroupName("Berlin", domain.LifeStageToddler, 2))
	s.Equal("Austin Expecting Dads – Group 1", GroupName("Austin", domain.LifeStageExpecting, 1))
}

func (s *GroupModelSuite) TestNewGroup() {
	s.Run("constructs a pending group", func() {
		g := s.newGroup()
		s.False(g.ID.IsNil())
		s.Equal(StatusPending, g.Status)
		s.Equal(int64(1), g.Version)
		s.Equal(s.members, g.MemberIDs)
		s.Empty(g.NotifiedMemberIDs)
		s.Nil(g.NotifiedAt)
		s.Equal(s.now, g.CreatedAt)
	})

	s.Run("generates distinct ids", func() {
		a := s.newGroup()
		b := s.newGroup()
		s.NotEqual(a.ID, b.ID)
	})

	s.Run("rejects empty name", func() {
		p := s.params()
		p.Name = ""
		_, err := NewGroup(p)
		s.True(dErrors.HasCode(err, dErrors.CodeInvariantViolation))
	})

	s.Run("rejects invalid stage", func() {
		p := s.params()
		p.Stage = domain.LifeStage("teenager")
		_, err := NewGroup(p)
		s.Error(err)
	})

	s.Run("rejects missing location", func() {
		p := s.params()
		p.City = ""
		_, err := NewGroup(p)
		s.Error(err)

		p = s.params()
		p.RegionCode = ""
		_, err = NewGroup(p)
		s.Error(err)
	})

	s.Run("rejects size outside bounds", func() {
		p := s.params()
		p.MemberIDs = s.members[:3]
		_, err := NewGroup(p)
		s.True(dErrors.HasCode(err, dErrors.CodeInvariantViolation))

		p = s.params()
		p.MemberIDs = []domain.UserID{
			domain.NewUserID(), domain.NewUserID(), domain.NewUserID(), domain.NewUserID(),
			domain.NewUserID(), domain.NewUserID(), domain.NewUserID(),
		}
		_, err = NewGroup(p)
		s.Error(err)
	})

	s.Run("rejects duplicate members", func() {
		p := s.params()
		p.MemberIDs = []domain.UserID{s.members[0], s.members[1], s.members[2], s.members[0]}
		_, err := NewGroup(p)
		s.Error(err)
	})

	s.Run("rejects nil member id", func() {
		p := s.params()
		p.MemberIDs = []domain.UserID{s.members[0], s.members[1], s.members[2], {}}
		_, err := NewGroup(p)
		s.Error(err)
	})
}

func (s *GroupModelSuite) TestApprovalLifecycle() {
	g := s.newGroup()
	s.Require().NoError(g.CanApprove())

	later := s.now.Add(time.Hour)
	g.ApplyApproval(later)
	s.Equal(StatusActive, g.Status)
	s.Equal(int64(2), g.Version)
	s.Equal(later, g.UpdatedAt)

	err := g.CanApprove()
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidTransition))
}

func (s *GroupModelSuite) TestDeletionLifecycle() {
	s.Run("pending group can be deleted", func() {
		g := s.newGroup()
		s.Require().NoError(g.CanDelete())
		g.ApplyDeletion(s.now)
		s.Equal(StatusDeleted, g.Status)
		s.Equal(s.members, g.MemberIDs)
	})

	s.Run("active group can be deleted", func() {
		g := s.newGroup()
		g.ApplyApproval(s.now)
		s.NoError(g.CanDelete())
	})

	s.Run("deleted is terminal", func() {
		g := s.newGroup()
		g.ApplyDeletion(s.now)
		err := g.CanDelete()
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidTransition))
	})
}

func (s *GroupModelSuite) TestNotificationTracking() {
	s.Run("marks members and stays idempotent", func() {
		g := s.newGroup()
		s.Require().NoError(g.MarkNotified(s.members[1], s.now))
		s.Require().NoError(g.MarkNotified(s.members[1], s.now))
		s.Equal([]domain.UserID{s.members[1]}, g.NotifiedMemberIDs)
	})

	s.Run("rejects non-members", func() {
		g := s.newGroup()
		err := g.MarkNotified(domain.NewUserID(), s.now)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeInvariantViolation))
	})

	s.Run("pending notifications keep member order", func() {
		g := s.newGroup()
		s.Equal(s.members, g.PendingNotifications())

		s.Require().NoError(g.MarkNotified(s.members[2], s.now))
		s.Equal([]domain.UserID{s.members[0], s.members[1], s.members[3]}, g.PendingNotifications())

		for _, id := range g.MemberIDs {
			s.Require().NoError(g.MarkNotified(id, s.now))
		}
		s.Empty(g.PendingNotifications())
	})
}

func (s *GroupModelSuite) TestCloneIsDeep() {
	g := s.newGroup()
	s.Require().NoError(g.MarkNotified(s.members[0], s.now))
	notifiedAt := s.now.Add(time.Minute)
	g.NotifiedAt = &notifiedAt

	cp := g.Clone()
	cp.MemberIDs[0] = domain.NewUserID()
	cp.NotifiedMemberIDs[0] = domain.NewUserID()
	*cp.NotifiedAt = s.now.Add(2 * time.Hour)

	s.Equal(s.members[0], g.MemberIDs[0])
	s.Equal(s.members[0], g.NotifiedMemberIDs[0])
	s.Equal(notifiedAt, *g.NotifiedAt)
}
