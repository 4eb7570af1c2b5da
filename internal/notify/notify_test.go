package notify

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dadcircles/pkg/domain"
)

func testIntroduction(userID domain.UserID) Introduction {
	return Introduction{
		GroupID:     domain.NewGroupID(),
		GroupName:   "Berlin Toddler Dads – Group 1",
		City:        "Berlin",
		Stage:       domain.LifeStageToddler,
		UserID:      userID,
		Email:       "sam@example.com",
		DisplayName: "Sam",
		MemberCount: 5,
	}
}

func TestDedupeKeyCombinesGroupAndUser(t *testing.T) {
	intro := testIntroduction(domain.NewUserID())
	assert.Equal(t, intro.GroupID.String()+":"+intro.UserID.String(), intro.DedupeKey())
}

func TestRecorderRecordsDeliveries(t *testing.T) {
	rec := NewRecorder()
	first := domain.NewUserID()
	second := domain.NewUserID()

	require.NoError(t, rec.SendIntroduction(context.Background(), testIntroduction(first)))
	require.NoError(t, rec.SendIntroduction(context.Background(), testIntroduction(second)))

	assert.Len(t, rec.Sent(), 2)
	assert.True(t, rec.SentTo(first))
	assert.True(t, rec.SentTo(second))
	assert.False(t, rec.SentTo(domain.NewUserID()))
}

func TestRecorderInjectedFailure(t *testing.T) {
	rec := NewRecorder()
	flaky := domain.NewUserID()
	healthy := domain.NewUserID()
	boom := errors.New("smtp relay down")
	rec.FailFor(flaky, boom)

	err := rec.SendIntroduction(context.Background(), testIntroduction(flaky))
	require.ErrorIs(t, err, boom)
	require.NoError(t, rec.SendIntroduction(context.Background(), testIntroduction(healthy)))

	assert.False(t, rec.SentTo(flaky), "failed delivery must not be recorded as sent")
	assert.True(t, rec.SentTo(healthy))
}

func TestLogDispatcherAlwaysSucceeds(t *testing.T) {
	d := NewLogDispatcher(slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, d.SendIntroduction(context.Background(), testIntroduction(domain.NewUserID())))
}
