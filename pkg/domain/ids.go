package domain

import (
	"github.com/google/uuid"

	dErrors "dadcircles/pkg/domain-errors"
)

// UserID identifies a member profile.
// Invariant: a UserID is a valid, non-nil UUID.
//
// Usage: construct via NewUserID for new records and ParseUserID at trust
// boundaries; direct casting bypasses validation.
type UserID uuid.UUID

// GroupID identifies a matched group. Group IDs are uuid v4 so they are not
// guessable or enumerable from outside.
type GroupID uuid.UUID

// NewUserID returns a fresh random UserID.
func NewUserID() UserID {
	return UserID(uuid.New())
}

// NewGroupID returns a fresh random GroupID.
func NewGroupID() GroupID {
	return GroupID(uuid.New())
}

// ParseUserID constructs a UserID from external input.
//
// Errors: returns CodeInvalidInput when the value is empty, malformed, or the
// nil UUID; no other errors are expected.
func ParseUserID(s string) (UserID, error) {
	id, err := parseID(s, "user id")
	return UserID(id), err
}

// ParseGroupID constructs a GroupID from external input.
func ParseGroupID(s string) (GroupID, error) {
	id, err := parseID(s, "group id")
	return GroupID(id), err
}

func parseID(s, kind string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.Newf(dErrors.CodeInvalidInput, "%s cannot be empty", kind)
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.Newf(dErrors.CodeInvalidInput, "invalid %s", kind)
	}
	if id == uuid.Nil {
		return uuid.Nil, dErrors.Newf(dErrors.CodeInvalidInput, "%s cannot be the nil uuid", kind)
	}
	return id, nil
}

func (id UserID) String() string { return uuid.UUID(id).String() }
func (id UserID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }

func (id GroupID) String() string { return uuid.UUID(id).String() }
func (id GroupID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }

// MarshalText implements encoding.TextMarshaler so IDs serialize as their
// canonical string form in JSON bodies and map keys.
func (id UserID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler with full validation.
func (id *UserID) UnmarshalText(text []byte) error {
	parsed, err := ParseUserID(string(text))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

func (id GroupID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

func (id *GroupID) UnmarshalText(text []byte) error {
	parsed, err := ParseGroupID(string(text))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}
