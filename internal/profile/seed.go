package profile

import (
	"context"
	"time"

	"dadcircles/pkg/domain"
)

// SeedDemoPool loads a small demo pool into the store so a dev instance can
// exercise a full matching run without a database: six Berlin toddler dads
// that form one group, plus two expecting dads who stay unmatched until the
// pool grows. Returns the number of profiles created.
func SeedDemoPool(ctx context.Context, store *InMemoryStore, now time.Time) int {
	demo := []struct {
		firstName string
		email     string
		ageMonths int
	}{
		{"Tom", "tom@example.dev", 20},
		{"Ben", "ben@example.dev", 22},
		{"", "mike.r@example.dev", 24},
		{"Jonas", "jonas@example.dev", 25},
		{"Paul", "paul@example.dev", 27},
		{"Chris", "chris@example.dev", 28},
		{"Erik", "erik@example.dev", -2},
		{"Sam", "sam@example.dev", -1},
	}

	created := 0
	for i, d := range demo {
		birth := now.AddDate(0, -d.ageMonths, 0)
		month := int(birth.Month())
		p := &Profile{
			ID:                  domain.NewUserID(),
			Email:               d.email,
			FirstName:           d.firstName,
			City:                "Berlin",
			RegionCode:          "BE",
			Children:            []Child{{BirthYear: birth.Year(), BirthMonth: &month}},
			EligibleForMatching: true,
			CreatedAt:           now.Add(time.Duration(i-len(demo)) * time.Hour),
			UpdatedAt:           now,
		}
		p.Normalize()
		if err := store.Create(ctx, p); err == nil {
			created++
		}
	}
	return created
}
