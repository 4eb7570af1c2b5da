// Package matching turns the pool of unmatched dads into pending groups. The
// pipeline is pure until persistence: classify every profile's primary child
// into a life stage, bucket by (city, region, stage), sort each bucket by
// priority, and cut consecutive windows that become groups when they satisfy
// the size and age-gap bounds.
package matching

import (
	"time"

	"dadcircles/internal/profile"
	"dadcircles/pkg/domain"
)

// BucketKey identifies one matching pool: same city, region, and life stage.
// Keys compare exactly as stored; profile normalization is what keeps
// "berlin " and "Berlin" from splitting a pool.
type BucketKey struct {
	City       string
	RegionCode string
	Stage      domain.LifeStage
}

// String renders the key for logs, metrics labels, and summary errors.
func (k BucketKey) String() string {
	return k.City + "/" + k.RegionCode + "/" + k.Stage.String()
}

// less orders keys by city, region, then pipeline stage, so every run
// iterates buckets in the same order.
func (k BucketKey) less(o BucketKey) bool {
	if k.City != o.City {
		return k.City < o.City
	}
	if k.RegionCode != o.RegionCode {
		return k.RegionCode < o.RegionCode
	}
	return k.Stage.Order() < o.Stage.Order()
}

// Member pairs a pool profile with its resolved stage and priority so the
// partitioner never re-derives them.
type Member struct {
	Profile  profile.Profile
	Stage    domain.LifeStage
	Priority float64
}

// Skips lists the pool members excluded from a run, by reason. Skipping is
// not an error; the ids feed debug logs and the total lands in the summary.
type Skips struct {
	MissingLocation []domain.UserID
	NoChildren      []domain.UserID
	AgedOut         []domain.UserID
}

// Total counts all skipped members.
func (s Skips) Total() int {
	return len(s.MissingLocation) + len(s.NoChildren) + len(s.AgedOut)
}

// Bucketize splits the pool into (city, region, stage) buckets, classifying
// every member on the way in.
func Bucketize(pool []profile.Profile, now time.Time) (map[BucketKey][]Member, Skips) {
	buckets := make(map[BucketKey][]Member)
	var skips Skips
	for _, p := range pool {
		if p.City == "" || p.RegionCode == "" {
			skips.MissingLocation = append(skips.MissingLocation, p.ID)
			continue
		}
		if len(p.Children) == 0 {
			skips.NoChildren = append(skips.NoChildren, p.ID)
			continue
		}
		stage, priority := Classify(p, now)
		if !stage.IsValid() {
			skips.AgedOut = append(skips.AgedOut, p.ID)
			continue
		}
		key := BucketKey{City: p.City, RegionCode: p.RegionCode, Stage: stage}
		buckets[key] = append(buckets[key], Member{Profile: p, Stage: stage, Priority: priority})
	}
	return buckets, skips
}
