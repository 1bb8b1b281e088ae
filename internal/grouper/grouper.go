// Package grouper clusters geocoded records into location groups using
// geodesic distance and fuzzy similarity thresholds.
package grouper

import (
	"math"

	"go.uber.org/zap"

	"github.com/sells-group/linkage-cli/internal/model"
	"github.com/sells-group/linkage-cli/internal/similarity"
)

const earthRadiusMiles = 3958.8

// HaversineMiles returns the great-circle distance between two
// latitude/longitude points in miles.
func HaversineMiles(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := (lat2 - lat1) * math.Pi / 180
	dLon := (lon2 - lon1) * math.Pi / 180
	rLat1 := lat1 * math.Pi / 180
	rLat2 := lat2 * math.Pi / 180

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(rLat1)*math.Cos(rLat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return earthRadiusMiles * 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}

// Grouper assigns records to location groups with a greedy single-pass
// scan: deterministic on input order, first accepting group wins.
type Grouper struct {
	DistanceThresholdMiles float64
	AcceptanceThreshold    float64
	Scorer                 similarity.Scorer
}

// Group partitions records into location groups. Records are visited
// in input order; each joins the lowest-numbered group that accepts it,
// or starts a new group with the next sequential id (starting at 1).
func (g Grouper) Group(records []*model.GeocodedRecord) []model.LocationGroup {
	groups := make([]model.LocationGroup, 0, len(records))

	for i, rec := range records {
		placed := false
		for gi := range groups {
			member, pair, ok := g.accepts(&groups[gi], records, rec)
			if !ok {
				continue
			}
			groups[gi].Members = append(groups[gi].Members, i)
			zap.L().Debug("grouper: record joined group",
				zap.Int("record", i),
				zap.Int("group_id", groups[gi].ID),
				zap.Int("matched_member", member),
				zap.Float64("name_score", pair.NameScore),
				zap.Float64("address_score", pair.AddressScore),
				zap.Float64("overall_score", pair.OverallScore),
			)
			placed = true
			break
		}
		if !placed {
			groups = append(groups, model.LocationGroup{ID: len(groups) + 1, Members: []int{i}})
			zap.L().Debug("grouper: record started group",
				zap.Int("record", i),
				zap.Int("group_id", len(groups)),
			)
		}
	}

	return groups
}

// accepts reports whether rec may join group, returning the index of
// the member it matched and the scores of that comparison.
//
// When rec and at least one member are geocoded, rec must be within the
// distance threshold of a geocoded member AND score at or above the
// acceptance threshold against it. When rec or every member lacks
// coordinates, the similarity threshold alone decides (textual
// fallback), so geocoding outages degrade instead of fragmenting
// everything into singletons.
func (g Grouper) accepts(group *model.LocationGroup, records []*model.GeocodedRecord, rec *model.GeocodedRecord) (int, model.SimilarityPair, bool) {
	if rec.Unmatchable() {
		return 0, model.SimilarityPair{}, false
	}

	groupLocated := false
	for _, mi := range group.Members {
		if records[mi].Located {
			groupLocated = true
			break
		}
	}
	spatial := rec.Located && groupLocated

	for _, mi := range group.Members {
		member := records[mi]
		if member.Unmatchable() {
			continue
		}

		pair := g.Scorer.Score(rec, member)
		if pair.OverallScore < g.AcceptanceThreshold {
			continue
		}

		if spatial {
			if !member.Located {
				continue
			}
			d := HaversineMiles(rec.Latitude, rec.Longitude, member.Latitude, member.Longitude)
			if d <= g.DistanceThresholdMiles {
				return mi, pair, true
			}
			continue
		}

		return mi, pair, true
	}

	return 0, model.SimilarityPair{}, false
}
