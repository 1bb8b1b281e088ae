package grouper

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/linkage-cli/internal/model"
	"github.com/sells-group/linkage-cli/internal/similarity"
)

func located(name, addr string, lat, lon float64) *model.GeocodedRecord {
	return &model.GeocodedRecord{
		StandardizedRecord: model.StandardizedRecord{NameNorm: name, AddressNorm: addr},
		Latitude:           lat,
		Longitude:          lon,
		Located:            true,
	}
}

func unlocated(name, addr string) *model.GeocodedRecord {
	return &model.GeocodedRecord{
		StandardizedRecord: model.StandardizedRecord{NameNorm: name, AddressNorm: addr},
	}
}

func newGrouper() Grouper {
	return Grouper{
		DistanceThresholdMiles: 50,
		AcceptanceThreshold:    80,
		Scorer:                 similarity.NewScorer(1.4, 1.0),
	}
}

func TestHaversineMiles(t *testing.T) {
	// Austin to Dallas, roughly 183 miles.
	d := HaversineMiles(30.2672, -97.7431, 32.7767, -96.7970)
	assert.InDelta(t, 183, d, 5)

	assert.InDelta(t, 0, HaversineMiles(30.0, -97.0, 30.0, -97.0), 0.001)

	// Boston to NYC, roughly 190 miles — well over the 50 mile threshold.
	assert.Greater(t, HaversineMiles(42.3601, -71.0589, 40.7128, -74.0060), 100.0)
}

func TestGroup_SameCompanySamePlace(t *testing.T) {
	g := newGrouper()
	records := []*model.GeocodedRecord{
		located("EXAMPLE", "123 MAIN ST BOSTON MA", 42.3601, -71.0589),
		located("EXAMPLE", "123 MAIN STREET BOSTON MA", 42.3605, -71.0585),
	}

	groups := g.Group(records)
	require.Len(t, groups, 1)
	assert.Equal(t, 1, groups[0].ID)
	assert.Equal(t, []int{0, 1}, groups[0].Members)
}

func TestGroup_DistantSameNameSplits(t *testing.T) {
	g := newGrouper()
	records := []*model.GeocodedRecord{
		located("EXAMPLE", "123 MAIN ST BOSTON MA", 42.3601, -71.0589),
		located("ANOTHER", "789 BROADWAY NEW YORK NY", 40.7128, -74.0060),
		// Same name as record 0 but in NYC: similar text, too far away.
		located("EXAMPLE", "123 MAIN ST BOSTON MA", 40.7128, -74.0060),
	}

	groups := g.Group(records)
	require.Len(t, groups, 3)
	assert.Equal(t, []int{0}, groups[0].Members)
	assert.Equal(t, []int{1}, groups[1].Members)
	assert.Equal(t, []int{2}, groups[2].Members)
}

func TestGroup_TextualFallbackForUngeocoded(t *testing.T) {
	g := newGrouper()
	records := []*model.GeocodedRecord{
		located("EXAMPLE", "123 MAIN ST BOSTON MA", 42.3601, -71.0589),
		// Identical except geocoding failed: must still join via text.
		unlocated("EXAMPLE", "123 MAIN ST BOSTON MA"),
	}

	groups := g.Group(records)
	require.Len(t, groups, 1)
	assert.Equal(t, []int{0, 1}, groups[0].Members)
}

func TestGroup_LocatedRecordNeedsDistanceToLocatedGroup(t *testing.T) {
	g := newGrouper()
	records := []*model.GeocodedRecord{
		located("EXAMPLE", "123 MAIN ST BOSTON MA", 42.3601, -71.0589),
		// Same text, but geocoded to NYC: the group has coordinates, so
		// the distance check applies and the record must not join.
		located("EXAMPLE", "123 MAIN ST BOSTON MA", 40.7128, -74.0060),
	}

	groups := g.Group(records)
	require.Len(t, groups, 2)
}

func TestGroup_UnmatchableRecordsStaySingletons(t *testing.T) {
	g := newGrouper()
	records := []*model.GeocodedRecord{
		unlocated("", ""),
		unlocated("", ""),
		located("EXAMPLE", "123 MAIN ST", 42.0, -71.0),
	}

	groups := g.Group(records)
	require.Len(t, groups, 3)
}

func TestGroup_Deterministic(t *testing.T) {
	g := newGrouper()
	records := []*model.GeocodedRecord{
		located("EXAMPLE", "123 MAIN ST BOSTON MA", 42.3601, -71.0589),
		located("EXAMPLE CO", "123 MAIN STREET BOSTON MA", 42.3605, -71.0585),
		located("ANOTHER", "789 BROADWAY NEW YORK NY", 40.7128, -74.0060),
		unlocated("EXAMPLE", "123 MAIN ST BOSTON MA"),
		unlocated("", ""),
	}

	first := g.Group(records)
	second := g.Group(records)
	assert.Equal(t, first, second)
}

func TestGroup_GroupIDsSequentialFromOne(t *testing.T) {
	g := newGrouper()
	records := []*model.GeocodedRecord{
		located("A CORP", "1 FIRST ST", 10, 10),
		located("B CORP", "2 SECOND ST", 20, 20),
		located("C CORP", "3 THIRD ST", 30, 30),
	}

	groups := g.Group(records)
	require.Len(t, groups, 3)
	for i, grp := range groups {
		assert.Equal(t, i+1, grp.ID)
	}
}

func TestGroup_DistanceInvariant(t *testing.T) {
	g := newGrouper()
	records := []*model.GeocodedRecord{
		located("EXAMPLE", "123 MAIN ST BOSTON MA", 42.3601, -71.0589),
		located("EXAMPLE", "123 MAIN STREET BOSTON MA", 42.3650, -71.0600),
		located("EXAMPLE", "123 MAIN ST BOSTON MASS", 42.3700, -71.0650),
		located("ANOTHER", "789 BROADWAY NEW YORK NY", 40.7128, -74.0060),
	}

	groups := g.Group(records)
	for _, grp := range groups {
		for i, mi := range grp.Members {
			for _, mj := range grp.Members[i+1:] {
				a, b := records[mi], records[mj]
				if !a.Located || !b.Located {
					continue
				}
				d := HaversineMiles(a.Latitude, a.Longitude, b.Latitude, b.Longitude)
				pair := g.Scorer.Score(a, b)
				withinDistance := d <= g.DistanceThresholdMiles
				withinScore := pair.OverallScore >= g.AcceptanceThreshold
				assert.True(t, withinDistance || withinScore,
					"records %d and %d share group %d: distance %.1f, score %.1f", mi, mj, grp.ID, d, pair.OverallScore)
			}
		}
	}
}
