// Package model defines the record, group, and table types that flow
// through the linkage pipeline.
package model

// Record is one input row: the two matchable fields plus any
// passthrough columns the pipeline does not interpret.
type Record struct {
	CompanyName string
	Address     string

	// Extra holds passthrough columns keyed by header name. They are
	// re-emitted verbatim on output.
	Extra map[string]string
}

// StandardizedRecord is a Record with its canonical comparable forms.
// Produced once by the standardizer, never mutated afterwards.
type StandardizedRecord struct {
	Record

	NameNorm    string
	AddressNorm string
}

// GeocodedRecord is a StandardizedRecord plus optional coordinates.
// Located is false when the address could not be resolved; such a
// record still flows through the pipeline via the textual fallback.
type GeocodedRecord struct {
	StandardizedRecord

	Latitude  float64
	Longitude float64
	Located   bool
}

// Unmatchable reports whether the record has nothing to compare on.
// Unmatchable records never merge with anything.
func (r *GeocodedRecord) Unmatchable() bool {
	return r.NameNorm == "" && r.AddressNorm == ""
}

// SimilarityPair is the comparison result between two records.
// Ephemeral: computed on demand, never cached beyond one comparison.
type SimilarityPair struct {
	NameScore    float64
	AddressScore float64
	OverallScore float64
}

// LocationGroup is a cluster of records believed to represent the same
// company at the same place. IDs are assigned in first-seen order
// starting at 1; Members holds record indices in input order.
type LocationGroup struct {
	ID      int
	Members []int
}

// LinkedRecord is a GeocodedRecord with its final group assignment and
// the best overall score against any other member of its group
// (0 for singletons).
type LinkedRecord struct {
	GeocodedRecord

	GroupID   int
	BestScore float64
}

// Table is a parsed input dataset: the original header in input order
// plus one Record per row. NameColumn and AddressColumn name the two
// interpreted columns as they appear in Header.
type Table struct {
	Header        []string
	NameColumn    string
	AddressColumn string
	Records       []Record
}
