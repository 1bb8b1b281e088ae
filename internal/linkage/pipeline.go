// Package linkage drives the record-linkage pipeline: standardize,
// geocode, group, and partition into processed and low-similarity
// output tables.
package linkage

import (
	"context"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/linkage-cli/internal/grouper"
	"github.com/sells-group/linkage-cli/internal/model"
	"github.com/sells-group/linkage-cli/internal/similarity"
	"github.com/sells-group/linkage-cli/internal/standardize"
)

// Geocoder resolves one standardized address to coordinates.
// Implementations own rate limiting and retries; an address that cannot
// be resolved within the retry budget reports ok=false, never an error
// that aborts the run.
type Geocoder interface {
	Geocode(ctx context.Context, address string) (lat, lon float64, ok bool, err error)
}

// Options configure one pipeline run. The acceptance threshold decides
// clustering; the report threshold independently decides which records
// are flagged for manual review.
type Options struct {
	DistanceThresholdMiles float64
	AcceptanceThreshold    float64
	ReportThreshold        float64
	NameWeight             float64
	AddressWeight          float64
	GeocodeConcurrency     int
}

// Pipeline links a table of company records into location groups. All
// cross-record state lives here for the duration of a single Run; the
// pipeline itself is safe to reuse across runs.
type Pipeline struct {
	opts   Options
	geo    Geocoder
	scorer similarity.Scorer
}

// New creates a Pipeline. Options are assumed validated by the caller
// (config.Validate); only the concurrency floor is enforced here.
func New(opts Options, geo Geocoder) *Pipeline {
	if opts.GeocodeConcurrency < 1 {
		opts.GeocodeConcurrency = 1
	}
	return &Pipeline{
		opts:   opts,
		geo:    geo,
		scorer: similarity.NewScorer(opts.NameWeight, opts.AddressWeight),
	}
}

// Result is the outcome of one pipeline run. Processed and
// LowSimilarity are disjoint index sets whose union covers every input
// record, both in input order.
type Result struct {
	RunID         string
	Records       []model.LinkedRecord
	Groups        []model.LocationGroup
	Processed     []int
	LowSimilarity []int
}

// Run executes the full pipeline over the table.
func (p *Pipeline) Run(ctx context.Context, table *model.Table) (*Result, error) {
	runID := uuid.NewString()
	log := zap.L().With(zap.String("run_id", runID))
	log.Info("linkage: starting run", zap.Int("records", len(table.Records)))

	recs := p.standardize(table.Records)

	if err := p.geocodeAll(ctx, recs, log); err != nil {
		return nil, err
	}

	gr := grouper.Grouper{
		DistanceThresholdMiles: p.opts.DistanceThresholdMiles,
		AcceptanceThreshold:    p.opts.AcceptanceThreshold,
		Scorer:                 p.scorer,
	}
	groups := gr.Group(recs)

	result := &Result{RunID: runID, Groups: groups}
	result.Records = p.link(recs, groups)

	for i := range result.Records {
		if result.Records[i].BestScore >= p.opts.ReportThreshold {
			result.Processed = append(result.Processed, i)
		} else {
			result.LowSimilarity = append(result.LowSimilarity, i)
		}
	}

	log.Info("linkage: run complete",
		zap.Int("groups", len(groups)),
		zap.Int("processed", len(result.Processed)),
		zap.Int("low_similarity", len(result.LowSimilarity)),
	)
	return result, nil
}

// standardize derives the canonical comparable form of every record.
func (p *Pipeline) standardize(records []model.Record) []*model.GeocodedRecord {
	recs := make([]*model.GeocodedRecord, len(records))
	for i, r := range records {
		recs[i] = &model.GeocodedRecord{
			StandardizedRecord: model.StandardizedRecord{
				Record:      r,
				NameNorm:    standardize.NameKey(r.CompanyName),
				AddressNorm: standardize.Standardize(r.Address),
			},
		}
	}
	return recs
}

// geocodeAll resolves coordinates for every record with a non-empty
// standardized address. Lookups fan out up to the configured limit, and
// each result lands at its record's index, so the outcome is identical
// whatever order lookups complete in. Individual failures downgrade to
// "unresolved" rather than aborting the run.
func (p *Pipeline) geocodeAll(ctx context.Context, recs []*model.GeocodedRecord, log *zap.Logger) error {
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(p.opts.GeocodeConcurrency)

	for i, rec := range recs {
		if rec.AddressNorm == "" {
			continue
		}
		i, rec := i, rec
		g.Go(func() error {
			lat, lon, ok, err := p.geo.Geocode(gCtx, rec.AddressNorm)
			if err != nil {
				log.Warn("linkage: geocode failed, treating as unresolved",
					zap.Int("record", i),
					zap.Error(err),
				)
				return nil
			}
			if ok {
				rec.Latitude = lat
				rec.Longitude = lon
				rec.Located = true
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return eris.Wrap(err, "linkage: geocode batch")
	}

	located := 0
	for _, rec := range recs {
		if rec.Located {
			located++
		}
	}
	log.Info("linkage: geocoding complete",
		zap.Int("located", located),
		zap.Int("unresolved", len(recs)-located),
	)
	return nil
}

// link assigns each record its final group id and its best overall
// score against any other member of the same group (0 for singletons).
func (p *Pipeline) link(recs []*model.GeocodedRecord, groups []model.LocationGroup) []model.LinkedRecord {
	linked := make([]model.LinkedRecord, len(recs))
	for _, grp := range groups {
		for _, mi := range grp.Members {
			best := 0.0
			for _, mj := range grp.Members {
				if mi == mj {
					continue
				}
				if pair := p.scorer.Score(recs[mi], recs[mj]); pair.OverallScore > best {
					best = pair.OverallScore
				}
			}
			linked[mi] = model.LinkedRecord{
				GeocodedRecord: *recs[mi],
				GroupID:        grp.ID,
				BestScore:      best,
			}
		}
	}
	return linked
}
