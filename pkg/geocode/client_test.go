package geocode

import (
	"context"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/linkage-cli/internal/resilience"
)

// stubProvider returns a fixed result (or error) and counts calls.
type stubProvider struct {
	name   string
	result *Result
	err    error
	calls  atomic.Int64
}

func (s *stubProvider) Name() string { return s.name }

func (s *stubProvider) Geocode(context.Context, string) (*Result, error) {
	s.calls.Add(1)
	if s.err != nil {
		return nil, s.err
	}
	r := *s.result
	return &r, nil
}

func matchAt(lat, lon float64, source string) *Result {
	return &Result{Latitude: lat, Longitude: lon, Source: source, Matched: true}
}

func noRetry() resilience.RetryConfig {
	return resilience.RetryConfig{MaxAttempts: 1}
}

func TestCascade_FirstProviderWins(t *testing.T) {
	first := &stubProvider{name: "first", result: matchAt(42, -71, "first")}
	second := &stubProvider{name: "second", result: matchAt(1, 1, "second")}

	c := NewCascadeClient([]Provider{first, second}, WithRetry(noRetry()))
	r, err := c.Geocode(context.Background(), "123 MAIN ST")
	require.NoError(t, err)

	assert.Equal(t, "first", r.Source)
	assert.Equal(t, int64(1), first.calls.Load())
	assert.Equal(t, int64(0), second.calls.Load())
}

func TestCascade_FallsThroughOnMissAndError(t *testing.T) {
	failing := &stubProvider{name: "failing", err: eris.New("down")}
	missing := &stubProvider{name: "missing", result: &Result{Matched: false, Source: "missing"}}
	hitting := &stubProvider{name: "hitting", result: matchAt(42, -71, "hitting")}

	c := NewCascadeClient([]Provider{failing, missing, hitting}, WithRetry(noRetry()))
	r, err := c.Geocode(context.Background(), "123 MAIN ST")
	require.NoError(t, err)

	assert.True(t, r.Matched)
	assert.Equal(t, "hitting", r.Source)
}

func TestCascade_AllMissIsNotAnError(t *testing.T) {
	missing := &stubProvider{name: "missing", result: &Result{Matched: false, Source: "missing"}}

	c := NewCascadeClient([]Provider{missing}, WithRetry(noRetry()))
	r, err := c.Geocode(context.Background(), "NOWHERE")
	require.NoError(t, err)
	assert.False(t, r.Matched)
}

func TestCascade_EmptyAddressShortCircuits(t *testing.T) {
	p := &stubProvider{name: "p", result: matchAt(1, 1, "p")}

	c := NewCascadeClient([]Provider{p}, WithRetry(noRetry()))
	r, err := c.Geocode(context.Background(), "")
	require.NoError(t, err)

	assert.False(t, r.Matched)
	assert.Equal(t, int64(0), p.calls.Load())
}

func TestCascade_CachesPositiveResults(t *testing.T) {
	cache, err := OpenCache(filepath.Join(t.TempDir(), "cache.db"))
	require.NoError(t, err)
	defer cache.Close() //nolint:errcheck

	p := &stubProvider{name: "p", result: matchAt(42, -71, "p")}
	c := NewCascadeClient([]Provider{p}, WithCache(cache), WithRetry(noRetry()))

	for i := 0; i < 3; i++ {
		r, err := c.Geocode(context.Background(), "123 MAIN ST")
		require.NoError(t, err)
		assert.True(t, r.Matched)
	}
	assert.Equal(t, int64(1), p.calls.Load())
}

func TestCascade_CachesNegativeResults(t *testing.T) {
	cache, err := OpenCache(filepath.Join(t.TempDir(), "cache.db"))
	require.NoError(t, err)
	defer cache.Close() //nolint:errcheck

	p := &stubProvider{name: "p", result: &Result{Matched: false, Source: "p"}}
	c := NewCascadeClient([]Provider{p}, WithCache(cache), WithRetry(noRetry()))

	for i := 0; i < 3; i++ {
		r, err := c.Geocode(context.Background(), "NOWHERE")
		require.NoError(t, err)
		assert.False(t, r.Matched)
	}
	assert.Equal(t, int64(1), p.calls.Load())
}

func TestBatchGeocode_IndexAligned(t *testing.T) {
	p := &stubProvider{name: "p", result: matchAt(42, -71, "p")}
	c := NewCascadeClient([]Provider{p}, WithRetry(noRetry()), WithBatchConcurrency(4))

	addresses := []string{"A ST", "", "B AVE", "C BLVD"}
	results, err := c.BatchGeocode(context.Background(), addresses)
	require.NoError(t, err)
	require.Len(t, results, len(addresses))

	assert.True(t, results[0].Matched)
	assert.False(t, results[1].Matched) // empty address never hits a provider
	assert.True(t, results[2].Matched)
	assert.True(t, results[3].Matched)
	assert.Equal(t, int64(3), p.calls.Load())
}

func TestBatchGeocode_Empty(t *testing.T) {
	c := NewCascadeClient(nil)
	results, err := c.BatchGeocode(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, results)
}
