// Package geocode resolves street addresses to coordinates via a
// cascade of public geocoding providers (Nominatim, ArcGIS), with
// rate limiting, bounded retries, and an optional local result cache.
package geocode

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/linkage-cli/internal/resilience"
)

// Result holds the outcome of a geocode lookup. An unmatched address
// is not an error.
type Result struct {
	Latitude  float64
	Longitude float64
	Source    string
	Matched   bool
}

// Client geocodes addresses.
type Client interface {
	// Geocode resolves a single address.
	Geocode(ctx context.Context, address string) (*Result, error)

	// BatchGeocode resolves multiple addresses. The result slice is
	// index-aligned with the input regardless of completion order.
	BatchGeocode(ctx context.Context, addresses []string) ([]Result, error)
}

// Provider is a single geocoding backend.
type Provider interface {
	Name() string
	Geocode(ctx context.Context, address string) (*Result, error)
}

// CascadeClient tries providers in order until one matches.
type CascadeClient struct {
	providers        []Provider
	cache            *Cache
	retry            resilience.RetryConfig
	batchConcurrency int
}

// CascadeOption configures the CascadeClient.
type CascadeOption func(*CascadeClient)

// WithCache attaches a local result cache.
func WithCache(c *Cache) CascadeOption {
	return func(cc *CascadeClient) {
		cc.cache = c
	}
}

// WithRetry sets the retry policy for transient provider failures.
func WithRetry(cfg resilience.RetryConfig) CascadeOption {
	return func(cc *CascadeClient) {
		cc.retry = cfg
	}
}

// WithBatchConcurrency sets the max parallel lookups for BatchGeocode.
func WithBatchConcurrency(n int) CascadeOption {
	return func(cc *CascadeClient) {
		if n > 0 {
			cc.batchConcurrency = n
		}
	}
}

// NewCascadeClient creates a CascadeClient that tries providers in order.
func NewCascadeClient(providers []Provider, opts ...CascadeOption) *CascadeClient {
	c := &CascadeClient{
		providers:        providers,
		retry:            resilience.DefaultRetryConfig(),
		batchConcurrency: 8,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Geocode implements Client by trying each provider in order. Provider
// errors that survive the retry budget downgrade to unmatched; the
// same address always yields the same answer modulo provider outages.
func (c *CascadeClient) Geocode(ctx context.Context, address string) (*Result, error) {
	if address == "" {
		return &Result{Matched: false}, nil
	}

	if c.cache != nil {
		if cached, ok := c.cache.Get(ctx, address); ok {
			return cached, nil
		}
	}

	var last *Result
	for _, p := range c.providers {
		var r *Result
		err := resilience.Do(ctx, c.retry, func(ctx context.Context) error {
			var provErr error
			r, provErr = p.Geocode(ctx, address)
			return provErr
		})
		if err != nil {
			zap.L().Debug("geocode: provider failed, trying next",
				zap.String("provider", p.Name()),
				zap.Error(err),
			)
			continue
		}
		if r != nil && r.Matched {
			if c.cache != nil {
				_ = c.cache.Put(ctx, address, r)
			}
			return r, nil
		}
		if r != nil {
			last = r
		}
	}

	// All providers missed. Cache the negative result too: re-asking
	// the same unresolvable address is the expensive path.
	miss := &Result{Matched: false}
	if last != nil {
		miss.Source = last.Source
	}
	if c.cache != nil {
		_ = c.cache.Put(ctx, address, miss)
	}
	return miss, nil
}

// BatchGeocode implements Client by resolving addresses in parallel.
// Individual failures produce unmatched results, never a batch error.
func (c *CascadeClient) BatchGeocode(ctx context.Context, addresses []string) ([]Result, error) {
	if len(addresses) == 0 {
		return nil, nil
	}

	results := make([]Result, len(addresses))

	eg, gCtx := errgroup.WithContext(ctx)
	eg.SetLimit(c.batchConcurrency)

	for i, addr := range addresses {
		i, addr := i, addr
		eg.Go(func() error {
			r, err := c.Geocode(gCtx, addr)
			if err != nil || r == nil {
				results[i] = Result{Matched: false}
				return nil //nolint:nilerr // individual lookups don't fail the batch
			}
			results[i] = *r
			return nil
		})
	}

	_ = eg.Wait()
	return results, nil
}

// statusErr builds the error for an unexpected provider HTTP status,
// marking retryable statuses as transient.
func statusErr(provider string, status int) error {
	err := fmt.Errorf("geocode: %s returned status %d", provider, status)
	if status == 429 || status >= 500 {
		return resilience.NewTransientError(err, status)
	}
	return err
}
