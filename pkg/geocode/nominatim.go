package geocode

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"
)

const defaultNominatimBaseURL = "https://nominatim.openstreetmap.org"

// ProviderConfig holds the settings shared by HTTP geocoding providers.
type ProviderConfig struct {
	BaseURL      string
	UserAgent    string
	Timeout      time.Duration
	RateLimitRPS float64
	HTTPClient   *http.Client
}

func (c *ProviderConfig) applyDefaults(baseURL string, rps float64) {
	if c.BaseURL == "" {
		c.BaseURL = baseURL
	}
	if c.Timeout <= 0 {
		c.Timeout = 10 * time.Second
	}
	if c.RateLimitRPS <= 0 {
		c.RateLimitRPS = rps
	}
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
}

// NominatimProvider geocodes via the OpenStreetMap Nominatim search API.
// The public instance requires a descriptive User-Agent and at most one
// request per second.
type NominatimProvider struct {
	cfg     ProviderConfig
	limiter *rate.Limiter
}

// NewNominatim creates a NominatimProvider.
func NewNominatim(cfg ProviderConfig) *NominatimProvider {
	cfg.applyDefaults(defaultNominatimBaseURL, 1)
	return &NominatimProvider{
		cfg:     cfg,
		limiter: rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), 1),
	}
}

// Name implements Provider.
func (p *NominatimProvider) Name() string { return "nominatim" }

// nominatimHit is one entry of the Nominatim search response.
// Coordinates come back as strings.
type nominatimHit struct {
	Lat string `json:"lat"`
	Lon string `json:"lon"`
}

// Geocode implements Provider.
func (p *NominatimProvider) Geocode(ctx context.Context, address string) (*Result, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "geocode: nominatim rate limit")
	}

	params := url.Values{
		"q":      {address},
		"format": {"json"},
		"limit":  {"1"},
	}
	reqURL := p.cfg.BaseURL + "/search?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: nominatim build request")
	}
	if p.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", p.cfg.UserAgent)
	}

	resp, err := p.cfg.HTTPClient.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: nominatim request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return nil, statusErr("nominatim", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: nominatim read body")
	}

	var hits []nominatimHit
	if err := json.Unmarshal(body, &hits); err != nil {
		return nil, eris.Wrap(err, "geocode: nominatim parse response")
	}

	if len(hits) == 0 {
		return &Result{Matched: false, Source: "nominatim"}, nil
	}

	lat, err := strconv.ParseFloat(hits[0].Lat, 64)
	if err != nil {
		return nil, eris.Wrapf(err, "geocode: nominatim parse lat %q", hits[0].Lat)
	}
	lon, err := strconv.ParseFloat(hits[0].Lon, 64)
	if err != nil {
		return nil, eris.Wrapf(err, "geocode: nominatim parse lon %q", hits[0].Lon)
	}

	return &Result{
		Latitude:  lat,
		Longitude: lon,
		Source:    "nominatim",
		Matched:   true,
	}, nil
}
