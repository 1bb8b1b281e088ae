package geocode

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	defaultArcGISBaseURL = "https://geocode.arcgis.com"
	arcgisFindPath       = "/arcgis/rest/services/World/GeocodeServer/findAddressCandidates"

	// arcgisMinScore rejects weak candidates; ArcGIS scores 0-100.
	arcgisMinScore = 75.0
)

// ArcGISProvider geocodes via the ArcGIS World Geocoding Service
// single-line endpoint (no token required for non-stored lookups).
type ArcGISProvider struct {
	cfg     ProviderConfig
	limiter *rate.Limiter
}

// NewArcGIS creates an ArcGISProvider.
func NewArcGIS(cfg ProviderConfig) *ArcGISProvider {
	cfg.applyDefaults(defaultArcGISBaseURL, 5)
	return &ArcGISProvider{
		cfg:     cfg,
		limiter: rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), 1),
	}
}

// Name implements Provider.
func (p *ArcGISProvider) Name() string { return "arcgis" }

type arcgisResponse struct {
	Candidates []struct {
		Address  string  `json:"address"`
		Score    float64 `json:"score"`
		Location struct {
			X float64 `json:"x"` // longitude
			Y float64 `json:"y"` // latitude
		} `json:"location"`
	} `json:"candidates"`
}

// Geocode implements Provider.
func (p *ArcGISProvider) Geocode(ctx context.Context, address string) (*Result, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "geocode: arcgis rate limit")
	}

	params := url.Values{
		"SingleLine":   {address},
		"f":            {"json"},
		"maxLocations": {"1"},
		"outFields":    {"none"},
		"forStorage":   {"false"},
	}
	reqURL := p.cfg.BaseURL + arcgisFindPath + "?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: arcgis build request")
	}
	if p.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", p.cfg.UserAgent)
	}

	resp, err := p.cfg.HTTPClient.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: arcgis request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return nil, statusErr("arcgis", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: arcgis read body")
	}

	var arcResp arcgisResponse
	if err := json.Unmarshal(body, &arcResp); err != nil {
		return nil, eris.Wrap(err, "geocode: arcgis parse response")
	}

	if len(arcResp.Candidates) == 0 {
		return &Result{Matched: false, Source: "arcgis"}, nil
	}

	best := arcResp.Candidates[0]
	if best.Score < arcgisMinScore {
		zap.L().Debug("geocode: arcgis candidate below score floor",
			zap.String("candidate", best.Address),
			zap.Float64("score", best.Score),
		)
		return &Result{Matched: false, Source: "arcgis"}, nil
	}

	return &Result{
		Latitude:  best.Location.Y,
		Longitude: best.Location.X,
		Source:    "arcgis",
		Matched:   true,
	}, nil
}
