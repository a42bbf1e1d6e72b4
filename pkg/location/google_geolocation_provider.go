package location

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"googlemaps.github.io/maps"
)

// geolocator is the part of the Maps client used by GoogleGeolocationProvider.
type geolocator interface {
	Geolocate(ctx context.Context, r *maps.GeolocationRequest) (*maps.GeolocationResult, error)
}

// GoogleGeolocationProvider resolves the device position from nearby Wi-Fi access
// points and the serving cell using the Google Maps Geolocation API.
type GoogleGeolocationProvider struct {
	client     geolocator
	modemIndex int
	timeout    time.Duration
	logger     zerolog.Logger

	scanWiFi  func(ctx context.Context) ([]maps.WiFiAccessPoint, error)
	scanCells func(ctx context.Context, modemIndex int) ([]maps.CellTower, error)
	now       func() time.Time
}

// NewGoogleGeolocationProvider creates a network source backed by the Maps API.
func NewGoogleGeolocationProvider(apiKey string, modemIndex int, timeout time.Duration, logger zerolog.Logger) (*GoogleGeolocationProvider, error) {
	c, err := maps.NewClient(maps.WithAPIKey(apiKey))
	if err != nil {
		return nil, err
	}

	return &GoogleGeolocationProvider{
		client:     c,
		modemIndex: modemIndex,
		timeout:    timeout,
		logger:     logger,
		scanWiFi:   getWiFiAccessPoints,
		scanCells:  getCellTowers,
		now:        time.Now,
	}, nil
}

func (g *GoogleGeolocationProvider) Name() string { return SourceNetwork }

func (g *GoogleGeolocationProvider) Permission() Permission { return PermissionCoarse }

// GetLocation queries the Geolocation API. When the radio scans fail the request
// still goes out and the API falls back to the public IP address.
func (g *GoogleGeolocationProvider) GetLocation(ctx context.Context) (Position, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	req := &maps.GeolocationRequest{ConsiderIP: true}

	wifiAPs, err := g.scanWiFi(ctx)
	if err != nil {
		g.logger.Warn().Err(err).Msg("Wi-Fi scan failed")
	} else {
		req.WiFiAccessPoints = wifiAPs
	}

	cellTowers, err := g.scanCells(ctx, g.modemIndex)
	if err != nil {
		g.logger.Warn().Err(err).Int("modem", g.modemIndex).Msg("Cell scan failed")
	} else {
		req.CellTowers = cellTowers
	}

	resp, err := g.client.Geolocate(ctx, req)
	if err != nil {
		return Position{}, err
	}

	return Position{
		Latitude:  resp.Location.Lat,
		Longitude: resp.Location.Lng,
		Accuracy:  resp.Accuracy,
		Time:      g.now().UTC(),
		Source:    SourceNetwork,
	}, nil
}

// Close is a no-op, the Maps client holds no resources of its own.
func (g *GoogleGeolocationProvider) Close() error { return nil }
