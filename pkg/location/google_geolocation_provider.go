package location

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"googlemaps.github.io/maps"
)

// GoogleGeolocationProvider uses the Google Maps API to get location data.
type GoogleGeolocationProvider struct {
	client     *maps.Client // Maps API client for making geolocation requests
	modemIndex int
	logger     zerolog.Logger
}

// NewGoogleGeolocationProvider creates a new GoogleGeolocationProvider instance.
func NewGoogleGeolocationProvider(apiKey string, modemIndex int, logger zerolog.Logger) (*GoogleGeolocationProvider, error) {
	c, err := maps.NewClient(maps.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create maps client: %w", err)
	}

	return &GoogleGeolocationProvider{
		client:     c,
		modemIndex: modemIndex,
		logger:     logger,
	}, nil
}

// GetLocation retrieves the device's location using Google Maps Geolocation API.
// Missing WiFi or cell data is tolerated; the request then falls back on the IP address.
func (g *GoogleGeolocationProvider) GetLocation(ctx context.Context) (Coordinate, error) {
	wifiAPs, err := getWiFiAccessPoints(ctx)
	if err != nil {
		g.logger.Debug().Err(err).Msg("WiFi scan unavailable")
	}

	cellTowers, err := getCellTowers(ctx, g.modemIndex)
	if err != nil {
		g.logger.Debug().Err(err).Int("modem", g.modemIndex).Msg("Cell tower data unavailable")
	}

	req := &maps.GeolocationRequest{
		ConsiderIP:       true,
		WiFiAccessPoints: wifiAPs,
		CellTowers:       cellTowers,
	}

	resp, err := g.client.Geolocate(ctx, req)
	if err != nil {
		return Coordinate{}, fmt.Errorf("geolocate request failed: %w", err)
	}

	return Coordinate{
		Latitude:  resp.Location.Lat,
		Longitude: resp.Location.Lng,
		Accuracy:  resp.Accuracy,
	}, nil
}

// Close is a no-op; the maps client holds no resources.
func (g *GoogleGeolocationProvider) Close() error {
	return nil
}
