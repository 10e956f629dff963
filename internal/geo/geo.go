package geo

import (
	"context"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// ErrNoResults is returned when the upstream provider answers successfully but
// has no coordinates for the given address. Callers must not treat it as "no
// coordinates" silently: the affected entity is skipped for the current cycle
// and picked up again on the next poll.
var ErrNoResults = errors.New("geocoder returned no results")

const (
	// ProviderMapQuest is the default free-tier provider.
	ProviderMapQuest = "mapquest"
	// ProviderGoogle is used when a Google Maps API key is configured.
	ProviderGoogle = "google"

	mapquestURL = "https://www.mapquestapi.com"
	googleURL   = "https://maps.googleapis.com"
)

// Coordinates is a latitude/longitude pair.
type Coordinates struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Geocoder converts a free-text address into coordinates. One network round
// trip, no in-band retries.
type Geocoder interface {
	Geocode(address string) (*Coordinates, error)
}

// Client is a Geocoder backed by the MapQuest or Google geocoding API.
type Client struct {
	// ctx used only for http requests right now
	ctx        context.Context
	provider   string
	apiKey     string
	logger     *zap.Logger
	HTTPClient *http.Client
	APIURL     string
}

// New creates a geocoding client for the given provider. An unknown provider
// falls back to MapQuest.
func New(ctx context.Context, logger *zap.Logger, provider, apiKey string) *Client {
	url := mapquestURL
	if provider == ProviderGoogle {
		url = googleURL
	} else {
		provider = ProviderMapQuest
	}

	return &Client{
		ctx:      ctx,
		provider: provider,
		apiKey:   apiKey,
		APIURL:   url,
		HTTPClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		logger: logger,
	}
}

// Provider returns the active provider name.
func (c *Client) Provider() string {
	return c.provider
}

// Geocode resolves the address with the configured provider.
func (c *Client) Geocode(address string) (*Coordinates, error) {
	c.logger.Debug("geocoding address", zap.String("provider", c.provider))

	if c.provider == ProviderGoogle {
		return c.geocodeGoogle(address)
	}

	return c.geocodeMapQuest(address)
}
