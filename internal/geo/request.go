package geo

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"go.uber.org/zap"
)

type mapquestResponse struct {
	Info struct {
		StatusCode int      `json:"statuscode"`
		Messages   []string `json:"messages"`
	} `json:"info"`
	Results []struct {
		Locations []struct {
			LatLng struct {
				Lat float64 `json:"lat"`
				Lng float64 `json:"lng"`
			} `json:"latLng"`
		} `json:"locations"`
	} `json:"results"`
}

type googleResponse struct {
	Status  string `json:"status"`
	Results []struct {
		Geometry struct {
			Location struct {
				Lat float64 `json:"lat"`
				Lng float64 `json:"lng"`
			} `json:"location"`
		} `json:"geometry"`
	} `json:"results"`
}

func (c *Client) geocodeMapQuest(address string) (*Coordinates, error) {
	q := url.Values{}
	q.Set("key", c.apiKey)
	q.Set("location", address)
	q.Set("maxResults", "1")

	var resp mapquestResponse
	if err := c.getJSON(fmt.Sprintf("%s/geocoding/v1/address", c.APIURL), q, &resp); err != nil {
		return nil, err
	}

	if resp.Info.StatusCode != 0 {
		return nil, fmt.Errorf("mapquest status %d: %v", resp.Info.StatusCode, resp.Info.Messages)
	}

	if len(resp.Results) == 0 || len(resp.Results[0].Locations) == 0 {
		return nil, ErrNoResults
	}

	latLng := resp.Results[0].Locations[0].LatLng
	return &Coordinates{Latitude: latLng.Lat, Longitude: latLng.Lng}, nil
}

func (c *Client) geocodeGoogle(address string) (*Coordinates, error) {
	q := url.Values{}
	q.Set("key", c.apiKey)
	q.Set("address", address)

	var resp googleResponse
	if err := c.getJSON(fmt.Sprintf("%s/maps/api/geocode/json", c.APIURL), q, &resp); err != nil {
		return nil, err
	}

	if resp.Status == "ZERO_RESULTS" || len(resp.Results) == 0 {
		return nil, ErrNoResults
	}

	if resp.Status != "OK" {
		return nil, fmt.Errorf("google geocoder status: %s", resp.Status)
	}

	loc := resp.Results[0].Geometry.Location
	return &Coordinates{Latitude: loc.Lat, Longitude: loc.Lng}, nil
}

func (c *Client) getJSON(rawURL string, q url.Values, target any) error {
	req, err := http.NewRequestWithContext(c.ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return err
	}

	req.URL.RawQuery = q.Encode()

	c.logger.Debug("make request", zap.String("url", req.URL.Path))
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("bad status: %s", resp.Status)
	}

	if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
		return err
	}

	return nil
}
