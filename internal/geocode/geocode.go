// Package geocode turns visit coordinates into a street address using a
// Nominatim-compatible reverse geocoding service.
package geocode

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

const (
	defaultBaseURL = "https://nominatim.openstreetmap.org"
	userAgent      = "vigia/1.0 (field visit recorder)"
)

// ErrNoResult is returned when the service has no address for a point.
var ErrNoResult = errors.New("no address found for location")

// Result is a reverse geocoded location.
type Result struct {
	Address      string `json:"address"`
	Neighborhood string `json:"neighborhood,omitempty"`
	City         string `json:"city,omitempty"`
}

// Client resolves coordinates to addresses.
type Client struct {
	http *resty.Client
}

// NewClient creates a geocoding client. An empty baseURL uses the public
// Nominatim instance.
func NewClient(baseURL string) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		http: resty.New().
			SetBaseURL(strings.TrimRight(baseURL, "/")).
			SetTimeout(10*time.Second).
			SetRetryCount(2).
			SetRetryWaitTime(500*time.Millisecond).
			SetRetryMaxWaitTime(2*time.Second).
			SetHeader("User-Agent", userAgent).
			SetHeader("Accept", "application/json"),
	}
}

// reverseResponse is the subset of the Nominatim reverse response we use.
type reverseResponse struct {
	Error       string `json:"error"`
	DisplayName string `json:"display_name"`
	Address     struct {
		Road          string `json:"road"`
		HouseNumber   string `json:"house_number"`
		Neighbourhood string `json:"neighbourhood"`
		Suburb        string `json:"suburb"`
		CityDistrict  string `json:"city_district"`
		City          string `json:"city"`
		Town          string `json:"town"`
		Village       string `json:"village"`
	} `json:"address"`
}

// Reverse looks up the address at lat, lon.
func (c *Client) Reverse(ctx context.Context, lat, lon float64) (*Result, error) {
	if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return nil, fmt.Errorf("coordinates out of range: %v, %v", lat, lon)
	}

	var body reverseResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"format":         "jsonv2",
			"lat":            strconv.FormatFloat(lat, 'f', 6, 64),
			"lon":            strconv.FormatFloat(lon, 'f', 6, 64),
			"addressdetails": "1",
		}).
		SetResult(&body).
		Get("/reverse")
	if err != nil {
		return nil, fmt.Errorf("sending request: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode())
	}
	if body.Error != "" || body.DisplayName == "" {
		return nil, ErrNoResult
	}

	a := body.Address
	return &Result{
		Address:      formatAddress(a.Road, a.HouseNumber, body.DisplayName),
		Neighborhood: firstNonEmpty(a.Neighbourhood, a.Suburb, a.CityDistrict),
		City:         firstNonEmpty(a.City, a.Town, a.Village),
	}, nil
}

func formatAddress(road, number, fallback string) string {
	switch {
	case road != "" && number != "":
		return road + ", " + number
	case road != "":
		return road
	default:
		return fallback
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
