// Package weather fetches current conditions for the planner's outdoor gate.
package weather

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/blackwell-systems/homepilot/internal/model"
)

// Provider returns the current weather.
type Provider interface {
	Current(ctx context.Context) (model.Weather, error)
}

// ProviderFunc adapts a function to Provider.
type ProviderFunc func(ctx context.Context) (model.Weather, error)

// Current implements Provider.
func (f ProviderFunc) Current(ctx context.Context) (model.Weather, error) { return f(ctx) }

const openWeatherURL = "https://api.openweathermap.org/data/2.5/weather"

// Outdoor comfort band, in degrees of the configured unit system.
var outdoorBands = map[string][2]float64{
	"imperial": {50, 85},
	"metric":   {10, 29},
	"standard": {283, 302},
}

// outdoorConditions lists the OpenWeatherMap condition groups that allow
// outdoor tasks.
var outdoorConditions = map[string]bool{
	"Clear":  true,
	"Clouds": true,
}

// OpenWeather queries the OpenWeatherMap current-weather endpoint.
type OpenWeather struct {
	apiKey  string
	city    string
	units   string
	baseURL string
	client  *http.Client
}

// NewOpenWeather creates an OpenWeatherMap client for a city.
func NewOpenWeather(apiKey, city, units string) (*OpenWeather, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("API key is required for OpenWeatherMap")
	}
	if city == "" {
		return nil, fmt.Errorf("city is required for OpenWeatherMap")
	}
	if units == "" {
		units = "imperial"
	}
	if _, ok := outdoorBands[units]; !ok {
		return nil, fmt.Errorf("unsupported units %q", units)
	}
	return &OpenWeather{
		apiKey:  apiKey,
		city:    city,
		units:   units,
		baseURL: openWeatherURL,
		client:  &http.Client{Timeout: 10 * time.Second},
	}, nil
}

// SetBaseURL overrides the endpoint.
func (o *OpenWeather) SetBaseURL(u string) { o.baseURL = strings.TrimRight(u, "/") }

type openWeatherResponse struct {
	Main struct {
		Temp float64 `json:"temp"`
	} `json:"main"`
	Weather []struct {
		Main        string `json:"main"`
		Description string `json:"description"`
	} `json:"weather"`
	Message string `json:"message"`
}

// Current implements Provider.
func (o *OpenWeather) Current(ctx context.Context) (model.Weather, error) {
	q := url.Values{}
	q.Set("q", o.city)
	q.Set("appid", o.apiKey)
	q.Set("units", o.units)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, o.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return model.Weather{}, fmt.Errorf("creating request: %w", err)
	}
	resp, err := o.client.Do(req)
	if err != nil {
		return model.Weather{}, fmt.Errorf("fetching weather: %w", err)
	}
	defer resp.Body.Close()

	var body openWeatherResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return model.Weather{}, fmt.Errorf("decoding weather (status %d): %w", resp.StatusCode, err)
	}
	if resp.StatusCode != http.StatusOK {
		return model.Weather{}, fmt.Errorf("weather API returned status %d: %s", resp.StatusCode, body.Message)
	}
	if len(body.Weather) == 0 {
		return model.Weather{}, fmt.Errorf("weather response has no conditions")
	}

	w := model.Weather{
		Temperature: body.Main.Temp,
		Condition:   body.Weather[0].Main,
	}
	w.SuitableForOutdoor = SuitableForOutdoor(w.Condition, w.Temperature, o.units)
	return w, nil
}

// SuitableForOutdoor reports whether a condition group and temperature fall
// inside the outdoor comfort band for the unit system.
func SuitableForOutdoor(condition string, temp float64, units string) bool {
	band, ok := outdoorBands[units]
	if !ok {
		band = outdoorBands["imperial"]
	}
	return outdoorConditions[condition] && temp >= band[0] && temp <= band[1]
}
