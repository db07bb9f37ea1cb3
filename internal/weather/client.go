// Package weather fetches current conditions from OpenWeather and renders the
// chat reply.
package weather

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// ErrMissingAPIKey is returned when no weather key has been configured yet.
var ErrMissingAPIKey = errors.New("weather api key is not configured")

// KeySource yields the current weather API key. The key may change at runtime.
type KeySource interface {
	WeatherAPIKey() string
}

// APIError is a non-2xx answer from the provider.
type APIError struct {
	StatusCode int    `json:"-"`
	Message    string `json:"message"`
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("weather api http %d", e.StatusCode)
	}
	return fmt.Sprintf("weather api http %d: %s", e.StatusCode, e.Message)
}

// Report is the subset of the provider response shown to users.
type Report struct {
	City        string
	Temperature float64
	Condition   string
	Humidity    float64
	Pressure    float64
}

// Format renders the report as the chat reply.
func (r Report) Format() string {
	return "🌦️ **Weather in " + r.City + ":**\n" +
		"🌡️ **Temperature**: " + formatNumber(r.Temperature) + "°C\n" +
		"🌬️ **Condition**: " + r.Condition + "\n" +
		"💧 **Humidity**: " + formatNumber(r.Humidity) + "%\n" +
		"💨 **Pressure**: " + formatNumber(r.Pressure) + " hPa"
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// Client calls the OpenWeather current conditions endpoint.
type Client struct {
	baseURL    string
	keys       KeySource
	httpClient *http.Client
}

// NewClient builds a Client. An empty baseURL falls back to the public API.
func NewClient(baseURL string, timeout time.Duration, keys KeySource) *Client {
	if baseURL == "" {
		baseURL = "https://api.openweathermap.org"
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		keys:       keys,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type currentResponse struct {
	Name string `json:"name"`
	Main *struct {
		Temp     float64 `json:"temp"`
		Humidity float64 `json:"humidity"`
		Pressure float64 `json:"pressure"`
	} `json:"main"`
	Weather []struct {
		Description string `json:"description"`
	} `json:"weather"`
}

// Current returns the current conditions for city, in metric units.
func (c *Client) Current(ctx context.Context, city string) (Report, error) {
	if c == nil || c.keys == nil {
		return Report{}, errors.New("weather client is not initialized")
	}

	key := c.keys.WeatherAPIKey()
	if key == "" {
		return Report{}, ErrMissingAPIKey
	}

	query := url.Values{}
	query.Set("q", city)
	query.Set("appid", key)
	query.Set("units", "metric")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/data/2.5/weather?"+query.Encode(), nil)
	if err != nil {
		return Report{}, fmt.Errorf("build weather request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Report{}, fmt.Errorf("weather request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		_ = json.NewDecoder(resp.Body).Decode(apiErr)
		return Report{}, apiErr
	}

	var out currentResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return Report{}, fmt.Errorf("decode weather response: %w", err)
	}
	if out.Main == nil || len(out.Weather) == 0 {
		return Report{}, errors.New("weather response is missing main or weather data")
	}

	return Report{
		City:        out.Name,
		Temperature: out.Main.Temp,
		Condition:   out.Weather[0].Description,
		Humidity:    out.Main.Humidity,
		Pressure:    out.Main.Pressure,
	}, nil
}
