package weather

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"remarknews/common"
	"remarknews/config"
	"remarknews/types"
)

const defaultBaseURL = "https://api.openweathermap.org/data/2.5"

// ErrNoForecast is returned when the forecast has no entries for today.
var ErrNoForecast = errors.New("no forecast data for today")

// Client fetches the day's forecast from OpenWeather.
type Client struct {
	http    *common.HTTPClient
	cfg     config.WeatherConfig
	baseURL string
	timeout time.Duration
	now     func() time.Time
}

type Option func(*Client)

// WithBaseURL points the client at another OpenWeather-compatible host.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(u, "/") }
}

// WithClock sets the clock that decides which entries are "today".
func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

func NewClient(httpClient *common.HTTPClient, cfg config.WeatherConfig, opts ...Option) *Client {
	c := &Client{
		http:    httpClient,
		cfg:     cfg,
		baseURL: defaultBaseURL,
		timeout: 10 * time.Second,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type forecastResponse struct {
	List []struct {
		Dt   int64 `json:"dt"`
		Main struct {
			TempMin float64 `json:"temp_min"`
			TempMax float64 `json:"temp_max"`
		} `json:"main"`
		Pop     float64 `json:"pop"`
		Weather []struct {
			Description string `json:"description"`
		} `json:"weather"`
	} `json:"list"`
}

// Today returns the aggregated forecast for the current local day.
func (c *Client) Today(ctx context.Context) (*types.WeatherSnapshot, error) {
	if !c.cfg.Enabled() {
		return nil, fmt.Errorf("weather api key or coordinates not set")
	}

	q := url.Values{}
	q.Set("lat", c.cfg.Lat)
	q.Set("lon", c.cfg.Lon)
	q.Set("appid", c.cfg.APIKey)
	q.Set("units", "metric")

	var resp forecastResponse
	if err := c.http.DoJSON(ctx, http.MethodGet, c.baseURL+"/forecast?"+q.Encode(), c.timeout, nil, &resp); err != nil {
		return nil, fmt.Errorf("fetching forecast: %w", err)
	}

	now := c.now()
	y, m, d := now.Date()

	var (
		snap  *types.WeatherSnapshot
		lo    = math.Inf(1)
		hi    = math.Inf(-1)
		rain  float64
		descr string
	)
	for _, item := range resp.List {
		iy, im, id := time.Unix(item.Dt, 0).In(now.Location()).Date()
		if iy != y || im != m || id != d {
			continue
		}
		if snap == nil {
			snap = &types.WeatherSnapshot{Location: c.cfg.Location}
			if len(item.Weather) > 0 {
				descr = item.Weather[0].Description
			}
		}
		lo = math.Min(lo, item.Main.TempMin)
		hi = math.Max(hi, item.Main.TempMax)
		rain = math.Max(rain, item.Pop)
	}
	if snap == nil {
		return nil, ErrNoForecast
	}

	snap.TempMin = int(math.Round(lo))
	snap.TempMax = int(math.Round(hi))
	snap.RainProb = int(math.Round(rain * 100))
	snap.Description = capitalize(descr)
	return snap, nil
}

// capitalize upper-cases the first letter and lower-cases the rest.
func capitalize(s string) string {
	if s == "" {
		return s
	}
	r, size := utf8.DecodeRuneInString(s)
	return string(unicode.ToUpper(r)) + strings.ToLower(s[size:])
}
