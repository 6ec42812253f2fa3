// Package enrich fetches weather and daylight facts for diary dates
// from free public APIs (Open-Meteo geocoding + historical weather,
// sunrise-sunset.org). Clean Architecture: Adapter implementing
// ports.Enricher.
package enrich

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/mizuki-h/diaryrag/internal/domain/entities"
)

// Default public endpoints; overridable for tests.
const (
	defaultGeocodingURL = "https://geocoding-api.open-meteo.com/v1/search"
	defaultWeatherURL   = "https://api.open-meteo.com/v1/forecast"
	defaultSunURL       = "https://api.sunrise-sunset.org/json"
)

// weatherCodeMap translates WMO weather codes into diary-friendly text.
var weatherCodeMap = map[int]string{
	0: "快晴", 1: "晴れ", 2: "薄曇り", 3: "曇り",
	45: "霧", 48: "霧氷", 51: "霧雨（弱）", 53: "霧雨（中）", 55: "霧雨（強）",
	61: "雨（弱）", 63: "雨（中）", 65: "雨（強）",
	71: "雪（弱）", 73: "雪（中）", 75: "雪（強）",
	95: "雷雨（弱）", 96: "雷雨（雹あり弱）", 99: "雷雨（雹あり強）",
}

// OpenMeteoEnricher implements ports.Enricher against the free
// Open-Meteo and sunrise-sunset.org APIs. No API key is required.
type OpenMeteoEnricher struct {
	geocodingURL string
	weatherURL   string
	sunURL       string
	client       *http.Client
}

// Option tweaks the enricher, mainly for tests.
type Option func(*OpenMeteoEnricher)

// WithEndpoints overrides the public API endpoints.
func WithEndpoints(geocoding, weather, sun string) Option {
	return func(e *OpenMeteoEnricher) {
		e.geocodingURL = geocoding
		e.weatherURL = weather
		e.sunURL = sun
	}
}

// NewOpenMeteoEnricher creates the enricher.
func NewOpenMeteoEnricher(opts ...Option) *OpenMeteoEnricher {
	e := &OpenMeteoEnricher{
		geocodingURL: defaultGeocodingURL,
		weatherURL:   defaultWeatherURL,
		sunURL:       defaultSunURL,
		client:       &http.Client{Timeout: 15 * time.Second},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Enrich resolves place to coordinates, then collects daily weather and
// sunrise/sunset for the date. Sun data is best effort: its absence
// never fails the call.
func (e *OpenMeteoEnricher) Enrich(ctx context.Context, date, place string) (*entities.Enrichment, error) {
	lat, lon, err := e.geocode(ctx, place)
	if err != nil {
		return nil, fmt.Errorf("geocoding %q: %w", place, err)
	}

	enrichment := &entities.Enrichment{
		Date:   date,
		Lat:    lat,
		Lon:    lon,
		Source: "open-meteo",
	}

	if err := e.fetchWeather(ctx, date, enrichment); err != nil {
		return nil, fmt.Errorf("fetching weather: %w", err)
	}

	if err := e.fetchSun(ctx, date, enrichment); err != nil {
		// Daylight info is nice to have; weather alone is still useful.
		enrichment.SunriseUTC = ""
		enrichment.SunsetUTC = ""
	}

	return enrichment, nil
}

func (e *OpenMeteoEnricher) geocode(ctx context.Context, place string) (float64, float64, error) {
	params := url.Values{
		"name":     {place},
		"count":    {"1"},
		"language": {"ja"},
		"format":   {"json"},
	}
	var out struct {
		Results []struct {
			Latitude  float64 `json:"latitude"`
			Longitude float64 `json:"longitude"`
		} `json:"results"`
	}
	if err := e.getJSON(ctx, e.geocodingURL, params, &out); err != nil {
		return 0, 0, err
	}
	if len(out.Results) == 0 {
		return 0, 0, fmt.Errorf("no geocoding result for %q", place)
	}
	return out.Results[0].Latitude, out.Results[0].Longitude, nil
}

func (e *OpenMeteoEnricher) fetchWeather(ctx context.Context, date string, enrichment *entities.Enrichment) error {
	params := url.Values{
		"latitude":   {strconv.FormatFloat(enrichment.Lat, 'f', -1, 64)},
		"longitude":  {strconv.FormatFloat(enrichment.Lon, 'f', -1, 64)},
		"start_date": {date},
		"end_date":   {date},
		"daily":      {"temperature_2m_max,temperature_2m_min,precipitation_sum,weathercode"},
		"timezone":   {"UTC"},
	}
	var out struct {
		Daily struct {
			TemperatureMax []float64 `json:"temperature_2m_max"`
			TemperatureMin []float64 `json:"temperature_2m_min"`
			Precipitation  []float64 `json:"precipitation_sum"`
			WeatherCode    []int     `json:"weathercode"`
		} `json:"daily"`
	}
	if err := e.getJSON(ctx, e.weatherURL, params, &out); err != nil {
		return err
	}
	if len(out.Daily.WeatherCode) == 0 {
		return fmt.Errorf("no daily weather for %s", date)
	}

	code := out.Daily.WeatherCode[0]
	text, ok := weatherCodeMap[code]
	if !ok {
		text = fmt.Sprintf("天気コード%d", code)
	}
	if len(out.Daily.TemperatureMax) > 0 {
		enrichment.TmaxC = out.Daily.TemperatureMax[0]
	}
	if len(out.Daily.TemperatureMin) > 0 {
		enrichment.TminC = out.Daily.TemperatureMin[0]
	}
	if len(out.Daily.Precipitation) > 0 {
		enrichment.PrecipMM = out.Daily.Precipitation[0]
	}
	enrichment.WeatherCode = code
	enrichment.WeatherText = text
	return nil
}

func (e *OpenMeteoEnricher) fetchSun(ctx context.Context, date string, enrichment *entities.Enrichment) error {
	params := url.Values{
		"lat":       {strconv.FormatFloat(enrichment.Lat, 'f', -1, 64)},
		"lng":       {strconv.FormatFloat(enrichment.Lon, 'f', -1, 64)},
		"date":      {date},
		"formatted": {"0"},
	}
	var out struct {
		Status  string `json:"status"`
		Results struct {
			Sunrise string `json:"sunrise"`
			Sunset  string `json:"sunset"`
		} `json:"results"`
	}
	if err := e.getJSON(ctx, e.sunURL, params, &out); err != nil {
		return err
	}
	if out.Status != "OK" {
		return fmt.Errorf("sunrise-sunset status %s", out.Status)
	}
	enrichment.SunriseUTC = out.Results.Sunrise
	enrichment.SunsetUTC = out.Results.Sunset
	return nil
}

func (e *OpenMeteoEnricher) getJSON(ctx context.Context, endpoint string, params url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", "diaryrag/0.1 (+example.org)")

	resp, err := e.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s returned status %d", endpoint, resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
