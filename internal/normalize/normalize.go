// Package normalize maps raw WeatherAPI payloads into the gateway's stable
// output shapes. Each function is pure: provider bytes in, response bytes out.
// A structurally required field missing from the payload yields ErrMalformed
// so the pipeline surfaces a server error instead of caching a corrupt shape.
package normalize

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/noelpaton-og/globe-weather-api/internal/client"
	"github.com/noelpaton-og/globe-weather-api/internal/models"
)

// ErrMalformed indicates the provider payload is missing a structurally
// required field or is not valid JSON.
var ErrMalformed = errors.New("malformed upstream response")

// Normalize dispatches to the per-kind normalizer.
func Normalize(kind client.Kind, raw []byte) ([]byte, error) {
	switch kind {
	case client.KindCurrent:
		return Current(raw)
	case client.KindForecast:
		return Forecast(raw)
	case client.KindAirQuality:
		return AirQuality(raw)
	case client.KindAstronomy:
		return Astronomy(raw)
	case client.KindTimezone:
		return Timezone(raw)
	default:
		return nil, fmt.Errorf("unknown resource kind %q", kind)
	}
}

type providerLocation struct {
	Name      string `json:"name"`
	Region    string `json:"region"`
	Country   string `json:"country"`
	Localtime string `json:"localtime"`
}

type providerCondition struct {
	Text string `json:"text"`
	Icon string `json:"icon"`
}

type providerCurrent struct {
	TempC      float64            `json:"temp_c"`
	TempF      float64            `json:"temp_f"`
	Condition  *providerCondition `json:"condition"`
	WindKph    float64            `json:"wind_kph"`
	Humidity   int                `json:"humidity"`
	FeelslikeC float64            `json:"feelslike_c"`
	UV         float64            `json:"uv"`
}

// Current maps a current.json payload into models.CurrentWeather bytes.
func Current(raw []byte) ([]byte, error) {
	var p struct {
		Location *providerLocation `json:"location"`
		Current  *providerCurrent  `json:"current"`
	}
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if p.Location == nil || p.Current == nil || p.Current.Condition == nil {
		return nil, fmt.Errorf("%w: missing location or current", ErrMalformed)
	}

	out := models.CurrentWeather{
		City:         p.Location.Name,
		Region:       p.Location.Region,
		Country:      p.Location.Country,
		Localtime:    p.Location.Localtime,
		TemperatureC: p.Current.TempC,
		TemperatureF: p.Current.TempF,
		Condition:    p.Current.Condition.Text,
		IconURL:      iconURL(p.Current.Condition.Icon),
		WindKph:      p.Current.WindKph,
		Humidity:     p.Current.Humidity,
		FeelslikeC:   p.Current.FeelslikeC,
		UVIndex:      p.Current.UV,
	}
	return json.Marshal(out)
}

// Forecast maps a forecast.json payload into models.Forecast bytes.
func Forecast(raw []byte) ([]byte, error) {
	var p struct {
		Location *providerLocation `json:"location"`
		Forecast *struct {
			ForecastDay []struct {
				Date string `json:"date"`
				Day  *struct {
					MaxTempC     float64            `json:"maxtemp_c"`
					MinTempC     float64            `json:"mintemp_c"`
					Condition    *providerCondition `json:"condition"`
					ChanceOfRain int                `json:"daily_chance_of_rain"`
					UV           float64            `json:"uv"`
				} `json:"day"`
			} `json:"forecastday"`
		} `json:"forecast"`
	}
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if p.Location == nil || p.Forecast == nil || len(p.Forecast.ForecastDay) == 0 {
		return nil, fmt.Errorf("%w: missing location or forecast days", ErrMalformed)
	}

	days := make([]models.ForecastDay, 0, len(p.Forecast.ForecastDay))
	for _, fd := range p.Forecast.ForecastDay {
		if fd.Day == nil || fd.Day.Condition == nil {
			return nil, fmt.Errorf("%w: missing day for %s", ErrMalformed, fd.Date)
		}
		days = append(days, models.ForecastDay{
			Date:         fd.Date,
			MaxTempC:     fd.Day.MaxTempC,
			MinTempC:     fd.Day.MinTempC,
			Condition:    fd.Day.Condition.Text,
			IconURL:      iconURL(fd.Day.Condition.Icon),
			ChanceOfRain: fd.Day.ChanceOfRain,
			UVIndex:      fd.Day.UV,
		})
	}

	out := models.Forecast{
		City:     p.Location.Name,
		Country:  p.Location.Country,
		Forecast: days,
	}
	return json.Marshal(out)
}

// AirQuality passes through the provider's current.air_quality object.
func AirQuality(raw []byte) ([]byte, error) {
	var p struct {
		Current *struct {
			AirQuality json.RawMessage `json:"air_quality"`
		} `json:"current"`
	}
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if p.Current == nil || isEmptyJSON(p.Current.AirQuality) {
		return nil, fmt.Errorf("%w: missing current.air_quality", ErrMalformed)
	}
	return p.Current.AirQuality, nil
}

// Astronomy passes through the provider's astronomy.astro object
// (sunrise/sunset/moon phase).
func Astronomy(raw []byte) ([]byte, error) {
	var p struct {
		Astronomy *struct {
			Astro json.RawMessage `json:"astro"`
		} `json:"astronomy"`
	}
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if p.Astronomy == nil || isEmptyJSON(p.Astronomy.Astro) {
		return nil, fmt.Errorf("%w: missing astronomy.astro", ErrMalformed)
	}
	return p.Astronomy.Astro, nil
}

// Timezone passes through the provider's location object.
func Timezone(raw []byte) ([]byte, error) {
	var p struct {
		Location json.RawMessage `json:"location"`
	}
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if isEmptyJSON(p.Location) {
		return nil, fmt.Errorf("%w: missing location", ErrMalformed)
	}
	return p.Location, nil
}

// iconURL completes the provider's protocol-relative icon path ("//cdn...").
func iconURL(icon string) string {
	if icon == "" || strings.HasPrefix(icon, "http") {
		return icon
	}
	return "https:" + icon
}

func isEmptyJSON(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}
