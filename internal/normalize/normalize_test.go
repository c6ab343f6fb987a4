package normalize

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/noelpaton-og/globe-weather-api/internal/client"
	"github.com/noelpaton-og/globe-weather-api/internal/models"
)

const currentPayload = `{
	"location": {"name": "London", "region": "City of London, Greater London", "country": "United Kingdom", "localtime": "2024-06-01 14:30"},
	"current": {
		"temp_c": 18.0, "temp_f": 64.4,
		"condition": {"text": "Partly cloudy", "icon": "//cdn.weatherapi.com/weather/64x64/day/116.png"},
		"wind_kph": 11.2, "humidity": 72, "feelslike_c": 17.4, "uv": 5.0
	}
}`

// TestCurrent verifies the current.json payload maps onto the stable
// /weather shape, including the completed icon URL.
func TestCurrent(t *testing.T) {
	out, err := Current([]byte(currentPayload))
	if err != nil {
		t.Fatalf("Current() error = %v", err)
	}

	var got models.CurrentWeather
	if err := json.Unmarshal(out, &got); err != nil {
		t.Fatalf("unmarshal output: %v", err)
	}
	if got.City != "London" {
		t.Errorf("City = %q, want London", got.City)
	}
	if got.Country != "United Kingdom" {
		t.Errorf("Country = %q, want United Kingdom", got.Country)
	}
	if got.TemperatureC != 18.0 || got.TemperatureF != 64.4 {
		t.Errorf("temperatures = %v/%v, want 18/64.4", got.TemperatureC, got.TemperatureF)
	}
	if got.Condition != "Partly cloudy" {
		t.Errorf("Condition = %q, want Partly cloudy", got.Condition)
	}
	if got.IconURL != "https://cdn.weatherapi.com/weather/64x64/day/116.png" {
		t.Errorf("IconURL = %q, want https-completed URL", got.IconURL)
	}
	if got.Humidity != 72 || got.UVIndex != 5.0 {
		t.Errorf("Humidity/UV = %d/%v, want 72/5", got.Humidity, got.UVIndex)
	}
}

// TestCurrent_MissingRequiredFields verifies that a payload missing a
// structurally required object fails with ErrMalformed.
func TestCurrent_MissingRequiredFields(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"no location", `{"current": {"temp_c": 1, "condition": {"text": "x"}}}`},
		{"no current", `{"location": {"name": "London", "country": "UK"}}`},
		{"no condition", `{"location": {"name": "London"}, "current": {"temp_c": 1}}`},
		{"not json", `not json`},
		{"empty object", `{}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Current([]byte(tt.raw))
			if !errors.Is(err, ErrMalformed) {
				t.Errorf("Current() error = %v, want ErrMalformed", err)
			}
		})
	}
}

const forecastPayload = `{
	"location": {"name": "Paris", "country": "France"},
	"forecast": {"forecastday": [
		{"date": "2024-06-01", "day": {"maxtemp_c": 22.1, "mintemp_c": 13.0, "condition": {"text": "Sunny", "icon": "//cdn.weatherapi.com/weather/64x64/day/113.png"}, "daily_chance_of_rain": 10, "uv": 6.0}},
		{"date": "2024-06-02", "day": {"maxtemp_c": 20.5, "mintemp_c": 12.2, "condition": {"text": "Light rain", "icon": "//cdn.weatherapi.com/weather/64x64/day/296.png"}, "daily_chance_of_rain": 80, "uv": 4.0}},
		{"date": "2024-06-03", "day": {"maxtemp_c": 19.0, "mintemp_c": 11.8, "condition": {"text": "Cloudy", "icon": "//cdn.weatherapi.com/weather/64x64/day/119.png"}, "daily_chance_of_rain": 40, "uv": 3.0}}
	]}
}`

// TestForecast verifies the forecast.json payload maps onto the stable
// /forecast shape with one entry per provider day.
func TestForecast(t *testing.T) {
	out, err := Forecast([]byte(forecastPayload))
	if err != nil {
		t.Fatalf("Forecast() error = %v", err)
	}

	var got models.Forecast
	if err := json.Unmarshal(out, &got); err != nil {
		t.Fatalf("unmarshal output: %v", err)
	}
	if got.City != "Paris" || got.Country != "France" {
		t.Errorf("location = %q/%q, want Paris/France", got.City, got.Country)
	}
	if len(got.Forecast) != 3 {
		t.Fatalf("len(Forecast) = %d, want 3", len(got.Forecast))
	}
	day := got.Forecast[1]
	if day.Date != "2024-06-02" || day.MaxTempC != 20.5 || day.ChanceOfRain != 80 {
		t.Errorf("day 2 = %+v, want 2024-06-02/20.5/80", day)
	}
	if day.IconURL != "https://cdn.weatherapi.com/weather/64x64/day/296.png" {
		t.Errorf("day 2 IconURL = %q, want https-completed URL", day.IconURL)
	}
}

// TestForecast_EmptyDays verifies an empty forecastday list is malformed.
func TestForecast_EmptyDays(t *testing.T) {
	raw := `{"location": {"name": "Paris", "country": "France"}, "forecast": {"forecastday": []}}`
	if _, err := Forecast([]byte(raw)); !errors.Is(err, ErrMalformed) {
		t.Errorf("Forecast() error = %v, want ErrMalformed", err)
	}
}

// TestPassthroughKinds verifies air quality, astronomy, and timezone pass the
// provider object through byte-for-byte.
func TestPassthroughKinds(t *testing.T) {
	tests := []struct {
		name string
		fn   func([]byte) ([]byte, error)
		raw  string
		want string
	}{
		{
			"air quality",
			AirQuality,
			`{"current": {"air_quality": {"co": 230.3, "pm2_5": 8.1, "us-epa-index": 1}}}`,
			`{"co": 230.3, "pm2_5": 8.1, "us-epa-index": 1}`,
		},
		{
			"astronomy",
			Astronomy,
			`{"astronomy": {"astro": {"sunrise": "05:43 AM", "sunset": "09:12 PM", "moon_phase": "Waxing Gibbous"}}}`,
			`{"sunrise": "05:43 AM", "sunset": "09:12 PM", "moon_phase": "Waxing Gibbous"}`,
		},
		{
			"timezone",
			Timezone,
			`{"location": {"name": "Tokyo", "tz_id": "Asia/Tokyo", "localtime": "2024-06-01 22:30"}}`,
			`{"name": "Tokyo", "tz_id": "Asia/Tokyo", "localtime": "2024-06-01 22:30"}`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := tt.fn([]byte(tt.raw))
			if err != nil {
				t.Fatalf("error = %v", err)
			}
			if string(out) != tt.want {
				t.Errorf("output = %s, want %s", out, tt.want)
			}
		})
	}
}

// TestPassthrough_MissingObject verifies each passthrough kind rejects a
// payload missing its required object.
func TestPassthrough_MissingObject(t *testing.T) {
	tests := []struct {
		name string
		fn   func([]byte) ([]byte, error)
		raw  string
	}{
		{"air quality absent", AirQuality, `{"current": {"temp_c": 10}}`},
		{"air quality null", AirQuality, `{"current": {"air_quality": null}}`},
		{"astronomy absent", Astronomy, `{"location": {"name": "x"}}`},
		{"timezone absent", Timezone, `{}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := tt.fn([]byte(tt.raw)); !errors.Is(err, ErrMalformed) {
				t.Errorf("error = %v, want ErrMalformed", err)
			}
		})
	}
}

// TestNormalize_Dispatch verifies Normalize routes each kind to its
// normalizer and rejects unknown kinds.
func TestNormalize_Dispatch(t *testing.T) {
	if _, err := Normalize(client.KindCurrent, []byte(currentPayload)); err != nil {
		t.Errorf("Normalize(current) error = %v", err)
	}
	if _, err := Normalize(client.Kind("bogus"), []byte(`{}`)); err == nil {
		t.Error("Normalize(bogus) error = nil, want error")
	}
}
