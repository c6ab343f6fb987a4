package models

// CurrentWeather is the stable output shape for /weather, derived from the
// provider's current.json payload. Field names are part of the public contract
// and do not follow provider schema churn.
type CurrentWeather struct {
	City         string  `json:"city"`
	Region       string  `json:"region"`
	Country      string  `json:"country"`
	Localtime    string  `json:"localtime"`
	TemperatureC float64 `json:"temperature_c"`
	TemperatureF float64 `json:"temperature_f"`
	Condition    string  `json:"condition"`
	IconURL      string  `json:"icon_url"`
	WindKph      float64 `json:"wind_kph"`
	Humidity     int     `json:"humidity"`
	FeelslikeC   float64 `json:"feelslike_c"`
	UVIndex      float64 `json:"uv_index"`
}

// ForecastDay is a single day entry in the /forecast response.
type ForecastDay struct {
	Date         string  `json:"date"`
	MaxTempC     float64 `json:"maxtemp_c"`
	MinTempC     float64 `json:"mintemp_c"`
	Condition    string  `json:"condition"`
	IconURL      string  `json:"icon_url"`
	ChanceOfRain int     `json:"chance_of_rain"`
	UVIndex      float64 `json:"uv_index"`
}

// Forecast is the stable output shape for /forecast.
type Forecast struct {
	City     string        `json:"city"`
	Country  string        `json:"country"`
	Forecast []ForecastDay `json:"forecast"`
}
