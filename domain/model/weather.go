package model

// WeatherRecord is the current weather of a city.
type WeatherRecord struct {
	Temperature int    `json:"temperature" yaml:"temperature"` // Fahrenheit
	Condition   string `json:"condition" yaml:"condition"`     // Weather condition (Sunny, Cloudy, Rainy, etc.)
	Humidity    int    `json:"humidity" yaml:"humidity"`       // Relative humidity (%)
	Country     string `json:"country" yaml:"country"`
}

// City pairs a normalized city name with its weather record.
type City struct {
	Name          string `json:"name" yaml:"name"`
	WeatherRecord `yaml:",inline"`
}

// ForecastDay is a single day of a generated forecast.
type ForecastDay struct {
	Day         int    `json:"day"`
	Temperature int    `json:"temperature"` // Fahrenheit
	Condition   string `json:"condition"`
}
