package handler

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/miyamo2/weather-mcp/domain/model"
)

// DisplayName capitalizes the first letter of each word of a normalized city name.
func DisplayName(name string) string {
	// a Caser is stateful and must not be shared between goroutines.
	return cases.Title(language.English).String(name)
}

// NotFoundText is the reply for a city that has no entry, echoing the input as given.
func NotFoundText(input string) string {
	return fmt.Sprintf("Weather information for %s not found.", input)
}

// WeatherText renders the current weather of city.
func WeatherText(city model.City) string {
	return fmt.Sprintf("Weather in %s (%s):\nTemperature: %d°F\nCondition: %s\nHumidity: %d%%",
		DisplayName(city.Name), city.Country, city.Temperature, city.Condition, city.Humidity)
}

// CityListText renders the names of every city.
func CityListText(names []string) string {
	display := make([]string, len(names))
	for i, name := range names {
		display[i] = DisplayName(name)
	}
	return "Available cities: " + strings.Join(display, ", ")
}

// SearchText renders the cities matching query.
func SearchText(query string, cities []model.City) string {
	if len(cities) == 0 {
		return fmt.Sprintf("No cities found matching \"%s\".", query)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Cities matching \"%s\":", query)
	for _, city := range cities {
		fmt.Fprintf(&b, "\n%s (%s): %d°F, %s", DisplayName(city.Name), city.Country, city.Temperature, city.Condition)
	}
	return b.String()
}

// ForecastText renders a forecast for city.
func ForecastText(city model.City, forecast []model.ForecastDay) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d-day forecast for %s (%s):", len(forecast), DisplayName(city.Name), city.Country)
	for _, day := range forecast {
		fmt.Fprintf(&b, "\nDay %d: %d°F, %s", day.Day, day.Temperature, day.Condition)
	}
	return b.String()
}
