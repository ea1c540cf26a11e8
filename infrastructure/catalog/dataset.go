package catalog

import "github.com/miyamo2/weather-mcp/domain/model"

// DefaultCities returns the built-in dataset in declaration order.
//
// Each call returns a fresh slice.
func DefaultCities() []model.City {
	return []model.City{
		{Name: "new york", WeatherRecord: model.WeatherRecord{Temperature: 72, Condition: "Partly Cloudy", Humidity: 65, Country: "USA"}},
		{Name: "london", WeatherRecord: model.WeatherRecord{Temperature: 62, Condition: "Rainy", Humidity: 80, Country: "UK"}},
		{Name: "tokyo", WeatherRecord: model.WeatherRecord{Temperature: 85, Condition: "Sunny", Humidity: 70, Country: "Japan"}},
		{Name: "sydney", WeatherRecord: model.WeatherRecord{Temperature: 70, Condition: "Clear", Humidity: 55, Country: "Australia"}},
		{Name: "paris", WeatherRecord: model.WeatherRecord{Temperature: 68, Condition: "Cloudy", Humidity: 75, Country: "France"}},
		{Name: "berlin", WeatherRecord: model.WeatherRecord{Temperature: 65, Condition: "Overcast", Humidity: 72, Country: "Germany"}},
		{Name: "rome", WeatherRecord: model.WeatherRecord{Temperature: 78, Condition: "Sunny", Humidity: 60, Country: "Italy"}},
		{Name: "madrid", WeatherRecord: model.WeatherRecord{Temperature: 82, Condition: "Clear", Humidity: 45, Country: "Spain"}},
		{Name: "moscow", WeatherRecord: model.WeatherRecord{Temperature: 45, Condition: "Snowy", Humidity: 85, Country: "Russia"}},
		{Name: "dubai", WeatherRecord: model.WeatherRecord{Temperature: 95, Condition: "Hot", Humidity: 40, Country: "UAE"}},
		{Name: "singapore", WeatherRecord: model.WeatherRecord{Temperature: 88, Condition: "Thunderstorms", Humidity: 90, Country: "Singapore"}},
		{Name: "cairo", WeatherRecord: model.WeatherRecord{Temperature: 90, Condition: "Sunny", Humidity: 30, Country: "Egypt"}},
		{Name: "rio de janeiro", WeatherRecord: model.WeatherRecord{Temperature: 80, Condition: "Partly Cloudy", Humidity: 75, Country: "Brazil"}},
		{Name: "toronto", WeatherRecord: model.WeatherRecord{Temperature: 60, Condition: "Cloudy", Humidity: 70, Country: "Canada"}},
		{Name: "mexico city", WeatherRecord: model.WeatherRecord{Temperature: 75, Condition: "Partly Cloudy", Humidity: 55, Country: "Mexico"}},
	}
}
