package handler

import (
	"testing"

	"github.com/miyamo2/weather-mcp/domain/model"
)

func TestDisplayName(t *testing.T) {
	type test struct {
		name string
		want string
	}
	tests := map[string]test{
		"single word":     {name: "tokyo", want: "Tokyo"},
		"each word":       {name: "rio de janeiro", want: "Rio De Janeiro"},
		"already capital": {name: "New York", want: "New York"},
		"empty":           {name: "", want: ""},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			if got := DisplayName(tt.name); got != tt.want {
				t.Fatalf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestForecastText(t *testing.T) {
	city := model.City{Name: "sydney", WeatherRecord: model.WeatherRecord{Temperature: 70, Condition: "Clear", Humidity: 55, Country: "Australia"}}
	forecast := []model.ForecastDay{
		{Day: 1, Temperature: 66, Condition: "Rainy"},
		{Day: 2, Temperature: 74, Condition: "Partly Cloudy"},
	}
	want := "2-day forecast for Sydney (Australia):\nDay 1: 66°F, Rainy\nDay 2: 74°F, Partly Cloudy"
	if got := ForecastText(city, forecast); got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestNotFoundText(t *testing.T) {
	want := "Weather information for  not found."
	if got := NotFoundText(""); got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}
