package handler

import (
	"errors"
	"fmt"

	"github.com/yosida95/uritemplate/v3"

	"github.com/miyamo2/weather-mcp/domain/forecast"
	"github.com/miyamo2/weather-mcp/domain/model"
	"github.com/miyamo2/weather-mcp/domain/repository"
	"github.com/miyamo2/weather-mcp/internal/mcp"
)

// WeatherURITemplate addresses the current weather of a city as a resource.
const WeatherURITemplate = "weather://{city}"

var weatherURITemplate = uritemplate.MustNew(WeatherURITemplate)

// GetWeatherRequest contains input parameters for the get_weather tool.
type GetWeatherRequest struct {
	City string `json:"city" jsonschema:"description=The name of the city to get weather for"`
}

// ListCitiesRequest contains input parameters for the list_cities tool.
type ListCitiesRequest struct{}

// SearchCitiesRequest contains input parameters for the search_cities tool.
type SearchCitiesRequest struct {
	Query string `json:"query" jsonschema:"description=Partial city name to search for"`
}

// GetForecastRequest contains input parameters for the get_forecast tool.
type GetForecastRequest struct {
	City string `json:"city" jsonschema:"description=The name of the city to get forecast for"`
	Days *int   `json:"days,omitempty" jsonschema:"description=Number of days for forecast (1-7),minimum=1,maximum=7,default=3"`
}

// Forecaster projects a weather record over a number of days.
type Forecaster interface {
	Forecast(base model.WeatherRecord, days int) []model.ForecastDay
}

// Handler serves the weather tools and resources.
type Handler struct {
	_          struct{}
	repo       repository.Weather
	forecaster Forecaster
}

// New returns a new Handler.
func New(repo repository.Weather, forecaster Forecaster) *Handler {
	return &Handler{
		repo:       repo,
		forecaster: forecaster,
	}
}

// invalidArguments reports a bind failure without the decoder's message.
func invalidArguments(c mcp.ToolContext, expected string) error {
	return c.Error(fmt.Sprintf("Invalid arguments for %s: %s", c.ToolName(), expected))
}

// GetWeather serves the get_weather tool.
func (h *Handler) GetWeather(c mcp.ToolContext) error {
	var req GetWeatherRequest
	if err := c.Bind(&req); err != nil {
		return invalidArguments(c, "city must be a string")
	}
	city, err := h.repo.GetByCity(req.City)
	if errors.Is(err, repository.ErrCityNotFound) {
		return c.Error(NotFoundText(req.City))
	}
	if err != nil {
		return err
	}
	return c.String(WeatherText(*city))
}

// ListCities serves the list_cities tool.
func (h *Handler) ListCities(c mcp.ToolContext) error {
	return c.String(CityListText(h.repo.Names()))
}

// SearchCities serves the search_cities tool. A query without matches is not an error.
func (h *Handler) SearchCities(c mcp.ToolContext) error {
	var req SearchCitiesRequest
	if err := c.Bind(&req); err != nil {
		return invalidArguments(c, "query must be a string")
	}
	return c.String(SearchText(req.Query, h.repo.Search(req.Query)))
}

// GetForecast serves the get_forecast tool. Days out of range are clamped to 1-7.
func (h *Handler) GetForecast(c mcp.ToolContext) error {
	var req GetForecastRequest
	if err := c.Bind(&req); err != nil {
		return invalidArguments(c, "city must be a string and days an integer")
	}
	city, err := h.repo.GetByCity(req.City)
	if errors.Is(err, repository.ErrCityNotFound) {
		return c.Error(NotFoundText(req.City))
	}
	if err != nil {
		return err
	}
	days := forecast.Days(req.Days)
	return c.String(ForecastText(*city, h.forecaster.Forecast(city.WeatherRecord, days)))
}

// WeatherResource serves weather://{city}. An unknown city reads as the not-found text.
func (h *Handler) WeatherResource(c mcp.ResourceContext) error {
	name := c.Param("city")
	city, err := h.repo.GetByCity(name)
	if errors.Is(err, repository.ErrCityNotFound) {
		return c.String(NotFoundText(name))
	}
	if err != nil {
		return err
	}
	return c.String(WeatherText(*city))
}

// ResourceList lists the registered static resources followed by one weather resource per city.
func (h *Handler) ResourceList(c mcp.ResourceListContext) error {
	if err := mcp.DefaultResourceListHandler(c); err != nil {
		return err
	}
	for _, name := range h.repo.Names() {
		uri, err := CityURI(name)
		if err != nil {
			return err
		}
		display := DisplayName(name)
		c.AddResource(mcp.Resource{
			URI:         uri,
			Name:        display,
			Description: fmt.Sprintf("Current weather in %s", display),
			MimeType:    "text/plain",
		})
	}
	return nil
}

// CityURI expands WeatherURITemplate for a city, percent-encoding the name.
func CityURI(name string) (string, error) {
	return weatherURITemplate.Expand(uritemplate.Values{
		"city": uritemplate.String(name),
	})
}
