// Package app assembles the weather MCP server.
package app

import (
	"log/slog"

	"golang.org/x/time/rate"

	"github.com/miyamo2/weather-mcp/domain/repository"
	"github.com/miyamo2/weather-mcp/handler"
	"github.com/miyamo2/weather-mcp/internal/mcp"
)

const (
	ServerName    = "Weather Service"
	ServerVersion = "1.0.0"
	Instructions  = "An MCP server providing weather information for cities around the world"
)

const (
	ToolGetWeather   = "get_weather"
	ToolListCities   = "list_cities"
	ToolSearchCities = "search_cities"
	ToolGetForecast  = "get_forecast"
)

type options struct {
	limiter       *rate.Limiter
	logger        *slog.Logger
	serverOptions []mcp.Option
}

// Option configures the server built by New.
type Option func(*options)

// WithRateLimiter makes every tool call wait for limiter.
func WithRateLimiter(limiter *rate.Limiter) Option {
	return func(o *options) {
		o.limiter = limiter
	}
}

// WithLogger sets the logger of the server and its tool calls.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithServerOptions passes options through to mcp.New.
func WithServerOptions(serverOptions ...mcp.Option) Option {
	return func(o *options) {
		o.serverOptions = append(o.serverOptions, serverOptions...)
	}
}

// New returns a server exposing the weather tools and the weather://{city} resource.
func New(repo repository.Weather, forecaster handler.Forecaster, opts ...Option) *mcp.Server {
	o := &options{
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(o)
	}
	h := handler.New(repo, forecaster)

	s := mcp.New(ServerName, append([]mcp.Option{
		mcp.WithVersion(ServerVersion),
		mcp.WithInstructions(Instructions),
		mcp.WithLogger(o.logger),
	}, o.serverOptions...)...)

	s.UseInTools(handler.Logging(o.logger))
	s.UseInResources(handler.ResourceLogging(o.logger))
	if o.limiter != nil {
		s.UseInTools(handler.RateLimit(o.limiter))
	}

	lookup := mcp.ToolAnnotations{
		ReadOnlyHint:   true,
		IdempotentHint: true,
	}
	s.Tool(ToolGetWeather,
		(*handler.GetWeatherRequest)(nil),
		h.GetWeather,
		mcp.ToolWithDescription("Get current weather information for a specific city"),
		mcp.ToolWithAnnotations(withTitle(lookup, "Get Weather")))

	s.Tool(ToolListCities,
		(*handler.ListCitiesRequest)(nil),
		h.ListCities,
		mcp.ToolWithDescription("List all available cities in the weather database"),
		mcp.ToolWithAnnotations(withTitle(lookup, "List Cities")))

	s.Tool(ToolSearchCities,
		(*handler.SearchCitiesRequest)(nil),
		h.SearchCities,
		mcp.ToolWithDescription("Search for cities by partial name match"),
		mcp.ToolWithAnnotations(withTitle(lookup, "Search Cities")))

	// forecasts are random, so repeated calls differ.
	s.Tool(ToolGetForecast,
		(*handler.GetForecastRequest)(nil),
		h.GetForecast,
		mcp.ToolWithDescription("Get a multi-day weather forecast for a specific city"),
		mcp.ToolWithAnnotations(mcp.ToolAnnotations{Title: "Get Forecast", ReadOnlyHint: true}))

	s.Resource(
		"City Weather",
		handler.WeatherURITemplate,
		h.WeatherResource,
		mcp.ResourceWithDescription("Current weather for a specific city"),
		mcp.ResourceWithMimeType("text/plain"))

	s.ResourceList(h.ResourceList)
	return s
}

func withTitle(a mcp.ToolAnnotations, title string) mcp.ToolAnnotations {
	a.Title = title
	return a
}
