// Package forecast generates mock multi-day weather forecasts.
package forecast

import (
	"math/rand/v2"
	"slices"

	"github.com/miyamo2/weather-mcp/domain/model"
)

const (
	// MinDays is the shortest forecast that can be requested.
	MinDays = 1
	// MaxDays is the longest forecast that can be requested.
	MaxDays = 7
	// DefaultDays is used when no day count is requested.
	DefaultDays = 3
)

const (
	// temperatureSpread is the number of distinct daily offsets, drawn from [-5, 4].
	temperatureSpread = 10
	temperatureOffset = 5
)

var conditions = [...]string{"Sunny", "Cloudy", "Rainy", "Partly Cloudy", "Clear"}

// Conditions returns the set a forecast day's condition is drawn from.
func Conditions() []string {
	return slices.Clone(conditions[:])
}

// Days resolves a requested day count: nil yields DefaultDays, anything else is clamped to [MinDays, MaxDays].
func Days(requested *int) int {
	if requested == nil {
		return DefaultDays
	}
	return min(max(*requested, MinDays), MaxDays)
}

// Generate projects base over days days. Every day is an independent draw from r.
//
// days must already be in [MinDays, MaxDays].
func Generate(r *rand.Rand, base model.WeatherRecord, days int) []model.ForecastDay {
	forecast := make([]model.ForecastDay, 0, days)
	for i := range days {
		forecast = append(forecast, model.ForecastDay{
			Day:         i + 1,
			Temperature: base.Temperature + r.IntN(temperatureSpread) - temperatureOffset,
			Condition:   conditions[r.IntN(len(conditions))],
		})
	}
	return forecast
}

// SourceFunc returns the random generator used for a single forecast.
type SourceFunc func() *rand.Rand

// Generator produces forecasts with a private random generator per call.
//
// It is safe for concurrent use.
type Generator struct {
	_         struct{}
	newSource SourceFunc
}

// GeneratorOption configures the Generator.
type GeneratorOption func(*Generator)

// WithSeed makes every forecast draw from a PCG seeded with seed.
// The same base and days then always yield the same forecast.
func WithSeed(seed uint64) GeneratorOption {
	return func(g *Generator) {
		g.newSource = func() *rand.Rand {
			return rand.New(rand.NewPCG(seed, seed))
		}
	}
}

// WithSourceFunc sets the function that supplies the random generator of each forecast.
func WithSourceFunc(f SourceFunc) GeneratorOption {
	return func(g *Generator) {
		g.newSource = f
	}
}

// NewGenerator returns a new Generator.
func NewGenerator(options ...GeneratorOption) *Generator {
	g := &Generator{
		newSource: randomSource,
	}
	for _, opt := range options {
		opt(g)
	}
	return g
}

// Forecast See: Generate
func (g *Generator) Forecast(base model.WeatherRecord, days int) []model.ForecastDay {
	return Generate(g.newSource(), base, days)
}

// randomSource seeds a fresh PCG from the global generator, which is safe for concurrent use.
func randomSource() *rand.Rand {
	return rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
}
