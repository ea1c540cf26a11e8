package repository

import (
	"errors"

	"github.com/miyamo2/weather-mcp/domain/model"
)

// ErrCityNotFound occurs when a city has no entry in the catalog.
var ErrCityNotFound = errors.New("city not found")

type Weather interface {
	// GetByCity returns the weather of the city. name is matched case-insensitively.
	GetByCity(name string) (*model.City, error)
	// All returns every city in declaration order.
	All() []model.City
	// Names returns every normalized city name in declaration order.
	Names() []string
	// Search returns the cities whose name contains query, in declaration order.
	Search(query string) []model.City
}
