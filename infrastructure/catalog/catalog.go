package catalog

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/miyamo2/weather-mcp/domain/model"
	"github.com/miyamo2/weather-mcp/domain/repository"
)

// ErrDuplicateCity occurs when two cities share a name after normalization.
var ErrDuplicateCity = errors.New("duplicate city")

// compatibility check
var _ repository.Weather = (*Catalog)(nil)

// Catalog is an immutable in-memory repository.Weather.
//
// It is safe for concurrent use once constructed.
type Catalog struct {
	_       struct{}
	names   []string
	records map[string]model.WeatherRecord
}

// Normalize returns the lookup key of a city name.
func Normalize(name string) string {
	return strings.ToLower(name)
}

// New builds a Catalog from cities, keeping their order.
func New(cities ...model.City) (*Catalog, error) {
	c := &Catalog{
		names:   make([]string, 0, len(cities)),
		records: make(map[string]model.WeatherRecord, len(cities)),
	}
	for _, v := range cities {
		key := Normalize(v.Name)
		if _, ok := c.records[key]; ok {
			return nil, fmt.Errorf("%w: '%s'", ErrDuplicateCity, key)
		}
		c.names = append(c.names, key)
		c.records[key] = v.WeatherRecord
	}
	return c, nil
}

// MustNew is like New but panics on error.
func MustNew(cities ...model.City) *Catalog {
	c, err := New(cities...)
	if err != nil {
		panic(err)
	}
	return c
}

// GetByCity See: repository.Weather#GetByCity
func (c *Catalog) GetByCity(name string) (*model.City, error) {
	key := Normalize(name)
	record, ok := c.records[key]
	if !ok {
		return nil, fmt.Errorf("city '%s': %w", name, repository.ErrCityNotFound)
	}
	return &model.City{Name: key, WeatherRecord: record}, nil
}

// All See: repository.Weather#All
func (c *Catalog) All() []model.City {
	cities := make([]model.City, 0, len(c.names))
	for _, name := range c.names {
		cities = append(cities, model.City{Name: name, WeatherRecord: c.records[name]})
	}
	return cities
}

// Names See: repository.Weather#Names
func (c *Catalog) Names() []string {
	return slices.Clone(c.names)
}

// Search See: repository.Weather#Search
//
// An empty query matches nothing.
func (c *Catalog) Search(query string) []model.City {
	if query == "" {
		return nil
	}
	q := Normalize(query)
	var matches []model.City
	for _, name := range c.names {
		if strings.Contains(name, q) {
			matches = append(matches, model.City{Name: name, WeatherRecord: c.records[name]})
		}
	}
	return matches
}

// Len returns the number of cities.
func (c *Catalog) Len() int {
	return len(c.names)
}
