package catalog

import (
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/miyamo2/weather-mcp/domain/model"
)

// ErrInvalidCity occurs when a dataset entry is malformed.
var ErrInvalidCity = errors.New("invalid city")

// document is the layout of a city dataset file.
//
//	cities:
//	  - name: tokyo
//	    temperature: 85
//	    condition: Sunny
//	    humidity: 70
//	    country: Japan
type document struct {
	Cities []model.City `yaml:"cities"`
}

// Decode reads a YAML city dataset and builds a Catalog in file order.
func Decode(r io.Reader) (*Catalog, error) {
	var doc document
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to decode city dataset: %w", err)
	}
	for i, v := range doc.Cities {
		switch {
		case v.Name == "":
			return nil, fmt.Errorf("%w: entry %d has no name", ErrInvalidCity, i)
		case v.Humidity < 0 || v.Humidity > 100:
			return nil, fmt.Errorf("%w: '%s' humidity %d out of range [0,100]", ErrInvalidCity, v.Name, v.Humidity)
		}
	}
	return New(doc.Cities...)
}

// Load opens a YAML city dataset file. An empty path yields the built-in dataset.
func Load(path string) (*Catalog, error) {
	if path == "" {
		return New(DefaultCities()...)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open city dataset: %w", err)
	}
	defer f.Close()
	return Decode(f)
}
