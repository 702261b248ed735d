// Package locations provides the region → cities catalog offered in the
// add and edit workflows.
package locations

import (
	_ "embed"
	"fmt"
	"os"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed locations.yaml
var defaultCatalog []byte

// Region is one selectable region and its cities, in display order.
type Region struct {
	Name   string   `yaml:"name"`
	Cities []string `yaml:"cities"`
}

// Catalog is an ordered, read-only region list.
type Catalog struct {
	Regions []Region `yaml:"regions"`
}

// Default returns the built-in catalog.
func Default() *Catalog {
	c, err := Parse(defaultCatalog)
	if err != nil {
		panic(fmt.Sprintf("locations: embedded catalog: %v", err))
	}
	return c
}

// Load reads a catalog from path, or returns Default when path is empty.
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("locations: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse unmarshals and validates YAML catalog data.
func Parse(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("locations: parse: %w", err)
	}
	if err := c.validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Catalog) validate() error {
	var errs []string
	if len(c.Regions) == 0 {
		errs = append(errs, "at least one region is required")
	}
	seen := make(map[string]bool)
	for i, r := range c.Regions {
		if strings.TrimSpace(r.Name) == "" {
			errs = append(errs, fmt.Sprintf("regions[%d].name is required", i))
		}
		if seen[r.Name] {
			errs = append(errs, fmt.Sprintf("regions[%d]: duplicate region %q", i, r.Name))
		}
		seen[r.Name] = true
		if len(r.Cities) == 0 {
			errs = append(errs, fmt.Sprintf("regions[%d].cities must not be empty", i))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("locations: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

// RegionNames returns the region names in catalog order.
func (c *Catalog) RegionNames() []string {
	names := make([]string, 0, len(c.Regions))
	for _, r := range c.Regions {
		names = append(names, r.Name)
	}
	return names
}

// Cities returns the cities of region, or nil for an unknown region.
func (c *Catalog) Cities(region string) []string {
	for _, r := range c.Regions {
		if r.Name == region {
			return slices.Clone(r.Cities)
		}
	}
	return nil
}

// HasRegion reports whether region is in the catalog.
func (c *Catalog) HasRegion(region string) bool {
	return slices.Contains(c.RegionNames(), region)
}

// HasCity reports whether city belongs to region.
func (c *Catalog) HasCity(region, city string) bool {
	return slices.Contains(c.Cities(region), city)
}
