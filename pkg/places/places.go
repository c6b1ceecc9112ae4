/*
Package places holds the place data model shared by the search layers:
PlaceRecord and its invariants, the curated popular-places dataset bundled
into the binary, and the geographic helpers used for proximity ranking.

Records are values. The curated dataset is parsed once from embedded YAML and
every accessor hands out copies, so nothing a caller does can mutate it.
*/
package places

import (
	"fmt"
	"math"
	"strings"

	geohash "github.com/TomiHiltunen/geohash-golang"
)

// Category classifies why a place is on the curated list.
type Category string

const (
	MajorCity          Category = "major_city"
	Capital            Category = "capital"
	TouristDestination Category = "tourist_destination"
	BusinessHub        Category = "business_hub"
)

// Categories lists every known category in display order.
var Categories = []Category{MajorCity, Capital, TouristDestination, BusinessHub}

// Valid reports whether c is one of the known categories.
func (c Category) Valid() bool {
	switch c {
	case MajorCity, Capital, TouristDestination, BusinessHub:
		return true
	}
	return false
}

// ParseCategory accepts the canonical value or a loose spelling such as
// "Tourist Destination" or "business-hub".
func ParseCategory(s string) (Category, error) {
	norm := strings.ToLower(strings.TrimSpace(s))
	norm = strings.NewReplacer(" ", "_", "-", "_").Replace(norm)
	c := Category(norm)
	if !c.Valid() {
		return "", fmt.Errorf("unknown category %q", s)
	}
	return c, nil
}

const (
	MinPriority = 1
	MaxPriority = 10
)

// Coordinates is a WGS84 point in decimal degrees.
type Coordinates struct {
	Lat float64 `yaml:"lat" json:"lat" msgpack:"lat"`
	Lon float64 `yaml:"lon" json:"lon" msgpack:"lon"`
}

// Valid reports whether the point lies inside the lat/lon ranges.
func (c Coordinates) Valid() bool {
	return !math.IsNaN(c.Lat) && !math.IsNaN(c.Lon) &&
		c.Lat >= -90 && c.Lat <= 90 && c.Lon >= -180 && c.Lon <= 180
}

// Geohash encodes the point with the given precision in characters.
func (c Coordinates) Geohash(precision int) string {
	if !c.Valid() || precision <= 0 {
		return ""
	}
	return geohash.EncodeWithPrecision(c.Lat, c.Lon, precision)
}

// PlaceRecord is one known place.
type PlaceRecord struct {
	Name           string      `yaml:"name" json:"name" msgpack:"n"`
	CountryCode    string      `yaml:"country_code" json:"countryCode" msgpack:"cc"`
	Country        string      `yaml:"country" json:"country" msgpack:"c"`
	Coordinates    Coordinates `yaml:"coordinates" json:"coordinates" msgpack:"xy"`
	Population     int         `yaml:"population" json:"population" msgpack:"pop"`
	Category       Category    `yaml:"category" json:"category" msgpack:"cat"`
	SearchPriority int         `yaml:"priority" json:"searchPriority" msgpack:"p"`
}

// Key is the identity used for de-duplication: the case-folded name and
// the upper-cased country code.
func (p PlaceRecord) Key() string {
	return strings.ToLower(strings.TrimSpace(p.Name)) + "|" + strings.ToUpper(strings.TrimSpace(p.CountryCode))
}

// String renders "Name, CC".
func (p PlaceRecord) String() string {
	if p.CountryCode == "" {
		return p.Name
	}
	return p.Name + ", " + p.CountryCode
}

// Normalize returns a copy of p with whitespace trimmed, the country code
// upper-cased, the priority clamped to [MinPriority, MaxPriority] and a
// negative population raised to zero.
func Normalize(p PlaceRecord) PlaceRecord {
	p.Name = strings.Join(strings.Fields(p.Name), " ")
	p.CountryCode = strings.ToUpper(strings.TrimSpace(p.CountryCode))
	p.Country = strings.TrimSpace(p.Country)
	p.SearchPriority = ClampPriority(p.SearchPriority)
	if p.Population < 0 {
		p.Population = 0
	}
	if p.Category == "" {
		p.Category = MajorCity
	}
	return p
}

// ClampPriority forces v into [MinPriority, MaxPriority].
func ClampPriority(v int) int {
	return min(max(v, MinPriority), MaxPriority)
}

// Validate checks the invariants Normalize cannot repair.
func Validate(p PlaceRecord) error {
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("place has empty name")
	}
	if !p.Coordinates.Valid() {
		return fmt.Errorf("place %q has invalid coordinates (%f, %f)", p.Name, p.Coordinates.Lat, p.Coordinates.Lon)
	}
	if p.Category != "" && !p.Category.Valid() {
		return fmt.Errorf("place %q has unknown category %q", p.Name, p.Category)
	}
	return nil
}

// Clone copies a slice of records.
func Clone(records []PlaceRecord) []PlaceRecord {
	if records == nil {
		return nil
	}
	out := make([]PlaceRecord, len(records))
	copy(out, records)
	return out
}
