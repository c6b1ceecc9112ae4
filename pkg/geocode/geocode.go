// Package geocode maps geocoding API responses into place records.
//
// The payloads are loosely typed (Nominatim sends coordinates as strings,
// Open-Meteo omits population for small places), so they are read with gjson
// and turned into normalized, validated records right at the boundary.
// Fetching is the caller's job; nothing here performs I/O.
package geocode

import (
	"errors"
	"fmt"
	"strings"

	"github.com/bastiangx/placeserve/pkg/places"
	"github.com/charmbracelet/log"
	"github.com/tidwall/gjson"
)

// ErrInvalidJSON is returned for bodies that are not JSON at all.
var ErrInvalidJSON = errors.New("geocode: invalid JSON")

// Priority assigned to looked-up places, by population. Curated places
// keep the upper half of the scale.
const (
	priorityLarge  = 5 // >= 5M
	priorityCity   = 4 // >= 1M
	priorityTown   = 3 // >= 100k
	prioritySmall  = 2
	priorityNoInfo = 1
)

// ParseOpenMeteo reads an Open-Meteo geocoding response
// ({"results": [{"name", "latitude", "longitude", "country_code", ...}]}).
func ParseOpenMeteo(body []byte) ([]places.PlaceRecord, error) {
	if !gjson.ValidBytes(body) {
		return nil, ErrInvalidJSON
	}
	var out []places.PlaceRecord
	gjson.GetBytes(body, "results").ForEach(func(_, r gjson.Result) bool {
		p := places.PlaceRecord{
			Name:        r.Get("name").String(),
			CountryCode: r.Get("country_code").String(),
			Country:     r.Get("country").String(),
			Coordinates: places.Coordinates{
				Lat: r.Get("latitude").Float(),
				Lon: r.Get("longitude").Float(),
			},
			Population: int(r.Get("population").Int()),
			Category:   categoryFromFeature(r.Get("feature_code").String()),
		}
		out = appendValid(out, p, r.Get("latitude").Exists() && r.Get("longitude").Exists())
		return true
	})
	return out, nil
}

// ParseNominatim reads a Nominatim search response (a JSON array; request
// with addressdetails=1 and extratags=1 for country and population).
func ParseNominatim(body []byte) ([]places.PlaceRecord, error) {
	if !gjson.ValidBytes(body) {
		return nil, ErrInvalidJSON
	}
	root := gjson.ParseBytes(body)
	if !root.IsArray() {
		return nil, fmt.Errorf("geocode: nominatim response is %s, want array", root.Type)
	}
	var out []places.PlaceRecord
	root.ForEach(func(_, r gjson.Result) bool {
		name := r.Get("name").String()
		if name == "" {
			name, _, _ = strings.Cut(r.Get("display_name").String(), ",")
		}
		addr := r.Get("address")
		p := places.PlaceRecord{
			Name:        name,
			CountryCode: addr.Get("country_code").String(),
			Country:     addr.Get("country").String(),
			Coordinates: places.Coordinates{
				// sent as strings; gjson parses them
				Lat: r.Get("lat").Float(),
				Lon: r.Get("lon").Float(),
			},
			Population: int(r.Get("extratags.population").Int()),
			Category:   categoryFromNominatim(r),
		}
		out = appendValid(out, p, r.Get("lat").Exists() && r.Get("lon").Exists())
		return true
	})
	return out, nil
}

// ParseOpenWeather reads an OpenWeatherMap direct geocoding response
// ([{"name", "country", "state", "lat", "lon"}]); "country" there is the
// ISO code.
func ParseOpenWeather(body []byte) ([]places.PlaceRecord, error) {
	if !gjson.ValidBytes(body) {
		return nil, ErrInvalidJSON
	}
	var out []places.PlaceRecord
	gjson.ParseBytes(body).ForEach(func(_, r gjson.Result) bool {
		p := places.PlaceRecord{
			Name:        r.Get("name").String(),
			CountryCode: r.Get("country").String(),
			Coordinates: places.Coordinates{
				Lat: r.Get("lat").Float(),
				Lon: r.Get("lon").Float(),
			},
			Category: places.MajorCity,
		}
		out = appendValid(out, p, r.Get("lat").Exists() && r.Get("lon").Exists())
		return true
	})
	return out, nil
}

func appendValid(out []places.PlaceRecord, p places.PlaceRecord, hasCoords bool) []places.PlaceRecord {
	if !hasCoords {
		log.Debugf("Skipping geocoding result %q without coordinates", p.Name)
		return out
	}
	p.SearchPriority = priorityFor(p.Population)
	p = places.Normalize(p)
	if err := places.Validate(p); err != nil {
		log.Debugf("Skipping geocoding result: %v", err)
		return out
	}
	return append(out, p)
}

func priorityFor(population int) int {
	switch {
	case population >= 5_000_000:
		return priorityLarge
	case population >= 1_000_000:
		return priorityCity
	case population >= 100_000:
		return priorityTown
	case population > 0:
		return prioritySmall
	}
	return priorityNoInfo
}

// categoryFromFeature maps GeoNames feature codes (used by Open-Meteo).
func categoryFromFeature(code string) places.Category {
	switch strings.ToUpper(code) {
	case "PPLC":
		return places.Capital
	case "PPLA", "PPLA2", "PPLG":
		return places.BusinessHub
	}
	return places.MajorCity
}

func categoryFromNominatim(r gjson.Result) places.Category {
	if r.Get("extratags.capital").String() == "yes" || r.Get("extratags.capital").String() == "2" {
		return places.Capital
	}
	switch r.Get("type").String() {
	case "attraction", "resort", "island":
		return places.TouristDestination
	}
	return places.MajorCity
}
