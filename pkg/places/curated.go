package places

import (
	_ "embed"
	"fmt"
	"sort"
	"sync"

	"github.com/charmbracelet/log"
	"gopkg.in/yaml.v3"
)

//go:embed data/popular.yaml
var popularYAML []byte

var (
	curatedOnce sync.Once
	curated     []PlaceRecord
)

// Curated returns a copy of the bundled popular-places dataset, normalized
// and ordered by priority (then population, then name).
func Curated() []PlaceRecord {
	curatedOnce.Do(func() {
		records, err := ParseYAML(popularYAML)
		if err != nil {
			// The dataset ships with the binary; a parse failure is a build defect.
			log.Errorf("Failed to parse curated places: %v", err)
			return
		}
		curated = records
		log.Debugf("Loaded %d curated places", len(curated))
	})
	return Clone(curated)
}

// ParseYAML decodes a YAML list of places, normalizes each one and drops the
// ones that fail validation. The result is sorted with SortByPriority.
func ParseYAML(data []byte) ([]PlaceRecord, error) {
	var doc struct {
		Places []PlaceRecord `yaml:"places"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decoding places: %w", err)
	}

	records := make([]PlaceRecord, 0, len(doc.Places))
	for _, p := range doc.Places {
		p = Normalize(p)
		if err := Validate(p); err != nil {
			log.Warnf("Skipping curated place: %v", err)
			continue
		}
		records = append(records, p)
	}
	SortByPriority(records)
	return records, nil
}

// SortByPriority orders records by priority desc, population desc, then
// name and country code so the order is total.
func SortByPriority(records []PlaceRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		return LessByPriority(records[i], records[j])
	})
}

// LessByPriority is the comparison behind SortByPriority.
func LessByPriority(a, b PlaceRecord) bool {
	if a.SearchPriority != b.SearchPriority {
		return a.SearchPriority > b.SearchPriority
	}
	if a.Population != b.Population {
		return a.Population > b.Population
	}
	if a.Name != b.Name {
		return a.Name < b.Name
	}
	return a.CountryCode < b.CountryCode
}
