// Package search is the single entry point that turns typed or spoken input
// into a ranked, de-duplicated list of place suggestions.
package search

import (
	"context"

	"github.com/bastiangx/placeserve/pkg/autocorrect"
	"github.com/bastiangx/placeserve/pkg/places"
	"github.com/bastiangx/placeserve/pkg/popular"
)

// PlaceSource serves ranked place lookups. *popular.Cache implements it.
type PlaceSource interface {
	// Search returns places matching query, best first, at most opts.Limit
	Search(query string, opts popular.Options) []places.PlaceRecord

	// InstantSuggestions returns the top places for an empty query
	InstantSuggestions(limit int) []places.PlaceRecord
}

// Corrector proposes a spelling correction. *autocorrect.Autocorrector
// implements it.
type Corrector interface {
	Correct(query string) *autocorrect.Candidate
}

// placeLearner and nameLearner are the optional halves of Learn.
type placeLearner interface {
	Learn(ctx context.Context, records []places.PlaceRecord) int
}

type nameLearner interface {
	Learn(records []places.PlaceRecord)
}

// invalidator and rebuilder are the optional halves of Invalidate.
type invalidator interface {
	Invalidate(ctx context.Context)
	Records() []places.PlaceRecord
}

type rebuilder interface {
	Rebuild(records []places.PlaceRecord)
}
