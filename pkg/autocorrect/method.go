package autocorrect

// Method names the tier that produced a correction.
type Method int

// Tiers in priority order. When two tiers land on the same name the earlier
// one wins and carries the higher confidence.
const (
	Exact Method = iota
	Prefix
	KnownMisspelling
	EditDistance
	Phonetic
	Fuzzy
)

var methodNames = [...]string{
	Exact:            "exact",
	Prefix:           "prefix",
	KnownMisspelling: "known_misspelling",
	EditDistance:     "edit_distance",
	Phonetic:         "phonetic",
	Fuzzy:            "fuzzy",
}

func (m Method) String() string {
	if m < 0 || int(m) >= len(methodNames) {
		return "unknown"
	}
	return methodNames[m]
}

// MarshalText renders the method name in JSON/TOML output.
func (m Method) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// Candidate is the outcome of a correction attempt.
type Candidate struct {
	Original   string  `json:"original"`
	Corrected  string  `json:"corrected"`
	Confidence float64 `json:"confidence"`
	Method     Method  `json:"method"`
}

// Changed reports whether the correction differs from what was typed,
// ignoring case and spacing.
func (c *Candidate) Changed() bool {
	if c == nil {
		return false
	}
	return c.Method != Exact
}

// Thresholds holds every confidence band and cut-off of the cascade.
type Thresholds struct {
	// PrefixMinLen is the shortest query (in runes) the prefix tier accepts.
	PrefixMinLen int
	// MinCorrectLen is the shortest query the distance, phonetic and fuzzy
	// tiers will try to correct.
	MinCorrectLen int

	PrefixConfidence      float64
	MisspellingConfidence float64

	// EditRatio caps the scanned distance at ceil(EditRatio * len(query)).
	EditRatio float64
	// EditFloor is the minimum similarity accepted; accepted similarities
	// are mapped linearly onto [EditFloor, EditCeiling].
	EditFloor   float64
	EditCeiling float64

	PhoneticConfidence float64

	// FuzzyFloor is the minimum character overlap accepted; accepted ratios
	// are mapped onto [FuzzyFloor, FuzzyCeiling].
	FuzzyFloor   float64
	FuzzyCeiling float64

	// RejectFloor discards any correction below this confidence.
	RejectFloor float64
}

// DefaultThresholds returns the stock bands.
func DefaultThresholds() Thresholds {
	return Thresholds{
		PrefixMinLen:          2,
		MinCorrectLen:         2,
		PrefixConfidence:      0.95,
		MisspellingConfidence: 0.90,
		EditRatio:             0.3,
		EditFloor:             0.60,
		EditCeiling:           0.85,
		PhoneticConfidence:    0.70,
		FuzzyFloor:            0.50,
		FuzzyCeiling:          0.75,
		RejectFloor:           0.50,
	}
}
