package cli

import (
	"fmt"
	"slices"
	"strings"

	"github.com/bastiangx/placeserve/pkg/autocorrect"
	"github.com/bastiangx/placeserve/pkg/places"
	"github.com/bastiangx/placeserve/pkg/search"
	"github.com/charmbracelet/lipgloss"
)

var (
	nameStyle = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#286983", Dark: "#9ccfd8"})
	hintStyle = lipgloss.NewStyle().Italic(true).Foreground(lipgloss.AdaptiveColor{Light: "#797593", Dark: "#908caa"})
)

func (h *InputHandler) printList(q string, l search.List) {
	if c := l.Correction; c != nil {
		h.out.Print(hintStyle.Render(fmt.Sprintf("did you mean '%s'? (%s, %.2f)", c.Corrected, c.Method, c.Confidence)))
	}
	if len(l.Items) == 0 {
		h.out.Warnf("No suggestions found for '%s'", q)
		return
	}
	h.out.Printf("Found %d suggestions for '%s':", len(l.Items), q)
	for i, s := range l.Items {
		h.out.Printf("%2d. %-32s %-10s %-9s (score: %.2f)", i+1, nameStyle.Render(s.Place.String()),
			s.Place.Category, s.Source, s.Score)
	}
}

func (h *InputHandler) printPlaces(title string, records []places.PlaceRecord) {
	if len(records) == 0 {
		h.out.Warnf("No places in '%s'", title)
		return
	}
	h.out.Printf("%d places in '%s':", len(records), title)
	for i, p := range records {
		h.out.Printf("%2d. %-32s (priority: %2d, pop: %s)", i+1, nameStyle.Render(p.String()),
			p.SearchPriority, formatWithCommas(p.Population))
	}
}

func (h *InputHandler) printCandidates(q string, cs []autocorrect.Candidate) {
	if len(cs) == 0 {
		h.out.Warnf("No corrections for '%s'", q)
		return
	}
	for i, c := range cs {
		h.out.Printf("%2d. %-32s %-18s %.2f", i+1, nameStyle.Render(c.Corrected), c.Method, c.Confidence)
	}
}

// printStats prints counters sorted by name.
func (h *InputHandler) printStats(title string, stats map[string]int) {
	keys := make([]string, 0, len(stats))
	for k := range stats {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s=%s", k, formatWithCommas(stats[k]))
	}
	h.out.Printf("%s: %s", title, strings.Join(parts, " "))
}

// formatWithCommas formats an integer with comma separators
func formatWithCommas(n int) string {
	if n < 0 {
		return "-" + formatWithCommas(-n)
	}
	str := fmt.Sprintf("%d", n)
	if len(str) <= 3 {
		return str
	}
	var b strings.Builder
	for i, char := range str {
		if i > 0 && (len(str)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(char)
	}
	return b.String()
}
