// Package cli handles cmd line input and suggestions for DBG and testing various features
package cli

import (
	"bufio"
	"context"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/bastiangx/placeserve/internal/logger"
	"github.com/bastiangx/placeserve/pkg/autocorrect"
	"github.com/bastiangx/placeserve/pkg/geocode"
	"github.com/bastiangx/placeserve/pkg/places"
	"github.com/bastiangx/placeserve/pkg/popular"
	"github.com/bastiangx/placeserve/pkg/search"
	"github.com/bastiangx/placeserve/pkg/voice"
	"github.com/charmbracelet/log"
)

// spokenConfidence is what the scripted recognizer reports for :voice.
const spokenConfidence = 0.9

// Deps are the components the handler drives.
type Deps struct {
	Search       *search.Orchestrator
	Cache        *popular.Cache
	Corrector    *autocorrect.Autocorrector
	Normalizer   *voice.Normalizer
	VoiceTimeout time.Duration
}

// InputHandler reads queries and commands, one per line, and prints the
// orchestrator's suggestions. Lines starting with ':' are commands; see
// the help text.
type InputHandler struct {
	Deps
	limit        int
	location     *places.Coordinates
	requestCount int

	in  io.Reader
	out *log.Logger
}

// NewInputHandler handles initialization of the InputHandler with basic parameters
func NewInputHandler(deps Deps, limit int) *InputHandler {
	return &InputHandler{
		Deps:  deps,
		limit: limit,
		in:    os.Stdin,
		out:   logger.New(""),
	}
}

// SetIO redirects input and output, mostly for tests.
func (h *InputHandler) SetIO(in io.Reader, out io.Writer) {
	h.in = in
	h.out = logger.NewTo(out, "")
}

// Start begins the interface loop. It returns nil at end of input or on :q.
func (h *InputHandler) Start(ctx context.Context) error {
	h.out.Print("PlaceServe CLI [BETA]")
	h.out.Print("type a city and press Enter to see suggestions, :help for commands (Ctrl+C to exit):")

	scanner := bufio.NewScanner(h.in)
	for {
		h.out.Print("> ")
		if !scanner.Scan() {
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == ":q" || line == ":quit" {
			return nil
		}
		h.handleInput(ctx, line)
	}
}

// handleInput runs one line. An empty line shows the instant suggestions.
func (h *InputHandler) handleInput(ctx context.Context, line string) {
	h.requestCount++
	if !strings.HasPrefix(line, ":") {
		h.query(line)
		return
	}

	cmd, arg, _ := strings.Cut(line[1:], " ")
	arg = strings.TrimSpace(arg)
	switch cmd {
	case "help", "h":
		h.printHelp()
	case "fix":
		h.fix(arg)
	case "voice", "v":
		h.voice(ctx, arg)
	case "cat":
		h.category(arg)
	case "near":
		h.near(arg)
	case "import":
		h.importFile(ctx, arg)
	case "stats":
		h.stats()
	case "reset":
		h.reset(ctx)
	default:
		h.out.Errorf("Unknown command: :%s (try :help)", cmd)
	}
}

func (h *InputHandler) query(q string) {
	start := time.Now()
	l := h.Search.QuerySuggestions(q, search.Options{Limit: h.limit, UserLocation: h.location})
	log.Debugf("Took [ %v ] for query '%s'", time.Since(start), q)
	h.printList(q, l)
}

func (h *InputHandler) fix(q string) {
	if q == "" {
		h.out.Error("Usage: :fix <text>")
		return
	}
	h.printCandidates(q, h.Corrector.Suggest(q, h.limit))
}

// voice replays spoken text through a scripted recognizer and a fresh
// adapter, then searches the normalized final transcript.
func (h *InputHandler) voice(ctx context.Context, spoken string) {
	if spoken == "" {
		h.out.Error("Usage: :voice <spoken text>")
		return
	}
	ended := make(chan voice.Session, 1)
	adapter := voice.NewAdapter(&voice.Script{Text: spoken, Confidence: spokenConfidence},
		voice.WithNormalizer(h.Normalizer), voice.WithTimeout(h.VoiceTimeout))
	adapter.OnChange(func(s voice.Session) {
		log.Debugf("voice: %s %q", s.State, s.Transcript)
		if s.State == voice.Result || s.State == voice.Error {
			ended <- s
		}
	})

	if err := adapter.Start(ctx); err != nil {
		h.out.Errorf("Voice input failed: %v", err)
		return
	}
	select {
	case s := <-ended:
		if s.State == voice.Error {
			h.out.Errorf("Voice input failed: %s", s.Reason.Message())
			return
		}
		h.out.Printf("Heard '%s' (%.0f%%)", *s.FinalTranscript, s.Confidence*100)
		h.printList(*s.FinalTranscript, h.Search.FromVoice(s, search.Options{Limit: h.limit, UserLocation: h.location}))
	case <-ctx.Done():
		adapter.Cancel()
	}
}

func (h *InputHandler) category(arg string) {
	cat, err := places.ParseCategory(arg)
	if err != nil {
		h.out.Errorf("%v (one of %v)", err, places.Categories)
		return
	}
	records := h.Cache.ByCategory(cat)
	if len(records) > h.limit {
		records = records[:h.limit]
	}
	h.printPlaces(string(cat), records)
}

// near sets the user location from "lat lon", or clears it with "off".
func (h *InputHandler) near(arg string) {
	if arg == "off" || arg == "" {
		h.location = nil
		h.out.Print("Location cleared")
		return
	}
	fields := strings.Fields(strings.ReplaceAll(arg, ",", " "))
	if len(fields) != 2 {
		h.out.Error("Usage: :near <lat> <lon> | :near off")
		return
	}
	lat, errLat := strconv.ParseFloat(fields[0], 64)
	lon, errLon := strconv.ParseFloat(fields[1], 64)
	loc := places.Coordinates{Lat: lat, Lon: lon}
	if errLat != nil || errLon != nil || !loc.Valid() {
		h.out.Errorf("Invalid coordinates: %s", arg)
		return
	}
	h.location = &loc
	h.out.Printf("Ranking near %.4f, %.4f (cell %s)", lat, lon, loc.Geohash(5))
}

// importFile learns places from a saved geocoding response:
// ":import openmeteo|nominatim|openweather <file>".
func (h *InputHandler) importFile(ctx context.Context, arg string) {
	provider, path, ok := strings.Cut(arg, " ")
	parse, known := parsers[provider]
	if !ok || !known {
		h.out.Error("Usage: :import openmeteo|nominatim|openweather <file>")
		return
	}
	body, err := os.ReadFile(strings.TrimSpace(path))
	if err != nil {
		h.out.Errorf("Failed to read %s: %v", path, err)
		return
	}
	records, err := parse(body)
	if err != nil {
		h.out.Errorf("Failed to parse %s response: %v", provider, err)
		return
	}
	added := h.Search.Learn(ctx, records)
	h.out.Printf("Learned %d of %d places", added, len(records))
}

var parsers = map[string]func([]byte) ([]places.PlaceRecord, error){
	"openmeteo":   geocode.ParseOpenMeteo,
	"nominatim":   geocode.ParseNominatim,
	"openweather": geocode.ParseOpenWeather,
}

func (h *InputHandler) stats() {
	h.printStats("cache", h.Cache.Stats())
	h.printStats("autocorrect", h.Corrector.Stats())
	h.out.Printf("requests: %d", h.requestCount)
}

func (h *InputHandler) reset(ctx context.Context) {
	h.Search.Invalidate(ctx)
	h.out.Print("Caches cleared")
}

func (h *InputHandler) printHelp() {
	h.out.Printf(`Commands:
  <text>                 search places (empty line: popular places)
  :fix <text>            show autocorrect candidates
  :voice <spoken text>   run text through the voice pipeline, then search
  :cat <category>        list curated places in a category
  :near <lat> <lon>      rank by distance (:near off to clear)
  :import <provider> <file>  learn places from a saved geocoding response
  :stats                 cache and autocorrect counters
  :reset                 forget learned places and clear the caches
  :q                     quit
limit: %d`, h.limit)
}
