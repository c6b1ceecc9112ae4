// Copyright 2025 The PlaceServe Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

/*
Package main implements the PlaceServe city search CLI [DBG] application.

Note: This is a BETA release. APIs and functionality may rapidly change.

PlaceServe turns partial, misspelled or spoken city names into a ranked list
of place suggestions. Everything it answers comes from a curated set of
popular places (plus whatever has been learned from geocoding results), held
in Patricia tries and persisted between runs.

# Usage

Start an interactive session with default settings:

	placeserve

Enable debug mode and keep the cache in memory only:

	placeserve -d -store memory

Use a custom config file and show ten suggestions per query:

	placeserve -config ./placeserve.toml -limit 10

# Configuration

Runtime configuration is a TOML file created with defaults on first run:

	[search]
	default_limit = 8
	max_limit = 50
	debounce_short_ms = 250
	debounce_long_ms = 150
	correction_floor = 0.9

	[correct]
	prefix_min_len = 2
	edit_ratio = 0.3
	edit_floor = 0.6
	reject_floor = 0.5
	memo_size = 4096

	[cache]
	ttl_hours = 24
	lru_size = 50
	backend = "file"     # memory | file | redis
	path = ""            # defaults to the user cache dir
	redis_addr = "localhost:6379"

	[voice]
	timeout_seconds = 10

Broken files are recovered section by section; anything unreadable falls
back to the builtin defaults.

# Search Pipeline

Each query runs through the orchestrator, which composes the popular places
cache and the autocorrector:

	cache := popular.New(store)
	cache.Load(ctx)
	corrector := autocorrect.New(cache.Records())
	orchestrator := search.New(cache, corrector)
	list := orchestrator.QuerySuggestions("filadelfia", search.Options{Limit: 8})

Confident corrections have their results ranked first; weaker ones are only
reported as a hint. Spoken input goes through the voice adapter, whose final
transcript is normalized against known pronunciations before it is searched.

# Command Line Flags

	-config string
	    Path to a config file (default: user config dir)
	-d  Enable debug mode with detailed logging
	-limit int
	    Number of suggestions to return (default from config)
	-store string
	    Cache backend: memory, file or redis (default from config)
	-rebuild-config
	    Rewrite the default config file with builtin values and exit
	-version
	    Show current version
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bastiangx/placeserve/internal/cli"
	"github.com/bastiangx/placeserve/internal/logger"
	"github.com/bastiangx/placeserve/pkg/autocorrect"
	"github.com/bastiangx/placeserve/pkg/config"
	"github.com/bastiangx/placeserve/pkg/kvstore"
	"github.com/bastiangx/placeserve/pkg/popular"
	"github.com/bastiangx/placeserve/pkg/search"
	"github.com/bastiangx/placeserve/pkg/voice"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
)

const (
	Version = "0.1.0-beta"
	AppName = "placeserve"
	gh      = "https://github.com/bastiangx/placeserve"
)

// storeTimeout bounds opening the store and loading the snapshot.
const storeTimeout = 5 * time.Second

// sigContext returns a context cancelled on interrupt; a second signal exits.
func sigContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-c
		fmt.Fprintf(os.Stderr, "\nExiting...\n")
		cancel()
		<-c
		os.Exit(0)
	}()
	return ctx, cancel
}

// main wires the packages together and only manages the flow.
func main() {
	ctx, cancel := sigContext()
	defer cancel()

	showVersion := flag.Bool("version", false, "Show current version")
	debugMode := flag.Bool("d", false, "Toggle debug mode")
	configPath := flag.String("config", "", "Path to a config file")
	limit := flag.Int("limit", 0, "Number of suggestions to return (0 uses the config)")
	backend := flag.String("store", "", "Cache backend: memory, file or redis (empty uses the config)")
	rebuild := flag.Bool("rebuild-config", false, "Rewrite the default config file and exit")

	flag.Parse()

	if *showVersion {
		printVersion()
		os.Exit(0)
	}

	logger.Setup(*debugMode)

	if *rebuild {
		if err := config.RebuildConfigFile(); err != nil {
			log.Fatalf("Failed to rebuild config: %v", err)
		}
		log.Print("Config rebuilt", "path", config.GetActiveConfigPath(""))
		return
	}

	cfg, usedPath, err := config.LoadConfigWithPriority(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	log.Debugf("Using config file: (%s)", config.GetActiveConfigPath(usedPath))

	if *backend != "" {
		cfg.Cache.Backend = *backend
	}
	if *limit <= 0 {
		*limit = cfg.CLI.DefaultLimit
	}

	store := openStore(ctx, cfg.Cache)
	if store != nil {
		defer store.Close()
	}

	cache := popular.New(store,
		popular.WithTTL(cfg.Cache.TTL()),
		popular.WithLRUSize(cfg.Cache.LRUSize),
	)
	loadCtx, cancelLoad := context.WithTimeout(ctx, storeTimeout)
	restored := cache.Load(loadCtx)
	cancelLoad()
	log.Debug("Popular places ready", "restored", restored, "places", len(cache.Records()))

	corrector := autocorrect.New(cache.Records(),
		autocorrect.WithThresholds(cfg.Correct.Thresholds()),
		autocorrect.WithMemoSize(cfg.Correct.MemoSize),
	)
	orchestrator := search.New(cache, corrector,
		search.WithDefaultLimit(cfg.Search.DefaultLimit),
		search.WithMaxLimit(cfg.Search.MaxLimit),
		search.WithCorrectionFloor(cfg.Search.CorrectionFloor),
		search.WithDebounce(cfg.Search.DebounceShort(), cfg.Search.DebounceLong()),
	)

	log.SetReportTimestamp(false)
	handler := cli.NewInputHandler(cli.Deps{
		Search:       orchestrator,
		Cache:        cache,
		Corrector:    corrector,
		Normalizer:   voice.NewNormalizer(voice.DefaultPronunciations(), corrector.Names()...),
		VoiceTimeout: cfg.Voice.Timeout(),
	}, *limit)
	if err := handler.Start(ctx); err != nil {
		log.Fatalf("CLI error: %v", err)
	}
}

// openStore opens the configured backend. Failing that the cache runs
// without persistence.
func openStore(ctx context.Context, c config.CacheConfig) kvstore.Store {
	opts := c.StoreOptions()
	openCtx, cancel := context.WithTimeout(ctx, storeTimeout)
	defer cancel()

	store, err := kvstore.Open(openCtx, opts)
	if err != nil {
		log.Warnf("Failed to open %s store: %v. Running without persistence...", opts.Backend, err)
		return nil
	}
	log.Debug("Opened store", "backend", opts.Backend, "path", opts.Path)
	return store
}

func printVersion() {
	banner := log.NewWithOptions(os.Stderr, log.Options{
		ReportCaller:    false,
		ReportTimestamp: false,
		Prefix:          "",
	})

	styles := log.DefaultStyles()
	styles.Values["version"] = lipgloss.NewStyle().Bold(true).
		Foreground(lipgloss.AdaptiveColor{Light: "#575279", Dark: "#e0def4"})
	styles.Values["gh"] = lipgloss.NewStyle().Italic(true).
		Foreground(lipgloss.AdaptiveColor{Light: "#575279", Dark: "#e0def4"})
	banner.SetStyles(styles)

	banner.Print("")
	banner.Print("[ PlaceServe ] Finds the city you meant, typed or spoken")
	banner.Print("", "version", Version)
	banner.Print("")
	banner.Print("use -h or --help to see available options")
	banner.Print("Github Repo", "gh", gh)
}
