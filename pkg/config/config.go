/*
Package config manages TOML config for PlaceServe.
*/
package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bastiangx/placeserve/internal/utils"
	"github.com/bastiangx/placeserve/pkg/autocorrect"
	"github.com/bastiangx/placeserve/pkg/kvstore"
	"github.com/charmbracelet/log"
)

// CacheFileName is the file-backed store's default name inside the cache dir.
const CacheFileName = "places.msgpack"

// Config holds the entire config structure
type Config struct {
	Search  SearchConfig  `toml:"search"`
	Correct CorrectConfig `toml:"correct"`
	Cache   CacheConfig   `toml:"cache"`
	Voice   VoiceConfig   `toml:"voice"`
	CLI     CliConfig     `toml:"cli"`
}

// SearchConfig has orchestrator options.
type SearchConfig struct {
	DefaultLimit    int     `toml:"default_limit"`
	MaxLimit        int     `toml:"max_limit"`
	DebounceShortMs int     `toml:"debounce_short_ms"`
	DebounceLongMs  int     `toml:"debounce_long_ms"`
	CorrectionFloor float64 `toml:"correction_floor"`
}

// CorrectConfig holds autocorrect thresholds.
type CorrectConfig struct {
	PrefixMinLen int     `toml:"prefix_min_len"`
	EditRatio    float64 `toml:"edit_ratio"`
	EditFloor    float64 `toml:"edit_floor"`
	RejectFloor  float64 `toml:"reject_floor"`
	MemoSize     int     `toml:"memo_size"`
}

// CacheConfig holds popular places cache and storage options.
type CacheConfig struct {
	TTLHours      int    `toml:"ttl_hours"`
	LRUSize       int    `toml:"lru_size"`
	Backend       string `toml:"backend"`
	Path          string `toml:"path"`
	RedisAddr     string `toml:"redis_addr"`
	RedisPassword string `toml:"redis_password"`
	RedisDB       int    `toml:"redis_db"`
}

// VoiceConfig holds voice input options.
type VoiceConfig struct {
	TimeoutSeconds int `toml:"timeout_seconds"`
}

// CliConfig holds cli interface options.
type CliConfig struct {
	DefaultLimit int `toml:"default_limit"`
}

// GetConfigDir returns the config directory as resolved by
// utils.PathResolver, or the executable's dir when that fails.
func GetConfigDir() (string, error) {
	pr, err := utils.NewPathResolver()
	if err != nil {
		log.Errorf("Failed to resolve paths: %v", err)
		return utils.GetExecutableDir()
	}
	return pr.GetConfigDir(), nil
}

// GetDefaultConfigPath returns the default path for config.toml
func GetDefaultConfigPath() (string, error) {
	pr, err := utils.NewPathResolver()
	if err != nil {
		return "", err
	}
	return pr.GetConfigPath("config.toml")
}

// LoadConfigWithPriority loads config with priority:
// 1. Custom path from --config flag
// 2. Default path: [UserConfigDir]/placeserve/config.toml
// 3. Builtin defaults
func LoadConfigWithPriority(customConfigPath string) (*Config, string, error) {
	if customConfigPath != "" {
		if _, statErr := os.Stat(customConfigPath); statErr == nil {
			config, err := LoadConfig(customConfigPath)
			if err != nil {
				log.Warnf("Failed to load custom config from %s: %v. Trying default path...", customConfigPath, err)
			} else {
				log.Debugf("Loaded config from custom path: %s", customConfigPath)
				return config, customConfigPath, nil
			}
		} else {
			log.Warnf("Custom config file not found at %s: %v. Trying default path...", customConfigPath, statErr)
		}
	}
	defaultPath, err := GetDefaultConfigPath()
	if err != nil {
		log.Warnf("Failed to determine default config path: %v. Using built-in defaults...", err)
		return DefaultConfig(), "", nil
	}

	config, err := InitConfig(defaultPath)
	if err != nil {
		log.Warnf("Failed to load/create config at default path %s: %v. Using builtin defaults...", defaultPath, err)
		return DefaultConfig(), "", nil
	}
	log.Debugf("Loaded config from default path: %s", defaultPath)
	return config, defaultPath, nil
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() *Config {
	t := autocorrect.DefaultThresholds()
	return &Config{
		Search: SearchConfig{
			DefaultLimit:    8,
			MaxLimit:        50,
			DebounceShortMs: 250,
			DebounceLongMs:  150,
			CorrectionFloor: 0.90,
		},
		Correct: CorrectConfig{
			PrefixMinLen: t.PrefixMinLen,
			EditRatio:    t.EditRatio,
			EditFloor:    t.EditFloor,
			RejectFloor:  t.RejectFloor,
			MemoSize:     autocorrect.DefaultMemoSize,
		},
		Cache: CacheConfig{
			TTLHours:  24,
			LRUSize:   50,
			Backend:   kvstore.BackendFile,
			RedisAddr: "localhost:6379",
		},
		Voice: VoiceConfig{
			TimeoutSeconds: 10,
		},
		CLI: CliConfig{
			DefaultLimit: 8,
		},
	}
}

// InitConfig loads config from file or creates default if missing
func InitConfig(configPath string) (*Config, error) {
	configDir := filepath.Dir(configPath)

	if err := utils.EnsureDir(configDir); err != nil {
		log.Warnf("Failed to create config directory %s: %v. Using built-in defaults...", configDir, err)
		return DefaultConfig(), nil
	}

	if !utils.FileExists(configPath) {
		config := DefaultConfig()
		if err := SaveConfig(config, configPath); err != nil {
			log.Warnf("Failed to create default config file at %s: %v. Using built-in defaults...", configPath, err)
			return DefaultConfig(), nil
		}
		log.Debugf("Created default config file at: %s", configPath)
		return config, nil
	}

	config, err := LoadConfig(configPath)
	if err != nil {
		log.Warnf("Failed to load config from %s: %v. Using built-in defaults...", configPath, err)
		return DefaultConfig(), nil
	}
	return config, nil
}

// LoadConfig loads from a TOML file
func LoadConfig(configPath string) (*Config, error) {
	config := DefaultConfig()

	if err := utils.LoadTOMLFile(configPath, config); err != nil {
		return tryPartialParse(configPath)
	}
	return config, nil
}

// tryPartialParse keeps whatever sections of a broken file still decode
func tryPartialParse(configPath string) (*Config, error) {
	config := DefaultConfig()

	tempConfig, err := utils.ParseTOMLWithRecovery(configPath)
	if err != nil {
		log.Warnf("Could not parse any valid configuration from %s: %v. Using all defaults.", configPath, err)
		return config, nil
	}

	if section, ok := utils.ExtractSection(tempConfig, "search"); ok {
		extractSearchConfig(section, &config.Search)
	}
	if section, ok := utils.ExtractSection(tempConfig, "correct"); ok {
		extractCorrectConfig(section, &config.Correct)
	}
	if section, ok := utils.ExtractSection(tempConfig, "cache"); ok {
		extractCacheConfig(section, &config.Cache)
	}
	if section, ok := utils.ExtractSection(tempConfig, "voice"); ok {
		if val, ok := utils.ExtractInt64(section, "timeout_seconds"); ok {
			config.Voice.TimeoutSeconds = val
		}
	}
	if section, ok := utils.ExtractSection(tempConfig, "cli"); ok {
		if val, ok := utils.ExtractInt64(section, "default_limit"); ok {
			config.CLI.DefaultLimit = val
		}
	}
	return config, nil
}

func extractSearchConfig(data map[string]any, search *SearchConfig) {
	if val, ok := utils.ExtractInt64(data, "default_limit"); ok {
		search.DefaultLimit = val
	}
	if val, ok := utils.ExtractInt64(data, "max_limit"); ok {
		search.MaxLimit = val
	}
	if val, ok := utils.ExtractInt64(data, "debounce_short_ms"); ok {
		search.DebounceShortMs = val
	}
	if val, ok := utils.ExtractInt64(data, "debounce_long_ms"); ok {
		search.DebounceLongMs = val
	}
	if val, ok := utils.ExtractFloat64(data, "correction_floor"); ok {
		search.CorrectionFloor = val
	}
}

func extractCorrectConfig(data map[string]any, correct *CorrectConfig) {
	if val, ok := utils.ExtractInt64(data, "prefix_min_len"); ok {
		correct.PrefixMinLen = val
	}
	if val, ok := utils.ExtractFloat64(data, "edit_ratio"); ok {
		correct.EditRatio = val
	}
	if val, ok := utils.ExtractFloat64(data, "edit_floor"); ok {
		correct.EditFloor = val
	}
	if val, ok := utils.ExtractFloat64(data, "reject_floor"); ok {
		correct.RejectFloor = val
	}
	if val, ok := utils.ExtractInt64(data, "memo_size"); ok {
		correct.MemoSize = val
	}
}

func extractCacheConfig(data map[string]any, cache *CacheConfig) {
	if val, ok := utils.ExtractInt64(data, "ttl_hours"); ok {
		cache.TTLHours = val
	}
	if val, ok := utils.ExtractInt64(data, "lru_size"); ok {
		cache.LRUSize = val
	}
	if val, ok := utils.ExtractString(data, "backend"); ok {
		cache.Backend = val
	}
	if val, ok := utils.ExtractString(data, "path"); ok {
		cache.Path = val
	}
	if val, ok := utils.ExtractString(data, "redis_addr"); ok {
		cache.RedisAddr = val
	}
	if val, ok := utils.ExtractString(data, "redis_password"); ok {
		cache.RedisPassword = val
	}
	if val, ok := utils.ExtractInt64(data, "redis_db"); ok {
		cache.RedisDB = val
	}
}

// RebuildConfigFile force creates a new config.toml at default
func RebuildConfigFile() error {
	defaultPath, err := GetDefaultConfigPath()
	if err != nil {
		return err
	}
	if err := utils.EnsureDir(filepath.Dir(defaultPath)); err != nil {
		return err
	}
	return utils.SaveTOMLFile(DefaultConfig(), defaultPath)
}

// GetActiveConfigPath returns the absolute path of loaded config file
func GetActiveConfigPath(configPath string) string {
	if configPath == "" {
		if defaultPath, err := GetDefaultConfigPath(); err == nil {
			return defaultPath
		}
		return "unknown"
	}
	return utils.GetAbsolutePath(configPath)
}

// SaveConfig saves into a TOML file
func SaveConfig(config *Config, configPath string) error {
	return utils.SaveTOMLFile(config, configPath)
}

// Update changes the cache backend and the CLI limit, then saves to file
func (c *Config) Update(configPath string, backend *string, limit *int) error {
	if backend != nil {
		c.Cache.Backend = *backend
	}
	if limit != nil {
		c.CLI.DefaultLimit = *limit
	}
	return SaveConfig(c, configPath)
}

// Thresholds returns the autocorrect bands with the configured overrides.
// Non-positive values keep the stock band.
func (c CorrectConfig) Thresholds() autocorrect.Thresholds {
	t := autocorrect.DefaultThresholds()
	if c.PrefixMinLen > 0 {
		t.PrefixMinLen = c.PrefixMinLen
	}
	if c.EditRatio > 0 {
		t.EditRatio = c.EditRatio
	}
	if c.EditFloor > 0 && c.EditFloor < t.EditCeiling {
		t.EditFloor = c.EditFloor
	}
	if c.RejectFloor > 0 {
		t.RejectFloor = c.RejectFloor
	}
	return t
}

// TTL is the snapshot and result lifetime.
func (c CacheConfig) TTL() time.Duration {
	return time.Duration(c.TTLHours) * time.Hour
}

// StoreOptions resolves the kvstore backend. An empty file path falls back
// to CacheFileName in the user cache dir.
func (c CacheConfig) StoreOptions() kvstore.Options {
	opts := kvstore.Options{
		Backend: strings.ToLower(strings.TrimSpace(c.Backend)),
		Path:    c.Path,
		Redis: kvstore.RedisOptions{
			Addr:     c.RedisAddr,
			Password: c.RedisPassword,
			DB:       c.RedisDB,
		},
	}
	if opts.Backend == kvstore.BackendFile && opts.Path == "" {
		if pr, err := utils.NewPathResolver(); err == nil {
			opts.Path, _ = pr.GetCachePath(CacheFileName)
		} else {
			log.Warnf("Failed to resolve cache dir: %v", err)
			opts.Path = filepath.Join(os.TempDir(), utils.AppDirName, CacheFileName)
		}
	}
	return opts
}

// DebounceShort is the wait before querying one or two characters.
func (s SearchConfig) DebounceShort() time.Duration {
	return time.Duration(s.DebounceShortMs) * time.Millisecond
}

// DebounceLong is the wait before querying three characters or more.
func (s SearchConfig) DebounceLong() time.Duration {
	return time.Duration(s.DebounceLongMs) * time.Millisecond
}

// Timeout is the voice session limit.
func (v VoiceConfig) Timeout() time.Duration {
	return time.Duration(v.TimeoutSeconds) * time.Second
}
