package utils

import (
	"os"
	"path/filepath"
	"runtime"

	"github.com/charmbracelet/log"
)

// AppDirName is the directory name used under the platform config/cache roots.
const AppDirName = "placeserve"

// PathResolver finds the config and cache locations for the binary
type PathResolver struct {
	executableDir string
	homeDir       string
	configDir     string
	cacheDir      string
}

// NewPathResolver creates a resolver rooted at the running executable
func NewPathResolver() (*PathResolver, error) {
	execPath, err := os.Executable()
	if err != nil {
		return nil, err
	}
	execPath, err = filepath.EvalSymlinks(execPath)
	if err != nil {
		return nil, err
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		log.Warnf("Could not determine home directory: %v", err)
		homeDir = os.TempDir()
	}

	pr := &PathResolver{
		executableDir: filepath.Dir(execPath),
		homeDir:       homeDir,
		configDir:     getConfigDir(homeDir),
		cacheDir:      getCacheDir(homeDir),
	}
	log.Debugf("PathResolver initialized: execDir=%s, configDir=%s, cacheDir=%s",
		pr.executableDir, pr.configDir, pr.cacheDir)
	return pr, nil
}

// getConfigDir returns the appropriate config directory for the platform
func getConfigDir(homeDir string) string {
	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(homeDir, ".config", AppDirName)
	case "linux":
		if configHome := os.Getenv("XDG_CONFIG_HOME"); configHome != "" {
			return filepath.Join(configHome, AppDirName)
		}
		return filepath.Join(homeDir, ".config", AppDirName)
	case "windows":
		if appData := os.Getenv("APPDATA"); appData != "" {
			return filepath.Join(appData, AppDirName)
		}
		return filepath.Join(homeDir, "AppData", "Roaming", AppDirName)
	default:
		return filepath.Join(homeDir, "."+AppDirName)
	}
}

// getCacheDir returns where the persisted place cache lives
func getCacheDir(homeDir string) string {
	if cacheHome := os.Getenv("XDG_CACHE_HOME"); cacheHome != "" {
		return filepath.Join(cacheHome, AppDirName)
	}
	if dir, err := os.UserCacheDir(); err == nil {
		return filepath.Join(dir, AppDirName)
	}
	return filepath.Join(homeDir, ".cache", AppDirName)
}

// GetConfigPath returns the full path for a config file, falling back to
// other writable locations when the config dir is read-only.
func (pr *PathResolver) GetConfigPath(filename string) (string, error) {
	return pr.firstWritable(filename, pr.configDir,
		filepath.Join(pr.homeDir, "."+AppDirName),
		filepath.Join(os.TempDir(), AppDirName),
		pr.executableDir,
	)
}

// GetCachePath returns the full path for a cache file
func (pr *PathResolver) GetCachePath(filename string) (string, error) {
	return pr.firstWritable(filename, pr.cacheDir,
		filepath.Join(os.TempDir(), AppDirName),
	)
}

func (pr *PathResolver) firstWritable(filename string, dirs ...string) (string, error) {
	for i, dir := range dirs {
		if result := CheckDirStatus(dir); result.Writable {
			path := filepath.Join(dir, filename)
			if i > 0 {
				log.Warnf("Using fallback location: %s", path)
			}
			return path, nil
		}
	}
	tempPath := filepath.Join(os.TempDir(), filename)
	log.Warnf("Using temporary file: %s", tempPath)
	return tempPath, nil
}

// GetConfigDir returns the config directory
func (pr *PathResolver) GetConfigDir() string {
	return pr.configDir
}

// GetCacheDir returns the cache directory
func (pr *PathResolver) GetCacheDir() string {
	return pr.cacheDir
}
