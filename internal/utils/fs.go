package utils

import (
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/charmbracelet/log"
)

// DirCheckResult represents the result of dir checks
type DirCheckResult struct {
	Exists   bool
	Writable bool
	Error    error
}

// FileExists simply checks if a file exists
func FileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// EnsureDir creates directory if it doesn't exist
func EnsureDir(dirPath string) error {
	return os.MkdirAll(dirPath, 0755)
}

// SaveTOMLFile saves a struct to a TOML file
func SaveTOMLFile(data any, filePath string) error {
	file, err := os.Create(filePath)
	if err != nil {
		log.Errorf("Failed to create file: %v", err)
		return err
	}
	defer file.Close()
	return toml.NewEncoder(file).Encode(data)
}

// WriteFileAtomic writes data to a temp file next to path and renames it
// over path, so readers never observe a half-written file.
func WriteFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Chmod(tmpName, perm); err != nil {
		os.Remove(tmpName)
		return err
	}
	return os.Rename(tmpName, path)
}

// GetAbsolutePath returns the absolute path of a file
func GetAbsolutePath(path string) string {
	if path == "" {
		return "unknown"
	}
	if !filepath.IsAbs(path) {
		if absPath, err := filepath.Abs(path); err == nil {
			return absPath
		}
	}
	return path
}

// testWriteAccess tests if a directory can be written to
func testWriteAccess(dirPath string) bool {
	testFile := filepath.Join(dirPath, ".write_test")
	file, err := os.Create(testFile)
	if err != nil {
		log.Warnf("Cannot write to directory %s: %v", dirPath, err)
		return false
	}
	file.Close()
	os.Remove(testFile)
	return true
}

// GetExecutableDir returns the directory of the current executable
func GetExecutableDir() (string, error) {
	execPath, err := os.Executable()
	if err != nil {
		return "", err
	}
	return filepath.Dir(execPath), nil
}

// CheckDirStatus tests if a directory exists, can be created, and is writable
func CheckDirStatus(dirPath string) DirCheckResult {
	result := DirCheckResult{}
	if err := os.MkdirAll(dirPath, 0755); err != nil {
		result.Error = err
		log.Warnf("Cannot create directory %s: %v", dirPath, err)
		return result
	}
	result.Exists = true
	result.Writable = testWriteAccess(dirPath)
	return result
}
