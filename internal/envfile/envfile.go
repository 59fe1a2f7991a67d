// Package envfile reads layered .env files into property maps without touching the process environment
package envfile

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/joho/godotenv"
)

// LocalOverrideFile is the developer-only layer that CI runs skip
const LocalOverrideFile = "99-local.env"

// Sentinel errors for ReadDir
var (
	// ErrNotDirectory is returned when the provided path is not a directory
	ErrNotDirectory = errors.New("path is not a directory")

	// ErrNoEnvFiles is returned when no .env files are found in the directory
	ErrNoEnvFiles = errors.New("no .env files found")
)

// Read parses a single .env file into a map.
func Read(filename string) (map[string]string, error) {
	values, err := godotenv.Read(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", filename, err)
	}
	return values, nil
}

// ReadDir reads all *.env files from dirPath in lexicographic sort order.
// Each file overrides keys set by previous files (last wins).
// If skipLocal is true, 99-local.env is skipped (CI environments).
func ReadDir(dirPath string, skipLocal bool) (map[string]string, error) {
	info, err := os.Stat(dirPath)
	if err != nil {
		return nil, fmt.Errorf("env directory not found: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s", ErrNotDirectory, dirPath)
	}

	matches, err := filepath.Glob(filepath.Join(dirPath, "*.env"))
	if err != nil {
		return nil, fmt.Errorf("failed to glob env files in %s: %w", dirPath, err)
	}

	sort.Strings(matches)

	merged := make(map[string]string)
	loaded := 0
	for _, envFile := range matches {
		if skipLocal && filepath.Base(envFile) == LocalOverrideFile {
			continue
		}
		values, err := Read(envFile)
		if err != nil {
			return nil, err
		}
		for key, value := range values {
			merged[key] = value
		}
		loaded++
	}

	if loaded == 0 {
		return nil, fmt.Errorf("%w in %s", ErrNoEnvFiles, dirPath)
	}

	return merged, nil
}
