package datadir

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

const (
	// EnvFileEnvVar allows overriding the .env file path entirely.
	EnvFileEnvVar = "EMBEDVIEW_ENV_FILE"
)

// EnvPair is one KEY=VALUE assignment from an env file.
type EnvPair struct {
	Key   string
	Value string
}

// ParseEnv reads KEY=VALUE lines. Blank lines, '#' comments and lines
// without '=' are skipped; matching single or double quotes around a value
// are stripped. Pairs are returned in file order.
func ParseEnv(r io.Reader) ([]EnvPair, error) {
	var pairs []EnvPair
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(strings.TrimPrefix(key, "export "))
		value = strings.TrimSpace(value)

		if len(value) >= 2 {
			if (value[0] == '"' && value[len(value)-1] == '"') ||
				(value[0] == '\'' && value[len(value)-1] == '\'') {
				value = value[1 : len(value)-1]
			}
		}
		if key == "" {
			continue
		}
		pairs = append(pairs, EnvPair{Key: key, Value: value})
	}
	return pairs, scanner.Err()
}

// ApplyEnvFile loads path into the process environment without overriding
// variables that are already set. Keys present in seen are skipped and
// every key considered is added to it; seen may be nil. A missing file is
// not an error.
func ApplyEnvFile(path string, seen map[string]bool) error {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	defer f.Close()

	pairs, err := ParseEnv(f)
	if err != nil {
		return err
	}
	for _, p := range pairs {
		if seen != nil && seen[p.Key] {
			continue
		}
		if seen != nil {
			seen[p.Key] = true
		}
		if _, exists := os.LookupEnv(p.Key); exists {
			continue
		}
		if err := os.Setenv(p.Key, p.Value); err != nil {
			return err
		}
	}
	return nil
}

// LoadEnv loads .env files from standard locations in priority order.
// Later files do NOT override values set by earlier files (first-write-wins),
// and existing environment variables are never overridden.
//
// Search order:
//  1. EMBEDVIEW_ENV_FILE (if set, only that file is loaded)
//  2. {datadir}/.env
//  3. .env in the current working directory
func LoadEnv(dataRoot string) error {
	seen := make(map[string]bool)
	for _, p := range findEnvPaths(dataRoot) {
		if err := ApplyEnvFile(p, seen); err != nil {
			return fmt.Errorf("failed to load %s: %w", p, err)
		}
	}
	return nil
}

// FindEnvFiles returns the .env files LoadEnv would read, in order.
// Files that don't exist on disk are excluded.
func FindEnvFiles(dataRoot string) []string {
	var found []string
	for _, p := range findEnvPaths(dataRoot) {
		if _, err := os.Stat(p); err == nil {
			found = append(found, p)
		}
	}
	return found
}

func findEnvPaths(dataRoot string) []string {
	if override := os.Getenv(EnvFileEnvVar); override != "" {
		return []string{override}
	}

	var paths []string
	if dataRoot != "" {
		paths = append(paths, filepath.Join(dataRoot, ".env"))
	}
	if cwd, err := os.Getwd(); err == nil {
		paths = append(paths, filepath.Join(cwd, ".env"))
	}
	return dedupPaths(paths)
}

// dedupPaths removes duplicate paths (after cleaning) while preserving order.
func dedupPaths(paths []string) []string {
	seen := make(map[string]bool, len(paths))
	var out []string
	for _, p := range paths {
		clean := filepath.Clean(p)
		if seen[clean] {
			continue
		}
		seen[clean] = true
		out = append(out, p)
	}
	return out
}
