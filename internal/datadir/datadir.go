package datadir

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/multierr"
)

const (
	// DefaultDirName is the default data directory name under $HOME.
	DefaultDirName = ".embedview"

	// EnvVar is the environment variable that overrides the data directory.
	EnvVar = "EMBEDVIEW_DATA_DIR"

	// ConfigFileName is the config file looked up inside ConfigDir.
	ConfigFileName = "config.yaml"

	configSubdir   = "config"
	sessionsSubdir = "sessions"

	sessionPrefix = "session-"
)

// DataDir provides a single source of truth for all data-directory paths.
// Use New to construct an instance, which resolves the root; call
// EnsureDirs to create the tree.
type DataDir struct {
	root string
}

// New returns a DataDir rooted at the resolved data directory.
//
// Resolution priority:
//  1. EMBEDVIEW_DATA_DIR environment variable
//  2. configValue argument (data_dir from the config file)
//  3. ~/.embedview/
func New(configValue string) (*DataDir, error) {
	root, err := resolveRoot(configValue)
	if err != nil {
		return nil, err
	}
	return &DataDir{root: root}, nil
}

// Root returns the base data directory path.
func (d *DataDir) Root() string { return d.root }

// ConfigDir returns {root}/config/.
func (d *DataDir) ConfigDir() string { return filepath.Join(d.root, configSubdir) }

// SessionsDir returns {root}/sessions/, the parent of every viewer
// session's scratch directory.
func (d *DataDir) SessionsDir() string { return filepath.Join(d.root, sessionsSubdir) }

// ConfigFilePath returns the default config file location.
func (d *DataDir) ConfigFilePath() string {
	return filepath.Join(d.ConfigDir(), ConfigFileName)
}

// EnsureDirs creates the root and all subdirectories with 0700 permissions.
func (d *DataDir) EnsureDirs() error {
	for _, dir := range []string{d.root, d.ConfigDir(), d.SessionsDir()} {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return nil
}

// NewSessionDir creates a fresh, uniquely named scratch directory under
// SessionsDir. The caller owns it and must remove it.
func (d *DataDir) NewSessionDir() (string, error) {
	if err := os.MkdirAll(d.SessionsDir(), 0700); err != nil {
		return "", fmt.Errorf("failed to create sessions directory: %w", err)
	}
	dir, err := os.MkdirTemp(d.SessionsDir(), sessionPrefix+"*")
	if err != nil {
		return "", fmt.Errorf("failed to create session directory: %w", err)
	}
	return dir, nil
}

// PruneSessions removes session directories last modified before
// olderThan ago. Those are left behind by processes that were killed.
// It returns the paths removed.
func (d *DataDir) PruneSessions(olderThan time.Duration) ([]string, error) {
	entries, err := os.ReadDir(d.SessionsDir())
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	cutoff := time.Now().Add(-olderThan)
	var removed []string
	var errs error
	for _, e := range entries {
		if !e.IsDir() || !strings.HasPrefix(e.Name(), sessionPrefix) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		if info.ModTime().After(cutoff) {
			continue
		}
		p := filepath.Join(d.SessionsDir(), e.Name())
		if err := os.RemoveAll(p); err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		removed = append(removed, p)
	}
	return removed, errs
}

// resolveRoot determines the root path without creating it.
func resolveRoot(configValue string) (string, error) {
	dir := os.Getenv(EnvVar)
	if dir == "" {
		dir = configValue
	}
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("cannot determine home directory: %w", err)
		}
		dir = filepath.Join(home, DefaultDirName)
	}
	return dir, nil
}
