// Package storage persists ponder outcomes, aggregate ponder statistics and
// user preferences in BadgerDB.
package storage

import (
	"os"
	"path/filepath"
	"runtime"
)

const appName = "chessponder"

// GetDataDir returns the platform-specific data directory for the application.
// - macOS: ~/Library/Application Support/chessponder/
// - Linux: ~/.local/share/chessponder/
// - Windows: %APPDATA%/chessponder/
func GetDataDir() (string, error) {
	var baseDir string

	switch runtime.GOOS {
	case "darwin":
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		baseDir = filepath.Join(homeDir, "Library", "Application Support")

	case "windows":
		baseDir = os.Getenv("APPDATA")
		if baseDir == "" {
			homeDir, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			baseDir = filepath.Join(homeDir, "AppData", "Roaming")
		}

	default:
		// Linux and other Unix-like: XDG_DATA_HOME or ~/.local/share/
		baseDir = os.Getenv("XDG_DATA_HOME")
		if baseDir == "" {
			homeDir, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			baseDir = filepath.Join(homeDir, ".local", "share")
		}
	}

	dataDir := filepath.Join(baseDir, appName)
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return "", err
	}
	return dataDir, nil
}

// GetDatabaseDir returns the BadgerDB directory under root, or under the
// platform data directory when root is empty.
func GetDatabaseDir(root string) (string, error) {
	if root == "" {
		var err error
		if root, err = GetDataDir(); err != nil {
			return "", err
		}
	}
	dbDir := filepath.Join(root, "db")
	if err := os.MkdirAll(dbDir, 0755); err != nil {
		return "", err
	}
	return dbDir, nil
}
