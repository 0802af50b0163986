package store

import (
	"os"
	"path/filepath"
	"runtime"

	"taskwithme/internal/apperr"
)

// appDirName namespaces the data directory, matching the documents this tool
// has always written.
const appDirName = "task-with-me"

// DefaultDir resolves the per-user local application-data directory:
// %LocalAppData% on Windows, ~/Library/Application Support on macOS, and
// $XDG_DATA_HOME (or ~/.local/share) elsewhere. TASKWITHME_DATA_DIR
// overrides everything, which the tests rely on.
func DefaultDir() (string, error) {
	if v := os.Getenv("TASKWITHME_DATA_DIR"); v != "" {
		return v, nil
	}

	switch runtime.GOOS {
	case "windows":
		if v := os.Getenv("LocalAppData"); v != "" {
			return filepath.Join(v, appDirName), nil
		}
		home, err := os.UserHomeDir()
		if err != nil {
			return "", apperr.Configf("cannot determine data directory: %v", err)
		}
		return filepath.Join(home, "AppData", "Local", appDirName), nil
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", apperr.Configf("cannot determine data directory: %v", err)
		}
		return filepath.Join(home, "Library", "Application Support", appDirName), nil
	default:
		if v := os.Getenv("XDG_DATA_HOME"); v != "" {
			return filepath.Join(v, appDirName), nil
		}
		home, err := os.UserHomeDir()
		if err != nil {
			return "", apperr.Configf("cannot determine data directory: %v", err)
		}
		return filepath.Join(home, ".local", "share", appDirName), nil
	}
}
