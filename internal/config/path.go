package config

import (
	"os"
	"path/filepath"
	"runtime"
)

// AppName names the per-user data directory.
const AppName = "taskqueue"

// DefaultDataDir returns where the snapshot lives when no data dir is
// configured. XDG_DATA_HOME wins everywhere; otherwise the platform's user
// data location is used, and ./data when there is no home directory.
func DefaultDataDir() string {
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, AppName)
	}
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return "./data"
	}
	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(home, "Library", "Application Support", AppName)
	case "windows":
		if local := os.Getenv("LOCALAPPDATA"); local != "" {
			return filepath.Join(local, AppName)
		}
		return filepath.Join(home, "AppData", "Local", AppName)
	}
	share := filepath.Join(home, ".local", "share")
	if isDir(share) {
		return filepath.Join(share, AppName)
	}
	return filepath.Join(home, "."+AppName)
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
