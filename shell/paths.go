package shell

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
)

// DataDirEnv overrides the per-user config directory (useful for testing and portable installs)
const DataDirEnv = "BUDGETING_DATA_DIR"

// AppConfigDir returns the OS-appropriate config directory for the app identified by identifier.
// The directory is created if it doesn't exist.
func AppConfigDir(identifier string) (string, error) {
	if customDir := os.Getenv(DataDirEnv); customDir != "" {
		if err := os.MkdirAll(customDir, 0755); err != nil {
			return "", fmt.Errorf("failed to create custom data directory: %w", err)
		}
		return customDir, nil
	}

	if identifier == "" {
		return "", fmt.Errorf("app identifier is empty")
	}

	var baseDir string

	switch runtime.GOOS {
	case "darwin":
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		baseDir = filepath.Join(homeDir, "Library", "Application Support", identifier)
	case "windows":
		baseDir = filepath.Join(os.Getenv("APPDATA"), identifier)
	default: // Linux and others
		configDir := os.Getenv("XDG_CONFIG_HOME")
		if configDir == "" {
			homeDir, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			configDir = filepath.Join(homeDir, ".config")
		}
		baseDir = filepath.Join(configDir, identifier)
	}

	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create data directory: %w", err)
	}

	return baseDir, nil
}
