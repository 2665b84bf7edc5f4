package conf

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// GetDefaultConfigPaths returns a list of default configuration paths for the
// current operating system.
func GetDefaultConfigPaths() ([]string, error) {
	exePath, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("error fetching executable path: %w", err)
	}
	exeDir := filepath.Dir(exePath)

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("error fetching user home directory: %w", err)
	}

	var configPaths []string
	switch runtime.GOOS {
	case "windows":
		configPaths = []string{
			exeDir,
			filepath.Join(homeDir, "AppData", "Roaming", "hoover"),
		}
	default:
		configPaths = []string{
			filepath.Join(homeDir, ".config", "hoover"),
			"/etc/hoover",
		}
	}

	return configPaths, nil
}

// ExpandPath expands $HOME, ~ and environment variables in a configured path.
func ExpandPath(path string) string {
	if strings.HasPrefix(path, "~/") || path == "~" {
		if home, err := os.UserHomeDir(); err == nil {
			path = filepath.Join(home, strings.TrimPrefix(path, "~"))
		}
	}
	expanded := os.ExpandEnv(path)
	return filepath.Clean(expanded)
}
