package logging

import (
	"fmt"
	"os"
	"path/filepath"
)

// DefaultLogDir returns ~/.searchkit/logs, or a temp directory without a
// home directory.
func DefaultLogDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".searchkit", "logs")
	}
	return filepath.Join(home, ".searchkit", "logs")
}

// DefaultLogPath returns the CLI log file.
func DefaultLogPath() string {
	return filepath.Join(DefaultLogDir(), "searchkit.log")
}

// FindLogFile returns explicit if it exists, else the default log file.
func FindLogFile(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("log file not found: %s", explicit)
		}
		return explicit, nil
	}
	path := DefaultLogPath()
	if _, err := os.Stat(path); err != nil {
		return "", fmt.Errorf("no log file at %s; run a command with --debug first", path)
	}
	return path, nil
}
