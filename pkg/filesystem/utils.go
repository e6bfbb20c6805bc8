package filesystem

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// AppDirName is the per-user directory holding the database and logs.
const AppDirName = ".registry-preview"

// Common file system errors
var (
	ErrDirNotFound = errors.New("directory not found")
)

// DefaultDataPath returns filename inside the per-user application directory,
// falling back to the working directory when no home directory is available.
func DefaultDataPath(filename string) string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return filename
	}
	return filepath.Join(home, AppDirName, filename)
}

// EnsureDirectoryExists creates the directory for the given file path if it doesn't exist
func EnsureDirectoryExists(filePath string) error {
	dir := filepath.Dir(filePath)
	if dir == "." {
		return nil // Current directory
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrDirNotFound, dir)
		}
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	return nil
}
