package paths

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// StateDirName is the per-vault directory holding config, index and logs.
const StateDirName = ".tagvis"

// CanonicalizePath converts an absolute path to a vault-relative canonical path
// - Resolves symlinks to real paths
// - Makes path relative to the vault root
// - Returns forward slashes on every platform
func CanonicalizePath(absolutePath string, vaultRoot string) (string, error) {
	resolved, err := filepath.EvalSymlinks(absolutePath)
	if err != nil {
		// If the file doesn't exist yet (or was just removed), use the path as-is
		if os.IsNotExist(err) {
			resolved = absolutePath
		} else {
			return "", err
		}
	}

	rootResolved, err := filepath.EvalSymlinks(vaultRoot)
	if err != nil {
		if os.IsNotExist(err) {
			rootResolved = vaultRoot
		} else {
			return "", err
		}
	}

	relativePath, err := filepath.Rel(rootResolved, resolved)
	if err != nil {
		return "", err
	}

	return filepath.ToSlash(relativePath), nil
}

// IsWithinVault checks if a path is within the vault root
func IsWithinVault(path string, vaultRoot string) bool {
	canonical, err := CanonicalizePath(path, vaultRoot)
	if err != nil {
		return false
	}
	return canonical != ".." && !strings.HasPrefix(canonical, "../")
}

// JoinVaultPath joins a vault root with a canonical path
func JoinVaultPath(vaultRoot string, canonicalPath string) string {
	normalizedPath := strings.ReplaceAll(canonicalPath, "\\", "/")
	parts := strings.Split(normalizedPath, "/")
	return filepath.Join(append([]string{vaultRoot}, parts...)...)
}

// IsNote reports whether a vault file is a markdown note.
func IsNote(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".md" || ext == ".markdown"
}

// GetStateDir returns <vaultRoot>/.tagvis
func GetStateDir(vaultRoot string) string {
	return filepath.Join(vaultRoot, StateDirName)
}

// GetLogsDir returns <vaultRoot>/.tagvis/logs
func GetLogsDir(vaultRoot string) string {
	return filepath.Join(GetStateDir(vaultRoot), "logs")
}

// EnsureLogsDir creates the logs directory if needed and returns it.
func EnsureLogsDir(vaultRoot string) (string, error) {
	dir := GetLogsDir(vaultRoot)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create logs directory: %w", err)
	}
	return dir, nil
}

// GetLogPath returns the log file for a subsystem, e.g. "serve" or "index".
func GetLogPath(vaultRoot, subsystem string) string {
	return filepath.Join(GetLogsDir(vaultRoot), subsystem+".log")
}
