//go:build windows

package index

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

const lockFile = "index.lock"

// Lock is an exclusive hold on a vault's tag index. On Windows the lock is
// the existence of the lock file, so a crashed process leaves it behind.
type Lock struct {
	path string
	file *os.File
}

// AcquireLock creates the lock file in stateDir, failing when it exists.
func AcquireLock(stateDir string) (*Lock, error) {
	if err := os.MkdirAll(stateDir, 0755); err != nil {
		return nil, fmt.Errorf("creating state directory: %w", err)
	}

	path := filepath.Join(stateDir, lockFile)
	file, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_RDWR, 0644)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			if content, readErr := os.ReadFile(path); readErr == nil {
				if pid := strings.TrimSpace(string(content)); pid != "" {
					return nil, fmt.Errorf("tag index is locked by PID %s; remove %s if no tagvis index is running", pid, path)
				}
			}
			return nil, fmt.Errorf("tag index is locked; remove %s if no tagvis index is running", path)
		}
		return nil, fmt.Errorf("opening lock file: %w", err)
	}

	if _, err := file.WriteString(strconv.Itoa(os.Getpid())); err != nil {
		_ = file.Close()
		_ = os.Remove(path)
		return nil, fmt.Errorf("writing PID to lock file: %w", err)
	}

	return &Lock{path: path, file: file}, nil
}

// Release drops the lock and removes the lock file.
func (l *Lock) Release() {
	if l == nil || l.file == nil {
		return
	}
	_ = l.file.Close()
	_ = os.Remove(l.path)
	l.file = nil
}
