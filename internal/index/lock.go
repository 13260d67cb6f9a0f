//go:build !windows

package index

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
)

const lockFile = "index.lock"

// Lock is an exclusive hold on a vault's tag index. Only one process may
// write the index at a time; readers never take it.
type Lock struct {
	path string
	file *os.File
}

// AcquireLock takes the index lock in stateDir without blocking. It fails
// when another process already holds it.
func AcquireLock(stateDir string) (*Lock, error) {
	if err := os.MkdirAll(stateDir, 0755); err != nil {
		return nil, fmt.Errorf("creating state directory: %w", err)
	}

	path := filepath.Join(stateDir, lockFile)
	file, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, fmt.Errorf("opening lock file: %w", err)
	}

	if err := syscall.Flock(int(file.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		_ = file.Close()
		return nil, heldError(path)
	}

	if err := writePID(file); err != nil {
		_ = syscall.Flock(int(file.Fd()), syscall.LOCK_UN)
		_ = file.Close()
		return nil, err
	}

	return &Lock{path: path, file: file}, nil
}

func writePID(file *os.File) error {
	if err := file.Truncate(0); err != nil {
		return fmt.Errorf("truncating lock file: %w", err)
	}
	if _, err := file.Seek(0, 0); err != nil {
		return fmt.Errorf("seeking lock file: %w", err)
	}
	if _, err := file.WriteString(strconv.Itoa(os.Getpid())); err != nil {
		return fmt.Errorf("writing PID to lock file: %w", err)
	}
	return nil
}

// heldError names the holder when the lock file records one.
func heldError(path string) error {
	if content, err := os.ReadFile(path); err == nil {
		if pid := strings.TrimSpace(string(content)); pid != "" {
			return fmt.Errorf("tag index is locked by PID %s; another tagvis index may be running", pid)
		}
	}
	return fmt.Errorf("tag index is locked; another tagvis index may be running")
}

// Release drops the lock and removes the lock file. It is safe on a nil Lock.
func (l *Lock) Release() {
	if l == nil || l.file == nil {
		return
	}
	_ = syscall.Flock(int(l.file.Fd()), syscall.LOCK_UN)
	_ = l.file.Close()
	_ = os.Remove(l.path)
	l.file = nil
}
