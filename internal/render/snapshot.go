package render

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"

	"tagvis/internal/tree"
)

// SnapshotVersion is written into every snapshot file.
const SnapshotVersion = 1

var zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}

// Snapshot is the on-disk form of a tag tree.
type Snapshot struct {
	Version     int        `json:"version"`
	GeneratedAt time.Time  `json:"generatedAt"`
	Root        *tree.Node `json:"root"`
}

// WriteSnapshot writes root as indented JSON, zstd-compressed when compress
// is set.
func WriteSnapshot(w io.Writer, root *tree.Node, compress bool) error {
	snap := Snapshot{Version: SnapshotVersion, GeneratedAt: time.Now().UTC(), Root: root}

	if !compress {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(snap)
	}

	zw, err := zstd.NewWriter(w)
	if err != nil {
		return fmt.Errorf("creating zstd writer: %w", err)
	}
	if err := json.NewEncoder(zw).Encode(snap); err != nil {
		_ = zw.Close()
		return err
	}
	return zw.Close()
}

// ReadSnapshot reads a snapshot written by WriteSnapshot, compressed or not.
func ReadSnapshot(r io.Reader) (*Snapshot, error) {
	br := bufio.NewReader(r)
	head, _ := br.Peek(len(zstdMagic))

	var src io.Reader = br
	if bytes.Equal(head, zstdMagic) {
		zr, err := zstd.NewReader(br)
		if err != nil {
			return nil, fmt.Errorf("opening zstd snapshot: %w", err)
		}
		defer zr.Close()
		src = zr
	}

	var snap Snapshot
	if err := json.NewDecoder(src).Decode(&snap); err != nil {
		return nil, fmt.Errorf("decoding snapshot: %w", err)
	}
	if snap.Version > SnapshotVersion {
		return nil, fmt.Errorf("snapshot version %d is newer than supported version %d", snap.Version, SnapshotVersion)
	}
	return &snap, nil
}

// SaveSnapshot writes root to path, compressing when path ends in ".zst".
func SaveSnapshot(path string, root *tree.Node) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := WriteSnapshot(f, root, strings.HasSuffix(path, ".zst")); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// LoadSnapshot reads a snapshot file.
func LoadSnapshot(path string) (*Snapshot, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()
	return ReadSnapshot(f)
}

// Latest is a renderer that keeps the most recent snapshot for readers that
// poll, such as HTTP handlers.
type Latest struct {
	mu      sync.RWMutex
	root    *tree.Node
	version uint64
	changed chan struct{}
}

// NewLatest creates an empty Latest.
func NewLatest() *Latest {
	return &Latest{changed: make(chan struct{})}
}

// Render stores root and wakes everyone waiting on Changed.
func (l *Latest) Render(root *tree.Node) {
	l.mu.Lock()
	l.root = root
	l.version++
	close(l.changed)
	l.changed = make(chan struct{})
	l.mu.Unlock()
}

// Get returns the latest snapshot and how many have been rendered. The
// snapshot is shared and must not be modified.
func (l *Latest) Get() (*tree.Node, uint64) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.root, l.version
}

// Changed returns a channel closed by the next Render.
func (l *Latest) Changed() <-chan struct{} {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.changed
}
