package tree

import (
	"sort"
	"strings"
	"sync"
)

// Deduplicator remembers which tag sets a run has already expanded. Paths
// are compared as sets, so A/B and B/A are the same entry. This is what
// stops two tags that list each other as children from recursing forever.
type Deduplicator struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

// NewDeduplicator creates an empty deduplicator.
func NewDeduplicator() *Deduplicator {
	return &Deduplicator{seen: make(map[string]struct{})}
}

// IsUnique records path and reports whether it was new.
func (d *Deduplicator) IsUnique(path []string) bool {
	sig := Signature(path)

	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.seen[sig]; ok {
		return false
	}
	d.seen[sig] = struct{}{}
	return true
}

// Reset forgets every recorded path.
func (d *Deduplicator) Reset() {
	d.mu.Lock()
	d.seen = make(map[string]struct{})
	d.mu.Unlock()
}

// Len returns the number of recorded paths.
func (d *Deduplicator) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.seen)
}

// Signature returns the order-independent key of path: its distinct tokens,
// sorted and joined.
func Signature(path []string) string {
	tokens := append([]string{}, path...)
	sort.Strings(tokens)

	out := make([]string, 0, len(tokens))
	for _, t := range tokens {
		if len(out) > 0 && out[len(out)-1] == t {
			continue
		}
		out = append(out, t)
	}
	return strings.Join(out, "\x00")
}
