package tree

import (
	"sync"
	"sync/atomic"
	"testing"

	"pgregory.net/rapid"
)

func TestDeduplicator_OrderIndependent(t *testing.T) {
	d := NewDeduplicator()

	if !d.IsUnique([]string{"X", "Y"}) {
		t.Fatal("first [X Y] should be unique")
	}
	if d.IsUnique([]string{"Y", "X"}) {
		t.Error("[Y X] should collide with [X Y]")
	}
	if !d.IsUnique([]string{"X", "Z"}) {
		t.Error("[X Z] should be unique")
	}
}

func TestDeduplicator_RepeatedTokens(t *testing.T) {
	d := NewDeduplicator()

	if !d.IsUnique([]string{"#a", "#b", "#a"}) {
		t.Fatal("first path should be unique")
	}
	if d.IsUnique([]string{"#b", "#a"}) {
		t.Error("repeated tokens should collapse within the key")
	}
}

func TestDeduplicator_Reset(t *testing.T) {
	d := NewDeduplicator()
	d.IsUnique([]string{"#a"})
	d.IsUnique([]string{"#a", "#b"})
	if d.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", d.Len())
	}

	d.Reset()
	if d.Len() != 0 {
		t.Errorf("Len() after Reset = %d, want 0", d.Len())
	}
	if !d.IsUnique([]string{"#a"}) {
		t.Error("path should be unique again after Reset")
	}
}

func TestSignature(t *testing.T) {
	tests := []struct {
		a, b []string
		same bool
	}{
		{a: []string{"#a", "#b"}, b: []string{"#b", "#a"}, same: true},
		{a: []string{"#a"}, b: []string{"#a", "#a"}, same: true},
		{a: []string{"#a b"}, b: []string{"#a", "b"}, same: false},
		{a: []string{}, b: nil, same: true},
		{a: []string{"#a"}, b: []string{"#b"}, same: false},
	}
	for _, tt := range tests {
		if got := Signature(tt.a) == Signature(tt.b); got != tt.same {
			t.Errorf("Signature(%q) == Signature(%q) is %v, want %v", tt.a, tt.b, got, tt.same)
		}
	}

	in := []string{"#b", "#a"}
	Signature(in)
	if in[0] != "#b" {
		t.Error("Signature sorted its input in place")
	}
}

func TestDeduplicator_Concurrent(t *testing.T) {
	d := NewDeduplicator()
	var wins atomic.Int32
	var wg sync.WaitGroup

	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			path := []string{"#a", "#b"}
			if i%2 == 1 {
				path = []string{"#b", "#a"}
			}
			if d.IsUnique(path) {
				wins.Add(1)
			}
		}(i)
	}
	wg.Wait()

	if wins.Load() != 1 {
		t.Errorf("%d goroutines saw the path as unique, want exactly 1", wins.Load())
	}
}

func TestDeduplicator_PermutationProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		path := rapid.SliceOfN(rapid.SampledFrom([]string{"#a", "#b", "#c", "#d"}), 1, 6).Draw(t, "path")
		perm := rapid.Permutation(path).Draw(t, "perm")

		d := NewDeduplicator()
		if !d.IsUnique(path) {
			t.Fatal("first insert must be unique")
		}
		if d.IsUnique(perm) {
			t.Fatalf("permutation %v of %v was unique", perm, path)
		}
	})
}
