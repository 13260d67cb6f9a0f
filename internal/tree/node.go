// Package tree holds the tag hierarchy built by the expansion engine and the
// helpers that keep it in sync with fresh query results.
package tree

// RootName is the name of a root that groups nothing.
const RootName = "#"

// Node is one discovered tag grouping.
type Node struct {
	Name string `json:"name"`
	// Value is the file count for this grouping, 0 until a result sets it.
	Value    int     `json:"value,omitempty"`
	Children []*Node `json:"children"`
	// TagHistory is the ancestor chain from the root down to, but not
	// including, this node. Its order is the query path.
	TagHistory []string `json:"tagHistory"`
	// ID identifies a tree instance and is only set on roots.
	ID string `json:"id,omitempty"`
}

// New creates a node. A nil history becomes empty.
func New(name string, value int, history []string) *Node {
	if history == nil {
		history = []string{}
	}
	return &Node{
		Name:       name,
		Value:      value,
		Children:   []*Node{},
		TagHistory: history,
	}
}

// NewRoot creates a root node. An empty name becomes RootName.
func NewRoot(name string) *Node {
	if name == "" {
		name = RootName
	}
	return New(name, 0, nil)
}

// IsRootPlaceholder reports whether n is named by the root placeholder.
func (n *Node) IsRootPlaceholder() bool {
	return n.Name == RootName || n.Name == ""
}

// Path returns TagHistory followed by Name, without the root placeholder.
// The result is a fresh slice.
func (n *Node) Path() []string {
	path := make([]string, 0, len(n.TagHistory)+1)
	for _, t := range n.TagHistory {
		if t != RootName && t != "" {
			path = append(path, t)
		}
	}
	if !n.IsRootPlaceholder() {
		path = append(path, n.Name)
	}
	return path
}

// Clone returns a deep copy of the subtree rooted at n.
func (n *Node) Clone() *Node {
	if n == nil {
		return nil
	}
	c := &Node{
		Name:       n.Name,
		Value:      n.Value,
		Children:   make([]*Node, len(n.Children)),
		TagHistory: append([]string{}, n.TagHistory...),
		ID:         n.ID,
	}
	for i, child := range n.Children {
		c.Children[i] = child.Clone()
	}
	return c
}

// Walk visits n and its descendants depth-first, parents before children.
// Returning false from fn skips that node's children.
func (n *Node) Walk(fn func(node *Node, depth int) bool) {
	n.walk(fn, 0)
}

func (n *Node) walk(fn func(*Node, int) bool, depth int) {
	if !fn(n, depth) {
		return
	}
	for _, c := range n.Children {
		c.walk(fn, depth+1)
	}
}

// Count returns the number of nodes in the subtree, n included.
func (n *Node) Count() int {
	count := 0
	n.Walk(func(*Node, int) bool {
		count++
		return true
	})
	return count
}

// Child returns the direct child with the given name, or nil.
func (n *Node) Child(name string) *Node {
	for _, c := range n.Children {
		if c.Name == name {
			return c
		}
	}
	return nil
}
