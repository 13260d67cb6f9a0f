package tree

// CompareFunc reports whether two nodes stand for the same grouping.
type CompareFunc func(a, b *Node) bool

// NameEqual is the default CompareFunc.
func NameEqual(a, b *Node) bool {
	return a.Name == b.Name
}

// Hooks are the callbacks run by Reconcile. Any of them may be nil.
type Hooks struct {
	// OnNew is called for each incoming node appended to current.
	OnNew func(added *Node)
	// OnMatched is called for each surviving node after its fields were
	// refreshed from the matching incoming node.
	OnMatched func(incoming, existing *Node)
	// Compare defaults to NameEqual.
	Compare CompareFunc
}

// Reconcile merges incoming into current and returns the updated slice,
// reusing current's backing array:
//
//  1. entries of current with no match in incoming are removed
//  2. survivors keep their identity and children, and take Value and
//     TagHistory from their match
//  3. incoming entries with no match are appended in incoming order
//
// Survivors keep their relative order. Two incoming entries that compare
// equal are appended once.
func Reconcile(current, incoming []*Node, h Hooks) []*Node {
	compare := h.Compare
	if compare == nil {
		compare = NameEqual
	}

	for i := len(current) - 1; i >= 0; i-- {
		if find(incoming, current[i], compare) == nil {
			current = append(current[:i], current[i+1:]...)
		}
	}

	for _, existing := range current {
		match := find(incoming, existing, compare)
		existing.Value = match.Value
		existing.TagHistory = append([]string{}, match.TagHistory...)
		if h.OnMatched != nil {
			h.OnMatched(match, existing)
		}
	}

	for _, in := range incoming {
		if find(current, in, compare) != nil {
			continue
		}
		if in.TagHistory == nil {
			in.TagHistory = []string{}
		}
		if in.Children == nil {
			in.Children = []*Node{}
		}
		current = append(current, in)
		if h.OnNew != nil {
			h.OnNew(in)
		}
	}

	return current
}

// find returns the first node in list that compares equal to target.
func find(list []*Node, target *Node, compare CompareFunc) *Node {
	for _, n := range list {
		if compare(n, target) {
			return n
		}
	}
	return nil
}
