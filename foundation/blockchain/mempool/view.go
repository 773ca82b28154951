package mempool

import (
	"bytes"
	"sort"

	"github.com/platopia-network/platopia/foundation/blockchain/database"
)

// View is an immutable snapshot of the pool taken for one block template
// build. The assembler never mutates the pool; everything it needs is
// copied out under one lock hold.
type View struct {
	entries    map[database.Hash]*Entry
	order      []*Entry
	prioDeltas map[database.Hash]float64
}

// View captures a consistent snapshot of the pool.
func (mp *Mempool) View() *View {
	mp.mu.RLock()
	defer mp.mu.RUnlock()

	v := View{
		entries:    make(map[database.Hash]*Entry, len(mp.pool)),
		prioDeltas: make(map[database.Hash]float64, len(mp.prioDeltas)),
	}

	for txID, entry := range mp.pool {
		cp := *entry
		cp.Parents = make(map[database.Hash]struct{}, len(entry.Parents))
		for parent := range entry.Parents {
			cp.Parents[parent] = struct{}{}
		}
		cp.Children = make(map[database.Hash]struct{}, len(entry.Children))
		for child := range entry.Children {
			cp.Children[child] = struct{}{}
		}
		v.entries[txID] = &cp
	}
	for txID, delta := range mp.prioDeltas {
		v.prioDeltas[txID] = delta
	}

	v.order = make([]*Entry, 0, len(v.entries))
	for _, entry := range v.entries {
		v.order = append(v.order, entry)
	}
	sort.Slice(v.order, func(i, j int) bool {
		return BetterAncestorScore(v.order[i], v.order[j])
	})

	return &v
}

// BetterAncestorScore reports whether a should be selected before b: the
// higher package fee rate wins, ties break on the transaction identifier.
func BetterAncestorScore(a, b *Entry) bool {
	// Cross-multiplied comparison avoids dividing small fees.
	fa := float64(a.AncestorModFees) * float64(b.AncestorSize)
	fb := float64(b.AncestorModFees) * float64(a.AncestorSize)
	if fa != fb {
		return fa > fb
	}
	return bytes.Compare(a.TxID[:], b.TxID[:]) < 0
}

// Len returns the number of entries in the snapshot.
func (v *View) Len() int {
	return len(v.order)
}

// ByAncestorScore returns the entries ordered best package first.
func (v *View) ByAncestorScore() []*Entry {
	return v.order
}

// Entry looks up a snapshot entry by identifier.
func (v *View) Entry(txID database.Hash) (*Entry, bool) {
	entry, exists := v.entries[txID]
	return entry, exists
}

// Ancestors returns the full in-snapshot ancestor set of an entry.
func (v *View) Ancestors(txID database.Hash) map[database.Hash]*Entry {
	found := make(map[database.Hash]*Entry)

	start, exists := v.entries[txID]
	if !exists {
		return found
	}

	queue := make([]database.Hash, 0, len(start.Parents))
	for parent := range start.Parents {
		queue = append(queue, parent)
	}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		if _, seen := found[id]; seen {
			continue
		}
		entry, ok := v.entries[id]
		if !ok {
			continue
		}
		found[id] = entry
		for parent := range entry.Parents {
			queue = append(queue, parent)
		}
	}
	return found
}

// Children returns the direct in-snapshot children of an entry.
func (v *View) Children(txID database.Hash) []*Entry {
	entry, exists := v.entries[txID]
	if !exists {
		return nil
	}
	var children []*Entry
	for child := range entry.Children {
		if ce, ok := v.entries[child]; ok {
			children = append(children, ce)
		}
	}
	return children
}

// Descendants returns the full in-snapshot descendant set of an entry.
func (v *View) Descendants(txID database.Hash) []*Entry {
	entry, exists := v.entries[txID]
	if !exists {
		return nil
	}

	seen := map[database.Hash]struct{}{txID: {}}
	var found []*Entry
	queue := make([]database.Hash, 0, len(entry.Children))
	for child := range entry.Children {
		queue = append(queue, child)
	}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		child, ok := v.entries[id]
		if !ok {
			continue
		}
		found = append(found, child)
		for grandchild := range child.Children {
			queue = append(queue, grandchild)
		}
	}
	return found
}

// Priority returns the entry's coin-age priority at the given height with
// any operator delta applied.
func (v *View) Priority(entry *Entry, height uint32) float64 {
	return entry.Priority(height) + v.prioDeltas[entry.TxID]
}
