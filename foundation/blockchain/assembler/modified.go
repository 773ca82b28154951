package assembler

import (
	"bytes"
	"sort"

	"github.com/platopia-network/platopia/foundation/blockchain/database"
	"github.com/platopia-network/platopia/foundation/blockchain/mempool"
	"github.com/platopia-network/platopia/foundation/blockchain/money"
)

// modifiedEntry tracks a snapshot entry whose ancestor totals have been
// reduced because some of its ancestors already made it into the block.
type modifiedEntry struct {
	entry *mempool.Entry

	sizeWithAncestors    int64
	modFeesWithAncestors money.Amount
	sigOpsWithAncestors  int64
}

// betterModified orders modified entries best package first with the same
// (score, txid) key the snapshot index uses.
func betterModified(a, b *modifiedEntry) bool {
	fa := float64(a.modFeesWithAncestors) * float64(b.sizeWithAncestors)
	fb := float64(b.modFeesWithAncestors) * float64(a.sizeWithAncestors)
	if fa != fb {
		return fa > fb
	}
	return bytes.Compare(a.entry.TxID[:], b.entry.TxID[:]) < 0
}

// modifiedSet is an ordered collection of modified entries keyed by
// (ancestor score, txid). Lookups are O(1); ordered inserts are an
// O(log n) search plus slice surgery, and removals a linear scan.
type modifiedSet struct {
	byID    map[database.Hash]*modifiedEntry
	ordered []*modifiedEntry
}

func newModifiedSet() *modifiedSet {
	return &modifiedSet{
		byID: make(map[database.Hash]*modifiedEntry),
	}
}

func (ms *modifiedSet) empty() bool {
	return len(ms.ordered) == 0
}

func (ms *modifiedSet) has(txID database.Hash) bool {
	_, exists := ms.byID[txID]
	return exists
}

// best returns the top ranked modified entry, or nil when empty.
func (ms *modifiedSet) best() *modifiedEntry {
	if len(ms.ordered) == 0 {
		return nil
	}
	return ms.ordered[0]
}

// reduce records that an ancestor of the entry entered the block, shrinking
// the entry's package totals. A missing entry is seeded from its snapshot
// aggregates first.
func (ms *modifiedSet) reduce(entry *mempool.Entry, size int64, fee money.Amount, sigOps int64) {
	me, exists := ms.byID[entry.TxID]
	if exists {
		ms.unlink(me)
	} else {
		me = &modifiedEntry{
			entry:                entry,
			sizeWithAncestors:    entry.AncestorSize,
			modFeesWithAncestors: entry.AncestorModFees,
			sigOpsWithAncestors:  entry.AncestorSigOps,
		}
		ms.byID[entry.TxID] = me
	}

	me.sizeWithAncestors -= size
	me.modFeesWithAncestors -= fee
	me.sigOpsWithAncestors -= sigOps

	ms.link(me)
}

// remove drops the entry from the set entirely.
func (ms *modifiedSet) remove(txID database.Hash) {
	me, exists := ms.byID[txID]
	if !exists {
		return
	}
	ms.unlink(me)
	delete(ms.byID, txID)
}

func (ms *modifiedSet) link(me *modifiedEntry) {
	at := sort.Search(len(ms.ordered), func(i int) bool {
		return betterModified(me, ms.ordered[i])
	})
	ms.ordered = append(ms.ordered, nil)
	copy(ms.ordered[at+1:], ms.ordered[at:])
	ms.ordered[at] = me
}

func (ms *modifiedSet) unlink(me *modifiedEntry) {
	for i, cur := range ms.ordered {
		if cur == me {
			ms.ordered = append(ms.ordered[:i], ms.ordered[i+1:]...)
			return
		}
	}
}
