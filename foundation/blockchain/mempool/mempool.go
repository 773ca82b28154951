// Package mempool maintains the pool of unconfirmed transactions together
// with the per-entry ancestor bookkeeping the block assembler selects on.
package mempool

import (
	"errors"
	"fmt"
	"sync"

	"github.com/platopia-network/platopia/foundation/blockchain/database"
	"github.com/platopia-network/platopia/foundation/blockchain/money"
)

// ErrNotFound is returned when a transaction is not in the pool.
var ErrNotFound = errors.New("transaction not in mempool")

// InputCoin describes one spent coin: its value and the height it was
// created at. The pair drives coin-age priority.
type InputCoin struct {
	Value  money.Amount
	Height uint32
}

// Entry is one pooled transaction plus the aggregates over its in-pool
// ancestor set (itself included). Relations are kept as identifier sets,
// never pointers.
type Entry struct {
	Tx     database.Tx
	TxID   database.Hash
	Size   int64
	SigOps int64

	Fee         money.Amount
	ModifiedFee money.Amount
	Interest    money.Amount

	EntryHeight uint32
	InputCoins  []InputCoin

	AncestorSize    int64
	AncestorModFees money.Amount
	AncestorSigOps  int64
	AncestorCount   int

	DescendantCount int

	Parents  map[database.Hash]struct{}
	Children map[database.Hash]struct{}
}

// AncestorScore is the package fee rate: ancestor modified fees per
// ancestor byte.
func (e *Entry) AncestorScore() float64 {
	if e.AncestorSize == 0 {
		return 0
	}
	return float64(e.AncestorModFees) / float64(e.AncestorSize)
}

// Priority returns the coin-age priority of the entry at the given height:
// the sum of input value times confirmation age, per byte.
func (e *Entry) Priority(height uint32) float64 {
	var coinAge float64
	for _, coin := range e.InputCoins {
		if height > coin.Height {
			coinAge += float64(coin.Value) * float64(height-coin.Height)
		}
	}
	if e.Size == 0 {
		return 0
	}
	return coinAge / float64(e.Size)
}

// =============================================================================

// Mempool is the transaction pool. All exported methods are safe for
// concurrent use; the block assembler reads a single consistent snapshot
// through View.
type Mempool struct {
	mu   sync.RWMutex
	pool map[database.Hash]*Entry

	prioDeltas map[database.Hash]float64
	feeDeltas  map[database.Hash]money.Amount
}

// New constructs an empty mempool.
func New() *Mempool {
	return &Mempool{
		pool:       make(map[database.Hash]*Entry),
		prioDeltas: make(map[database.Hash]float64),
		feeDeltas:  make(map[database.Hash]money.Amount),
	}
}

// Count returns the current number of transactions in the pool.
func (mp *Mempool) Count() int {
	mp.mu.RLock()
	defer mp.mu.RUnlock()

	return len(mp.pool)
}

// Truncate clears all transactions from the pool.
func (mp *Mempool) Truncate() {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	mp.pool = make(map[database.Hash]*Entry)
}

// Upsert adds a transaction to the pool, wiring it to any in-pool parents
// and folding it into their descendant counts.
func (mp *Mempool) Upsert(tx database.Tx, fee money.Amount, sigOps int64, height uint32, coins []InputCoin) (*Entry, error) {
	if tx.IsCoinbase() {
		return nil, errors.New("coinbase transactions cannot enter the mempool")
	}

	interest, err := tx.InterestOut()
	if err != nil {
		return nil, fmt.Errorf("upsert: %w", err)
	}

	mp.mu.Lock()
	defer mp.mu.Unlock()

	txID := tx.ID()
	entry := Entry{
		Tx:          tx,
		TxID:        txID,
		Size:        int64(tx.SerializedSize()),
		SigOps:      sigOps,
		Fee:         fee,
		ModifiedFee: fee + mp.feeDeltas[txID],
		Interest:    interest,
		EntryHeight: height,
		InputCoins:  coins,
		Parents:     make(map[database.Hash]struct{}),
		Children:    make(map[database.Hash]struct{}),
	}

	for _, in := range tx.Ins {
		if _, exists := mp.pool[in.PrevOut.Hash]; exists {
			entry.Parents[in.PrevOut.Hash] = struct{}{}
		}
	}

	ancestors := mp.ancestorsLocked(entry.Parents)
	entry.AncestorSize = entry.Size
	entry.AncestorModFees = entry.ModifiedFee
	entry.AncestorSigOps = entry.SigOps
	entry.AncestorCount = 1 + len(ancestors)
	for _, anc := range ancestors {
		entry.AncestorSize += anc.Size
		entry.AncestorModFees += anc.ModifiedFee
		entry.AncestorSigOps += anc.SigOps
		anc.DescendantCount++
	}

	for parent := range entry.Parents {
		mp.pool[parent].Children[txID] = struct{}{}
	}

	mp.pool[txID] = &entry
	return &entry, nil
}

// RemoveForBlock drops the mined transactions from the pool and repairs
// the aggregates of everything that stays behind.
func (mp *Mempool) RemoveForBlock(txIDs []database.Hash) {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	for _, txID := range txIDs {
		entry, exists := mp.pool[txID]
		if !exists {
			continue
		}

		for _, desc := range mp.descendantsLocked(entry) {
			desc.AncestorSize -= entry.Size
			desc.AncestorModFees -= entry.ModifiedFee
			desc.AncestorSigOps -= entry.SigOps
			desc.AncestorCount--
			delete(desc.Parents, txID)
		}
		for _, anc := range mp.ancestorsLocked(entry.Parents) {
			anc.DescendantCount--
		}
		for parent := range entry.Parents {
			delete(mp.pool[parent].Children, txID)
		}
		for child := range entry.Children {
			delete(mp.pool[child].Parents, txID)
		}

		delete(mp.pool, txID)
	}
}

// PrioritiseTransaction applies operator deltas to an entry's priority and
// fee as seen by the selection algorithm. The fee is never actually paid.
func (mp *Mempool) PrioritiseTransaction(txID database.Hash, prioDelta float64, feeDelta money.Amount) {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	mp.prioDeltas[txID] += prioDelta
	mp.feeDeltas[txID] += feeDelta

	entry, exists := mp.pool[txID]
	if !exists {
		return
	}

	entry.ModifiedFee += feeDelta
	entry.AncestorModFees += feeDelta
	for _, desc := range mp.descendantsLocked(entry) {
		desc.AncestorModFees += feeDelta
	}
}

// ApplyDeltas returns the given priority plus any operator priority delta
// recorded for the transaction.
func (mp *Mempool) ApplyDeltas(txID database.Hash, priority float64) float64 {
	mp.mu.RLock()
	defer mp.mu.RUnlock()

	return priority + mp.prioDeltas[txID]
}

// =============================================================================

// ancestorsLocked walks parent links and returns the full in-pool
// ancestor set. The caller holds the lock.
func (mp *Mempool) ancestorsLocked(parents map[database.Hash]struct{}) map[database.Hash]*Entry {
	found := make(map[database.Hash]*Entry)
	queue := make([]database.Hash, 0, len(parents))
	for parent := range parents {
		queue = append(queue, parent)
	}

	for len(queue) > 0 {
		txID := queue[0]
		queue = queue[1:]
		if _, seen := found[txID]; seen {
			continue
		}
		entry, exists := mp.pool[txID]
		if !exists {
			continue
		}
		found[txID] = entry
		for parent := range entry.Parents {
			queue = append(queue, parent)
		}
	}
	return found
}

// descendantsLocked walks child links and returns the full in-pool
// descendant set. The caller holds the lock.
func (mp *Mempool) descendantsLocked(entry *Entry) []*Entry {
	seen := map[database.Hash]struct{}{entry.TxID: {}}
	var found []*Entry
	queue := make([]database.Hash, 0, len(entry.Children))
	for child := range entry.Children {
		queue = append(queue, child)
	}

	for len(queue) > 0 {
		txID := queue[0]
		queue = queue[1:]
		if _, dup := seen[txID]; dup {
			continue
		}
		seen[txID] = struct{}{}
		child, exists := mp.pool[txID]
		if !exists {
			continue
		}
		found = append(found, child)
		for grandchild := range child.Children {
			queue = append(queue, grandchild)
		}
	}
	return found
}
