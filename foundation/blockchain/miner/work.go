package miner

import (
	"sync"
	"sync/atomic"

	"github.com/platopia-network/platopia/foundation/blockchain/database"
)

// Work is one candidate block being mined. Its identity is the seal hash
// of the base header. The hot-path flags are atomics so workers never take
// a lock while scanning nonces; the mutex only guards the solution write
// and reads of the block.
type Work struct {
	SealHash database.Hash
	Boundary database.Hash
	Height   uint32

	mu    sync.Mutex
	block database.Block

	done          atomic.Bool
	deprecated    atomic.Bool
	miningThreads atomic.Int32
}

func newWork(block database.Block, boundary database.Hash) *Work {
	return &Work{
		SealHash: block.SealHash(),
		Boundary: boundary,
		Height:   block.Header.Height,
		block:    block,
	}
}

// Done reports whether a solution has been recorded.
func (w *Work) Done() bool {
	return w.done.Load()
}

// Deprecated reports whether the chain advanced past this work.
func (w *Work) Deprecated() bool {
	return w.deprecated.Load()
}

// markDeprecated tells workers to abandon the entry.
func (w *Work) markDeprecated() {
	w.deprecated.Store(true)
}

// setSolution records the winning nonce and mix digest. The writes happen
// before the done flag is raised, so any observer of Done sees a coherent
// solution.
func (w *Work) setSolution(nonce uint64, mixHash database.Hash) {
	w.mu.Lock()
	w.block.Header.Nonce = nonce
	w.block.Header.MixHash = mixHash
	w.mu.Unlock()

	w.done.Store(true)
}

// Block returns a copy of the candidate block with any recorded solution.
func (w *Work) Block() database.Block {
	w.mu.Lock()
	defer w.mu.Unlock()

	return w.block
}

// =============================================================================

// workList is the live registry of candidate blocks. The mutex guards the
// list shape only; entry flags are read through their atomics.
type workList struct {
	mu   sync.Mutex
	list []*Work
}

// add registers a work entry, returning the existing entry when one with
// the same seal hash is already live. At most one entry per seal hash.
func (wl *workList) add(work *Work) *Work {
	wl.mu.Lock()
	defer wl.mu.Unlock()

	for _, cur := range wl.list {
		if cur.SealHash == work.SealHash {
			return cur
		}
	}
	wl.list = append(wl.list, work)
	return work
}

// next returns the freshest entry that is neither done nor deprecated.
func (wl *workList) next() *Work {
	wl.mu.Lock()
	defer wl.mu.Unlock()

	for i := len(wl.list) - 1; i >= 0; i-- {
		if !wl.list[i].Done() && !wl.list[i].Deprecated() {
			return wl.list[i]
		}
	}
	return nil
}

// byHash finds an entry by its seal hash.
func (wl *workList) byHash(sealHash database.Hash) *Work {
	wl.mu.Lock()
	defer wl.mu.Unlock()

	for _, cur := range wl.list {
		if cur.SealHash == sealHash {
			return cur
		}
	}
	return nil
}

// remove drops the entry with the given seal hash.
func (wl *workList) remove(sealHash database.Hash) {
	wl.mu.Lock()
	defer wl.mu.Unlock()

	for i, cur := range wl.list {
		if cur.SealHash == sealHash {
			wl.list = append(wl.list[:i], wl.list[i+1:]...)
			return
		}
	}
}

// snapshot returns the current entries.
func (wl *workList) snapshot() []*Work {
	wl.mu.Lock()
	defer wl.mu.Unlock()

	return append([]*Work(nil), wl.list...)
}

// clear empties the registry.
func (wl *workList) clear() {
	wl.mu.Lock()
	defer wl.mu.Unlock()

	wl.list = nil
}
