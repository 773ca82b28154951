// Package assembler builds candidate block templates from a consistent
// snapshot of the chain tip and the mempool.
package assembler

import (
	"container/heap"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/platopia-network/platopia/foundation/blockchain/database"
	"github.com/platopia-network/platopia/foundation/blockchain/mempool"
	"github.com/platopia-network/platopia/foundation/blockchain/money"
)

// ErrTemplateBuildFailed is returned when no valid block can be formed;
// the caller retries on the next tip change.
var ErrTemplateBuildFailed = errors.New("template build failed")

// maxConsecutiveFailures bounds the attempts to squeeze packages into a
// nearly full block.
const maxConsecutiveFailures = 1000

// EventHandler defines a function that is called when events occur during
// template assembly.
type EventHandler func(v string, args ...any)

// Validator is the external collaborator performing the consensus checks
// the builder needs: per-transaction contextual validity and the final
// whole-block self check.
type Validator interface {
	ContextualCheckTransaction(tx database.Tx, height uint32, lockTimeCutoff int64) error
	TestBlockValidity(block database.Block) error
}

// BlockTemplate is the assembled candidate block plus the per-transaction
// fee and sig-op vectors, coinbase first.
type BlockTemplate struct {
	Block    database.Block
	TxFees   []money.Amount
	TxSigOps []int64
}

// Config holds the dependencies and policy knobs for template assembly.
type Config struct {
	Chain     *database.Chain
	Mempool   *mempool.Mempool
	Schedule  money.Schedule
	Validator Validator
	EvHandler EventHandler

	MaxBlockSize            uint64
	MaxGeneratedBlockSize   uint64
	BlockMinFeeRate         FeeRate
	BlockPriorityPercentage uint8
}

// =============================================================================

// BlockAssembler holds the mutable bookkeeping for one CreateNewBlock
// call. A new value is created per call and dropped on return; there is no
// process-wide assembly state.
type BlockAssembler struct {
	cfg Config
	ev  EventHandler

	view           *mempool.View
	tipHeader      database.BlockHeader
	tipHash        database.Hash
	height         uint32
	lockTimeCutoff int64
	maxGenerated   uint64

	template *BlockTemplate

	inBlock  map[database.Hash]bool
	failedTx map[database.Hash]bool

	blockSize     uint64
	blockSigOps   int64
	blockTxs      uint64
	fees          money.Amount
	interest      money.Amount
	lastFewTxs    int
	blockFinished bool
}

// New constructs an assembler bound to its collaborators. Each call to
// CreateNewBlock runs against a fresh snapshot.
func New(cfg Config) *BlockAssembler {
	ev := cfg.EvHandler
	if ev == nil {
		ev = func(v string, args ...any) {}
	}
	return &BlockAssembler{cfg: cfg, ev: ev}
}

// CreateNewBlock selects transactions from the mempool snapshot into a
// structurally valid candidate block paying the coinbase to the given
// script.
func (ba *BlockAssembler) CreateNewBlock(coinbaseScript []byte) (*BlockTemplate, error) {
	started := time.Now()

	ba.resetBlock()

	// Pin one consistent snapshot of tip and pool for the whole build.
	ba.tipHeader, ba.tipHash = ba.cfg.Chain.Tip()
	ba.view = ba.cfg.Mempool.View()
	ba.height = ba.tipHeader.Height + 1
	ba.maxGenerated = MaxGeneratedBlockSize(ba.cfg.MaxGeneratedBlockSize, ba.cfg.MaxBlockSize)

	header := database.BaseHeader{
		Version:  database.CurrentBlockVersion,
		PrevHash: ba.tipHash,
		Height:   ba.height,
		Time:     uint32(time.Now().UTC().Unix()),
	}
	ba.lockTimeCutoff = int64(header.Time)

	ba.template = &BlockTemplate{}

	// Slot zero belongs to the coinbase; filled in at the end.
	ba.template.Block.Txs = append(ba.template.Block.Txs, database.Tx{})
	ba.template.TxFees = append(ba.template.TxFees, -1)
	ba.template.TxSigOps = append(ba.template.TxSigOps, -1)

	ba.addPriorityTxs()
	packages, updated := ba.addPackageTxs()

	// Create the coinbase crediting the fees and the height's subsidy.
	coinbaseValue := ba.fees + ba.cfg.Schedule.Subsidy(int32(ba.height))
	coinbase := database.NewCoinbaseTx(ba.height, coinbaseScript, coinbaseValue)
	ba.template.Block.Txs[0] = coinbase
	ba.template.TxFees[0] = -ba.fees
	ba.template.TxSigOps[0] = sigOpCount(coinbase)

	header.ChainInterest = ba.tipHeader.ChainInterest + uint64(ba.interest)

	root, err := ba.template.Block.MerkleRoot()
	if err != nil {
		return nil, fmt.Errorf("%w: merkle root: %v", ErrTemplateBuildFailed, err)
	}
	header.MerkleRoot = root

	ba.cfg.Chain.UpdateTime(&header)
	header.Bits = ba.cfg.Chain.NextWorkRequired(header.Time)

	ba.template.Block.Header = database.BlockHeader{BaseHeader: header, Nonce: 0}

	if ba.cfg.Validator != nil {
		if err := ba.cfg.Validator.TestBlockValidity(ba.template.Block); err != nil {
			return nil, fmt.Errorf("%w: block validity: %v", ErrTemplateBuildFailed, err)
		}
	}

	ba.ev("assembler: CreateNewBlock: size[%d] txs[%d] fees[%d] sigops[%d] packages[%d] descendants updated[%d] took[%v]",
		ba.blockSize, ba.blockTxs, ba.fees, ba.blockSigOps, packages, updated, time.Since(started))

	return ba.template, nil
}

// resetBlock clears the per-call bookkeeping, reserving room for the
// coinbase.
func (ba *BlockAssembler) resetBlock() {
	ba.inBlock = make(map[database.Hash]bool)
	ba.failedTx = make(map[database.Hash]bool)

	ba.blockSize = coinbaseReserveSize
	ba.blockSigOps = coinbaseReserveSigOps
	ba.blockTxs = 0
	ba.fees = 0
	ba.interest = 0
	ba.lastFewTxs = 0
	ba.blockFinished = false
}

// =============================================================================

// stillDependent reports whether the entry has an in-pool parent that is
// not yet in the block.
func (ba *BlockAssembler) stillDependent(entry *mempool.Entry) bool {
	for parent := range entry.Parents {
		if !ba.inBlock[parent] {
			return true
		}
	}
	return false
}

// testPackage checks a package's size and sig-ops against the remaining
// block budget.
func (ba *BlockAssembler) testPackage(packageSize int64, packageSigOps int64) bool {
	sizeWithPackage := ba.blockSize + uint64(packageSize)
	if sizeWithPackage >= ba.maxGenerated {
		return false
	}
	if ba.blockSigOps+packageSigOps >= MaxBlockSigOps(sizeWithPackage) {
		return false
	}
	return true
}

// testPackageTransactions runs the per-transaction contextual checks and
// the cumulative size check over a package.
func (ba *BlockAssembler) testPackageTransactions(pkg []*mempool.Entry) bool {
	potentialSize := ba.blockSize
	for _, entry := range pkg {
		if ba.cfg.Validator != nil {
			if err := ba.cfg.Validator.ContextualCheckTransaction(entry.Tx, ba.height, ba.lockTimeCutoff); err != nil {
				return false
			}
		}
		if potentialSize+uint64(entry.Size) >= ba.maxGenerated {
			return false
		}
		potentialSize += uint64(entry.Size)
	}
	return true
}

// testForBlock checks a single entry against the remaining block budget,
// flipping blockFinished when the block is effectively full.
func (ba *BlockAssembler) testForBlock(entry *mempool.Entry) bool {
	sizeWithTx := ba.blockSize + uint64(entry.Size)
	if sizeWithTx >= ba.maxGenerated {
		if ba.blockSize > ba.maxGenerated-100 || ba.lastFewTxs > 50 {
			ba.blockFinished = true
			return false
		}
		if ba.blockSize > ba.maxGenerated-1000 {
			ba.lastFewTxs++
		}
		return false
	}

	maxSigOps := MaxBlockSigOps(sizeWithTx)
	if ba.blockSigOps+entry.SigOps >= maxSigOps {
		if ba.blockSigOps > maxSigOps-2 {
			ba.blockFinished = true
		}
		return false
	}

	if ba.cfg.Validator != nil {
		if err := ba.cfg.Validator.ContextualCheckTransaction(entry.Tx, ba.height, ba.lockTimeCutoff); err != nil {
			return false
		}
	}
	return true
}

// addToBlock emits an entry into the template and updates the running
// totals.
func (ba *BlockAssembler) addToBlock(entry *mempool.Entry) {
	ba.template.Block.Txs = append(ba.template.Block.Txs, entry.Tx)
	ba.template.TxFees = append(ba.template.TxFees, entry.Fee)
	ba.template.TxSigOps = append(ba.template.TxSigOps, entry.SigOps)

	ba.blockSize += uint64(entry.Size)
	ba.blockTxs++
	ba.blockSigOps += entry.SigOps
	ba.fees += entry.Fee
	ba.interest += entry.Interest
	ba.inBlock[entry.TxID] = true
}

// =============================================================================

// priorityItem pairs an entry with its delta-adjusted priority for the
// phase one heap.
type priorityItem struct {
	priority float64
	entry    *mempool.Entry
}

// priorityHeap is a max-heap over priorityItem.
type priorityHeap []priorityItem

func (h priorityHeap) Len() int      { return len(h) }
func (h priorityHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h priorityHeap) Less(i, j int) bool {
	if h[i].priority != h[j].priority {
		return h[i].priority > h[j].priority
	}
	// Deterministic pop order on equal priority.
	return h[i].entry.TxID.Hex() < h[j].entry.TxID.Hex()
}
func (h *priorityHeap) Push(x any) { *h = append(*h, x.(priorityItem)) }
func (h *priorityHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// addPriorityTxs fills the reserved share of the block with the highest
// coin-age priority transactions regardless of the fees they pay.
func (ba *BlockAssembler) addPriorityTxs() {
	if ba.cfg.BlockPriorityPercentage == 0 {
		return
	}
	prioritySize := ba.maxGenerated * uint64(ba.cfg.BlockPriorityPercentage) / 100

	ph := make(priorityHeap, 0, ba.view.Len())
	for _, entry := range ba.view.ByAncestorScore() {
		ph = append(ph, priorityItem{priority: ba.view.Priority(entry, ba.height), entry: entry})
	}
	heap.Init(&ph)

	// Entries that popped before their parents wait here keyed by id.
	waitMap := make(map[database.Hash]float64)

	for ph.Len() > 0 && !ba.blockFinished {
		item := heap.Pop(&ph).(priorityItem)
		entry := item.entry

		if ba.inBlock[entry.TxID] {
			continue
		}

		if ba.stillDependent(entry) {
			waitMap[entry.TxID] = item.priority
			continue
		}

		if !ba.testForBlock(entry) {
			continue
		}
		ba.addToBlock(entry)

		if ba.blockSize >= prioritySize || !AllowFree(item.priority) {
			break
		}

		// Children may have become selectable now their parent is in.
		for _, child := range ba.view.Children(entry.TxID) {
			if priority, waiting := waitMap[child.TxID]; waiting {
				heap.Push(&ph, priorityItem{priority: priority, entry: child})
				delete(waitMap, child.TxID)
			}
		}
	}
}

// =============================================================================

// betterThanModified compares a snapshot entry's unreduced package against
// the best modified package.
func betterThanModified(me *modifiedEntry, entry *mempool.Entry) bool {
	fa := float64(me.modFeesWithAncestors) * float64(entry.AncestorSize)
	fb := float64(entry.AncestorModFees) * float64(me.sizeWithAncestors)
	if fa != fb {
		return fa > fb
	}
	return me.entry.TxID.Hex() < entry.TxID.Hex()
}

// addPackageTxs fills the remaining block space by repeatedly taking the
// best package by ancestor fee rate, considering both the snapshot index
// and the set of entries whose ancestors were already included.
func (ba *BlockAssembler) addPackageTxs() (packages int, descendantsUpdated int) {
	modified := newModifiedSet()

	// Descendants of priority-phase inclusions start out reduced.
	for txID := range ba.inBlock {
		if entry, exists := ba.view.Entry(txID); exists {
			descendantsUpdated += ba.updatePackagesForAdded([]*mempool.Entry{entry}, modified)
		}
	}

	order := ba.view.ByAncestorScore()
	mi := 0
	consecutiveFailed := 0

	for mi < len(order) || !modified.empty() {
		// Skip snapshot entries that are stale: already included, already
		// failed, or tracked with reduced totals in the modified set.
		if mi < len(order) {
			txID := order[mi].TxID
			if ba.inBlock[txID] || ba.failedTx[txID] || modified.has(txID) {
				mi++
				continue
			}
		}

		// Pick the better of the snapshot head and the best modified
		// package.
		var entry *mempool.Entry
		usingModified := false

		best := modified.best()
		if mi >= len(order) {
			entry = best.entry
			usingModified = true
		} else {
			entry = order[mi]
			if best != nil && betterThanModified(best, entry) {
				entry = best.entry
				usingModified = true
			} else {
				mi++
			}
		}

		packageSize := entry.AncestorSize
		packageFees := entry.AncestorModFees
		packageSigOps := entry.AncestorSigOps
		if usingModified {
			packageSize = best.sizeWithAncestors
			packageFees = best.modFeesWithAncestors
			packageSigOps = best.sigOpsWithAncestors
		}

		if packageFees < ba.cfg.BlockMinFeeRate.Fee(packageSize) {
			// Everything else scores lower; the block is done.
			return packages, descendantsUpdated
		}

		if !ba.testPackage(packageSize, packageSigOps) {
			if usingModified {
				modified.remove(entry.TxID)
				ba.failedTx[entry.TxID] = true
			}
			consecutiveFailed++
			if consecutiveFailed > maxConsecutiveFailures && ba.blockSize > ba.maxGenerated-1000 {
				break
			}
			continue
		}

		// Materialize the package: in-pool ancestors not yet in the block
		// plus the entry itself.
		pkg := make([]*mempool.Entry, 0, entry.AncestorCount)
		for _, anc := range ba.view.Ancestors(entry.TxID) {
			if !ba.inBlock[anc.TxID] {
				pkg = append(pkg, anc)
			}
		}
		pkg = append(pkg, entry)

		if !ba.testPackageTransactions(pkg) {
			if usingModified {
				modified.remove(entry.TxID)
				ba.failedTx[entry.TxID] = true
			}
			continue
		}

		consecutiveFailed = 0

		// Ancestor count ascending is a valid topological order; ties
		// break on the identifier so assembly is reproducible.
		sort.Slice(pkg, func(i, j int) bool {
			if pkg[i].AncestorCount != pkg[j].AncestorCount {
				return pkg[i].AncestorCount < pkg[j].AncestorCount
			}
			return pkg[i].TxID.Hex() < pkg[j].TxID.Hex()
		})

		for _, member := range pkg {
			ba.addToBlock(member)
			modified.remove(member.TxID)
		}

		packages++
		descendantsUpdated += ba.updatePackagesForAdded(pkg, modified)
	}

	return packages, descendantsUpdated
}

// updatePackagesForAdded reduces the recorded package totals of every
// descendant of the newly added entries.
func (ba *BlockAssembler) updatePackagesForAdded(added []*mempool.Entry, modified *modifiedSet) int {
	updated := 0
	for _, entry := range added {
		for _, desc := range ba.view.Descendants(entry.TxID) {
			if ba.inBlock[desc.TxID] {
				continue
			}
			updated++
			modified.reduce(desc, entry.Size, entry.ModifiedFee, entry.SigOps)
		}
	}
	return updated
}

// =============================================================================

// sigOpCount is the simplified sig-op accounting for template bookkeeping:
// signature operations in the output scripts.
func sigOpCount(tx database.Tx) int64 {
	var count int64
	for _, out := range tx.Outs {
		for _, op := range out.ScriptPubKey {
			// OP_CHECKSIG family.
			if op == 0xac || op == 0xad || op == 0xae || op == 0xaf {
				count++
			}
		}
	}
	return count
}
