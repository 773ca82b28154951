// Package miner implements the proof-of-work mining engine: a dispatcher
// feeding candidate blocks to a pool of nonce-search workers, a dataset
// pre-generator, and the pool-protocol work surface.
package miner

import (
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/platopia-network/platopia/foundation/blockchain/assembler"
	"github.com/platopia-network/platopia/foundation/blockchain/database"
	"github.com/platopia-network/platopia/foundation/blockchain/ethash"
)

// Boundary errors surfaced to callers.
var (
	// ErrStaleBlock is returned when a solved block no longer extends the
	// tip; the block is dropped with a log record.
	ErrStaleBlock = errors.New("generated block is stale")

	// ErrInvalidSolution is returned when a submitted solution fails the
	// boundary check or the validation collaborator rejects the block.
	ErrInvalidSolution = errors.New("invalid proof-of-work solution")
)

// Poll cadences of the long-running loops.
const (
	dispatchPoll  = time.Second
	workerIdle    = time.Second
	pregenPoll    = 10 * time.Second
	hashRateEvery = 4 * time.Second
)

// pregenLead starts building the next epoch's dataset once the height is
// this deep into the current epoch.
const pregenLead = 20000

// EventHandler defines a function that is called when events occur in the
// mining engine.
type EventHandler func(v string, args ...any)

// Assembler builds candidate block templates.
type Assembler interface {
	CreateNewBlock(coinbaseScript []byte) (*assembler.BlockTemplate, error)
}

// ChainReader exposes the tip the dispatcher races against.
type ChainReader interface {
	Height() uint32
	TipHash() database.Hash
	NextWorkRequired(newBlockTime uint32) uint32
}

// BlockProcessor is the external validation collaborator a solved block is
// handed to.
type BlockProcessor interface {
	ProcessNewBlock(block database.Block) error
}

// Wallet is the injected wallet-side accounting hook.
type Wallet interface {
	BlockRequestReset(blockHash database.Hash)
}

// ReserveScript provides a coinbase script which is kept only once a block
// using it is accepted.
type ReserveScript interface {
	Script() ([]byte, error)
	KeepScript()
}

// Dag abstracts the proof-of-work dataset engine so tests can substitute a
// cheap sealer. The production implementation is *ethash.Cache.
type Dag interface {
	EnsureFull(height uint64)
	Compute(height uint64, sealHash [32]byte, nonce uint64) (digest, result [32]byte, err error)
	Shutdown()
}

// Config holds the collaborators and policy for the mining engine.
type Config struct {
	EvHandler EventHandler
	Assembler Assembler
	Chain     ChainReader
	Processor BlockProcessor
	Wallet    Wallet
	Dag       Dag

	// CoinbaseScript is the standing payout script of the background
	// dispatcher. Synchronous mining provides its own through a
	// ReserveScript.
	CoinbaseScript []byte

	// DefaultThreads overrides hardware concurrency when positive.
	DefaultThreads int

	// Notify is invoked with the hash of every accepted mined block.
	Notify func(blockHash database.Hash)
}

// =============================================================================

// Miner owns the mining thread pool and the live work registry.
type Miner struct {
	cfg Config
	ev  EventHandler

	generate atomic.Bool
	wg       sync.WaitGroup

	works workList

	hashMu       sync.Mutex
	hashesPerSec float64
	threads      int

	extraMu    sync.Mutex
	extraNonce uint32
	lastPrev   database.Hash
}

// New constructs a mining engine around its collaborators.
func New(cfg Config) *Miner {
	ev := cfg.EvHandler
	if ev == nil {
		ev = func(v string, args ...any) {}
	}
	return &Miner{cfg: cfg, ev: ev}
}

// Start launches the dataset pre-generator, the work dispatcher and the
// nonce-search workers. A negative thread count selects the network
// default or the hardware concurrency.
func (m *Miner) Start(nThreads int) {
	if m.generate.Swap(true) {
		return
	}

	if nThreads < 0 {
		if m.cfg.DefaultThreads > 0 {
			nThreads = m.cfg.DefaultThreads
		} else {
			nThreads = runtime.NumCPU()
		}
	}
	if nThreads == 0 {
		m.generate.Store(false)
		m.ev("miner: start: zero threads, mining disabled")
		return
	}

	m.hashMu.Lock()
	m.threads = nThreads
	m.hashesPerSec = 0
	m.hashMu.Unlock()

	m.ev("miner: start: threads[%d]", nThreads)

	m.wg.Add(2 + nThreads)
	go func() {
		defer m.wg.Done()
		m.pregenerateDatasets()
	}()
	go func() {
		defer m.wg.Done()
		m.dispatch()
	}()
	for i := 0; i < nThreads; i++ {
		go func(id int) {
			defer m.wg.Done()
			m.worker(id, 0)
		}(i)
	}
}

// Stop signals every loop, waits for the joins, clears the registry and
// releases the dataset handles.
func (m *Miner) Stop() {
	if !m.generate.Swap(false) {
		return
	}
	m.ev("miner: stop: draining workers")
	m.wg.Wait()
	m.works.clear()
	m.cfg.Dag.Shutdown()
	m.setHashRate(0)
	m.ev("miner: stop: complete")
}

// Mining reports whether the engine is running.
func (m *Miner) Mining() bool {
	return m.generate.Load()
}

// =============================================================================

// pregenerateDatasets keeps the current epoch's dataset alive and starts
// the next epoch's once the boundary is close.
func (m *Miner) pregenerateDatasets() {
	m.ev("miner: pregen: G started")
	defer m.ev("miner: pregen: G completed")

	for m.generate.Load() {
		height := uint64(m.cfg.Chain.Height())
		m.cfg.Dag.EnsureFull(height)

		if height%ethash.EpochLength > pregenLead {
			m.cfg.Dag.EnsureFull(height + ethash.EpochLength)
		}

		m.sleep(pregenPoll)
	}
}

// dispatch runs the template producer loop: build a candidate, register
// it, then watch it until it is solved or the tip deprecates it.
func (m *Miner) dispatch() {
	m.ev("miner: dispatch: G started")
	defer m.ev("miner: dispatch: G completed")

	for m.generate.Load() {
		work, err := m.generateWork(m.cfg.CoinbaseScript)
		if err != nil {
			m.ev("miner: dispatch: ERROR: %s", err)
			m.sleep(dispatchPoll)
			continue
		}
		work = m.works.add(work)

		for m.generate.Load() {
			if m.cfg.Chain.Height() >= work.Height {
				work.markDeprecated()
				m.drainWorkers(work)
				m.works.remove(work.SealHash)
				break
			}

			if work.Done() {
				if err := m.ProcessBlockFound(work.Block()); err != nil {
					m.ev("miner: dispatch: WARNING: %s", err)
				}
				m.drainWorkers(work)
				m.works.remove(work.SealHash)
				break
			}

			m.sleep(dispatchPoll)
		}
	}
}

// drainWorkers blocks until no worker references the entry.
func (m *Miner) drainWorkers(work *Work) {
	for work.miningThreads.Load() != 0 {
		time.Sleep(dispatchPoll)
	}
}

// worker is one nonce-search loop. maxTries of zero means unbounded.
func (m *Miner) worker(id int, maxTries uint64) {
	m.ev("miner: worker[%d]: G started", id)
	defer m.ev("miner: worker[%d]: G completed", id)

	for m.generate.Load() {
		work := m.works.next()
		if work == nil {
			m.sleep(workerIdle)
			continue
		}

		work.miningThreads.Add(1)
		m.search(work, maxTries)
		work.miningThreads.Add(-1)
	}
}

// search scans nonces for one work entry until it solves, the entry dies,
// or the bounded try budget runs out.
func (m *Miner) search(work *Work, maxTries uint64) {
	sealHash := [32]byte(work.SealHash)
	boundary := [32]byte(work.Boundary)
	height := uint64(work.Height)

	nonce := randomNonce()

	var tries, hashes uint64
	window := time.Now()

	for m.generate.Load() && !work.Done() && !work.Deprecated() {
		digest, _, err := m.cfg.Dag.Compute(height, sealHash, nonce)
		if err != nil {
			// Dataset still building; spin politely.
			m.sleep(workerIdle)
			continue
		}

		if ethash.QuickCheck(sealHash, nonce, digest, boundary) {
			m.ev("miner: worker: proof-of-work found: sealhash[%s] nonce[%d]", work.SealHash.BigHex(), nonce)
			work.setSolution(nonce, database.Hash(digest))
			return
		}

		hashes++
		nonce++

		if maxTries != 0 {
			tries++
			if tries > maxTries {
				return
			}
		}

		if elapsed := time.Since(window); elapsed > hashRateEvery {
			m.setHashRate(float64(hashes) / elapsed.Seconds())
			window = time.Now()
			hashes = 0
		}
	}
}

// sleep waits the duration in small steps so shutdown stays responsive.
func (m *Miner) sleep(d time.Duration) {
	const step = 100 * time.Millisecond
	deadline := time.Now().Add(d)
	for m.generate.Load() && time.Now().Before(deadline) {
		time.Sleep(step)
	}
}

// randomNonce picks a random 64-bit nonce start so workers cover disjoint
// regions of the search space.
func randomNonce() uint64 {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return uint64(time.Now().UnixNano())
	}
	return binary.LittleEndian.Uint64(buf[:])
}

// =============================================================================

// generateWork builds a fresh candidate block and wraps it as a work
// entry.
func (m *Miner) generateWork(coinbaseScript []byte) (*Work, error) {
	tpl, err := m.cfg.Assembler.CreateNewBlock(coinbaseScript)
	if err != nil {
		return nil, fmt.Errorf("generate work: %w", err)
	}

	block := tpl.Block
	m.incrementExtraNonce(&block)

	target, err := database.CompactToTarget(block.Header.Bits)
	if err != nil {
		return nil, fmt.Errorf("generate work: %w", err)
	}

	work := newWork(block, database.TargetToBoundary(target))
	m.ev("miner: generateWork: height[%d] sealhash[%s]", work.Height, work.SealHash.BigHex())
	return work, nil
}

// incrementExtraNonce advances the per-parent extra nonce and recomputes
// the merkle root. External miners rely on the root changing between work
// polls; the scriptSig injection itself awaits a protocol change.
func (m *Miner) incrementExtraNonce(block *database.Block) {
	m.extraMu.Lock()
	defer m.extraMu.Unlock()

	if m.lastPrev != block.Header.PrevHash {
		m.extraNonce = 0
		m.lastPrev = block.Header.PrevHash
	}
	m.extraNonce++

	if root, err := block.MerkleRoot(); err == nil {
		block.Header.MerkleRoot = root
	}
}

// =============================================================================

// ProcessBlockFound re-verifies a solved block against the tip and hands
// it to the validation collaborator.
func (m *Miner) ProcessBlockFound(block database.Block) error {
	coinbase, err := block.Coinbase()
	if err != nil {
		return err
	}
	if value, err := coinbase.ValueOut(); err == nil {
		m.ev("miner: ProcessBlockFound: generated %s", value)
	}

	if block.Header.PrevHash != m.cfg.Chain.TipHash() {
		m.ev("miner: ProcessBlockFound: stale block %s", block.Hash())
		return ErrStaleBlock
	}

	if m.cfg.Wallet != nil {
		m.cfg.Wallet.BlockRequestReset(block.Hash())
	}

	if err := m.cfg.Processor.ProcessNewBlock(block); err != nil {
		m.ev("miner: ProcessBlockFound: block not accepted: %s", err)
		return fmt.Errorf("%w: %s", ErrInvalidSolution, err)
	}

	if m.cfg.Notify != nil {
		m.cfg.Notify(block.Hash())
	}
	m.ev("miner: ProcessBlockFound: accepted %s", block.Hash())
	return nil
}

// =============================================================================

// HashesPerSec estimates the pool's hash rate.
func (m *Miner) HashesPerSec() float64 {
	m.hashMu.Lock()
	defer m.hashMu.Unlock()

	if m.threads <= 1 {
		return m.hashesPerSec
	}
	return m.hashesPerSec * float64(m.threads)
}

// SetHashRate records an externally reported hash rate.
func (m *Miner) SetHashRate(rate float64) {
	m.setHashRate(rate)
}

func (m *Miner) setHashRate(rate float64) {
	m.hashMu.Lock()
	defer m.hashMu.Unlock()

	m.hashesPerSec = rate
}

// Works returns a snapshot of the live registry.
func (m *Miner) Works() []*Work {
	return m.works.snapshot()
}
