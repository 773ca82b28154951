package miner

import (
	"context"
	"sync"
	"time"

	"github.com/platopia-network/platopia/foundation/blockchain/database"
	"github.com/platopia-network/platopia/foundation/blockchain/ethash"
)

// MineBlocks runs the full pipeline synchronously until n blocks have been
// produced and accepted, the per-attempt nonce budget is exhausted with no
// further progress possible, or the context is cancelled. It drives its
// own worker pool and dataset pre-generator for the duration of the call.
func (m *Miner) MineBlocks(ctx context.Context, provider ReserveScript, n int, maxTries uint64, keepScript bool) ([]database.Hash, error) {
	script, err := provider.Script()
	if err != nil {
		return nil, err
	}

	wasRunning := m.generate.Swap(true)
	defer func() {
		if !wasRunning {
			m.generate.Store(false)
			m.works.clear()
			m.setHashRate(0)
		}
	}()

	threads := m.cfg.DefaultThreads
	if threads <= 0 {
		threads = 1
	}

	var wg sync.WaitGroup
	stop := make(chan struct{})
	defer func() {
		close(stop)
		wg.Wait()
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			default:
			}
			m.cfg.Dag.EnsureFull(uint64(m.cfg.Chain.Height()))
			select {
			case <-stop:
				return
			case <-time.After(pregenPoll):
			}
		}
	}()

	for i := 0; i < threads; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				work := m.works.next()
				if work == nil {
					select {
					case <-stop:
						return
					case <-time.After(workerIdle):
					}
					continue
				}
				work.miningThreads.Add(1)
				m.search(work, maxTries)
				if maxTries != 0 && !work.Done() {
					// The nonce budget ran out: end this attempt.
					work.markDeprecated()
				}
				work.miningThreads.Add(-1)
			}
		}()
	}

	var hashes []database.Hash
	for len(hashes) < n {
		if err := ctx.Err(); err != nil {
			return hashes, err
		}

		m.works.clear()
		work, err := m.generateWork(script)
		if err != nil {
			return hashes, err
		}
		work = m.works.add(work)

		for !work.Done() {
			if err := ctx.Err(); err != nil {
				work.markDeprecated()
				return hashes, err
			}
			if work.Deprecated() {
				return hashes, nil
			}
			time.Sleep(dispatchPoll / 10)
		}

		block := work.Block()
		if err := m.ProcessBlockFound(block); err != nil {
			m.works.remove(work.SealHash)
			m.ev("miner: MineBlocks: WARNING: %s", err)
			continue
		}

		hashes = append(hashes, block.Hash())
		m.works.remove(work.SealHash)

		if keepScript {
			provider.KeepScript()
		}
	}

	return hashes, nil
}

// =============================================================================

// GetWork returns the freshest live work entry for the pool protocol,
// creating one when the registry is empty or every entry is stale.
func (m *Miner) GetWork(provider ReserveScript) (*Work, error) {
	script, err := provider.Script()
	if err != nil {
		return nil, err
	}

	work := m.works.next()
	if work == nil {
		fresh, err := m.generateWork(script)
		if err != nil {
			return nil, err
		}
		work = m.works.add(fresh)
	}

	// Prune entries the chain has already passed.
	for work.Height <= m.cfg.Chain.Height() {
		m.works.remove(work.SealHash)
		work = m.works.next()
		if work == nil {
			fresh, err := m.generateWork(script)
			if err != nil {
				return nil, err
			}
			work = m.works.add(fresh)
		}
	}

	return work, nil
}

// SeedHash returns the ethash seed for a work entry's epoch.
func (m *Miner) SeedHash(height uint32) database.Hash {
	return database.Hash(ethash.SeedHash(uint64(height)))
}

// SubmitWork records an externally found solution for the named entry and
// hands the block to validation. It reports whether the block was
// accepted.
func (m *Miner) SubmitWork(sealHash database.Hash, nonce uint64, mixHash database.Hash) bool {
	work := m.works.byHash(sealHash)
	if work == nil {
		m.ev("miner: SubmitWork: no such work %s", sealHash.BigHex())
		return false
	}

	if !ethash.QuickCheck([32]byte(sealHash), nonce, [32]byte(mixHash), [32]byte(work.Boundary)) {
		m.ev("miner: SubmitWork: %s: solution misses the boundary", ErrInvalidSolution)
		return false
	}

	work.setSolution(nonce, mixHash)

	if err := m.ProcessBlockFound(work.Block()); err != nil {
		m.works.remove(work.SealHash)
		return false
	}
	return true
}
