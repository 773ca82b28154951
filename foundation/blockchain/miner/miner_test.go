package miner_test

import (
	"context"
	"encoding/binary"
	"sync/atomic"
	"testing"
	"time"

	"github.com/platopia-network/platopia/foundation/blockchain/assembler"
	"github.com/platopia-network/platopia/foundation/blockchain/database"
	"github.com/platopia-network/platopia/foundation/blockchain/ethash"
	"github.com/platopia-network/platopia/foundation/blockchain/mempool"
	"github.com/platopia-network/platopia/foundation/blockchain/miner"
	"github.com/platopia-network/platopia/foundation/blockchain/money"
)

// Success and failure markers.
const (
	success = "✓"
	failed  = "✗"
)

// stubDag is a sealer with no dataset cost. The digest is deterministic in
// (sealHash, nonce); the genuine quick check decides whether a nonce wins,
// so the relaxed regtest boundary is found within a few tries.
type stubDag struct {
	ready     atomic.Bool
	shutdowns atomic.Int32
}

// EnsureFull leaves readiness to each test, so a stub never marked ready
// keeps workers spinning without solving.
func (d *stubDag) EnsureFull(height uint64) {}

func (d *stubDag) Compute(height uint64, sealHash [32]byte, nonce uint64) ([32]byte, [32]byte, error) {
	if !d.ready.Load() {
		return [32]byte{}, [32]byte{}, ethash.ErrDagUnavailable
	}
	var digest [32]byte
	copy(digest[:], sealHash[:])
	binary.LittleEndian.PutUint64(digest[24:], nonce)
	return digest, [32]byte{}, nil
}

func (d *stubDag) Shutdown() {
	d.shutdowns.Add(1)
}

// appendProcessor connects accepted blocks straight onto the chain view.
type appendProcessor struct {
	chain    *database.Chain
	accepted atomic.Int32
}

func (p *appendProcessor) ProcessNewBlock(block database.Block) error {
	if err := p.chain.Append(block); err != nil {
		return err
	}
	p.accepted.Add(1)
	return nil
}

// scriptProvider is a trivial reserve script source.
type scriptProvider struct {
	kept atomic.Int32
}

func (p *scriptProvider) Script() ([]byte, error) { return []byte{0x76, 0xa9, 0xac}, nil }
func (p *scriptProvider) KeepScript()             { p.kept.Add(1) }

// =============================================================================

func testSchedule() money.Schedule {
	const blocksPerDay = 10
	return money.Schedule{
		BlocksPerDay:     blocksPerDay,
		DaysPerCentury:   30,
		BlocksPerCentury: blocksPerDay * 30,
		DecayNum:         9,
		DecayDen:         10,
		OldChainHeight:   1500,
		TotalInterest:    240_000_000_000_000_000,
	}
}

func testChain() *database.Chain {
	genesis := database.Block{
		Header: database.BlockHeader{
			BaseHeader: database.BaseHeader{
				Version: database.CurrentBlockVersion,
				Time:    1512403200,
				Bits:    0x207fffff,
			},
		},
		Txs: []database.Tx{database.NewCoinbaseTx(0, []byte{0x51}, money.COIN)},
	}
	return database.NewChain(genesis, database.PoWParams{
		TargetTimespan: 60,
		TargetSpacing:  10,
		LimitBits:      0x207fffff,
		NoRetargeting:  true,
	})
}

func testMiner(chain *database.Chain, dag miner.Dag, processor miner.BlockProcessor) *miner.Miner {
	asm := assembler.New(assembler.Config{
		Chain:                 chain,
		Mempool:               mempool.New(),
		Schedule:              testSchedule(),
		MaxBlockSize:          8_000_000,
		MaxGeneratedBlockSize: 100_000,
		BlockMinFeeRate:       assembler.FeeRate(1000),
	})

	return miner.New(miner.Config{
		Assembler:      asm,
		Chain:          chain,
		Processor:      processor,
		Dag:            dag,
		CoinbaseScript: []byte{0x76, 0xa9, 0xac},
		DefaultThreads: 1,
	})
}

// waitFor polls a condition until it holds or the deadline passes.
func waitFor(t *testing.T, timeout time.Duration, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(50 * time.Millisecond)
	}
	t.Fatalf("\t%s\tTimed out waiting for %s.", failed, what)
}

// =============================================================================

func Test_MineOne(t *testing.T) {
	t.Log("Given the need to mine a single block over an empty mempool.")
	{
		chain := testChain()
		dag := &stubDag{}
		dag.ready.Store(true)
		processor := &appendProcessor{chain: chain}
		m := testMiner(chain, dag, processor)

		provider := &scriptProvider{}
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		hashes, err := m.MineBlocks(ctx, provider, 1, 0, true)
		if err != nil {
			t.Fatalf("\t%s\tShould mine the block: %v", failed, err)
		}
		if len(hashes) != 1 {
			t.Fatalf("\t%s\tShould return one block hash: got %d", failed, len(hashes))
		}
		t.Logf("\t%s\tShould mine the block.", success)

		if chain.Height() != 1 || chain.TipHash() != hashes[0] {
			t.Fatalf("\t%s\tShould extend the chain by one block.", failed)
		}
		t.Logf("\t%s\tShould extend the chain by one block.", success)

		if provider.kept.Load() != 1 {
			t.Fatalf("\t%s\tShould keep the reserve script once.", failed)
		}
		t.Logf("\t%s\tShould keep the reserve script once.", success)
	}
}

func Test_WorkRegistryUniqueness(t *testing.T) {
	t.Log("Given the need to validate one live entry per seal hash.")
	{
		chain := testChain()
		dag := &stubDag{}
		processor := &appendProcessor{chain: chain}
		m := testMiner(chain, dag, processor)

		provider := &scriptProvider{}
		first, err := m.GetWork(provider)
		if err != nil {
			t.Fatalf("\t%s\tShould hand out work: %v", failed, err)
		}
		t.Logf("\t%s\tShould hand out work.", success)

		second, err := m.GetWork(provider)
		if err != nil {
			t.Fatalf("\t%s\tShould hand out work again: %v", failed, err)
		}
		if first.SealHash != second.SealHash {
			t.Fatalf("\t%s\tShould reuse the live entry while the tip stands.", failed)
		}
		t.Logf("\t%s\tShould reuse the live entry while the tip stands.", success)

		seen := make(map[database.Hash]bool)
		for _, work := range m.Works() {
			if seen[work.SealHash] {
				t.Fatalf("\t%s\tShould never register a seal hash twice.", failed)
			}
			seen[work.SealHash] = true
		}
		t.Logf("\t%s\tShould never register a seal hash twice.", success)
	}
}

func Test_SubmitWork(t *testing.T) {
	t.Log("Given the need to validate the pool submission path.")
	{
		chain := testChain()
		dag := &stubDag{}
		dag.ready.Store(true)
		processor := &appendProcessor{chain: chain}
		m := testMiner(chain, dag, processor)

		provider := &scriptProvider{}
		work, err := m.GetWork(provider)
		if err != nil {
			t.Fatalf("\t%s\tShould hand out work: %v", failed, err)
		}

		// Scan for a nonce that genuinely clears the boundary.
		var nonce uint64
		var mix database.Hash
		found := false
		for n := uint64(0); n < 100_000; n++ {
			digest, _, _ := dag.Compute(uint64(work.Height), [32]byte(work.SealHash), n)
			if ethash.QuickCheck([32]byte(work.SealHash), n, digest, [32]byte(work.Boundary)) {
				nonce, mix, found = n, database.Hash(digest), true
				break
			}
		}
		if !found {
			t.Fatalf("\t%s\tShould find a boundary-clearing nonce.", failed)
		}
		t.Logf("\t%s\tShould find a boundary-clearing nonce.", success)

		if !m.SubmitWork(work.SealHash, nonce, mix) {
			t.Fatalf("\t%s\tShould accept the solution.", failed)
		}
		t.Logf("\t%s\tShould accept the solution.", success)

		if chain.Height() != 1 {
			t.Fatalf("\t%s\tShould connect the solved block.", failed)
		}
		t.Logf("\t%s\tShould connect the solved block.", success)

		if m.SubmitWork(database.Hash{0x01}, nonce, mix) {
			t.Fatalf("\t%s\tShould reject an unknown seal hash.", failed)
		}
		t.Logf("\t%s\tShould reject an unknown seal hash.", success)
	}
}

func Test_Deprecation(t *testing.T) {
	t.Log("Given the need to validate stale work is deprecated and replaced.")
	{
		chain := testChain()
		dag := &stubDag{} // never ready: workers spin without solving
		processor := &appendProcessor{chain: chain}
		m := testMiner(chain, dag, processor)

		m.Start(1)
		defer m.Stop()

		waitFor(t, 10*time.Second, "the first candidate", func() bool {
			works := m.Works()
			return len(works) == 1 && works[0].Height == 1
		})
		t.Logf("\t%s\tShould register a candidate at height 1.", success)

		// An externally received block lands at the candidate height.
		tipHeader, tipHash := chain.Tip()
		external := database.Block{
			Header: database.BlockHeader{
				BaseHeader: database.BaseHeader{
					Version:       database.CurrentBlockVersion,
					PrevHash:      tipHash,
					Height:        1,
					Time:          tipHeader.Time + 20,
					ChainInterest: tipHeader.ChainInterest,
					Bits:          0x207fffff,
				},
			},
			Txs: []database.Tx{database.NewCoinbaseTx(1, []byte{0x51}, money.COIN)},
		}
		if err := chain.Append(external); err != nil {
			t.Fatalf("\t%s\tShould connect the external block: %v", failed, err)
		}
		t.Logf("\t%s\tShould connect the external block.", success)

		waitFor(t, 15*time.Second, "a fresh candidate on the new tip", func() bool {
			for _, work := range m.Works() {
				if work.Height == 2 && !work.Deprecated() {
					return true
				}
			}
			return false
		})
		t.Logf("\t%s\tShould rebuild against the new tip.", success)

		for _, work := range m.Works() {
			if work.Height <= 1 {
				t.Fatalf("\t%s\tShould remove the deprecated candidate.", failed)
			}
		}
		t.Logf("\t%s\tShould remove the deprecated candidate.", success)
	}
}

func Test_StopReleasesEverything(t *testing.T) {
	t.Log("Given the need to validate shutdown releases all handles.")
	{
		chain := testChain()
		dag := &stubDag{}
		processor := &appendProcessor{chain: chain}
		m := testMiner(chain, dag, processor)

		m.Start(2)
		waitFor(t, 10*time.Second, "the miner to spin up", func() bool { return m.Mining() })

		m.Stop()

		if m.Mining() {
			t.Fatalf("\t%s\tShould stop mining.", failed)
		}
		t.Logf("\t%s\tShould stop mining.", success)

		if len(m.Works()) != 0 {
			t.Fatalf("\t%s\tShould clear the work registry.", failed)
		}
		t.Logf("\t%s\tShould clear the work registry.", success)

		if dag.shutdowns.Load() == 0 {
			t.Fatalf("\t%s\tShould release the dataset handles.", failed)
		}
		t.Logf("\t%s\tShould release the dataset handles.", success)
	}
}
