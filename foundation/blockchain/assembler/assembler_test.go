package assembler_test

import (
	"testing"

	"github.com/platopia-network/platopia/foundation/blockchain/assembler"
	"github.com/platopia-network/platopia/foundation/blockchain/database"
	"github.com/platopia-network/platopia/foundation/blockchain/mempool"
	"github.com/platopia-network/platopia/foundation/blockchain/money"
)

// Success and failure markers.
const (
	success = "✓"
	failed  = "✗"
)

// acceptAll is a validator that approves every transaction and block.
type acceptAll struct{}

func (acceptAll) ContextualCheckTransaction(tx database.Tx, height uint32, lockTimeCutoff int64) error {
	return nil
}
func (acceptAll) TestBlockValidity(block database.Block) error { return nil }

// rejectTx refuses one specific transaction.
type rejectTx struct {
	txID database.Hash
}

func (r rejectTx) ContextualCheckTransaction(tx database.Tx, height uint32, lockTimeCutoff int64) error {
	if tx.ID() == r.txID {
		return assembler.ErrTemplateBuildFailed
	}
	return nil
}
func (rejectTx) TestBlockValidity(block database.Block) error { return nil }

// =============================================================================

// testSchedule is a small regtest-like issuance schedule.
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
		LockThresholds: [8]int32{
			16 * blocksPerDay, 32 * blocksPerDay, 64 * blocksPerDay,
			128 * blocksPerDay, 256 * blocksPerDay, 512 * blocksPerDay,
			1024 * blocksPerDay, 1024 * blocksPerDay,
		},
		LockRates: [7]float64{1.42857, 2.85714, 4.28571, 5.71428, 7.14285, 8.57142, 9.99999},
	}
}

// testChain builds a single-block chain with relaxed difficulty.
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

// spend constructs a transaction spending one output.
func spend(parent database.Hash, index uint32, in, out money.Amount, marker byte) database.Tx {
	return database.Tx{
		Version: database.CurrentTxVersion,
		Ins: []database.TxIn{{
			PrevOut:   database.OutPoint{Hash: parent, Index: index, Value: in},
			ScriptSig: []byte{0x51, marker},
		}},
		Outs: []database.TxOut{{
			Value:        out,
			ScriptPubKey: []byte{0x76, 0xa9, marker},
		}},
	}
}

func confirmed(seed byte) database.Hash {
	var h database.Hash
	h[0] = seed
	h[31] = 0x99
	return h
}

func config(chain *database.Chain, mp *mempool.Mempool) assembler.Config {
	return assembler.Config{
		Chain:                   chain,
		Mempool:                 mp,
		Schedule:                testSchedule(),
		Validator:               acceptAll{},
		MaxBlockSize:            8_000_000,
		MaxGeneratedBlockSize:   100_000,
		BlockMinFeeRate:         assembler.FeeRate(1000),
		BlockPriorityPercentage: 0,
	}
}

// =============================================================================

func Test_EmptyMempoolTemplate(t *testing.T) {
	t.Log("Given the need to build a template over an empty mempool.")
	{
		chain := testChain()
		cfg := config(chain, mempool.New())

		tpl, err := assembler.New(cfg).CreateNewBlock([]byte{0x76, 0xa9, 0xac})
		if err != nil {
			t.Fatalf("\t%s\tShould build the template: %v", failed, err)
		}
		t.Logf("\t%s\tShould build the template.", success)

		if len(tpl.Block.Txs) != 1 {
			t.Fatalf("\t%s\tShould hold only the coinbase: got %d txs", failed, len(tpl.Block.Txs))
		}
		t.Logf("\t%s\tShould hold only the coinbase.", success)

		subsidy := cfg.Schedule.Subsidy(1)
		if tpl.Block.Txs[0].Outs[0].Value != subsidy {
			t.Fatalf("\t%s\tShould credit exactly the subsidy: got %d exp %d", failed, tpl.Block.Txs[0].Outs[0].Value, subsidy)
		}
		t.Logf("\t%s\tShould credit exactly the subsidy.", success)

		if tpl.Block.Header.PrevHash != chain.TipHash() || tpl.Block.Header.Height != 1 {
			t.Fatalf("\t%s\tShould extend the tip.", failed)
		}
		t.Logf("\t%s\tShould extend the tip.", success)

		if tpl.Block.Header.Nonce != 0 {
			t.Fatalf("\t%s\tShould leave the nonce for the miner.", failed)
		}
		t.Logf("\t%s\tShould leave the nonce for the miner.", success)
	}
}

func Test_PackageSelectionOrdering(t *testing.T) {
	t.Log("Given the need to validate package-aware selection pulls cheap parents in.")
	{
		chain := testChain()
		mp := mempool.New()

		// Parent A alone is below the fee floor. Child B lifts the A+B
		// package above it.
		txA := spend(confirmed(1), 0, 10*money.COIN, 10*money.COIN-10, 1)
		entryA, err := mp.Upsert(txA, 10, 1, 0, nil)
		if err != nil {
			t.Fatalf("\t%s\tShould admit parent A: %v", failed, err)
		}
		txB := spend(entryA.TxID, 0, 10*money.COIN-10, 10*money.COIN-50_010, 2)
		entryB, err := mp.Upsert(txB, 50_000, 1, 0, nil)
		if err != nil {
			t.Fatalf("\t%s\tShould admit child B: %v", failed, err)
		}

		// C pays nothing and stays out.
		txC := spend(confirmed(2), 0, 10*money.COIN, 10*money.COIN, 3)
		entryC, err := mp.Upsert(txC, 0, 1, 0, nil)
		if err != nil {
			t.Fatalf("\t%s\tShould admit free rider C: %v", failed, err)
		}

		tpl, err := assembler.New(config(chain, mp)).CreateNewBlock([]byte{0xac})
		if err != nil {
			t.Fatalf("\t%s\tShould build the template: %v", failed, err)
		}
		t.Logf("\t%s\tShould build the template.", success)

		if len(tpl.Block.Txs) != 3 {
			t.Fatalf("\t%s\tShould include exactly the A+B package: got %d txs", failed, len(tpl.Block.Txs))
		}
		if tpl.Block.Txs[1].ID() != entryA.TxID || tpl.Block.Txs[2].ID() != entryB.TxID {
			t.Fatalf("\t%s\tShould emit A before B.", failed)
		}
		t.Logf("\t%s\tShould emit the A+B package in order.", success)

		for _, tx := range tpl.Block.Txs {
			if tx.ID() == entryC.TxID {
				t.Fatalf("\t%s\tShould leave the free rider out.", failed)
			}
		}
		t.Logf("\t%s\tShould leave the free rider out.", success)

		if exp := money.Amount(50_010); tpl.TxFees[0] != -exp {
			t.Fatalf("\t%s\tShould account the fees in the coinbase slot: got %d", failed, tpl.TxFees[0])
		}
		subsidy := testSchedule().Subsidy(1)
		if tpl.Block.Txs[0].Outs[0].Value != subsidy+50_010 {
			t.Fatalf("\t%s\tShould credit fees plus subsidy.", failed)
		}
		t.Logf("\t%s\tShould credit fees plus subsidy.", success)
	}
}

func Test_PriorityReservation(t *testing.T) {
	t.Log("Given the need to validate the priority share of the block.")
	{
		chain := testChain()
		mp := mempool.New()

		// Aged, valuable, zero-fee coins: massive coin-age priority.
		var priorityIDs []database.Hash
		for i := byte(0); i < 5; i++ {
			tx := spend(confirmed(10+i), 0, 1000*money.COIN, 1000*money.COIN, 10+i)
			entry, err := mp.Upsert(tx, 0, 1, 2000, []mempool.InputCoin{{Value: 1000 * money.COIN, Height: 0}})
			if err != nil {
				t.Fatalf("\t%s\tShould admit priority tx: %v", failed, err)
			}
			priorityIDs = append(priorityIDs, entry.TxID)
		}

		// Fresh coins paying real fees.
		var feeIDs []database.Hash
		for i := byte(0); i < 5; i++ {
			tx := spend(confirmed(50+i), 0, 10*money.COIN, 10*money.COIN-40_000, 50+i)
			entry, err := mp.Upsert(tx, 40_000, 1, 2000, []mempool.InputCoin{{Value: 10 * money.COIN, Height: 2000}})
			if err != nil {
				t.Fatalf("\t%s\tShould admit fee tx: %v", failed, err)
			}
			feeIDs = append(feeIDs, entry.TxID)
		}

		cfg := config(chain, mp)
		cfg.BlockPriorityPercentage = 50

		tpl, err := assembler.New(cfg).CreateNewBlock([]byte{0xac})
		if err != nil {
			t.Fatalf("\t%s\tShould build the template: %v", failed, err)
		}
		t.Logf("\t%s\tShould build the template.", success)

		if len(tpl.Block.Txs) != 11 {
			t.Fatalf("\t%s\tShould include all ten transactions: got %d", failed, len(tpl.Block.Txs))
		}
		t.Logf("\t%s\tShould include all ten transactions.", success)

		isPriority := make(map[database.Hash]bool)
		for _, txID := range priorityIDs {
			isPriority[txID] = true
		}
		for i := 1; i <= 5; i++ {
			if !isPriority[tpl.Block.Txs[i].ID()] {
				t.Fatalf("\t%s\tShould source the leading slots from the priority heap.", failed)
			}
		}
		t.Logf("\t%s\tShould source the leading slots from the priority heap.", success)

		isFee := make(map[database.Hash]bool)
		for _, txID := range feeIDs {
			isFee[txID] = true
		}
		for i := 6; i <= 10; i++ {
			if !isFee[tpl.Block.Txs[i].ID()] {
				t.Fatalf("\t%s\tShould fill the remainder by fee rate.", failed)
			}
		}
		t.Logf("\t%s\tShould fill the remainder by fee rate.", success)
	}
}

func Test_TemplateReproducibility(t *testing.T) {
	t.Log("Given the need to validate identical inputs give identical templates.")
	{
		chain := testChain()
		mp := mempool.New()

		for i := byte(0); i < 20; i++ {
			fee := money.Amount(1000 + int64(i)*173)
			tx := spend(confirmed(i), 0, 10*money.COIN, 10*money.COIN-fee, i)
			if _, err := mp.Upsert(tx, fee, 1, 10, nil); err != nil {
				t.Fatalf("\t%s\tShould admit tx %d: %v", failed, i, err)
			}
		}

		first, err := assembler.New(config(chain, mp)).CreateNewBlock([]byte{0xac})
		if err != nil {
			t.Fatalf("\t%s\tShould build the first template: %v", failed, err)
		}
		second, err := assembler.New(config(chain, mp)).CreateNewBlock([]byte{0xac})
		if err != nil {
			t.Fatalf("\t%s\tShould build the second template: %v", failed, err)
		}

		if len(first.Block.Txs) != len(second.Block.Txs) {
			t.Fatalf("\t%s\tShould select the same transaction count.", failed)
		}
		for i := range first.Block.Txs[1:] {
			if first.Block.Txs[i+1].ID() != second.Block.Txs[i+1].ID() {
				t.Fatalf("\t%s\tShould emit the same sequence at position %d.", failed, i+1)
			}
		}
		t.Logf("\t%s\tShould emit identical transaction sequences.", success)
	}
}

func Test_TopologicalOrder(t *testing.T) {
	t.Log("Given the need to validate ancestors always precede descendants.")
	{
		chain := testChain()
		mp := mempool.New()

		parent := spend(confirmed(70), 0, 100*money.COIN, 100*money.COIN-5000, 70)
		parentEntry, err := mp.Upsert(parent, 5000, 1, 10, nil)
		if err != nil {
			t.Fatalf("\t%s\tShould admit the parent: %v", failed, err)
		}
		mid := spend(parentEntry.TxID, 0, 100*money.COIN-5000, 100*money.COIN-15_000, 71)
		midEntry, err := mp.Upsert(mid, 10_000, 1, 10, nil)
		if err != nil {
			t.Fatalf("\t%s\tShould admit the middle: %v", failed, err)
		}
		leaf := spend(midEntry.TxID, 0, 100*money.COIN-15_000, 100*money.COIN-90_000, 72)
		if _, err := mp.Upsert(leaf, 75_000, 1, 10, nil); err != nil {
			t.Fatalf("\t%s\tShould admit the leaf: %v", failed, err)
		}

		tpl, err := assembler.New(config(chain, mp)).CreateNewBlock([]byte{0xac})
		if err != nil {
			t.Fatalf("\t%s\tShould build the template: %v", failed, err)
		}

		position := make(map[database.Hash]int)
		for i, tx := range tpl.Block.Txs {
			position[tx.ID()] = i
		}
		for i, tx := range tpl.Block.Txs {
			if i == 0 {
				continue
			}
			for _, in := range tx.Ins {
				if pos, inBlock := position[in.PrevOut.Hash]; inBlock && pos > i {
					t.Fatalf("\t%s\tShould place ancestors before descendants.", failed)
				}
			}
		}
		t.Logf("\t%s\tShould place ancestors before descendants.", success)
	}
}

func Test_SizeBound(t *testing.T) {
	t.Log("Given the need to validate the generated size cap.")
	{
		chain := testChain()
		mp := mempool.New()

		for i := 0; i < 200; i++ {
			fee := money.Amount(5000)
			tx := spend(confirmed(byte(i%250)), uint32(i), 10*money.COIN, 10*money.COIN-fee, byte(i))
			if _, err := mp.Upsert(tx, fee, 1, 10, nil); err != nil {
				t.Fatalf("\t%s\tShould admit tx %d: %v", failed, i, err)
			}
		}

		cfg := config(chain, mp)
		cfg.MaxGeneratedBlockSize = 5000

		tpl, err := assembler.New(cfg).CreateNewBlock([]byte{0xac})
		if err != nil {
			t.Fatalf("\t%s\tShould build the template: %v", failed, err)
		}

		var txBytes uint64
		for _, tx := range tpl.Block.Txs[1:] {
			txBytes += uint64(tx.SerializedSize())
		}
		if txBytes+1000 > cfg.MaxGeneratedBlockSize {
			t.Fatalf("\t%s\tShould stay under the cap: %d bytes plus coinbase reserve", failed, txBytes)
		}
		t.Logf("\t%s\tShould stay under the cap.", success)

		if len(tpl.Block.Txs) == 1 || len(tpl.Block.Txs) == 201 {
			t.Fatalf("\t%s\tShould fill part of the pool: got %d txs", failed, len(tpl.Block.Txs))
		}
		t.Logf("\t%s\tShould fill part of the pool.", success)
	}
}

func Test_ContextualRejection(t *testing.T) {
	t.Log("Given the need to validate a failing contextual check excludes the tx.")
	{
		chain := testChain()
		mp := mempool.New()

		good := spend(confirmed(80), 0, 10*money.COIN, 10*money.COIN-9000, 80)
		goodEntry, err := mp.Upsert(good, 9000, 1, 10, nil)
		if err != nil {
			t.Fatalf("\t%s\tShould admit the good tx: %v", failed, err)
		}
		bad := spend(confirmed(81), 0, 10*money.COIN, 10*money.COIN-9000, 81)
		badEntry, err := mp.Upsert(bad, 9000, 1, 10, nil)
		if err != nil {
			t.Fatalf("\t%s\tShould admit the bad tx: %v", failed, err)
		}

		cfg := config(chain, mp)
		cfg.Validator = rejectTx{txID: badEntry.TxID}

		tpl, err := assembler.New(cfg).CreateNewBlock([]byte{0xac})
		if err != nil {
			t.Fatalf("\t%s\tShould build the template: %v", failed, err)
		}

		if len(tpl.Block.Txs) != 2 || tpl.Block.Txs[1].ID() != goodEntry.TxID {
			t.Fatalf("\t%s\tShould include only the passing tx.", failed)
		}
		t.Logf("\t%s\tShould include only the passing tx.", success)
	}
}
