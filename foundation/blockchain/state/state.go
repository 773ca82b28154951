// Package state is the core API for the node and wires the chain view,
// mempool, template builder and mining engine together.
package state

import (
	"errors"
	"fmt"

	"github.com/platopia-network/platopia/foundation/blockchain/assembler"
	"github.com/platopia-network/platopia/foundation/blockchain/database"
	"github.com/platopia-network/platopia/foundation/blockchain/ethash"
	"github.com/platopia-network/platopia/foundation/blockchain/mempool"
	"github.com/platopia-network/platopia/foundation/blockchain/miner"
	"github.com/platopia-network/platopia/foundation/blockchain/money"
	"github.com/platopia-network/platopia/foundation/blockchain/params"
)

// ErrKeypoolEmpty is returned when no coinbase script is available. It
// fails generation requests without stopping the coordinator.
var ErrKeypoolEmpty = errors.New("keypool ran out, no coinbase script available")

// EventHandler defines a function that is called when events occur in the
// processing of blocks and templates.
type EventHandler func(v string, args ...any)

// Deposit is one interest-bearing output the wallet tracks.
type Deposit struct {
	TxID      database.Hash
	Vout      int
	Value     money.Amount
	Principal money.Amount
	LockTime  uint32
	Height    uint32
}

// Wallet is the injected wallet collaborator: coinbase script reservation
// and deposit enumeration. Key management stays outside this core.
type Wallet interface {
	Script() ([]byte, error)
	KeepScript()
	BlockRequestReset(blockHash database.Hash)
	Deposits() []Deposit
}

// Config represents the configuration required to start the node state.
type Config struct {
	ChainName string
	EvHandler EventHandler

	Wallet Wallet

	// Processor overrides the built-in block connector when the full
	// validation engine hosts this core.
	Processor miner.BlockProcessor

	// Validator overrides the built-in template checks.
	Validator assembler.Validator

	// Dag overrides the ethash dataset engine. Test harnesses substitute
	// a cheap sealer; production leaves it nil.
	Dag miner.Dag

	MinerThreads            int
	MaxGeneratedBlockSize   uint64
	BlockMinFeeRate         assembler.FeeRate
	BlockPriorityPercentage uint8

	// Notify receives the hash of every accepted mined block.
	Notify func(blockHash database.Hash)
}

// State manages the blockchain node.
type State struct {
	params    *params.Params
	evHandler EventHandler
	wallet    Wallet

	chain   *database.Chain
	mempool *mempool.Mempool
	dag     *ethash.Cache
	miner   *miner.Miner
}

// New constructs the node state for the configured network.
func New(cfg Config) (*State, error) {
	ev := func(v string, args ...any) {
		if cfg.EvHandler != nil {
			cfg.EvHandler(v, args...)
		}
	}

	p, err := params.Select(cfg.ChainName)
	if err != nil {
		return nil, err
	}

	chain := database.NewChain(p.Genesis, p.PoW)
	pool := mempool.New()

	dag := ethash.NewCache(func(epoch, done, total uint64) {
		if done%(total/4+1) == 0 {
			ev("state: dag: epoch[%d] rows[%d/%d]", epoch, done, total)
		}
	})

	s := State{
		params:    p,
		evHandler: ev,
		wallet:    cfg.Wallet,
		chain:     chain,
		mempool:   pool,
		dag:       dag,
	}

	validator := cfg.Validator
	if validator == nil {
		validator = &templateChecks{state: &s}
	}

	asm := assembler.New(assembler.Config{
		Chain:                   chain,
		Mempool:                 pool,
		Schedule:                p.Schedule,
		Validator:               validator,
		EvHandler:               assembler.EventHandler(ev),
		MaxBlockSize:            p.MaxBlockSize,
		MaxGeneratedBlockSize:   cfg.MaxGeneratedBlockSize,
		BlockMinFeeRate:         cfg.BlockMinFeeRate,
		BlockPriorityPercentage: cfg.BlockPriorityPercentage,
	})

	processor := cfg.Processor
	if processor == nil {
		processor = &connector{state: &s}
	}

	var coinbaseScript []byte
	if cfg.Wallet != nil {
		if script, err := cfg.Wallet.Script(); err == nil {
			coinbaseScript = script
		}
	}

	var walletHook miner.Wallet
	if cfg.Wallet != nil {
		walletHook = cfg.Wallet
	}

	var dagEngine miner.Dag = dag
	if cfg.Dag != nil {
		dagEngine = cfg.Dag
	}

	s.miner = miner.New(miner.Config{
		EvHandler:      miner.EventHandler(ev),
		Assembler:      asm,
		Chain:          chain,
		Processor:      processor,
		Wallet:         walletHook,
		Dag:            dagEngine,
		CoinbaseScript: coinbaseScript,
		DefaultThreads: threadDefault(cfg.MinerThreads, p),
		Notify:         cfg.Notify,
	})

	return &s, nil
}

func threadDefault(configured int, p *params.Params) int {
	if configured > 0 {
		return configured
	}
	return p.DefaultMinerThreads
}

// Shutdown cleanly brings the node down, stopping all mining activity and
// releasing the dataset handles.
func (s *State) Shutdown() error {
	s.evHandler("state: shutdown: started")
	defer s.evHandler("state: shutdown: completed")

	s.miner.Stop()
	s.dag.Shutdown()
	return nil
}

// =============================================================================

// Params returns the active network parameter set.
func (s *State) Params() *params.Params {
	return s.params
}

// Chain returns the chain view.
func (s *State) Chain() *database.Chain {
	return s.chain
}

// Mempool returns the transaction pool.
func (s *State) Mempool() *mempool.Mempool {
	return s.mempool
}

// Miner returns the mining engine.
func (s *State) Miner() *miner.Miner {
	return s.miner
}

// Genesis returns the network's genesis block.
func (s *State) Genesis() database.Block {
	return s.params.Genesis
}

// ReserveScript returns the wallet's coinbase script provider, failing
// with ErrKeypoolEmpty when the wallet cannot serve one.
func (s *State) ReserveScript() (miner.ReserveScript, error) {
	if s.wallet == nil {
		return nil, ErrKeypoolEmpty
	}
	if _, err := s.wallet.Script(); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrKeypoolEmpty, err)
	}
	return reserveScript{wallet: s.wallet}, nil
}

// reserveScript adapts the wallet to the miner's provider interface.
type reserveScript struct {
	wallet Wallet
}

func (r reserveScript) Script() ([]byte, error) { return r.wallet.Script() }
func (r reserveScript) KeepScript()             { r.wallet.KeepScript() }

// StaticScript wraps a fixed payout script as a provider that keeps
// nothing. Used by generatetoaddress.
type StaticScript []byte

// Script implements the provider interface.
func (s StaticScript) Script() ([]byte, error) { return []byte(s), nil }

// KeepScript is a no-op for static scripts.
func (s StaticScript) KeepScript() {}

// =============================================================================

// connector is the built-in block processor: minimal structural checks
// and a tip extension, used when no external validation engine is wired.
type connector struct {
	state *State
}

// ProcessNewBlock validates the block's seal and connects it to the tip.
func (c *connector) ProcessNewBlock(block database.Block) error {
	s := c.state

	target, err := database.CompactToTarget(block.Header.Bits)
	if err != nil {
		return err
	}
	boundary := database.TargetToBoundary(target)
	sealHash := block.SealHash()
	if !ethash.QuickCheck([32]byte(sealHash), block.Header.Nonce, [32]byte(block.Header.MixHash), [32]byte(boundary)) {
		return fmt.Errorf("block %s misses its boundary", block.Hash())
	}

	root, err := block.MerkleRoot()
	if err != nil {
		return err
	}
	if root != block.Header.MerkleRoot {
		return fmt.Errorf("block %s merkle root mismatch", block.Hash())
	}

	if err := s.chain.Append(block); err != nil {
		return err
	}

	// Mined transactions leave the pool.
	var mined []database.Hash
	for _, tx := range block.Txs {
		if !tx.IsCoinbase() {
			mined = append(mined, tx.ID())
		}
	}
	if len(mined) > 0 {
		s.mempool.RemoveForBlock(mined)
	}

	s.evHandler("state: ProcessNewBlock: connected %s height[%d]", block.Hash(), block.Header.Height)
	return nil
}

// templateChecks is the built-in template validator: structural
// invariants only, standing in for the full consensus engine.
type templateChecks struct {
	state *State
}

// ContextualCheckTransaction enforces the basic shape of a pooled
// transaction at the template's height.
func (t *templateChecks) ContextualCheckTransaction(tx database.Tx, height uint32, lockTimeCutoff int64) error {
	if tx.IsCoinbase() {
		return errors.New("unexpected coinbase in mempool")
	}
	if _, err := tx.ValueOut(); err != nil {
		return err
	}
	if _, err := tx.Fee(); err != nil {
		return err
	}
	return nil
}

// TestBlockValidity runs the cheap whole-template self check.
func (t *templateChecks) TestBlockValidity(block database.Block) error {
	s := t.state

	coinbase, err := block.Coinbase()
	if err != nil {
		return err
	}

	var fees money.Amount
	for _, tx := range block.Txs[1:] {
		fee, err := tx.Fee()
		if err != nil {
			return err
		}
		fees += fee
	}
	subsidy := s.params.Schedule.Subsidy(int32(block.Header.Height))
	if value, _ := coinbase.ValueOut(); value != fees+subsidy {
		return fmt.Errorf("coinbase pays %d, fees plus subsidy are %d", value, fees+subsidy)
	}

	root, err := block.MerkleRoot()
	if err != nil {
		return err
	}
	if root != block.Header.MerkleRoot {
		return errors.New("template merkle root mismatch")
	}

	tipHeader, tipHash := s.chain.Tip()
	if block.Header.PrevHash != tipHash || block.Header.Height != tipHeader.Height+1 {
		return errors.New("template does not extend the tip")
	}
	return nil
}
