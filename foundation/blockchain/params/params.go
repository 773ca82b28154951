// Package params maintains the per-network consensus parameter sets and
// constructs each network's genesis block.
package params

import (
	"errors"
	"fmt"
	"sync"

	"github.com/platopia-network/platopia/foundation/blockchain/database"
	"github.com/platopia-network/platopia/foundation/blockchain/money"
)

// Network names.
const (
	MainNet = "main"
	TestNet = "test"
	RegTest = "regtest"
)

// ErrUnknownChain is returned when a network name has no parameter set.
var ErrUnknownChain = errors.New("unknown chain")

// Magic is the four byte message start sequence.
type Magic [4]byte

// Base58Prefixes holds the version bytes for address encoding.
type Base58Prefixes struct {
	PubKeyAddress byte
	ScriptAddress byte
	SecretKey     byte
	ExtPublicKey  [4]byte
	ExtSecretKey  [4]byte
}

// Params is the immutable parameter set of one network.
type Params struct {
	Name string

	Schedule money.Schedule
	PoW      database.PoWParams

	DiskMagic   Magic
	NetMagic    Magic
	DefaultPort int

	Base58 Base58Prefixes

	// MaxBlockSize caps accepted blocks; generated blocks stay 1000 bytes
	// under it.
	MaxBlockSize uint64

	// DefaultMinerThreads overrides hardware concurrency when positive.
	DefaultMinerThreads int

	// MineBlocksOnDemand marks networks where blocks are mined on request
	// through RPC generation. The mining engine does not read this flag.
	MineBlocksOnDemand bool

	// MiningRequiresPeers marks networks where mining waits for peers. The
	// mining engine does not read this flag and mines without peers.
	MiningRequiresPeers bool

	Genesis     database.Block
	GenesisHash database.Hash
}

// =============================================================================

var (
	mu      sync.RWMutex
	current *Params
)

// Select makes the named network the process-wide active parameter set.
// Re-selection is only expected from test harnesses.
func Select(name string) (*Params, error) {
	p, err := New(name)
	if err != nil {
		return nil, err
	}

	mu.Lock()
	defer mu.Unlock()
	current = p
	return p, nil
}

// Active returns the process-wide parameter set selected at startup.
func Active() (*Params, error) {
	mu.RLock()
	defer mu.RUnlock()

	if current == nil {
		return nil, errors.New("no chain selected")
	}
	return current, nil
}

// New constructs the parameter set for the named network, building and
// checking its genesis block.
func New(name string) (*Params, error) {
	var p *Params
	switch name {
	case MainNet:
		p = mainParams()
	case TestNet:
		p = testParams()
	case RegTest:
		p = regTestParams()
	default:
		return nil, fmt.Errorf("%w %q", ErrUnknownChain, name)
	}

	if err := buildGenesis(p); err != nil {
		return nil, err
	}
	return p, nil
}

// =============================================================================

// mainLockRates are the authoritative per-100-block-day interest rates.
var mainLockRates = [7]float64{0.0142857, 0.0285714, 0.0428571, 0.0571428, 0.0714285, 0.0857142, 0.0999999}

// regTestLockRates carry the source chain's hundredfold regtest override.
// Test-only; the main rates are authoritative for consensus.
var regTestLockRates = [7]float64{1.42857, 2.85714, 4.28571, 5.71428, 7.14285, 8.57142, 9.99999}

// oldChainInterest is the interest distributed by the predecessor chain,
// identical on every network.
const oldChainInterest money.Amount = 39_168_290_492_526_951

const totalInterest money.Amount = 240_000_000_000_000_000

func lockThresholds(blocksPerDay int32) [8]int32 {
	return [8]int32{
		16 * blocksPerDay, 32 * blocksPerDay, 64 * blocksPerDay,
		128 * blocksPerDay, 256 * blocksPerDay, 512 * blocksPerDay,
		1024 * blocksPerDay, 1024 * blocksPerDay,
	}
}

func mainParams() *Params {
	const blocksPerDay = 960
	const daysPerCentury = 300

	return &Params{
		Name: MainNet,
		Schedule: money.Schedule{
			BlocksPerDay:     blocksPerDay,
			DaysPerCentury:   daysPerCentury,
			BlocksPerCentury: blocksPerDay * daysPerCentury,
			DecayNum:         9,
			DecayDen:         10,
			OldChainHeight:   1_440_000,
			OldChainInterest: oldChainInterest,
			TotalInterest:    totalInterest,
			LockThresholds:   lockThresholds(blocksPerDay),
			LockRates:        mainLockRates,
		},
		PoW: database.PoWParams{
			TargetTimespan: 24 * 60 * 60,
			TargetSpacing:  90,
			LimitBits:      0x1d00ffff,
		},
		DiskMagic:   Magic{0xfc, 0xb0, 0xed, 0xee},
		NetMagic:    Magic{0xfc, 0xf0, 0xed, 0xee},
		DefaultPort: 41319,
		Base58: Base58Prefixes{
			PubKeyAddress: 0x38,
			ScriptAddress: 5,
			SecretKey:     128,
			ExtPublicKey:  [4]byte{0x04, 0x88, 0xb2, 0x1e},
			ExtSecretKey:  [4]byte{0x04, 0x88, 0xad, 0xe4},
		},
		MaxBlockSize:        8_000_000,
		MiningRequiresPeers: true,
	}
}

func testParams() *Params {
	const blocksPerDay = 960
	const daysPerCentury = 300

	return &Params{
		Name: TestNet,
		Schedule: money.Schedule{
			BlocksPerDay:     blocksPerDay,
			DaysPerCentury:   daysPerCentury,
			BlocksPerCentury: blocksPerDay * daysPerCentury,
			DecayNum:         9,
			DecayDen:         10,
			OldChainHeight:   1_440_000,
			OldChainInterest: oldChainInterest,
			TotalInterest:    totalInterest,
			LockThresholds:   lockThresholds(blocksPerDay),
			LockRates:        mainLockRates,
		},
		PoW: database.PoWParams{
			TargetTimespan: 10 * 60,
			TargetSpacing:  10,
			LimitBits:      0x2200ffff,
		},
		DiskMagic:   Magic{0x0b, 0x11, 0x09, 0x07},
		NetMagic:    Magic{0x0b, 0x11, 0x09, 0x07},
		DefaultPort: 21319,
		Base58: Base58Prefixes{
			PubKeyAddress: 0x38,
			ScriptAddress: 196,
			SecretKey:     128,
			ExtPublicKey:  [4]byte{0x04, 0x35, 0x87, 0xcf},
			ExtSecretKey:  [4]byte{0x04, 0x35, 0x83, 0x94},
		},
		MaxBlockSize:        8_000_000,
		MiningRequiresPeers: true,
	}
}

func regTestParams() *Params {
	const blocksPerDay = 10
	const daysPerCentury = 30

	return &Params{
		Name: RegTest,
		Schedule: money.Schedule{
			BlocksPerDay:     blocksPerDay,
			DaysPerCentury:   daysPerCentury,
			BlocksPerCentury: blocksPerDay * daysPerCentury,
			DecayNum:         9,
			DecayDen:         10,
			OldChainHeight:   1500,
			OldChainInterest: oldChainInterest,
			TotalInterest:    totalInterest,
			LockThresholds:   lockThresholds(blocksPerDay),
			LockRates:        regTestLockRates,
		},
		PoW: database.PoWParams{
			TargetTimespan:     60,
			TargetSpacing:      10,
			LimitBits:          0x207fffff,
			AllowMinDifficulty: true,
			NoRetargeting:      true,
		},
		DiskMagic:   Magic{0xfa, 0xbf, 0xb5, 0xda},
		NetMagic:    Magic{0xda, 0xb5, 0xbf, 0xfa},
		DefaultPort: 18444,
		Base58: Base58Prefixes{
			PubKeyAddress: 0x38,
			ScriptAddress: 196,
			SecretKey:     128,
			ExtPublicKey:  [4]byte{0x04, 0x35, 0x87, 0xcf},
			ExtSecretKey:  [4]byte{0x04, 0x35, 0x83, 0x94},
		},
		MaxBlockSize:        8_000_000,
		DefaultMinerThreads: 1,
		MineBlocksOnDemand:  true,
	}
}
