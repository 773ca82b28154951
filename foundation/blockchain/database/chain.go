package database

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/holiman/uint256"
)

// ErrChainMismatch is returned when a block does not extend the tip.
var ErrChainMismatch = errors.New("block does not extend the chain tip")

// medianTimeSpan is the number of trailing blocks the median time past is
// computed over.
const medianTimeSpan = 11

// PoWParams carries the difficulty parameters the chain view needs. The
// full consensus engine lives outside this package.
type PoWParams struct {
	TargetTimespan     int64
	TargetSpacing      int64
	LimitBits          uint32
	AllowMinDifficulty bool
	NoRetargeting      bool
}

// AdjustmentInterval is the number of blocks between difficulty retargets.
func (p PoWParams) AdjustmentInterval() int64 {
	return p.TargetTimespan / p.TargetSpacing
}

// =============================================================================

// Chain is an in-memory view of the active header chain. It carries enough
// state for template building and work dispatch: the tip, recent
// timestamps, and the accumulated chain interest.
type Chain struct {
	mu      sync.RWMutex
	pow     PoWParams
	headers []BlockHeader
	hashes  []Hash
}

// NewChain constructs a chain view rooted at the genesis block.
func NewChain(genesis Block, pow PoWParams) *Chain {
	return &Chain{
		pow:     pow,
		headers: []BlockHeader{genesis.Header},
		hashes:  []Hash{genesis.Hash()},
	}
}

// Height returns the tip height.
func (c *Chain) Height() uint32 {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.headers[len(c.headers)-1].Height
}

// TipHash returns the tip block hash.
func (c *Chain) TipHash() Hash {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.hashes[len(c.hashes)-1]
}

// Tip returns the tip header and its hash.
func (c *Chain) Tip() (BlockHeader, Hash) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.headers[len(c.headers)-1], c.hashes[len(c.hashes)-1]
}

// HeaderAt returns the header at the given height.
func (c *Chain) HeaderAt(height uint32) (BlockHeader, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if int(height) >= len(c.headers) {
		return BlockHeader{}, fmt.Errorf("no header at height %d", height)
	}
	return c.headers[height], nil
}

// Append extends the chain with a block that must connect to the tip.
func (c *Chain) Append(block Block) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	tip := c.headers[len(c.headers)-1]
	tipHash := c.hashes[len(c.hashes)-1]

	if block.Header.PrevHash != tipHash {
		return fmt.Errorf("prev %s tip %s: %w", block.Header.PrevHash, tipHash, ErrChainMismatch)
	}
	if block.Header.Height != tip.Height+1 {
		return fmt.Errorf("height %d tip %d: %w", block.Header.Height, tip.Height, ErrChainMismatch)
	}
	if block.Header.ChainInterest < tip.ChainInterest {
		return fmt.Errorf("chain interest regressed: %w", ErrChainMismatch)
	}

	c.headers = append(c.headers, block.Header)
	c.hashes = append(c.hashes, block.Hash())
	return nil
}

// MedianTimePast returns the median timestamp of the trailing window
// ending at the tip.
func (c *Chain) MedianTimePast() uint32 {
	c.mu.RLock()
	defer c.mu.RUnlock()

	n := len(c.headers)
	span := medianTimeSpan
	if n < span {
		span = n
	}
	times := make([]uint32, 0, span)
	for i := n - span; i < n; i++ {
		times = append(times, c.headers[i].Time)
	}
	sort.Slice(times, func(i, j int) bool { return times[i] < times[j] })
	return times[span/2]
}

// NextWorkRequired computes the difficulty bits for a block extending the
// tip with the given timestamp.
func (c *Chain) NextWorkRequired(newBlockTime uint32) uint32 {
	c.mu.RLock()
	defer c.mu.RUnlock()

	tip := c.headers[len(c.headers)-1]

	if c.pow.NoRetargeting {
		return tip.Bits
	}

	if c.pow.AllowMinDifficulty {
		// A block may be mined at the minimum difficulty when it arrives
		// more than twice the target spacing after its parent.
		if int64(newBlockTime) > int64(tip.Time)+2*c.pow.TargetSpacing {
			return c.pow.LimitBits
		}
	}

	interval := c.pow.AdjustmentInterval()
	if interval <= 0 || (int64(tip.Height)+1)%interval != 0 {
		return tip.Bits
	}

	// Retarget against the actual timespan of the last interval, clamped
	// to a factor of four either way.
	firstIdx := int64(len(c.headers)) - interval
	if firstIdx < 0 {
		firstIdx = 0
	}
	first := c.headers[firstIdx]

	actual := int64(tip.Time) - int64(first.Time)
	if actual < c.pow.TargetTimespan/4 {
		actual = c.pow.TargetTimespan / 4
	}
	if actual > c.pow.TargetTimespan*4 {
		actual = c.pow.TargetTimespan * 4
	}

	target, err := CompactToTarget(tip.Bits)
	if err != nil {
		return tip.Bits
	}
	target.Mul(target, uint256.NewInt(uint64(actual)))
	target.Div(target, uint256.NewInt(uint64(c.pow.TargetTimespan)))

	limit, err := CompactToTarget(c.pow.LimitBits)
	if err == nil && target.Gt(limit) {
		target = limit
	}

	return TargetToCompact(target)
}

// UpdateTime raises the header timestamp to the later of the chain's
// median time past plus one and the current wall clock. On networks that
// allow minimum-difficulty blocks the bits are recomputed, since the new
// timestamp can change the work required.
func (c *Chain) UpdateTime(header *BaseHeader) {
	newTime := uint32(time.Now().UTC().Unix())
	if mtp := c.MedianTimePast() + 1; newTime < mtp {
		newTime = mtp
	}
	if newTime > header.Time {
		header.Time = newTime
	}

	if c.pow.AllowMinDifficulty {
		header.Bits = c.NextWorkRequired(header.Time)
	}
}

// =============================================================================

// CompactToTarget expands difficulty bits into the 256-bit target they
// encode. Negative, zero and overflowing encodings are rejected.
func CompactToTarget(bits uint32) (*uint256.Int, error) {
	size := bits >> 24
	mantissa := bits & 0x007fffff

	if bits&0x00800000 != 0 {
		return nil, fmt.Errorf("negative compact target %#x", bits)
	}
	if mantissa == 0 {
		return nil, fmt.Errorf("zero compact target %#x", bits)
	}
	if size > 34 || (size == 34 && mantissa > 0xff) || (size == 33 && mantissa > 0xffff) {
		return nil, fmt.Errorf("compact target overflow %#x", bits)
	}

	target := uint256.NewInt(uint64(mantissa))
	if size <= 3 {
		target.Rsh(target, 8*(3-uint(size)))
	} else {
		target.Lsh(target, 8*(uint(size)-3))
	}
	return target, nil
}

// TargetToCompact packs a 256-bit target into difficulty bits.
func TargetToCompact(target *uint256.Int) uint32 {
	size := uint32((target.BitLen() + 7) / 8)

	var mantissa uint32
	if size <= 3 {
		mantissa = uint32(target.Uint64() << (8 * (3 - size)))
	} else {
		shifted := new(uint256.Int).Rsh(target, 8*uint(size-3))
		mantissa = uint32(shifted.Uint64())
	}

	// The mantissa sign bit is not available; borrow an exponent byte.
	if mantissa&0x00800000 != 0 {
		mantissa >>= 8
		size++
	}
	return size<<24 | mantissa
}

// TargetToBoundary renders a target as the big-endian 32-byte boundary the
// sealing check compares hashes against.
func TargetToBoundary(target *uint256.Int) Hash {
	return Hash(target.Bytes32())
}
