package assembler

import (
	"github.com/platopia-network/platopia/foundation/blockchain/money"
)

// DefaultMaxGeneratedBlockSize caps generated blocks when no operator
// limit is configured.
const DefaultMaxGeneratedBlockSize uint64 = 2_000_000

// DefaultBlockMinFeeRate is the per-kilobyte fee floor for package
// selection.
const DefaultBlockMinFeeRate = FeeRate(1000)

// DefaultBlockPriorityPercentage reserves this share of the block for
// coin-age priority selection.
const DefaultBlockPriorityPercentage uint8 = 5

// coinbaseReserveSize and coinbaseReserveSigOps hold back room for the
// coinbase transaction before any mempool entry is considered.
const (
	coinbaseReserveSize   uint64 = 1000
	coinbaseReserveSigOps int64  = 100
)

// maxSigOpsPerMB is the sig-op budget per started megabyte of block.
const maxSigOpsPerMB int64 = 20_000

// MaxGeneratedBlockSize clamps the configured generated-size limit to
// between 1K and the consensus maximum minus 1K.
func MaxGeneratedBlockSize(configured, maxBlockSize uint64) uint64 {
	if configured == 0 {
		configured = DefaultMaxGeneratedBlockSize
	}
	if configured > maxBlockSize-1000 {
		configured = maxBlockSize - 1000
	}
	if configured < 1000 {
		configured = 1000
	}
	return configured
}

// MaxBlockSigOps returns the sig-op limit for a block of the given size.
func MaxBlockSigOps(blockSize uint64) int64 {
	return (int64(blockSize-1)/1_000_000 + 1) * maxSigOpsPerMB
}

// AllowFree reports whether a priority is high enough to enter the block
// without paying the fee floor: one coin confirmed for a day, per 250
// bytes.
func AllowFree(priority float64) bool {
	return priority > float64(money.COIN)*144/250
}

// =============================================================================

// FeeRate is a fee in smallest units per 1000 bytes.
type FeeRate money.Amount

// Fee returns the fee the rate charges for the given size.
func (r FeeRate) Fee(size int64) money.Amount {
	fee := money.Amount(r) * money.Amount(size) / 1000
	if fee == 0 && size != 0 && r != 0 {
		fee = 1
	}
	return fee
}
