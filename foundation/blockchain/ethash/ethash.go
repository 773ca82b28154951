// Package ethash implements the memory-hard proof of work sealing the
// chain: light cache and full dataset generation keyed by epoch, the
// hashimoto mixing function, and the quick boundary check verifiers use.
package ethash

import (
	"math/big"

	"github.com/ethereum/go-ethereum/crypto"
)

// Algorithm constants.
const (
	EpochLength = 30000 // blocks sharing one dataset

	wordBytes          = 4
	datasetInitBytes   = 1 << 30
	datasetGrowthBytes = 1 << 23
	cacheInitBytes     = 1 << 24
	cacheGrowthBytes   = 1 << 17
	mixBytes           = 128
	hashBytes          = 64
	hashWords          = 16
	datasetParents     = 256
	cacheRounds        = 3
	loopAccesses       = 64
)

// Epoch returns the dataset epoch a block height belongs to.
func Epoch(height uint64) uint64 {
	return height / EpochLength
}

// SeedHash returns the seed for the epoch of the given block height: the
// zero hash keccak-folded once per elapsed epoch.
func SeedHash(height uint64) [32]byte {
	var seed [32]byte
	for i := uint64(0); i < Epoch(height); i++ {
		copy(seed[:], crypto.Keccak256(seed[:]))
	}
	return seed
}

// CacheSize returns the light cache byte size of an epoch: the largest
// prime row count below a linearly growing bound.
func CacheSize(epoch uint64) uint64 {
	size := uint64(cacheInitBytes + cacheGrowthBytes*epoch - hashBytes)
	for !isPrime(size / hashBytes) {
		size -= 2 * hashBytes
	}
	return size
}

// DatasetSize returns the full dataset byte size of an epoch.
func DatasetSize(epoch uint64) uint64 {
	size := uint64(datasetInitBytes + datasetGrowthBytes*epoch - mixBytes)
	for !isPrime(size / mixBytes) {
		size -= 2 * mixBytes
	}
	return size
}

func isPrime(n uint64) bool {
	return new(big.Int).SetUint64(n).ProbablyPrime(1)
}
