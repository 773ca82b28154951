package ethash

import (
	"bytes"
	"encoding/binary"
	"hash"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/ethereum/go-ethereum/crypto"
	"golang.org/x/crypto/sha3"
)

// hasher is a repetitive hash state reading the digest into an output
// buffer without allocating.
type hasher func(dest []byte, data []byte)

// makeHasher wraps a keccak state for repeated use.
func makeHasher(h hash.Hash) hasher {
	return func(dest []byte, data []byte) {
		h.Reset()
		h.Write(data)
		h.Sum(dest[:0])
	}
}

// fnv is the non-associative substitute for XOR the dataset aggregation
// uses.
func fnv(a, b uint32) uint32 {
	return a*0x01000193 ^ b
}

// fnvHash mixes data into mix word-wise.
func fnvHash(mix []uint32, data []uint32) {
	for i := 0; i < len(mix); i++ {
		mix[i] = mix[i]*0x01000193 ^ data[i]
	}
}

// =============================================================================

// generateCache builds the light cache for a seed: a sequential keccak512
// chain strengthened by cacheRounds passes of a low-round memo hash. The
// returned slice holds little-endian 32-bit words.
func generateCache(size uint64, seed [32]byte) []uint32 {
	rows := int(size / hashBytes)
	mem := make([]byte, size)

	keccak512 := makeHasher(sha3.NewLegacyKeccak512())

	keccak512(mem[:hashBytes], seed[:])
	for i := 1; i < rows; i++ {
		keccak512(mem[i*hashBytes:(i+1)*hashBytes], mem[(i-1)*hashBytes:i*hashBytes])
	}

	temp := make([]byte, hashBytes)
	for round := 0; round < cacheRounds; round++ {
		for i := 0; i < rows; i++ {
			srcOff := ((i - 1 + rows) % rows) * hashBytes
			dstOff := i * hashBytes
			xorOff := int(binary.LittleEndian.Uint32(mem[dstOff:])%uint32(rows)) * hashBytes

			for b := 0; b < hashBytes; b++ {
				temp[b] = mem[srcOff+b] ^ mem[xorOff+b]
			}
			keccak512(mem[dstOff:dstOff+hashBytes], temp)
		}
	}

	cache := make([]uint32, size/wordBytes)
	for i := range cache {
		cache[i] = binary.LittleEndian.Uint32(mem[i*wordBytes:])
	}
	return cache
}

// generateDatasetItem derives one 64-byte dataset row from the cache.
func generateDatasetItem(cache []uint32, index uint32, keccak512 hasher) []byte {
	rows := uint32(len(cache) / hashWords)

	mix := make([]byte, hashBytes)
	binary.LittleEndian.PutUint32(mix, cache[(index%rows)*hashWords]^index)
	for i := 1; i < hashWords; i++ {
		binary.LittleEndian.PutUint32(mix[i*4:], cache[(index%rows)*hashWords+uint32(i)])
	}
	keccak512(mix, mix)

	intMix := make([]uint32, hashWords)
	for i := range intMix {
		intMix[i] = binary.LittleEndian.Uint32(mix[i*4:])
	}
	for i := uint32(0); i < datasetParents; i++ {
		parent := fnv(index^i, intMix[i%hashWords]) % rows
		fnvHash(intMix, cache[parent*hashWords:])
	}
	for i, word := range intMix {
		binary.LittleEndian.PutUint32(mix[i*4:], word)
	}
	keccak512(mix, mix)
	return mix
}

// generateDataset builds the full dataset from a light cache, fanning the
// row derivation across the available cores. Progress is reported through
// the callback roughly once per percent.
func generateDataset(size uint64, cache []uint32, progress func(done, total uint64)) []uint32 {
	dataset := make([]uint32, size/wordBytes)
	rows := size / hashBytes

	var done atomic.Uint64
	threads := runtime.NumCPU()

	var wg sync.WaitGroup
	wg.Add(threads)
	for t := 0; t < threads; t++ {
		go func(id int) {
			defer wg.Done()

			keccak512 := makeHasher(sha3.NewLegacyKeccak512())

			batch := (rows + uint64(threads) - 1) / uint64(threads)
			first := uint64(id) * batch
			limit := first + batch
			if limit > rows {
				limit = rows
			}

			percent := rows / 100
			if percent == 0 {
				percent = 1
			}
			for index := first; index < limit; index++ {
				item := generateDatasetItem(cache, uint32(index), keccak512)
				for i := 0; i < hashWords; i++ {
					dataset[index*hashWords+uint64(i)] = binary.LittleEndian.Uint32(item[i*4:])
				}
				if n := done.Add(1); progress != nil && n%percent == 0 {
					progress(n, rows)
				}
			}
		}(t)
	}
	wg.Wait()

	return dataset
}

// =============================================================================

// hashimoto aggregates dataset rows selected from the seal hash and nonce
// into the mix digest and the final proof-of-work result.
func hashimoto(sealHash [32]byte, nonce uint64, size uint64, lookup func(index uint32) []uint32) (digest [32]byte, result [32]byte) {
	rows := uint32(size / mixBytes)

	seed := make([]byte, 40)
	copy(seed, sealHash[:])
	binary.LittleEndian.PutUint64(seed[32:], nonce)

	keccak512 := makeHasher(sha3.NewLegacyKeccak512())
	seed64 := make([]byte, hashBytes)
	keccak512(seed64, seed)
	seedHead := binary.LittleEndian.Uint32(seed64)

	mix := make([]uint32, mixBytes/wordBytes)
	for i := range mix {
		mix[i] = binary.LittleEndian.Uint32(seed64[i%hashWords*4:])
	}

	temp := make([]uint32, len(mix))
	for i := 0; i < loopAccesses; i++ {
		parent := fnv(uint32(i)^seedHead, mix[i%len(mix)]) % rows
		for j := uint32(0); j < mixBytes/hashBytes; j++ {
			copy(temp[j*hashWords:], lookup(2*parent+j))
		}
		fnvHash(mix, temp)
	}

	for i := 0; i < len(mix); i += 4 {
		mix[i/4] = fnv(fnv(fnv(mix[i], mix[i+1]), mix[i+2]), mix[i+3])
	}
	mix = mix[:len(mix)/4]

	for i, word := range mix {
		binary.LittleEndian.PutUint32(digest[i*4:], word)
	}
	copy(result[:], crypto.Keccak256(append(seed64, digest[:]...)))
	return digest, result
}

// hashimotoLight computes the proof of work using only the light cache,
// deriving dataset rows on the fly. This is the verifier's path.
func hashimotoLight(size uint64, cache []uint32, sealHash [32]byte, nonce uint64) ([32]byte, [32]byte) {
	keccak512 := makeHasher(sha3.NewLegacyKeccak512())

	lookup := func(index uint32) []uint32 {
		raw := generateDatasetItem(cache, index, keccak512)
		item := make([]uint32, hashWords)
		for i := range item {
			item[i] = binary.LittleEndian.Uint32(raw[i*4:])
		}
		return item
	}
	return hashimoto(sealHash, nonce, size, lookup)
}

// hashimotoFull computes the proof of work against a fully generated
// dataset. This is the miner's path.
func hashimotoFull(dataset []uint32, sealHash [32]byte, nonce uint64) ([32]byte, [32]byte) {
	lookup := func(index uint32) []uint32 {
		return dataset[index*hashWords : (index+1)*hashWords]
	}
	return hashimoto(sealHash, nonce, uint64(len(dataset))*wordBytes, lookup)
}

// =============================================================================

// QuickCheck verifies a claimed solution without any dataset access: it
// recomputes the final keccak fold from the seal hash, nonce and mix
// digest and compares the result against the boundary as 256-bit
// big-endian numbers.
func QuickCheck(sealHash [32]byte, nonce uint64, mixDigest [32]byte, boundary [32]byte) bool {
	seed := make([]byte, 40)
	copy(seed, sealHash[:])
	binary.LittleEndian.PutUint64(seed[32:], nonce)

	keccak512 := makeHasher(sha3.NewLegacyKeccak512())
	seed64 := make([]byte, hashBytes)
	keccak512(seed64, seed)

	result := crypto.Keccak256(seed64, mixDigest[:])
	return bytes.Compare(result, boundary[:]) <= 0
}
