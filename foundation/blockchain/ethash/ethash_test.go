package ethash

import (
	"testing"
)

// Tiny sizes keep the tests fast while exercising the real algorithm.
// Production row counts are prime (see TestSizeCalculations); these test
// row counts are not, which the modular row indexing accepts.
const (
	testCacheSize   = 1024          // 16 rows of 64 bytes
	testDatasetSize = 32 * mixBytes // 32 mix rows
)

func testSizes(c *Cache) {
	c.cacheSize = func(epoch uint64) uint64 { return testCacheSize }
	c.datasetSize = func(epoch uint64) uint64 { return testDatasetSize }
}

func TestSeedHashProgression(t *testing.T) {
	zero := SeedHash(0)
	if zero != ([32]byte{}) {
		t.Fatalf("epoch 0 seed should be zero, got %x", zero)
	}

	one := SeedHash(EpochLength)
	if one == zero {
		t.Fatalf("epoch 1 seed should differ from epoch 0")
	}
	if SeedHash(EpochLength+5) != one {
		t.Fatalf("seed must be constant within an epoch")
	}
	if SeedHash(2*EpochLength) == one {
		t.Fatalf("seed must change across epochs")
	}
}

func TestSizeCalculations(t *testing.T) {
	// Known sizes of the first epochs from the algorithm definition.
	if got := CacheSize(0); got != 16776896 {
		t.Fatalf("epoch 0 cache size: got %d exp 16776896", got)
	}
	if got := DatasetSize(0); got != 1073739904 {
		t.Fatalf("epoch 0 dataset size: got %d exp 1073739904", got)
	}

	for epoch := uint64(0); epoch < 4; epoch++ {
		if !isPrime(CacheSize(epoch) / hashBytes) {
			t.Fatalf("epoch %d cache row count not prime", epoch)
		}
		if !isPrime(DatasetSize(epoch) / mixBytes) {
			t.Fatalf("epoch %d dataset row count not prime", epoch)
		}
	}
}

func TestCacheDeterminism(t *testing.T) {
	seed := SeedHash(0)
	first := generateCache(testCacheSize, seed)
	second := generateCache(testCacheSize, seed)

	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("cache generation must be deterministic, word %d differs", i)
		}
	}
}

func TestLightEqualsFull(t *testing.T) {
	cache := generateCache(testCacheSize, SeedHash(0))
	dataset := generateDataset(testDatasetSize, cache, nil)

	var sealHash [32]byte
	sealHash[0] = 0x1d
	for nonce := uint64(0); nonce < 16; nonce++ {
		lightDigest, lightResult := hashimotoLight(testDatasetSize, cache, sealHash, nonce)
		fullDigest, fullResult := hashimotoFull(dataset, sealHash, nonce)

		if lightDigest != fullDigest {
			t.Fatalf("nonce %d: light and full mix digests differ", nonce)
		}
		if lightResult != fullResult {
			t.Fatalf("nonce %d: light and full results differ", nonce)
		}
	}
}

func TestQuickCheckAgreesWithHashimoto(t *testing.T) {
	cache := generateCache(testCacheSize, SeedHash(0))

	var sealHash [32]byte
	sealHash[3] = 0x7a

	var loose [32]byte
	for i := range loose {
		loose[i] = 0xff
	}
	var strict [32]byte

	for nonce := uint64(0); nonce < 8; nonce++ {
		digest, result := hashimotoLight(testDatasetSize, cache, sealHash, nonce)

		if !QuickCheck(sealHash, nonce, digest, result) {
			t.Fatalf("nonce %d: hashimoto's own result must pass as the boundary", nonce)
		}
		if !QuickCheck(sealHash, nonce, digest, loose) {
			t.Fatalf("nonce %d: every result must pass the all-ones boundary", nonce)
		}
		if QuickCheck(sealHash, nonce, digest, strict) {
			t.Fatalf("nonce %d: no result should pass the zero boundary", nonce)
		}
	}
}

func TestCacheManagerLifecycle(t *testing.T) {
	var progressed bool
	c := NewCache(func(epoch, done, total uint64) { progressed = true })
	testSizes(c)

	if _, exists := c.Full(0); exists {
		t.Fatalf("fresh manager must hold no dataset")
	}

	c.EnsureLight(0)
	c.EnsureLight(5) // same epoch, idempotent
	if lights, _ := c.Counts(); lights != 1 {
		t.Fatalf("expected one light cache, got %d", lights)
	}

	c.EnsureFull(0)
	if _, exists := c.Full(0); !exists {
		t.Fatalf("dataset must exist after EnsureFull")
	}
	if !progressed {
		t.Fatalf("dataset generation must report progress")
	}

	c.EnsureFull(EpochLength)
	if _, fulls := c.Counts(); fulls != 2 {
		t.Fatalf("expected two datasets")
	}

	c.Evict(EpochLength)
	if _, exists := c.Full(EpochLength); exists {
		t.Fatalf("evicted epoch must be gone")
	}

	c.Shutdown()
	lights, fulls := c.Counts()
	if lights != 0 || fulls != 0 {
		t.Fatalf("shutdown must release every handle: %d lights %d fulls", lights, fulls)
	}
}

func TestComputeRequiresDataset(t *testing.T) {
	c := NewCache(nil)
	testSizes(c)

	var sealHash [32]byte
	if _, _, err := c.Compute(0, sealHash, 1); err != ErrDagUnavailable {
		t.Fatalf("expected ErrDagUnavailable, got %v", err)
	}

	c.EnsureFull(0)
	digest, result, err := c.Compute(0, sealHash, 1)
	if err != nil {
		t.Fatalf("compute after EnsureFull: %v", err)
	}

	lightDigest, lightResult := c.ComputeLight(0, sealHash, 1)
	if digest != lightDigest || result != lightResult {
		t.Fatalf("light verification must agree with the full computation")
	}
}
