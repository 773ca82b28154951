package ethash

import (
	"errors"
	"sync"
)

// ErrDagUnavailable is returned when the full dataset for an epoch has not
// been generated yet. Workers treat it as transient and poll.
var ErrDagUnavailable = errors.New("dag not generated for epoch")

// Progress is invoked while a full dataset builds; done and total count
// dataset rows.
type Progress func(epoch uint64, done, total uint64)

// Cache keeps light caches and full datasets alive keyed by epoch. One
// mutex guards both maps; construction happens inside the critical section
// and can block for a long time, so readers poll Full until the
// pre-generator has filled the epoch in.
type Cache struct {
	mu     sync.Mutex
	lights map[uint64][]uint32
	fulls  map[uint64][]uint32

	progress Progress

	// Size functions are fixed at construction; tests substitute small
	// deterministic sizes.
	cacheSize   func(epoch uint64) uint64
	datasetSize func(epoch uint64) uint64
}

// NewCache constructs an empty cache manager.
func NewCache(progress Progress) *Cache {
	return &Cache{
		lights:      make(map[uint64][]uint32),
		fulls:       make(map[uint64][]uint32),
		progress:    progress,
		cacheSize:   CacheSize,
		datasetSize: DatasetSize,
	}
}

// EnsureLight constructs the light cache for the height's epoch if absent.
// Idempotent.
func (c *Cache) EnsureLight(height uint64) {
	epoch := Epoch(height)

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.lights[epoch]; exists {
		return
	}
	c.lights[epoch] = generateCache(c.cacheSize(epoch), SeedHash(height))
}

// EnsureFull constructs the full dataset for the height's epoch if absent,
// building the light cache first when needed. Generation is expensive;
// callers poll Full while the pre-generator runs this in the background.
// Idempotent.
func (c *Cache) EnsureFull(height uint64) {
	epoch := Epoch(height)

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.fulls[epoch]; exists {
		return
	}
	light, exists := c.lights[epoch]
	if !exists {
		light = generateCache(c.cacheSize(epoch), SeedHash(height))
		c.lights[epoch] = light
	}

	var report func(done, total uint64)
	if c.progress != nil {
		report = func(done, total uint64) { c.progress(epoch, done, total) }
	}
	c.fulls[epoch] = generateDataset(c.datasetSize(epoch), light, report)
}

// Light returns the light cache for the height's epoch if present.
func (c *Cache) Light(height uint64) ([]uint32, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	light, exists := c.lights[Epoch(height)]
	return light, exists
}

// Full returns the full dataset for the height's epoch if present.
func (c *Cache) Full(height uint64) ([]uint32, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	full, exists := c.fulls[Epoch(height)]
	return full, exists
}

// Evict drops both handles for the height's epoch.
func (c *Cache) Evict(height uint64) {
	epoch := Epoch(height)

	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.lights, epoch)
	delete(c.fulls, epoch)
}

// Shutdown releases every handle. The coordinator calls this on every
// exit path so test runs reclaim the memory promptly.
func (c *Cache) Shutdown() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.lights = make(map[uint64][]uint32)
	c.fulls = make(map[uint64][]uint32)
}

// Counts reports how many light and full handles are alive.
func (c *Cache) Counts() (lights, fulls int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.lights), len(c.fulls)
}

// =============================================================================

// Compute runs the full-dataset proof of work for a height. It fails with
// ErrDagUnavailable until the epoch's dataset exists.
func (c *Cache) Compute(height uint64, sealHash [32]byte, nonce uint64) (digest, result [32]byte, err error) {
	full, exists := c.Full(height)
	if !exists {
		return [32]byte{}, [32]byte{}, ErrDagUnavailable
	}
	digest, result = hashimotoFull(full, sealHash, nonce)
	return digest, result, nil
}

// ComputeLight runs the light-cache proof of work for a height,
// constructing the light cache if needed. This is the verification path.
func (c *Cache) ComputeLight(height uint64, sealHash [32]byte, nonce uint64) (digest, result [32]byte) {
	c.EnsureLight(height)
	light, _ := c.Light(height)
	return hashimotoLight(c.datasetSize(Epoch(height)), light, sealHash, nonce)
}
