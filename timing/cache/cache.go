// Package cache models an L1 data cache for cycle estimation, using Akita
// cache directory components for tag and replacement state.
//
// The model tracks tags only. Data always lives in the emulator's data
// memory, so the cache never changes functional results.
package cache

import (
	"fmt"

	akitacache "github.com/sarchlab/akita/v4/mem/cache"
)

// Config holds cache configuration parameters.
type Config struct {
	// Size in bytes
	Size int `json:"size"`
	// Associativity (number of ways)
	Associativity int `json:"associativity"`
	// BlockSize in bytes (cache line size)
	BlockSize int `json:"block_size"`
	// HitLatency in cycles
	HitLatency uint64 `json:"hit_latency"`
	// MissLatency in cycles (includes the refill)
	MissLatency uint64 `json:"miss_latency"`
}

// DefaultL1DConfig returns the default data cache configuration: 1KB,
// 2-way, 32B lines, sized for the 8KB default data memory.
func DefaultL1DConfig() Config {
	return Config{
		Size:          1024,
		Associativity: 2,
		BlockSize:     32,
		HitLatency:    1,
		MissLatency:   10,
	}
}

// Validate checks that the geometry divides into whole sets.
func (c Config) Validate() error {
	if c.Size <= 0 || c.Associativity <= 0 || c.BlockSize <= 0 {
		return fmt.Errorf("cache size, associativity and block_size must be > 0")
	}
	if c.BlockSize&(c.BlockSize-1) != 0 {
		return fmt.Errorf("cache block_size %d is not a power of two", c.BlockSize)
	}
	if c.Size%(c.Associativity*c.BlockSize) != 0 {
		return fmt.Errorf("cache size %d is not a multiple of associativity*block_size", c.Size)
	}
	if c.HitLatency == 0 || c.MissLatency < c.HitLatency {
		return fmt.Errorf("cache latencies must satisfy 0 < hit_latency <= miss_latency")
	}
	return nil
}

// AccessResult contains the result of a cache access.
type AccessResult struct {
	// Hit indicates whether every line touched by the access was present.
	Hit bool
	// Latency is the number of cycles this access takes.
	Latency uint64
	// Evicted is true if a valid block was replaced.
	Evicted bool
	// EvictedAddr is the address of the evicted block (if Evicted is true).
	EvictedAddr uint64
}

// Statistics holds cache performance statistics.
type Statistics struct {
	Reads      uint64 `json:"reads"`
	Writes     uint64 `json:"writes"`
	Hits       uint64 `json:"hits"`
	Misses     uint64 `json:"misses"`
	Evictions  uint64 `json:"evictions"`
	Writebacks uint64 `json:"writebacks"`
}

// Cache is a write-back, write-allocate tag store.
type Cache struct {
	config Config

	// Akita cache directory for tag/state management
	directory *akitacache.DirectoryImpl

	stats Statistics
}

// New creates a new cache with the given configuration.
func New(config Config) *Cache {
	numSets := config.Size / (config.Associativity * config.BlockSize)

	return &Cache{
		config: config,
		directory: akitacache.NewDirectory(
			numSets,
			config.Associativity,
			config.BlockSize,
			akitacache.NewLRUVictimFinder(),
		),
	}
}

// Config returns the cache configuration.
func (c *Cache) Config() Config {
	return c.config
}

// Stats returns cache statistics.
func (c *Cache) Stats() Statistics {
	return c.stats
}

// ResetStats clears cache statistics.
func (c *Cache) ResetStats() {
	c.stats = Statistics{}
}

// Access records a read or write of size bytes at addr. An access that
// straddles two lines probes both and costs the slower of the two.
func (c *Cache) Access(addr uint64, size int, write bool) AccessResult {
	if write {
		c.stats.Writes++
	} else {
		c.stats.Reads++
	}

	bs := uint64(c.config.BlockSize)
	first := addr / bs * bs
	last := (addr + uint64(size) - 1) / bs * bs

	result := c.probe(first, write)
	if last != first {
		second := c.probe(last, write)
		result.Hit = result.Hit && second.Hit
		result.Latency = max(result.Latency, second.Latency)
		if second.Evicted {
			result.Evicted = true
			result.EvictedAddr = second.EvictedAddr
		}
	}

	return result
}

func (c *Cache) probe(blockAddr uint64, write bool) AccessResult {
	block := c.directory.Lookup(0, blockAddr)

	if block != nil && block.IsValid {
		c.stats.Hits++
		c.directory.Visit(block)
		if write {
			block.IsDirty = true
		}

		return AccessResult{
			Hit:     true,
			Latency: c.config.HitLatency,
		}
	}

	c.stats.Misses++
	result := AccessResult{Latency: c.config.MissLatency}

	victim := c.directory.FindVictim(blockAddr)
	if victim == nil {
		return result
	}

	if victim.IsValid {
		c.stats.Evictions++
		result.Evicted = true
		result.EvictedAddr = victim.Tag
		if victim.IsDirty {
			c.stats.Writebacks++
		}
	}

	// Tag stores the block-aligned address.
	victim.Tag = blockAddr
	victim.IsValid = true
	victim.IsDirty = write
	c.directory.Visit(victim)

	return result
}

// Contains reports whether the line holding addr is present.
func (c *Cache) Contains(addr uint64) bool {
	bs := uint64(c.config.BlockSize)
	block := c.directory.Lookup(0, addr/bs*bs)
	return block != nil && block.IsValid
}

// Flush counts a writeback for every dirty line and invalidates all lines.
func (c *Cache) Flush() {
	for _, set := range c.directory.GetSets() {
		for _, block := range set.Blocks {
			if block.IsValid && block.IsDirty {
				c.stats.Writebacks++
			}
			block.IsValid = false
			block.IsDirty = false
		}
	}
}

// Reset invalidates all cache lines and clears statistics.
func (c *Cache) Reset() {
	c.directory.Reset()
	c.stats = Statistics{}
}
