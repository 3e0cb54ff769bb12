package shadercache

import (
	"errors"
	"fmt"
	"hash/fnv"

	lru "github.com/hashicorp/golang-lru"

	"github.com/spaghettifunk/anima-gpu/engine/renderer/metadata"
)

var ErrEmptyBytecode = errors.New("refusing to cache empty bytecode")

/**
 * @brief Identifies one compiled stage. SourceHash covers the preprocessed
 * source, so an edited file never hits a stale entry.
 */
type Key struct {
	Backend    string
	Stage      metadata.ShaderStage
	Entry      string
	SourceHash uint64
}

func NewKey(backend string, stage metadata.ShaderStage, entry, source string) Key {
	h := fnv.New64a()
	h.Write([]byte(source))
	return Key{Backend: backend, Stage: stage, Entry: entry, SourceHash: h.Sum64()}
}

func (k Key) String() string {
	return fmt.Sprintf("%s/%s/%s/%016x", k.Backend, k.Stage, k.Entry, k.SourceHash)
}

/**
 * @brief Cache stores compiled stage bytecode. A miss or a failed store is
 * never fatal to the caller.
 */
type Cache interface {
	Load(key Key) ([]byte, bool)
	Store(key Key, bytecode []byte) error
}

// LRU keeps the most recently used bytecode in memory.
type LRU struct {
	cache *lru.Cache
}

func NewLRU(entries int) (*LRU, error) {
	c, err := lru.New(entries)
	if err != nil {
		return nil, fmt.Errorf("failed to create bytecode cache: %w", err)
	}
	return &LRU{cache: c}, nil
}

func (c *LRU) Load(key Key) ([]byte, bool) {
	v, ok := c.cache.Get(key)
	if !ok {
		return nil, false
	}
	return v.([]byte), true
}

func (c *LRU) Store(key Key, bytecode []byte) error {
	if len(bytecode) == 0 {
		return ErrEmptyBytecode
	}
	c.cache.Add(key, append([]byte(nil), bytecode...))
	return nil
}

func (c *LRU) Remove(key Key) {
	c.cache.Remove(key)
}

func (c *LRU) Len() int {
	return c.cache.Len()
}

func (c *LRU) Purge() {
	c.cache.Purge()
}

// Nop never hits.
type Nop struct{}

func (Nop) Load(Key) ([]byte, bool) { return nil, false }
func (Nop) Store(Key, []byte) error { return nil }
