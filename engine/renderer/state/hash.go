package state

import (
	"encoding/binary"

	"github.com/spaghettifunk/anima-gpu/engine/core"
	"github.com/spaghettifunk/anima-gpu/engine/renderer/metadata"
)

const (
	fnvOffset uint64 = 14695981039346656037
	fnvPrime  uint64 = 1099511628211
)

func avalanche(h uint64) uint64 {
	h ^= h >> 30
	h *= 0xbf58476d1ce4e5b9
	h ^= h >> 27
	h *= 0x94d049bb133111eb
	h ^= h >> 31
	return h
}

// CombineStages mixes the six stage identities, in stage order, into the
// key of a linked program.
func CombineStages(stages [metadata.ShaderStageCount]core.ID) uint64 {
	h := fnvOffset
	for _, id := range stages {
		h ^= uint64(id)
		h *= fnvPrime
		h = avalanche(h)
	}
	return h
}

// Empty reports whether no stage is populated.
func Empty(stages [metadata.ShaderStageCount]core.ID) bool {
	for _, id := range stages {
		if id.Valid() {
			return false
		}
	}
	return true
}

// LayoutKey concatenates buffer identities and their strides in slot order.
// A missing stride encodes as zero.
func LayoutKey(buffers []core.ID, strides []uint32) string {
	key := make([]byte, 12*len(buffers))
	for i, id := range buffers {
		binary.LittleEndian.PutUint64(key[i*12:], uint64(id))
		if i < len(strides) {
			binary.LittleEndian.PutUint32(key[i*12+8:], strides[i])
		}
	}
	return string(key)
}
