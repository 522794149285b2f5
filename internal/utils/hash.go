package util

import (
	"encoding/binary"

	"github.com/OneOfOne/xxhash"
)

// Comparator orders two keys. It returns a negative value when a < b, zero
// when equal, positive when a > b.
type Comparator func(a, b uint64) int

// HashFunc maps a key to the 32-bit hash the index routes on.
type HashFunc func(key uint64) uint32

// CompareUint64 is the default key comparator.
func CompareUint64(a, b uint64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// XXHash32 hashes the little-endian encoding of the key.
func XXHash32(key uint64) uint32 {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], key)
	return xxhash.Checksum32(buf[:])
}

// IdentityHash truncates the key to 32 bits. Deterministic routing for tests.
func IdentityHash(key uint64) uint32 {
	return uint32(key)
}
