package page

import (
	"encoding/binary"
	"fmt"

	util "github.com/bietkhonhungvandi212/hashdb/internal/utils"
)

// On-page layout of a hash index directory:
//
//	offset 0:   u32 maxDepth
//	offset 4:   u32 globalDepth
//	offset 8:   u8  localDepths[HashDirectoryArraySize]
//	offset 520: int32 bucketPageIDs[HashDirectoryArraySize]
//
// The arrays are sized for the deepest directory a page can hold; only the
// first 1 << globalDepth slots are live.
const (
	// HashDirectoryMaxDepth bounds globalDepth so both arrays fit one page.
	HashDirectoryMaxDepth = 9

	// HashDirectoryArraySize is the slot capacity of a directory page.
	HashDirectoryArraySize = 1 << HashDirectoryMaxDepth

	hashDirectoryMetaSize     = 8
	hashDirectoryBucketIDsOff = hashDirectoryMetaSize + HashDirectoryArraySize
)

// HashDirectoryPage is a typed view over a pinned page's data.
type HashDirectoryPage struct {
	data []byte
}

func AsHashDirectory(data []byte) *HashDirectoryPage {
	return &HashDirectoryPage{data: data}
}

// Init formats a fresh directory page with globalDepth 0 and every bucket
// slot absent.
func (d *HashDirectoryPage) Init(maxDepth uint32) {
	if maxDepth > HashDirectoryMaxDepth {
		panic(util.ErrDepthExceeded)
	}
	binary.LittleEndian.PutUint32(d.data[0:4], maxDepth)
	binary.LittleEndian.PutUint32(d.data[4:8], 0)
	for i := uint32(0); i < 1<<maxDepth; i++ {
		d.SetLocalDepth(i, 0)
		d.SetBucketPageID(i, util.InvalidPageID)
	}
}

func (d *HashDirectoryPage) MaxDepth() uint32 {
	return binary.LittleEndian.Uint32(d.data[0:4])
}

func (d *HashDirectoryPage) GlobalDepth() uint32 {
	return binary.LittleEndian.Uint32(d.data[4:8])
}

func (d *HashDirectoryPage) setGlobalDepth(depth uint32) {
	binary.LittleEndian.PutUint32(d.data[4:8], depth)
}

// Size is the number of live directory slots, 1 << globalDepth.
func (d *HashDirectoryPage) Size() uint32 {
	return 1 << d.GlobalDepth()
}

// MaxSize is the slot count at maxDepth.
func (d *HashDirectoryPage) MaxSize() uint32 {
	return 1 << d.MaxDepth()
}

// HashToBucketIndex routes a hash by its low globalDepth bits.
func (d *HashDirectoryPage) HashToBucketIndex(hash uint32) uint32 {
	return hash & d.GlobalDepthMask()
}

func (d *HashDirectoryPage) GlobalDepthMask() uint32 {
	return (1 << d.GlobalDepth()) - 1
}

func (d *HashDirectoryPage) LocalDepthMask(idx uint32) uint32 {
	return (1 << d.LocalDepth(idx)) - 1
}

func (d *HashDirectoryPage) LocalDepth(idx uint32) uint32 {
	return uint32(d.data[hashDirectoryMetaSize+idx])
}

func (d *HashDirectoryPage) SetLocalDepth(idx uint32, depth uint32) {
	d.data[hashDirectoryMetaSize+idx] = byte(depth)
}

func (d *HashDirectoryPage) IncrLocalDepth(idx uint32) {
	d.data[hashDirectoryMetaSize+idx]++
}

func (d *HashDirectoryPage) DecrLocalDepth(idx uint32) {
	d.data[hashDirectoryMetaSize+idx]--
}

func (d *HashDirectoryPage) BucketPageID(idx uint32) util.PageID {
	off := hashDirectoryBucketIDsOff + idx*4
	return util.PageID(binary.LittleEndian.Uint32(d.data[off : off+4]))
}

func (d *HashDirectoryPage) SetBucketPageID(idx uint32, id util.PageID) {
	off := hashDirectoryBucketIDsOff + idx*4
	binary.LittleEndian.PutUint32(d.data[off:off+4], uint32(id))
}

// SplitImageIndex is the sibling slot that differs from idx in the bit just
// above the bucket's current local depth.
func (d *HashDirectoryPage) SplitImageIndex(idx uint32) uint32 {
	return idx ^ (1 << d.LocalDepth(idx))
}

// IncrGlobalDepth doubles the directory, mirroring bucket ids and local
// depths from the lower half into the new upper half.
func (d *HashDirectoryPage) IncrGlobalDepth() {
	size := d.Size()
	for i := uint32(0); i < size; i++ {
		d.SetBucketPageID(i+size, d.BucketPageID(i))
		d.SetLocalDepth(i+size, d.LocalDepth(i))
	}
	d.setGlobalDepth(d.GlobalDepth() + 1)
}

func (d *HashDirectoryPage) DecrGlobalDepth() {
	d.setGlobalDepth(d.GlobalDepth() - 1)
}

// CanShrink reports whether every live slot has localDepth < globalDepth.
func (d *HashDirectoryPage) CanShrink() bool {
	if d.GlobalDepth() == 0 {
		return false
	}
	for i := uint32(0); i < d.Size(); i++ {
		if d.LocalDepth(i) == d.GlobalDepth() {
			return false
		}
	}
	return true
}

// VerifyIntegrity checks the directory invariants: localDepth never exceeds
// globalDepth, and slots congruent modulo 1 << localDepth agree on bucket id
// and depth.
func (d *HashDirectoryPage) VerifyIntegrity() error {
	for i := uint32(0); i < d.Size(); i++ {
		ld := d.LocalDepth(i)
		if ld > d.GlobalDepth() {
			return fmt.Errorf("slot %d: local depth %d exceeds global depth %d", i, ld, d.GlobalDepth())
		}
		base := i & d.LocalDepthMask(i)
		if d.BucketPageID(i) != d.BucketPageID(base) || d.LocalDepth(i) != d.LocalDepth(base) {
			return fmt.Errorf("slot %d disagrees with slot %d sharing its low %d bits", i, base, ld)
		}
	}
	return nil
}
