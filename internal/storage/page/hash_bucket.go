package page

import (
	"encoding/binary"

	util "github.com/bietkhonhungvandi212/hashdb/internal/utils"
)

// On-page layout of a hash index bucket:
//
//	offset 0: u32 maxSize
//	offset 4: u32 size
//	offset 8: (u64 key, u64 value)[maxSize]
//
// Keys are unique under the table's comparator.
const (
	hashBucketMetaSize  = 8
	hashBucketEntrySize = 16

	// HashBucketCapacity is the most pairs one page can hold.
	HashBucketCapacity = (util.PageSize - hashBucketMetaSize) / hashBucketEntrySize
)

// HashBucketPage is a typed view over a pinned page's data.
type HashBucketPage struct {
	data []byte
}

func AsHashBucket(data []byte) *HashBucketPage {
	return &HashBucketPage{data: data}
}

func (b *HashBucketPage) Init(maxSize uint32) {
	if maxSize == 0 || maxSize > HashBucketCapacity {
		panic(util.ErrBucketMaxSize)
	}
	binary.LittleEndian.PutUint32(b.data[0:4], maxSize)
	binary.LittleEndian.PutUint32(b.data[4:8], 0)
}

func (b *HashBucketPage) MaxSize() uint32 {
	return binary.LittleEndian.Uint32(b.data[0:4])
}

func (b *HashBucketPage) Size() uint32 {
	return binary.LittleEndian.Uint32(b.data[4:8])
}

func (b *HashBucketPage) setSize(n uint32) {
	binary.LittleEndian.PutUint32(b.data[4:8], n)
}

func (b *HashBucketPage) IsFull() bool {
	return b.Size() == b.MaxSize()
}

func (b *HashBucketPage) IsEmpty() bool {
	return b.Size() == 0
}

func (b *HashBucketPage) KeyAt(idx uint32) uint64 {
	off := hashBucketMetaSize + idx*hashBucketEntrySize
	return binary.LittleEndian.Uint64(b.data[off : off+8])
}

func (b *HashBucketPage) ValueAt(idx uint32) uint64 {
	off := hashBucketMetaSize + idx*hashBucketEntrySize + 8
	return binary.LittleEndian.Uint64(b.data[off : off+8])
}

func (b *HashBucketPage) putEntry(idx uint32, key, value uint64) {
	off := hashBucketMetaSize + idx*hashBucketEntrySize
	binary.LittleEndian.PutUint64(b.data[off:off+8], key)
	binary.LittleEndian.PutUint64(b.data[off+8:off+16], value)
}

// Lookup scans for key and returns its value.
func (b *HashBucketPage) Lookup(key uint64, cmp util.Comparator) (uint64, bool) {
	for i := uint32(0); i < b.Size(); i++ {
		if cmp(key, b.KeyAt(i)) == 0 {
			return b.ValueAt(i), true
		}
	}
	return 0, false
}

// Insert appends the pair. It fails when the bucket is full or the key is
// already present.
func (b *HashBucketPage) Insert(key, value uint64, cmp util.Comparator) bool {
	size := b.Size()
	if size == b.MaxSize() {
		return false
	}
	for i := uint32(0); i < size; i++ {
		if cmp(key, b.KeyAt(i)) == 0 {
			return false
		}
	}
	b.putEntry(size, key, value)
	b.setSize(size + 1)
	return true
}

// Remove deletes the pair for key, compacting the tail down one slot.
func (b *HashBucketPage) Remove(key uint64, cmp util.Comparator) bool {
	for i := uint32(0); i < b.Size(); i++ {
		if cmp(key, b.KeyAt(i)) == 0 {
			b.RemoveAt(i)
			return true
		}
	}
	return false
}

// RemoveAt deletes the pair at idx, compacting the tail down one slot.
func (b *HashBucketPage) RemoveAt(idx uint32) {
	size := b.Size()
	for i := idx + 1; i < size; i++ {
		b.putEntry(i-1, b.KeyAt(i), b.ValueAt(i))
	}
	b.setSize(size - 1)
}
