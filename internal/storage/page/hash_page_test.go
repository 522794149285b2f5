package page

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	util "github.com/bietkhonhungvandi212/hashdb/internal/utils"
)

func freshPageData() []byte {
	return make([]byte, util.PageSize)
}

func TestHashHeaderPage(t *testing.T) {
	t.Run("InitDefaultsToAbsent", func(t *testing.T) {
		h := AsHashHeader(freshPageData())
		h.Init(2)
		assert.Equal(t, uint32(2), h.MaxDepth())
		assert.Equal(t, uint32(4), h.MaxSize())
		for i := uint32(0); i < h.MaxSize(); i++ {
			assert.Equal(t, util.InvalidPageID, h.DirectoryPageID(i))
		}
	})

	t.Run("RoutesByTopBits", func(t *testing.T) {
		h := AsHashHeader(freshPageData())
		h.Init(2)
		assert.Equal(t, uint32(0), h.HashToDirectoryIndex(0x00000000))
		assert.Equal(t, uint32(1), h.HashToDirectoryIndex(0x40000000))
		assert.Equal(t, uint32(2), h.HashToDirectoryIndex(0x80000000))
		assert.Equal(t, uint32(3), h.HashToDirectoryIndex(0xFFFFFFFF))
	})

	t.Run("ZeroDepthRoutesEverythingToSlotZero", func(t *testing.T) {
		h := AsHashHeader(freshPageData())
		h.Init(0)
		assert.Equal(t, uint32(0), h.HashToDirectoryIndex(0xFFFFFFFF))
	})

	t.Run("SetAndGetDirectoryPageID", func(t *testing.T) {
		h := AsHashHeader(freshPageData())
		h.Init(2)
		h.SetDirectoryPageID(3, 17)
		assert.Equal(t, util.PageID(17), h.DirectoryPageID(3))
	})
}

func TestHashDirectoryPage(t *testing.T) {
	t.Run("GrowMirrorsLowerHalf", func(t *testing.T) {
		d := AsHashDirectory(freshPageData())
		d.Init(3)
		d.SetBucketPageID(0, 5)
		d.SetLocalDepth(0, 0)

		d.IncrGlobalDepth()
		require.Equal(t, uint32(1), d.GlobalDepth())
		assert.Equal(t, util.PageID(5), d.BucketPageID(1))
		assert.Equal(t, uint32(0), d.LocalDepth(1))
	})

	t.Run("SplitImageIndexFlipsLocalDepthBit", func(t *testing.T) {
		d := AsHashDirectory(freshPageData())
		d.Init(3)
		d.setGlobalDepth(2)
		d.SetLocalDepth(1, 1)
		assert.Equal(t, uint32(3), d.SplitImageIndex(1))
		d.SetLocalDepth(1, 0)
		assert.Equal(t, uint32(0), d.SplitImageIndex(1))
	})

	t.Run("HashToBucketIndexUsesLowBits", func(t *testing.T) {
		d := AsHashDirectory(freshPageData())
		d.Init(3)
		d.setGlobalDepth(2)
		assert.Equal(t, uint32(2), d.HashToBucketIndex(0b0110))
		d.setGlobalDepth(0)
		assert.Equal(t, uint32(0), d.HashToBucketIndex(0b0110))
	})

	t.Run("CanShrink", func(t *testing.T) {
		d := AsHashDirectory(freshPageData())
		d.Init(3)
		assert.False(t, d.CanShrink(), "depth zero cannot shrink")

		d.IncrGlobalDepth()
		d.SetLocalDepth(0, 1)
		d.SetLocalDepth(1, 1)
		assert.False(t, d.CanShrink())

		d.SetLocalDepth(0, 0)
		d.SetLocalDepth(1, 0)
		assert.True(t, d.CanShrink())
		d.DecrGlobalDepth()
		assert.Equal(t, uint32(0), d.GlobalDepth())
	})

	t.Run("VerifyIntegrity", func(t *testing.T) {
		d := AsHashDirectory(freshPageData())
		d.Init(3)
		d.IncrGlobalDepth()
		d.SetBucketPageID(0, 7)
		d.SetBucketPageID(1, 7)
		assert.NoError(t, d.VerifyIntegrity())

		// Slots sharing low bits must agree on the bucket.
		d.SetLocalDepth(0, 0)
		d.SetLocalDepth(1, 0)
		d.SetBucketPageID(1, 8)
		assert.Error(t, d.VerifyIntegrity())
	})
}

func TestHashBucketPage(t *testing.T) {
	newBucket := func(maxSize uint32) *HashBucketPage {
		b := AsHashBucket(freshPageData())
		b.Init(maxSize)
		return b
	}

	t.Run("InsertLookupRemove", func(t *testing.T) {
		b := newBucket(4)
		assert.True(t, b.Insert(10, 100, util.CompareUint64))
		assert.True(t, b.Insert(20, 200, util.CompareUint64))

		value, ok := b.Lookup(10, util.CompareUint64)
		assert.True(t, ok)
		assert.Equal(t, uint64(100), value)

		assert.True(t, b.Remove(10, util.CompareUint64))
		_, ok = b.Lookup(10, util.CompareUint64)
		assert.False(t, ok)
		assert.False(t, b.Remove(10, util.CompareUint64))
	})

	t.Run("RejectsDuplicates", func(t *testing.T) {
		b := newBucket(4)
		assert.True(t, b.Insert(1, 1, util.CompareUint64))
		assert.False(t, b.Insert(1, 2, util.CompareUint64))
		assert.Equal(t, uint32(1), b.Size())
	})

	t.Run("RejectsWhenFull", func(t *testing.T) {
		b := newBucket(2)
		assert.True(t, b.Insert(1, 1, util.CompareUint64))
		assert.True(t, b.Insert(2, 2, util.CompareUint64))
		assert.True(t, b.IsFull())
		assert.False(t, b.Insert(3, 3, util.CompareUint64))
	})

	t.Run("RemoveAtCompacts", func(t *testing.T) {
		b := newBucket(4)
		for i := uint64(0); i < 4; i++ {
			require.True(t, b.Insert(i, i*10, util.CompareUint64))
		}
		b.RemoveAt(1)
		assert.Equal(t, uint32(3), b.Size())
		assert.Equal(t, uint64(0), b.KeyAt(0))
		assert.Equal(t, uint64(2), b.KeyAt(1))
		assert.Equal(t, uint64(3), b.KeyAt(2))
		assert.Equal(t, uint64(30), b.ValueAt(2))
	})

	t.Run("InitBoundsMaxSize", func(t *testing.T) {
		assert.PanicsWithError(t, util.ErrBucketMaxSize.Error(), func() {
			AsHashBucket(freshPageData()).Init(HashBucketCapacity + 1)
		})
	})
}
