package hash

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bietkhonhungvandi212/hashdb/internal/storage/buffer"
	"github.com/bietkhonhungvandi212/hashdb/internal/storage/disk"
	util "github.com/bietkhonhungvandi212/hashdb/internal/utils"
)

func newTestTable(t *testing.T, poolSize int, headerMaxDepth, directoryMaxDepth, bucketMaxSize uint32,
	hashFn util.HashFunc,
) *DiskExtendibleHashTable {
	t.Helper()
	dm := disk.NewMemoryDiskManager()
	scheduler := disk.NewDiskScheduler(dm)
	t.Cleanup(scheduler.ShutDown)
	bpm := buffer.NewBufferPoolManager(poolSize, dm, scheduler, buffer.NewLRUKReplacer(poolSize, 2))

	table, err := NewDiskExtendibleHashTable("test", bpm, util.CompareUint64, hashFn,
		headerMaxDepth, directoryMaxDepth, bucketMaxSize)
	require.NoError(t, err)
	return table
}

func TestHashTableBasic(t *testing.T) {
	table := newTestTable(t, 10, 2, 3, 4, util.IdentityHash)

	t.Run("GetOnEmptyTable", func(t *testing.T) {
		_, ok := table.GetValue(1)
		assert.False(t, ok)
	})

	t.Run("InsertThenGet", func(t *testing.T) {
		assert.True(t, table.Insert(1, 100))
		value, ok := table.GetValue(1)
		assert.True(t, ok)
		assert.Equal(t, uint64(100), value)
	})

	t.Run("DuplicateKeyRejected", func(t *testing.T) {
		assert.False(t, table.Insert(1, 200))
		value, _ := table.GetValue(1)
		assert.Equal(t, uint64(100), value)
	})

	t.Run("RemoveThenGet", func(t *testing.T) {
		assert.True(t, table.Remove(1))
		_, ok := table.GetValue(1)
		assert.False(t, ok)
		assert.False(t, table.Remove(1))
	})
}

func TestHashTableGrowth(t *testing.T) {
	// directoryMaxDepth 2 and bucketMaxSize 2 hold exactly eight identity
	// keys: the low two bits spread 0..7 evenly across four buckets.
	table := newTestTable(t, 10, 2, 2, 2, util.IdentityHash)

	for key := uint64(0); key < 8; key++ {
		assert.True(t, table.Insert(key, key*10), "insert %d", key)
	}
	for key := uint64(0); key < 8; key++ {
		value, ok := table.GetValue(key)
		assert.True(t, ok, "get %d", key)
		assert.Equal(t, key*10, value)
	}
	assert.Equal(t, uint32(2), table.GlobalDepth())
	assert.NoError(t, table.VerifyIntegrity())

	t.Run("SaturatedDirectoryRejectsInsert", func(t *testing.T) {
		// Key 8 lands in the full bucket for low bits 00 and no further
		// split is possible.
		assert.False(t, table.Insert(8, 80))
		_, ok := table.GetValue(8)
		assert.False(t, ok)
		assert.NoError(t, table.VerifyIntegrity())
	})
}

func TestHashTableShrink(t *testing.T) {
	table := newTestTable(t, 10, 2, 2, 2, util.IdentityHash)

	for key := uint64(0); key < 8; key++ {
		require.True(t, table.Insert(key, key), "insert %d", key)
	}
	for key := uint64(0); key < 8; key++ {
		assert.True(t, table.Remove(key), "remove %d", key)
		assert.NoError(t, table.VerifyIntegrity(), "after removing %d", key)
	}
	for key := uint64(0); key < 8; key++ {
		_, ok := table.GetValue(key)
		assert.False(t, ok, "get %d after removal", key)
	}
	assert.Equal(t, uint32(0), table.GlobalDepth(), "empty table shrinks to a single bucket")
}

func TestHashTableSplitKeepsAliasSlotsConsistent(t *testing.T) {
	// Keys that collide on the low bits force repeated splits of the same
	// bucket; alias slots above the split must keep routing correctly.
	table := newTestTable(t, 16, 1, 4, 2, util.IdentityHash)

	// 0, 4, 8, 12 collide on the low two bits, so the first bucket splits
	// three times before the keys separate at bit two.
	keys := []uint64{0, 4, 8, 12, 2, 6}
	for _, key := range keys {
		assert.True(t, table.Insert(key, key+1), "insert %d", key)
		assert.NoError(t, table.VerifyIntegrity(), "after inserting %d", key)
	}
	for _, key := range keys {
		value, ok := table.GetValue(key)
		assert.True(t, ok, "get %d", key)
		assert.Equal(t, key+1, value)
	}
}

func TestHashTableLargeWorkload(t *testing.T) {
	const n = 500
	table := newTestTable(t, 64, 9, 9, 8, util.XXHash32)

	for key := uint64(0); key < n; key++ {
		require.True(t, table.Insert(key, key*key), "insert %d", key)
	}
	require.NoError(t, table.VerifyIntegrity())

	for key := uint64(0); key < n; key++ {
		value, ok := table.GetValue(key)
		require.True(t, ok, "get %d", key)
		require.Equal(t, key*key, value)
	}

	for key := uint64(0); key < n; key += 2 {
		require.True(t, table.Remove(key), "remove %d", key)
	}
	require.NoError(t, table.VerifyIntegrity())

	for key := uint64(0); key < n; key++ {
		value, ok := table.GetValue(key)
		if key%2 == 0 {
			assert.False(t, ok, "removed key %d still present", key)
		} else {
			assert.True(t, ok, "get %d", key)
			assert.Equal(t, key*key, value)
		}
	}
}

func TestHashTableConcurrentReaders(t *testing.T) {
	const n = 100
	table := newTestTable(t, 32, 2, 9, 8, util.XXHash32)
	for key := uint64(0); key < n; key++ {
		require.True(t, table.Insert(key, key))
	}

	done := make(chan struct{})
	for w := 0; w < 4; w++ {
		go func() {
			defer func() { done <- struct{}{} }()
			for key := uint64(0); key < n; key++ {
				value, ok := table.GetValue(key)
				assert.True(t, ok, "get %d", key)
				assert.Equal(t, key, value)
			}
		}()
	}
	for w := 0; w < 4; w++ {
		<-done
	}
}
