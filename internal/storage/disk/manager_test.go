package disk

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	util "github.com/bietkhonhungvandi212/hashdb/internal/utils"
)

func TestFileDiskManager(t *testing.T) {
	t.Run("WriteReadRoundTrip", func(t *testing.T) {
		path, cleanup := util.CreateTempFile(t)
		defer cleanup()
		dm, err := NewFileDiskManager(path)
		require.NoError(t, err)
		defer dm.ShutDown()

		pageID := dm.AllocatePage()
		require.NoError(t, dm.WritePage(pageID, pageFilledWith(0xAB)))

		got := make([]byte, util.PageSize)
		require.NoError(t, dm.ReadPage(pageID, got))
		assert.Equal(t, pageFilledWith(0xAB), got)
	})

	t.Run("AllocateMonotonic", func(t *testing.T) {
		path, cleanup := util.CreateTempFile(t)
		defer cleanup()
		dm, err := NewFileDiskManager(path)
		require.NoError(t, err)
		defer dm.ShutDown()

		first := dm.AllocatePage()
		second := dm.AllocatePage()
		assert.Equal(t, first+1, second)
	})

	t.Run("UnwrittenPageReadsZero", func(t *testing.T) {
		path, cleanup := util.CreateTempFile(t)
		defer cleanup()
		dm, err := NewFileDiskManager(path)
		require.NoError(t, err)
		defer dm.ShutDown()

		pageID := dm.AllocatePage()
		got := pageFilledWith(0xFF)
		require.NoError(t, dm.ReadPage(pageID, got))
		assert.Equal(t, make([]byte, util.PageSize), got)
	})

	t.Run("ReopenRecoversNextPageID", func(t *testing.T) {
		path, cleanup := util.CreateTempFile(t)
		defer cleanup()
		dm, err := NewFileDiskManager(path)
		require.NoError(t, err)

		for i := 0; i < 3; i++ {
			pageID := dm.AllocatePage()
			require.NoError(t, dm.WritePage(pageID, pageFilledWith(byte(i))))
		}
		require.NoError(t, dm.ShutDown())

		reopened, err := NewFileDiskManager(path)
		require.NoError(t, err)
		defer reopened.ShutDown()
		assert.Equal(t, util.PageID(3), reopened.AllocatePage())

		got := make([]byte, util.PageSize)
		require.NoError(t, reopened.ReadPage(1, got))
		assert.Equal(t, pageFilledWith(0x01), got)
	})
}

func TestMemoryDiskManager(t *testing.T) {
	t.Run("CountsPerPageIO", func(t *testing.T) {
		dm := NewMemoryDiskManager()
		pageID := dm.AllocatePage()

		require.NoError(t, dm.WritePage(pageID, pageFilledWith(0x7E)))
		require.NoError(t, dm.WritePage(pageID, pageFilledWith(0x7F)))
		assert.Equal(t, 2, dm.WriteCount(pageID))
		assert.Equal(t, 2, dm.TotalWrites())
		assert.Equal(t, pageFilledWith(0x7F), dm.PageData(pageID))
	})

	t.Run("UnwrittenPageReadsZero", func(t *testing.T) {
		dm := NewMemoryDiskManager()
		pageID := dm.AllocatePage()
		got := pageFilledWith(0xFF)
		require.NoError(t, dm.ReadPage(pageID, got))
		assert.Equal(t, make([]byte, util.PageSize), got)
	})
}
