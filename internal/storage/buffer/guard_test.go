package buffer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBasicPageGuard(t *testing.T) {
	t.Run("DropUnpins", func(t *testing.T) {
		bpm, _ := newTestPool(t, 3, 2)
		guard := bpm.NewPageGuarded()
		require.NotNil(t, guard)
		p := guard.page
		assert.Equal(t, int32(1), p.PinCount())

		guard.Drop()
		assert.Equal(t, int32(0), p.PinCount())
	})

	t.Run("DoubleDropIsInert", func(t *testing.T) {
		bpm, _ := newTestPool(t, 3, 2)
		guard := bpm.NewPageGuarded()
		require.NotNil(t, guard)
		p := guard.page
		pageID := guard.PageID()

		// Hold a second pin so a buggy double unpin would be visible.
		require.NotNil(t, bpm.FetchPage(pageID, AccessUnknown))
		guard.Drop()
		guard.Drop()
		assert.Equal(t, int32(1), p.PinCount())
	})

	t.Run("DirtyFlagPropagatesOnDrop", func(t *testing.T) {
		bpm, _ := newTestPool(t, 3, 2)
		guard := bpm.NewPageGuarded()
		require.NotNil(t, guard)
		p := guard.page

		guard.DataMut()[0] = 0x01
		guard.Drop()
		assert.True(t, p.IsDirty())
	})
}

func TestGuardUpgrade(t *testing.T) {
	t.Run("UpgradeWriteTransfersOwnership", func(t *testing.T) {
		bpm, _ := newTestPool(t, 3, 2)
		guard := bpm.NewPageGuarded()
		require.NotNil(t, guard)
		p := guard.page

		w := guard.UpgradeWrite()
		// The consumed basic guard is inert; its drop releases nothing.
		guard.Drop()
		assert.Equal(t, int32(1), p.PinCount())

		w.Drop()
		assert.Equal(t, int32(0), p.PinCount())
		assert.True(t, p.IsDirty(), "write guard marks the page dirty")
	})

	t.Run("UpgradeReadKeepsClean", func(t *testing.T) {
		bpm, _ := newTestPool(t, 3, 2)
		guard := bpm.NewPageGuarded()
		require.NotNil(t, guard)
		p := guard.page

		r := guard.UpgradeRead()
		r.Drop()
		assert.Equal(t, int32(0), p.PinCount())
		assert.False(t, p.IsDirty())
	})
}

func TestReadGuardsShareTheLatch(t *testing.T) {
	bpm, _ := newTestPool(t, 3, 2)
	p := bpm.NewPage()
	require.NotNil(t, p)
	require.True(t, bpm.UnpinPage(p.ID(), false, AccessUnknown))

	first := bpm.FetchPageRead(p.ID())
	require.NotNil(t, first)
	second := bpm.FetchPageRead(p.ID())
	require.NotNil(t, second, "shared latch admits a second reader")
	assert.Equal(t, int32(2), p.PinCount())

	first.Drop()
	second.Drop()
	assert.Equal(t, int32(0), p.PinCount())
}

func TestWriteGuardExcludesWhileHeld(t *testing.T) {
	bpm, _ := newTestPool(t, 3, 2)
	p := bpm.NewPage()
	require.NotNil(t, p)
	require.True(t, bpm.UnpinPage(p.ID(), false, AccessUnknown))

	w := bpm.FetchPageWrite(p.ID())
	require.NotNil(t, w)

	acquired := make(chan struct{})
	go func() {
		r := bpm.FetchPageRead(p.ID())
		r.Drop()
		close(acquired)
	}()

	time.Sleep(10 * time.Millisecond)
	select {
	case <-acquired:
		t.Fatal("reader acquired the latch while a write guard was held")
	default:
	}

	w.Drop()
	<-acquired
}
