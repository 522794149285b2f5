package buffer

import (
	"github.com/bietkhonhungvandi212/hashdb/internal/storage/page"
	util "github.com/bietkhonhungvandi212/hashdb/internal/utils"
)

// Page guards tie a pin (and optionally a latch) to a scope. Exactly one
// Drop takes effect per acquisition: dropping again, or dropping a guard
// that was consumed by an upgrade, is a no-op. Guards never panic on Drop.

// BasicPageGuard owns a pin. Drop unpins with the guard's dirty flag.
type BasicPageGuard struct {
	bpm     *BufferPoolManager
	page    *page.Page
	isDirty bool
}

func newBasicGuard(bpm *BufferPoolManager, p *page.Page) *BasicPageGuard {
	if p == nil {
		return nil
	}
	return &BasicPageGuard{bpm: bpm, page: p}
}

// Drop releases the pin and leaves the guard inert.
func (g *BasicPageGuard) Drop() {
	if g.bpm != nil && g.page != nil {
		g.bpm.UnpinPage(g.page.ID(), g.isDirty, AccessUnknown)
	}
	g.bpm = nil
	g.page = nil
	g.isDirty = false
}

func (g *BasicPageGuard) PageID() util.PageID {
	if g.page == nil {
		return util.InvalidPageID
	}
	return g.page.ID()
}

// Data reads the page image without marking it dirty.
func (g *BasicPageGuard) Data() []byte { return g.page.Data() }

// DataMut exposes the page image for mutation and marks the guard dirty.
func (g *BasicPageGuard) DataMut() []byte {
	g.isDirty = true
	return g.page.Data()
}

// UpgradeRead acquires the shared latch and transfers ownership into a read
// guard. The basic guard is inert afterwards.
func (g *BasicPageGuard) UpgradeRead() *ReadPageGuard {
	g.page.RLatch()
	rg := &ReadPageGuard{guard: *g}
	g.bpm = nil
	g.page = nil
	g.isDirty = false
	return rg
}

// UpgradeWrite acquires the exclusive latch and transfers ownership into a
// write guard. The page is considered dirty from this point.
func (g *BasicPageGuard) UpgradeWrite() *WritePageGuard {
	g.page.WLatch()
	wg := &WritePageGuard{guard: *g}
	wg.guard.isDirty = true
	g.bpm = nil
	g.page = nil
	g.isDirty = false
	return wg
}

// ReadPageGuard owns a pin and a shared latch.
type ReadPageGuard struct {
	guard BasicPageGuard
}

// Drop releases the latch, then the pin.
func (g *ReadPageGuard) Drop() {
	if g.guard.page != nil {
		g.guard.page.RUnlatch()
	}
	g.guard.Drop()
}

func (g *ReadPageGuard) PageID() util.PageID { return g.guard.PageID() }

func (g *ReadPageGuard) Data() []byte { return g.guard.page.Data() }

// WritePageGuard owns a pin and the exclusive latch.
type WritePageGuard struct {
	guard BasicPageGuard
}

// Drop releases the latch, then the pin.
func (g *WritePageGuard) Drop() {
	if g.guard.page != nil {
		g.guard.page.WUnlatch()
	}
	g.guard.Drop()
}

func (g *WritePageGuard) PageID() util.PageID { return g.guard.PageID() }

func (g *WritePageGuard) Data() []byte { return g.guard.page.Data() }

// DataMut exposes the page image for mutation.
func (g *WritePageGuard) DataMut() []byte { return g.guard.page.Data() }
