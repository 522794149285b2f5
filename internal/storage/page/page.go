package page

import (
	"sync"

	util "github.com/bietkhonhungvandi212/hashdb/internal/utils"
)

// Page is the in-memory image of one disk block plus the bookkeeping the
// buffer pool needs: identity, pin count, dirty bit, and a read/write latch.
// The latch protects the data array; the metadata fields are mutated only
// under the buffer pool mutex.
type Page struct {
	latch    sync.RWMutex
	id       util.PageID
	pinCount int32
	isDirty  bool
	data     [util.PageSize]byte
}

func NewPage() *Page {
	return &Page{id: util.InvalidPageID}
}

func (p *Page) ID() util.PageID      { return p.id }
func (p *Page) SetID(id util.PageID) { p.id = id }

func (p *Page) PinCount() int32     { return p.pinCount }
func (p *Page) SetPinCount(n int32) { p.pinCount = n }
func (p *Page) IncPinCount()        { p.pinCount++ }
func (p *Page) DecPinCount()        { p.pinCount-- }

func (p *Page) IsDirty() bool       { return p.isDirty }
func (p *Page) SetDirty(dirty bool) { p.isDirty = dirty }

// Data exposes the page image. Callers must hold the appropriate latch.
func (p *Page) Data() []byte { return p.data[:] }

// ResetMemory zeroes the page image.
func (p *Page) ResetMemory() {
	clear(p.data[:])
}

// Reset returns the page to its just-constructed state.
func (p *Page) Reset() {
	p.id = util.InvalidPageID
	p.pinCount = 0
	p.isDirty = false
	p.ResetMemory()
}

func (p *Page) RLatch()   { p.latch.RLock() }
func (p *Page) RUnlatch() { p.latch.RUnlock() }
func (p *Page) WLatch()   { p.latch.Lock() }
func (p *Page) WUnlatch() { p.latch.Unlock() }
