package buffer

import (
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/bietkhonhungvandi212/hashdb/internal/storage/disk"
	"github.com/bietkhonhungvandi212/hashdb/internal/storage/page"
	util "github.com/bietkhonhungvandi212/hashdb/internal/utils"
)

// BufferPoolManager owns a fixed array of frames and maps resident page ids
// onto them. It loads pages through the disk scheduler on miss, writes dirty
// victims back before reuse, and tracks pins so the replacer never evicts a
// frame in use.
//
// One mutex guards the page table, free list, replacer interaction, and
// frame metadata. The mutex is released for the duration of blocking I/O;
// a per-frame availability flag plus condition variable covers the window so
// no caller observes a frame mid-transfer.
type BufferPoolManager struct {
	mu        sync.Mutex
	poolSize  int
	frames    []*page.Page
	pageTable map[util.PageID]util.FrameID
	freeList  []util.FrameID
	replacer  Replacer
	scheduler disk.Scheduler
	dm        disk.DiskManager
	avail     []bool
	availCond []*sync.Cond
}

func NewBufferPoolManager(poolSize int, dm disk.DiskManager, scheduler disk.Scheduler, replacer Replacer) *BufferPoolManager {
	if poolSize <= 0 {
		panic(util.ErrInvalidPoolSize)
	}

	bpm := &BufferPoolManager{
		poolSize:  poolSize,
		frames:    make([]*page.Page, poolSize),
		pageTable: make(map[util.PageID]util.FrameID, poolSize),
		freeList:  make([]util.FrameID, 0, poolSize),
		replacer:  replacer,
		scheduler: scheduler,
		dm:        dm,
		avail:     make([]bool, poolSize),
		availCond: make([]*sync.Cond, poolSize),
	}
	for i := 0; i < poolSize; i++ {
		bpm.frames[i] = page.NewPage()
		bpm.freeList = append(bpm.freeList, util.FrameID(i))
		bpm.avail[i] = true
		bpm.availCond[i] = sync.NewCond(&bpm.mu)
	}
	return bpm
}

// NewPage allocates a fresh page id, places it in a frame pinned with count
// 1, and returns the frame. It returns nil iff every frame is pinned.
func (b *BufferPoolManager) NewPage() *page.Page {
	b.mu.Lock()
	defer b.mu.Unlock()

	frameID, ok := b.takeFrame()
	if !ok {
		return nil
	}
	fr := b.frames[frameID]
	delete(b.pageTable, fr.ID())
	// A FlushPage may still be draining this frame; wait it out before
	// repurposing the memory.
	for !b.avail[frameID] {
		b.availCond[frameID].Wait()
	}

	b.replacer.RecordAccess(frameID, AccessUnknown)
	b.replacer.SetEvictable(frameID, false)

	pageID := b.dm.AllocatePage()
	b.pageTable[pageID] = frameID
	fr.SetPinCount(1)

	// Write-before-evict: the frame still carries the victim's id and bytes.
	if fr.IsDirty() {
		b.flushFrame(frameID)
	}
	fr.SetID(pageID)
	fr.ResetMemory()
	return fr
}

// FetchPage returns the frame holding pageID, reading it from disk on a
// miss. The frame comes back pinned; it returns nil iff the pool is full of
// pinned frames.
func (b *BufferPoolManager) FetchPage(pageID util.PageID, accessType AccessType) *page.Page {
	b.mu.Lock()
	defer b.mu.Unlock()

	if frameID, ok := b.pageTable[pageID]; ok {
		fr := b.frames[frameID]
		fr.IncPinCount()
		b.replacer.RecordAccess(frameID, accessType)
		b.replacer.SetEvictable(frameID, false)
		for !b.avail[frameID] {
			b.availCond[frameID].Wait()
		}
		return fr
	}

	frameID, ok := b.takeFrame()
	if !ok {
		return nil
	}
	fr := b.frames[frameID]
	delete(b.pageTable, fr.ID())
	for !b.avail[frameID] {
		b.availCond[frameID].Wait()
	}

	b.pageTable[pageID] = frameID
	fr.SetPinCount(1)
	b.replacer.RecordAccess(frameID, accessType)
	b.replacer.SetEvictable(frameID, false)

	if fr.IsDirty() {
		b.flushFrame(frameID)
	}
	fr.SetID(pageID)
	b.readFrame(frameID)
	return fr
}

// UnpinPage drops one pin. When the count reaches zero the frame becomes
// evictable. isDirty is ORed into the frame's dirty bit. It returns false if
// the page is absent or already at pin zero.
func (b *BufferPoolManager) UnpinPage(pageID util.PageID, isDirty bool, _ AccessType) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	frameID, ok := b.pageTable[pageID]
	if !ok {
		return false
	}
	if frameID < 0 || int(frameID) >= b.poolSize {
		panic(util.ErrInvalidFrameId)
	}
	fr := b.frames[frameID]
	fr.SetDirty(fr.IsDirty() || isDirty)
	if fr.PinCount() <= 0 {
		return false
	}
	fr.DecPinCount()
	if fr.PinCount() == 0 {
		b.replacer.SetEvictable(frameID, true)
	}
	return true
}

// FlushPage writes the page's current contents to disk, dirty or not, and
// clears the dirty bit. It returns false if the page is not resident.
func (b *BufferPoolManager) FlushPage(pageID util.PageID) bool {
	if pageID == util.InvalidPageID {
		panic(util.ErrInvalidPageId)
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	frameID, ok := b.pageTable[pageID]
	if !ok {
		return false
	}
	b.flushFrame(frameID)
	return true
}

// FlushAllPages flushes every resident page.
func (b *BufferPoolManager) FlushAllPages() {
	b.mu.Lock()
	defer b.mu.Unlock()

	// flushFrame drops the mutex mid-flight, so snapshot the residents
	// rather than iterating the live table.
	frameIDs := make([]util.FrameID, 0, len(b.pageTable))
	for _, frameID := range b.pageTable {
		frameIDs = append(frameIDs, frameID)
	}
	for _, frameID := range frameIDs {
		b.flushFrame(frameID)
	}
}

// DeletePage drops a resident page from the pool, returning its frame to the
// free list and deallocating the page id. It requires pin count zero and is
// idempotent: deleting an absent page returns true.
func (b *BufferPoolManager) DeletePage(pageID util.PageID) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	frameID, ok := b.pageTable[pageID]
	if !ok {
		return true
	}
	fr := b.frames[frameID]
	if fr.PinCount() != 0 {
		return false
	}
	delete(b.pageTable, pageID)
	b.replacer.Remove(frameID)
	// Write back before the frame becomes claimable from the free list.
	if fr.IsDirty() {
		b.flushFrame(frameID)
	}
	b.freeList = append(b.freeList, frameID)
	fr.Reset()
	b.dm.DeallocatePage(pageID)
	return true
}

// FetchPageBasic wraps FetchPage in a guard that unpins on Drop.
func (b *BufferPoolManager) FetchPageBasic(pageID util.PageID) *BasicPageGuard {
	return newBasicGuard(b, b.FetchPage(pageID, AccessUnknown))
}

// FetchPageRead fetches and read-latches the page.
func (b *BufferPoolManager) FetchPageRead(pageID util.PageID) *ReadPageGuard {
	p := b.FetchPage(pageID, AccessUnknown)
	if p == nil {
		return nil
	}
	p.RLatch()
	return &ReadPageGuard{guard: BasicPageGuard{bpm: b, page: p}}
}

// FetchPageWrite fetches and write-latches the page.
func (b *BufferPoolManager) FetchPageWrite(pageID util.PageID) *WritePageGuard {
	p := b.FetchPage(pageID, AccessUnknown)
	if p == nil {
		return nil
	}
	p.WLatch()
	return &WritePageGuard{guard: BasicPageGuard{bpm: b, page: p, isDirty: true}}
}

// NewPageGuarded wraps NewPage in a guard that unpins on Drop.
func (b *BufferPoolManager) NewPageGuarded() *BasicPageGuard {
	return newBasicGuard(b, b.NewPage())
}

// takeFrame prefers the free list, then asks the replacer for a victim.
func (b *BufferPoolManager) takeFrame() (util.FrameID, bool) {
	if len(b.freeList) > 0 {
		frameID := b.freeList[0]
		b.freeList = b.freeList[1:]
		return frameID, true
	}
	return b.replacer.Evict()
}

// flushFrame writes the frame's page out through the scheduler and clears
// the dirty bit. It first waits out any transfer already in flight on the
// frame. The caller holds the pool mutex; it is released while the write
// drains, with the frame marked unavailable so concurrent fetches of the
// same frame wait instead of reading bytes mid-transfer.
func (b *BufferPoolManager) flushFrame(frameID util.FrameID) {
	for !b.avail[frameID] {
		b.availCond[frameID].Wait()
	}
	fr := b.frames[frameID]
	req := &disk.DiskRequest{
		IsWrite: true,
		PageID:  fr.ID(),
		Data:    fr.Data(),
		Done:    make(chan bool, 1),
	}
	b.scheduler.Schedule(req)
	b.avail[frameID] = false
	b.mu.Unlock()
	ok := <-req.Done
	b.mu.Lock()
	b.avail[frameID] = true
	b.availCond[frameID].Broadcast()
	if !ok {
		logrus.Fatalf("buffer pool: write of page %d failed, cannot continue", fr.ID())
	}
	fr.SetDirty(false)
}

// readFrame fills the frame from disk. Same mutex discipline as flushFrame.
func (b *BufferPoolManager) readFrame(frameID util.FrameID) {
	fr := b.frames[frameID]
	req := &disk.DiskRequest{
		IsWrite: false,
		PageID:  fr.ID(),
		Data:    fr.Data(),
		Done:    make(chan bool, 1),
	}
	b.scheduler.Schedule(req)
	b.avail[frameID] = false
	b.mu.Unlock()
	ok := <-req.Done
	b.mu.Lock()
	b.avail[frameID] = true
	b.availCond[frameID].Broadcast()
	if !ok {
		logrus.Fatalf("buffer pool: read of page %d failed, cannot continue", fr.ID())
	}
}
