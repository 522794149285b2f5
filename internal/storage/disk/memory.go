package disk

import (
	"sync"

	"github.com/dsnet/golib/memfile"

	util "github.com/bietkhonhungvandi212/hashdb/internal/utils"
)

// MemoryDiskManager keeps the database in a growable in-memory file. It is
// the backend for tests, and it counts per-page I/O so tests can assert
// write-before-evict and exactly-once scheduling.
type MemoryDiskManager struct {
	mu         sync.Mutex
	db         *memfile.File
	nextPageID util.PageID
	writes     map[util.PageID]int
	reads      map[util.PageID]int
}

func NewMemoryDiskManager() *MemoryDiskManager {
	return &MemoryDiskManager{
		db:     memfile.New(make([]byte, 0)),
		writes: make(map[util.PageID]int),
		reads:  make(map[util.PageID]int),
	}
}

func (d *MemoryDiskManager) WritePage(pageID util.PageID, data []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	offset := int64(pageID) * util.PageSize
	if _, err := d.db.WriteAt(data[:util.PageSize], offset); err != nil {
		return err
	}
	d.writes[pageID]++
	return nil
}

func (d *MemoryDiskManager) ReadPage(pageID util.PageID, data []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	offset := int64(pageID) * util.PageSize
	if offset+util.PageSize > int64(len(d.db.Bytes())) {
		// Allocated but never written; reads back as zeroes.
		clear(data[:util.PageSize])
	} else {
		copy(data[:util.PageSize], d.db.Bytes()[offset:offset+util.PageSize])
	}
	d.reads[pageID]++
	return nil
}

func (d *MemoryDiskManager) AllocatePage() util.PageID {
	d.mu.Lock()
	defer d.mu.Unlock()
	pageID := d.nextPageID
	d.nextPageID++
	return pageID
}

func (d *MemoryDiskManager) DeallocatePage(pageID util.PageID) {}

func (d *MemoryDiskManager) ShutDown() error { return nil }

// WriteCount reports how many times the page has been written.
func (d *MemoryDiskManager) WriteCount(pageID util.PageID) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.writes[pageID]
}

// TotalWrites reports the count of page writes across all pages.
func (d *MemoryDiskManager) TotalWrites() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	total := 0
	for _, n := range d.writes {
		total += n
	}
	return total
}

// PageData returns a snapshot of the page as stored.
func (d *MemoryDiskManager) PageData(pageID util.PageID) []byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	snapshot := make([]byte, util.PageSize)
	offset := int64(pageID) * util.PageSize
	if offset+util.PageSize <= int64(len(d.db.Bytes())) {
		copy(snapshot, d.db.Bytes()[offset:offset+util.PageSize])
	}
	return snapshot
}
