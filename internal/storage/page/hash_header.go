package page

import (
	"encoding/binary"

	util "github.com/bietkhonhungvandi212/hashdb/internal/utils"
)

// On-page layout of the hash index header:
//
//	offset 0: u32 maxDepth
//	offset 4: int32 directoryPageIDs[1 << maxDepth]
//
// The header is a singleton. It routes the top maxDepth bits of a key hash to
// a directory page.
const (
	hashHeaderMetaSize = 4

	// HashHeaderMaxDepth bounds maxDepth so the pointer array fits one page.
	HashHeaderMaxDepth = 9
)

// HashHeaderPage is a typed view over a pinned page's data. It owns no
// memory; the caller's page guard keeps the underlying frame alive.
type HashHeaderPage struct {
	data []byte
}

func AsHashHeader(data []byte) *HashHeaderPage {
	return &HashHeaderPage{data: data}
}

// Init formats a fresh header page. Every directory slot starts absent.
func (h *HashHeaderPage) Init(maxDepth uint32) {
	if maxDepth > HashHeaderMaxDepth {
		panic(util.ErrDepthExceeded)
	}
	binary.LittleEndian.PutUint32(h.data[0:4], maxDepth)
	for i := uint32(0); i < 1<<maxDepth; i++ {
		h.SetDirectoryPageID(i, util.InvalidPageID)
	}
}

func (h *HashHeaderPage) MaxDepth() uint32 {
	return binary.LittleEndian.Uint32(h.data[0:4])
}

// MaxSize is the number of directory slots the header addresses.
func (h *HashHeaderPage) MaxSize() uint32 {
	return 1 << h.MaxDepth()
}

// HashToDirectoryIndex routes a hash by its top maxDepth bits. With maxDepth
// zero every hash routes to slot 0.
func (h *HashHeaderPage) HashToDirectoryIndex(hash uint32) uint32 {
	maxDepth := h.MaxDepth()
	if maxDepth == 0 {
		return 0
	}
	return hash >> (32 - maxDepth)
}

func (h *HashHeaderPage) DirectoryPageID(idx uint32) util.PageID {
	off := hashHeaderMetaSize + idx*4
	return util.PageID(binary.LittleEndian.Uint32(h.data[off : off+4]))
}

func (h *HashHeaderPage) SetDirectoryPageID(idx uint32, id util.PageID) {
	off := hashHeaderMetaSize + idx*4
	binary.LittleEndian.PutUint32(h.data[off:off+4], uint32(id))
}
