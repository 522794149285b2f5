package hash

import (
	"github.com/pkg/errors"

	"github.com/bietkhonhungvandi212/hashdb/internal/storage/buffer"
	"github.com/bietkhonhungvandi212/hashdb/internal/storage/page"
	util "github.com/bietkhonhungvandi212/hashdb/internal/utils"
)

// DiskExtendibleHashTable is a disk-resident extendible hash index. All
// persistence goes through buffer pool page guards: a singleton header page
// routes the top bits of a key hash to a directory page, the directory's low
// global-depth bits pick a bucket page, and buckets hold the pairs.
//
// Latching is coarse and top-down (header, then directory, then bucket), so
// lock order is fixed and deadlock-free. The header is released once the
// directory id is read, before the directory is latched; GetValue releases
// the directory the same way, while Insert and Remove keep it latched for
// the whole bucket operation.
type DiskExtendibleHashTable struct {
	name string
	bpm  *buffer.BufferPoolManager
	cmp  util.Comparator
	hash util.HashFunc

	headerMaxDepth    uint32
	directoryMaxDepth uint32
	bucketMaxSize     uint32

	headerPageID util.PageID
}

// NewDiskExtendibleHashTable allocates and formats the header page.
func NewDiskExtendibleHashTable(name string, bpm *buffer.BufferPoolManager, cmp util.Comparator,
	hash util.HashFunc, headerMaxDepth, directoryMaxDepth, bucketMaxSize uint32,
) (*DiskExtendibleHashTable, error) {
	t := &DiskExtendibleHashTable{
		name:              name,
		bpm:               bpm,
		cmp:               cmp,
		hash:              hash,
		headerMaxDepth:    headerMaxDepth,
		directoryMaxDepth: directoryMaxDepth,
		bucketMaxSize:     bucketMaxSize,
		headerPageID:      util.InvalidPageID,
	}

	guard := bpm.NewPageGuarded()
	if guard == nil {
		return nil, errors.Wrapf(util.ErrNoFreeFrame, "create hash table %s", name)
	}
	t.headerPageID = guard.PageID()
	headerW := guard.UpgradeWrite()
	page.AsHashHeader(headerW.DataMut()).Init(headerMaxDepth)
	headerW.Drop()
	return t, nil
}

// GetValue looks the key up. ok is false when the key is absent.
func (t *DiskExtendibleHashTable) GetValue(key uint64) (uint64, bool) {
	hash := t.hash(key)

	headerR := t.bpm.FetchPageRead(t.headerPageID)
	if headerR == nil {
		return 0, false
	}
	header := page.AsHashHeader(headerR.Data())
	directoryPageID := header.DirectoryPageID(header.HashToDirectoryIndex(hash))
	headerR.Drop()
	if directoryPageID == util.InvalidPageID {
		return 0, false
	}

	directoryR := t.bpm.FetchPageRead(directoryPageID)
	if directoryR == nil {
		return 0, false
	}
	directory := page.AsHashDirectory(directoryR.Data())
	bucketPageID := directory.BucketPageID(directory.HashToBucketIndex(hash))
	directoryR.Drop()
	if bucketPageID == util.InvalidPageID {
		return 0, false
	}

	bucketR := t.bpm.FetchPageRead(bucketPageID)
	if bucketR == nil {
		return 0, false
	}
	defer bucketR.Drop()
	return page.AsHashBucket(bucketR.Data()).Lookup(key, t.cmp)
}

// Insert adds the pair. It returns false when the key is already present, or
// when the directory is saturated and the target bucket is full; in either
// case the table is unchanged.
func (t *DiskExtendibleHashTable) Insert(key, value uint64) bool {
	hash := t.hash(key)

	headerW := t.bpm.FetchPageWrite(t.headerPageID)
	if headerW == nil {
		return false
	}
	header := page.AsHashHeader(headerW.DataMut())
	directoryIdx := header.HashToDirectoryIndex(hash)
	directoryPageID := header.DirectoryPageID(directoryIdx)
	if directoryPageID == util.InvalidPageID {
		return t.insertToNewDirectory(headerW, header, directoryIdx, hash, key, value)
	}
	headerW.Drop()

	directoryW := t.bpm.FetchPageWrite(directoryPageID)
	if directoryW == nil {
		return false
	}
	defer directoryW.Drop()
	directory := page.AsHashDirectory(directoryW.DataMut())
	bucketIdx := directory.HashToBucketIndex(hash)
	bucketPageID := directory.BucketPageID(bucketIdx)
	if bucketPageID == util.InvalidPageID {
		return t.insertToNewBucket(directory, key, value)
	}

	bucketW := t.bpm.FetchPageWrite(bucketPageID)
	if bucketW == nil {
		return false
	}
	bucket := page.AsHashBucket(bucketW.DataMut())

	for bucket.IsFull() {
		localDepth := directory.LocalDepth(bucketIdx)
		globalDepth := directory.GlobalDepth()
		if localDepth == globalDepth && globalDepth == directory.MaxDepth() {
			// Directory saturated and the bucket cannot split further.
			bucketW.Drop()
			return false
		}

		newGuard := t.bpm.NewPageGuarded()
		if newGuard == nil {
			bucketW.Drop()
			return false
		}
		newBucketPageID := newGuard.PageID()
		newBucketW := newGuard.UpgradeWrite()
		newBucket := page.AsHashBucket(newBucketW.DataMut())
		newBucket.Init(t.bucketMaxSize)

		if localDepth == globalDepth {
			directory.IncrGlobalDepth()
		}

		// Entries whose hash bit at localDepth matches the split image's
		// index move to the new bucket; both sides then advertise
		// localDepth+1 across every slot sharing their low bits.
		splitIdx := directory.SplitImageIndex(bucketIdx)
		migrateEntries(bucket, newBucket, splitIdx, 1<<localDepth, t.hash, t.cmp)
		newDepth := localDepth + 1
		updateDirectoryMapping(directory, bucketIdx, directory.BucketPageID(bucketIdx), newDepth)
		updateDirectoryMapping(directory, splitIdx, newBucketPageID, newDepth)

		// Re-resolve which side the key now belongs to and retry.
		bucketIdx = directory.HashToBucketIndex(hash)
		if directory.BucketPageID(bucketIdx) == newBucketPageID {
			bucketW.Drop()
			bucketW = newBucketW
			bucket = newBucket
		} else {
			newBucketW.Drop()
		}
	}

	inserted := bucket.Insert(key, value, t.cmp)
	bucketW.Drop()
	return inserted
}

// Remove deletes the key, merging empty buckets with their split images and
// shrinking the directory while it can. It returns false when the key is
// absent; the table is unchanged then.
func (t *DiskExtendibleHashTable) Remove(key uint64) bool {
	hash := t.hash(key)

	headerW := t.bpm.FetchPageWrite(t.headerPageID)
	if headerW == nil {
		return false
	}
	header := page.AsHashHeader(headerW.DataMut())
	directoryPageID := header.DirectoryPageID(header.HashToDirectoryIndex(hash))
	headerW.Drop()
	if directoryPageID == util.InvalidPageID {
		return false
	}

	directoryW := t.bpm.FetchPageWrite(directoryPageID)
	if directoryW == nil {
		return false
	}
	defer directoryW.Drop()
	directory := page.AsHashDirectory(directoryW.DataMut())
	bucketIdx := directory.HashToBucketIndex(hash)
	bucketPageID := directory.BucketPageID(bucketIdx)
	if bucketPageID == util.InvalidPageID {
		return false
	}

	bucketW := t.bpm.FetchPageWrite(bucketPageID)
	if bucketW == nil {
		return false
	}
	removed := page.AsHashBucket(bucketW.DataMut()).Remove(key, t.cmp)
	bucketW.Drop()
	if !removed {
		return false
	}

	t.mergeBuckets(directory, bucketIdx, bucketPageID)
	for directory.CanShrink() {
		directory.DecrGlobalDepth()
	}
	return true
}

// GlobalDepth reports the depth of the directory routing hash (directory 0).
// Zero when no directory exists yet.
func (t *DiskExtendibleHashTable) GlobalDepth() uint32 {
	headerR := t.bpm.FetchPageRead(t.headerPageID)
	if headerR == nil {
		return 0
	}
	directoryPageID := page.AsHashHeader(headerR.Data()).DirectoryPageID(0)
	headerR.Drop()
	if directoryPageID == util.InvalidPageID {
		return 0
	}
	directoryR := t.bpm.FetchPageRead(directoryPageID)
	if directoryR == nil {
		return 0
	}
	defer directoryR.Drop()
	return page.AsHashDirectory(directoryR.Data()).GlobalDepth()
}

// VerifyIntegrity walks every directory and checks the depth and
// slot-sharing invariants.
func (t *DiskExtendibleHashTable) VerifyIntegrity() error {
	headerR := t.bpm.FetchPageRead(t.headerPageID)
	if headerR == nil {
		return util.ErrNoFreeFrame
	}
	header := page.AsHashHeader(headerR.Data())
	directoryIDs := make([]util.PageID, 0, header.MaxSize())
	for i := uint32(0); i < header.MaxSize(); i++ {
		if id := header.DirectoryPageID(i); id != util.InvalidPageID {
			directoryIDs = append(directoryIDs, id)
		}
	}
	headerR.Drop()

	for _, id := range directoryIDs {
		directoryR := t.bpm.FetchPageRead(id)
		if directoryR == nil {
			return util.ErrNoFreeFrame
		}
		err := page.AsHashDirectory(directoryR.Data()).VerifyIntegrity()
		directoryR.Drop()
		if err != nil {
			return errors.Wrapf(err, "directory page %d", id)
		}
	}
	return nil
}

// insertToNewDirectory installs a fresh directory (and its first bucket,
// covering every slot) under the still-latched header.
func (t *DiskExtendibleHashTable) insertToNewDirectory(headerW *buffer.WritePageGuard, header *page.HashHeaderPage,
	directoryIdx, hash uint32, key, value uint64,
) bool {
	newGuard := t.bpm.NewPageGuarded()
	if newGuard == nil {
		headerW.Drop()
		return false
	}
	// Latch the fresh directory before its id becomes visible in the header.
	directoryW := newGuard.UpgradeWrite()
	defer directoryW.Drop()
	header.SetDirectoryPageID(directoryIdx, directoryW.PageID())
	headerW.Drop()
	directory := page.AsHashDirectory(directoryW.DataMut())
	directory.Init(t.directoryMaxDepth)
	return t.insertToNewBucket(directory, key, value)
}

// insertToNewBucket allocates a bucket with local depth zero, pointing every
// live directory slot at it.
func (t *DiskExtendibleHashTable) insertToNewBucket(directory *page.HashDirectoryPage, key, value uint64) bool {
	newGuard := t.bpm.NewPageGuarded()
	if newGuard == nil {
		return false
	}
	bucketPageID := newGuard.PageID()
	bucketW := newGuard.UpgradeWrite()
	defer bucketW.Drop()
	bucket := page.AsHashBucket(bucketW.DataMut())
	bucket.Init(t.bucketMaxSize)

	for i := uint32(0); i < directory.Size(); i++ {
		directory.SetLocalDepth(i, 0)
		directory.SetBucketPageID(i, bucketPageID)
	}
	return bucket.Insert(key, value, t.cmp)
}

// mergeBuckets repeatedly folds an empty bucket into its split image while
// the two sides share a local depth, repointing every affected slot.
func (t *DiskExtendibleHashTable) mergeBuckets(directory *page.HashDirectoryPage, bucketIdx uint32,
	bucketPageID util.PageID,
) {
	bucketR := t.bpm.FetchPageRead(bucketPageID)
	if bucketR == nil {
		return
	}
	bucket := page.AsHashBucket(bucketR.Data())

	for directory.LocalDepth(bucketIdx) > 0 {
		localDepth := directory.LocalDepth(bucketIdx)
		imageIdx := bucketIdx ^ (1 << (localDepth - 1))
		imagePageID := directory.BucketPageID(imageIdx)
		if directory.LocalDepth(imageIdx) != localDepth {
			break
		}

		imageR := t.bpm.FetchPageRead(imagePageID)
		if imageR == nil {
			break
		}
		image := page.AsHashBucket(imageR.Data())

		if image.IsEmpty() {
			// The surviving side keeps its page; the empty image goes away.
			imageR.Drop()
			directory.DecrLocalDepth(bucketIdx)
			directory.DecrLocalDepth(imageIdx)
			updateDirectoryMapping(directory, bucketIdx, bucketPageID, directory.LocalDepth(bucketIdx))
			t.bpm.DeletePage(imagePageID)
			continue
		}
		if bucket.IsEmpty() {
			bucketR.Drop()
			directory.DecrLocalDepth(bucketIdx)
			directory.DecrLocalDepth(imageIdx)
			updateDirectoryMapping(directory, imageIdx, imagePageID, directory.LocalDepth(imageIdx))
			t.bpm.DeletePage(bucketPageID)
			bucketIdx = imageIdx & ((1 << directory.LocalDepth(imageIdx)) - 1)
			bucketPageID = imagePageID
			bucketR = imageR
			bucket = image
			continue
		}
		imageR.Drop()
		break
	}
	bucketR.Drop()
}

// migrateEntries moves every pair whose hash matches the split image's side
// of the depth bit from src to dst.
func migrateEntries(src, dst *page.HashBucketPage, dstBucketIdx, depthBitMask uint32,
	hash util.HashFunc, cmp util.Comparator,
) {
	for i := int(src.Size()) - 1; i >= 0; i-- {
		key := src.KeyAt(uint32(i))
		if hash(key)&depthBitMask == dstBucketIdx&depthBitMask {
			dst.Insert(key, src.ValueAt(uint32(i)), cmp)
			src.RemoveAt(uint32(i))
		}
	}
}

// updateDirectoryMapping points every slot congruent to idx modulo
// 1 << depth at the given bucket, recording the depth alongside.
func updateDirectoryMapping(directory *page.HashDirectoryPage, idx uint32, bucketPageID util.PageID, depth uint32) {
	mask := uint32(1<<depth) - 1
	stride := uint32(1) << depth
	for slot := idx & mask; slot < directory.Size(); slot += stride {
		directory.SetBucketPageID(slot, bucketPageID)
		directory.SetLocalDepth(slot, depth)
	}
}
