package buffer

import (
	"container/list"
	"math"
	"sync"

	util "github.com/bietkhonhungvandi212/hashdb/internal/utils"
)

// Backward k-distance encoding: a frame with at least k recorded accesses
// gets infDistance minus the timestamp of its k-th most recent access, so a
// larger value means an older k-th access. Frames with fewer accesses sit in
// the +inf band above that, ordered by first access.
const infDistance = math.MaxUint64 >> 1

type lrukNode struct {
	history   []uint64 // k+1-slot ring holding the last up-to-k access timestamps
	start     int
	end       int
	kDistance uint64
	evictable bool
	valid     bool
	inHeap    bool
	heapPos   int
	listElem  *list.Element
}

func (n *lrukNode) init(k int) {
	if n.history == nil {
		n.history = make([]uint64, k+1)
	}
	n.start = 0
	n.end = 0
	n.kDistance = math.MaxUint64
	n.evictable = false
	n.valid = true
	n.inHeap = false
	n.heapPos = 0
	n.listElem = nil
}

func (n *lrukNode) count() int {
	return (n.end - n.start + len(n.history)) % len(n.history)
}

func (n *lrukNode) access(ts uint64, k int) {
	if n.count() == k {
		n.start = (n.start + 1) % len(n.history)
	}
	n.history[n.end] = ts
	n.end = (n.end + 1) % len(n.history)
	if n.count() < k {
		n.kDistance = math.MaxUint64 - n.history[n.start]
	} else {
		n.kDistance = infDistance - n.history[n.start]
	}
}

// LRUKReplacer implements the LRU-K replacement policy: evict the evictable
// frame whose backward k-distance is largest. Frames with fewer than k
// accesses share a +inf distance and fall back to classical LRU on their
// first-access time.
//
// Valid frames are partitioned across two structures: a FIFO list holds
// frames still short of k accesses in first-access order, and a max-heap
// keyed by k-distance holds the rest. A frame moves from list to heap the
// first time its access count reaches k.
type LRUKReplacer struct {
	mu        sync.Mutex
	nodes     []lrukNode
	fifo      *list.List     // frames with < k accesses, first-access order
	heap      []util.FrameID // 1-based max-heap by kDistance; heap[0] unused
	heapSize  int
	timestamp uint64
	curSize   int
	k         int
}

func NewLRUKReplacer(numFrames, k int) *LRUKReplacer {
	if numFrames <= 0 {
		panic(util.ErrInvalidPoolSize)
	}
	if k <= 0 {
		panic(util.ErrInvalidReplacerK)
	}
	return &LRUKReplacer{
		nodes: make([]lrukNode, numFrames),
		fifo:  list.New(),
		heap:  make([]util.FrameID, numFrames+1),
		k:     k,
	}
}

func (r *LRUKReplacer) RecordAccess(frameID util.FrameID, _ AccessType) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.checkFrame(frameID)

	n := &r.nodes[frameID]
	if !n.valid {
		n.init(r.k)
	}
	r.timestamp++
	n.access(r.timestamp, r.k)
	r.reposition(frameID)
}

func (r *LRUKReplacer) SetEvictable(frameID util.FrameID, evictable bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.checkFrame(frameID)

	n := &r.nodes[frameID]
	if !n.valid || n.evictable == evictable {
		return
	}
	n.evictable = evictable
	if evictable {
		r.curSize++
	} else {
		r.curSize--
	}
}

// Evict selects the victim with the largest backward k-distance: the first
// evictable frame of the FIFO list if any frame is still short of k
// accesses, otherwise the best evictable frame in the heap.
func (r *LRUKReplacer) Evict() (util.FrameID, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.curSize == 0 {
		return -1, false
	}

	for e := r.fifo.Front(); e != nil; e = e.Next() {
		frameID := e.Value.(util.FrameID)
		if r.nodes[frameID].evictable {
			r.fifo.Remove(e)
			r.nodes[frameID].listElem = nil
			r.forget(frameID)
			return frameID, true
		}
	}

	if frameID, ok := r.heapEvict(); ok {
		r.heapRemove(r.nodes[frameID].heapPos)
		r.forget(frameID)
		return frameID, true
	}
	return -1, false
}

func (r *LRUKReplacer) Remove(frameID util.FrameID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.checkFrame(frameID)

	n := &r.nodes[frameID]
	if !n.valid {
		return
	}
	if !n.evictable {
		panic(util.ErrFrameNotEvictable)
	}
	if n.inHeap {
		r.heapRemove(n.heapPos)
	} else if n.listElem != nil {
		r.fifo.Remove(n.listElem)
		n.listElem = nil
	}
	r.forget(frameID)
}

func (r *LRUKReplacer) Size() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.curSize
}

func (r *LRUKReplacer) checkFrame(frameID util.FrameID) {
	if frameID < 0 || int(frameID) >= len(r.nodes) {
		panic(util.ErrInvalidFrameId)
	}
}

// forget drops an evictable frame from the policy's accounting.
func (r *LRUKReplacer) forget(frameID util.FrameID) {
	n := &r.nodes[frameID]
	n.valid = false
	n.evictable = false
	r.curSize--
}

// reposition moves the frame to the structure its access count calls for and
// restores ordering after a new access.
func (r *LRUKReplacer) reposition(frameID util.FrameID) {
	n := &r.nodes[frameID]
	if n.inHeap {
		// A new access moved the k-th most recent timestamp forward, so the
		// distance shrank.
		r.siftDown(n.heapPos)
		r.siftUp(n.heapPos)
		return
	}
	if n.count() < r.k {
		if n.listElem == nil {
			n.listElem = r.fifo.PushBack(frameID)
		}
		return
	}
	if n.listElem != nil {
		r.fifo.Remove(n.listElem)
		n.listElem = nil
	}
	r.heapPush(frameID)
}

// heapEvict finds the evictable heap frame with the largest k-distance. The
// root may be non-evictable, so this is a BFS that descends past
// non-evictable nodes, pruning children that cannot beat the best candidate
// found so far. An evictable node ends its branch: everything beneath it has
// a smaller distance.
func (r *LRUKReplacer) heapEvict() (util.FrameID, bool) {
	best := util.FrameID(-1)
	bestDist := uint64(0)

	queue := make([]int, 0, (r.heapSize+1)/2)
	if r.heapSize > 0 {
		queue = append(queue, 1)
	}
	for len(queue) > 0 {
		next := make([]int, 0, len(queue)*2)
		for _, pos := range queue {
			frameID := r.heap[pos]
			if r.nodes[frameID].evictable {
				if best == -1 || r.nodes[frameID].kDistance > bestDist {
					best = frameID
					bestDist = r.nodes[frameID].kDistance
				}
				continue
			}
			for child := pos * 2; child <= min(pos*2+1, r.heapSize); child++ {
				if best == -1 || r.nodes[r.heap[child]].kDistance > bestDist {
					next = append(next, child)
				}
			}
		}
		queue = next
	}
	if best == -1 {
		return -1, false
	}
	return best, true
}

func (r *LRUKReplacer) heapPush(frameID util.FrameID) {
	r.heapSize++
	r.heap[r.heapSize] = frameID
	n := &r.nodes[frameID]
	n.inHeap = true
	n.heapPos = r.heapSize
	r.siftUp(r.heapSize)
}

func (r *LRUKReplacer) heapRemove(pos int) {
	removed := r.heap[pos]
	r.nodes[removed].inHeap = false

	last := r.heap[r.heapSize]
	r.heapSize--
	if removed == last {
		return
	}
	r.heap[pos] = last
	r.nodes[last].heapPos = pos
	r.siftDown(pos)
	r.siftUp(pos)
}

func (r *LRUKReplacer) heapSwap(i, j int) {
	r.heap[i], r.heap[j] = r.heap[j], r.heap[i]
	r.nodes[r.heap[i]].heapPos = i
	r.nodes[r.heap[j]].heapPos = j
}

func (r *LRUKReplacer) siftUp(pos int) {
	for pos > 1 {
		parent := pos / 2
		if r.nodes[r.heap[pos]].kDistance <= r.nodes[r.heap[parent]].kDistance {
			break
		}
		r.heapSwap(pos, parent)
		pos = parent
	}
}

func (r *LRUKReplacer) siftDown(pos int) {
	for {
		child := pos * 2
		if child > r.heapSize {
			break
		}
		if child < r.heapSize && r.nodes[r.heap[child+1]].kDistance > r.nodes[r.heap[child]].kDistance {
			child++
		}
		if r.nodes[r.heap[pos]].kDistance >= r.nodes[r.heap[child]].kDistance {
			break
		}
		r.heapSwap(pos, child)
		pos = child
	}
}
