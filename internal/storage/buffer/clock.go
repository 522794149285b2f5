package buffer

import (
	"sync"

	util "github.com/bietkhonhungvandi212/hashdb/internal/utils"
)

// ClockReplacer is the second-chance alternative policy: a hand sweeps the
// frames, clearing reference bits and evicting the first evictable frame
// found unreferenced. Cheaper bookkeeping than LRU-K, coarser ordering.
type ClockReplacer struct {
	mu        sync.Mutex
	ref       []bool
	evictable []bool
	valid     []bool
	hand      int
	curSize   int
}

func NewClockReplacer(numFrames int) *ClockReplacer {
	if numFrames <= 0 {
		panic(util.ErrInvalidPoolSize)
	}
	return &ClockReplacer{
		ref:       make([]bool, numFrames),
		evictable: make([]bool, numFrames),
		valid:     make([]bool, numFrames),
	}
}

func (c *ClockReplacer) RecordAccess(frameID util.FrameID, _ AccessType) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.checkFrame(frameID)
	if !c.valid[frameID] {
		c.valid[frameID] = true
		c.evictable[frameID] = false
	}
	c.ref[frameID] = true
}

func (c *ClockReplacer) SetEvictable(frameID util.FrameID, evictable bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.checkFrame(frameID)
	if !c.valid[frameID] || c.evictable[frameID] == evictable {
		return
	}
	c.evictable[frameID] = evictable
	if evictable {
		c.curSize++
	} else {
		c.curSize--
	}
}

func (c *ClockReplacer) Evict() (util.FrameID, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.curSize == 0 {
		return -1, false
	}
	// Two full sweeps suffice: the first clears reference bits, the second
	// must land on an unreferenced evictable frame.
	for i := 0; i < 2*len(c.ref); i++ {
		frameID := util.FrameID(c.hand)
		c.hand = (c.hand + 1) % len(c.ref)
		if !c.valid[frameID] || !c.evictable[frameID] {
			continue
		}
		if c.ref[frameID] {
			c.ref[frameID] = false
			continue
		}
		c.forget(frameID)
		return frameID, true
	}
	return -1, false
}

func (c *ClockReplacer) Remove(frameID util.FrameID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.checkFrame(frameID)
	if !c.valid[frameID] {
		return
	}
	if !c.evictable[frameID] {
		panic(util.ErrFrameNotEvictable)
	}
	c.forget(frameID)
}

func (c *ClockReplacer) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.curSize
}

func (c *ClockReplacer) checkFrame(frameID util.FrameID) {
	if frameID < 0 || int(frameID) >= len(c.ref) {
		panic(util.ErrInvalidFrameId)
	}
}

func (c *ClockReplacer) forget(frameID util.FrameID) {
	c.valid[frameID] = false
	c.evictable[frameID] = false
	c.ref[frameID] = false
	c.curSize--
}
