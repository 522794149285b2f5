package buffer

import util "github.com/bietkhonhungvandi212/hashdb/internal/utils"

// AccessType describes what kind of operation touched a frame. Policies may
// weight access kinds differently; the ones here do not.
type AccessType int

const (
	AccessUnknown AccessType = iota
	AccessLookup
	AccessScan
	AccessIndex
)

// Replacer defines the contract for frame replacement policies.
//
// A frame becomes known to the policy on its first RecordAccess and stays
// known until it is evicted or removed. Only frames marked evictable are
// eviction candidates; Size counts exactly those.
type Replacer interface {
	// RecordAccess notes an access to the frame at the current timestamp,
	// registering the frame if it is not yet known.
	RecordAccess(frameID util.FrameID, accessType AccessType)
	// SetEvictable toggles eviction eligibility. No-op if the state already
	// matches or the frame is unknown.
	SetEvictable(frameID util.FrameID, evictable bool)
	// Evict selects a victim per the policy, forgets its history, and
	// returns it. ok is false when no frame is evictable.
	Evict() (frameID util.FrameID, ok bool)
	// Remove forcibly forgets a known, evictable frame. Removing a
	// non-evictable frame is a contract violation.
	Remove(frameID util.FrameID)
	// Size is the number of evictable frames.
	Size() int
}
