package util

import "errors"

var (
	ErrInvalidPageId     = errors.New("invalid page id")
	ErrInvalidPoolSize   = errors.New("invalid pool size")
	ErrInvalidFrameId    = errors.New("frame idx out of bound")
	ErrNoFreeFrame       = errors.New("no free frames")
	ErrPageNotPinned     = errors.New("page is not pinned")
	ErrPageOutOfBounds   = errors.New("page out of bounds")
	ErrFrameNotEvictable = errors.New("frame is not evictable")
	ErrInvalidReplacerK  = errors.New("replacer k must be positive")
	ErrBucketMaxSize     = errors.New("bucket max size exceeds page capacity")
	ErrDepthExceeded     = errors.New("max depth exceeds page capacity")
)
