package disk

import (
	"sync"

	"github.com/sirupsen/logrus"

	util "github.com/bietkhonhungvandi212/hashdb/internal/utils"
)

// DiskRequest is one page-granular I/O. Done receives exactly one result:
// true after the buffer has been fully read or written, false on I/O failure.
// The channel must have capacity for one send.
type DiskRequest struct {
	IsWrite bool
	PageID  util.PageID
	Data    []byte
	Done    chan bool
}

// Scheduler accepts page I/O requests and services them on background
// workers. Schedule never blocks on the I/O itself.
type Scheduler interface {
	Schedule(r *DiskRequest)
	ShutDown()
}

const requestQueueCapacity = 64

// DiskScheduler feeds a bounded request queue to one or more workers.
//
// With a single worker requests are serviced in strict submission order.
// With a worker pool, requests for different pages may complete out of
// order; the buffer pool never issues concurrent requests for the same
// frame, which keeps per-page ordering intact above this layer.
type DiskScheduler struct {
	dm       DiskManager
	requests chan *DiskRequest
	wg       sync.WaitGroup
}

// NewDiskScheduler starts the single-worker variant: strict FIFO, all disk
// I/O serialized.
func NewDiskScheduler(dm DiskManager) *DiskScheduler {
	return NewPooledDiskScheduler(dm, 1)
}

// NewPooledDiskScheduler starts numWorkers goroutines draining a shared
// queue.
func NewPooledDiskScheduler(dm DiskManager, numWorkers int) *DiskScheduler {
	if numWorkers <= 0 {
		panic("disk scheduler needs at least one worker")
	}
	s := &DiskScheduler{
		dm:       dm,
		requests: make(chan *DiskRequest, requestQueueCapacity),
	}
	s.wg.Add(numWorkers)
	for i := 0; i < numWorkers; i++ {
		go s.worker()
	}
	return s
}

// Schedule enqueues the request. It blocks only while the queue is at
// capacity, never for the I/O.
func (s *DiskScheduler) Schedule(r *DiskRequest) {
	s.requests <- r
}

// ShutDown closes the queue and joins the workers. Queued requests are
// drained before the workers exit; scheduling after ShutDown panics.
func (s *DiskScheduler) ShutDown() {
	close(s.requests)
	s.wg.Wait()
}

func (s *DiskScheduler) worker() {
	defer s.wg.Done()
	for r := range s.requests {
		var err error
		if r.IsWrite {
			err = s.dm.WritePage(r.PageID, r.Data)
		} else {
			err = s.dm.ReadPage(r.PageID, r.Data)
		}
		if err != nil {
			logrus.Errorf("disk scheduler: page %d %s failed: %v", r.PageID, opName(r.IsWrite), err)
			r.Done <- false
			continue
		}
		r.Done <- true
	}
}

func opName(isWrite bool) string {
	if isWrite {
		return "write"
	}
	return "read"
}
