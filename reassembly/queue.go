package reassembly

import (
	"github.com/seqledger/seqledger/types"
)

type (
	// Entry is one buffered (height, request) pair.
	Entry struct {
		Height  types.BlockCounter
		Request *types.OrderedRequest
	}

	/*
		Queue turns an out-of-order stream of (height, request) pairs into a
		gap-free ascending release order. Heights below the frontier have
		already been released; heights at or above it are either buffered or
		releasable. The frontier only ever moves forward.

		Queue is NOT safe for concurrent use. The owning store serializes
		access - the in-memory store guards queue and log as one unit so a
		reader never observes a partially drained run.
	*/
	Queue struct {
		frontier types.BlockCounter
		pending  map[types.BlockCounter]*types.OrderedRequest
	}
)

func NewQueue() *Queue {
	return NewQueueAt(0)
}

// NewQueueAt creates a queue whose next expected height is frontier. The
// durable store uses it to resume after a restart: with a contiguous log the
// row count is the next height.
func NewQueueAt(frontier types.BlockCounter) *Queue {
	return &Queue{
		frontier: frontier,
		pending:  make(map[types.BlockCounter]*types.OrderedRequest),
	}
}

// Contains reports whether the height was already released or is buffered.
func (q *Queue) Contains(height types.BlockCounter) bool {
	if height < q.frontier {
		return true
	}
	_, ok := q.pending[height]
	return ok
}

/*
Insert buffers the request under the given height. A height that was already
released or buffered is dropped and Insert returns false - the first arrival
wins, re-insertion with a different payload never alters the stored value.
*/
func (q *Queue) Insert(height types.BlockCounter, req *types.OrderedRequest) bool {
	if q.Contains(height) {
		return false
	}
	q.pending[height] = req
	return true
}

/*
Peek returns the maximal contiguous run of buffered entries starting at the
frontier, in ascending height order, without mutating queue state. The run is
empty when the entry at the frontier is still missing. The durable store
commits the run first and calls Release only after the commit succeeded.
*/
func (q *Queue) Peek() []Entry {
	var run []Entry
	for h := q.frontier; ; h = h.Next() {
		req, ok := q.pending[h]
		if !ok {
			return run
		}
		run = append(run, Entry{Height: h, Request: req})
	}
}

// Release advances the frontier over the first n buffered entries. n must
// not exceed the length of the run Peek returned.
func (q *Queue) Release(n int) {
	for ; n > 0; n-- {
		delete(q.pending, q.frontier)
		q.frontier = q.frontier.Next()
	}
}

// Drain removes and returns the maximal contiguous run starting at the
// frontier, advancing the frontier past it.
func (q *Queue) Drain() []Entry {
	run := q.Peek()
	q.Release(len(run))
	return run
}

// Frontier is the next height expected to be released.
func (q *Queue) Frontier() types.BlockCounter {
	return q.frontier
}

// PendingCount is the number of buffered, not yet released entries.
func (q *Queue) PendingCount() int {
	return len(q.pending)
}
