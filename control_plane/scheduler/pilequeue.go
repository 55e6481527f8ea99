package scheduler

import (
	"time"

	"github.com/liuqk23/PileFlow/control_plane/store"
)

// pileQueue is a single pile's short bounded FIFO. The head, once promoted,
// is the request being served. Mutated only under the scheduler lock.
type pileQueue struct {
	pileID   int
	kind     store.PileKind
	powerKW  float64
	capacity int
	broken   bool

	// items preserves arrival order; at most one request is executing and
	// it is always items[0].
	items []*Request
}

func newPileQueue(pileID int, kind store.PileKind, powerKW float64, capacity int) *pileQueue {
	return &pileQueue{
		pileID:   pileID,
		kind:     kind,
		powerKW:  powerKW,
		capacity: capacity,
	}
}

func (q *pileQueue) usedSize() int {
	return len(q.items)
}

func (q *pileQueue) hasRoom() bool {
	return len(q.items) < q.capacity
}

// executing returns the head while it is being served, nil otherwise.
func (q *pileQueue) executing() *Request {
	if len(q.items) > 0 && q.items[0].executing {
		return q.items[0]
	}
	return nil
}

// push appends a request; if the pile is idle the new arrival is promoted
// immediately.
func (q *pileQueue) push(r *Request, now time.Time) {
	q.items = append(q.items, r)
	if q.executing() == nil {
		q.promoteHead(now)
	}
}

// promoteHead evicts the current executing head, if any, and starts serving
// the next request in line, stamping its begin time.
func (q *pileQueue) promoteHead(now time.Time) {
	if len(q.items) > 0 && q.items[0].executing {
		q.items[0].executing = false
		q.items = q.items[1:]
	}
	if len(q.items) > 0 {
		head := q.items[0]
		head.executing = true
		head.BeginTime = now
	}
}

// remove deletes a request by id, preserving order. Removing the executing
// head promotes its successor.
func (q *pileQueue) remove(id int, now time.Time) {
	if len(q.items) > 0 && q.items[0].ID == id && q.items[0].executing {
		q.promoteHead(now)
		return
	}
	for i, r := range q.items {
		if r.ID == id {
			q.items = append(q.items[:i], q.items[i+1:]...)
			return
		}
	}
}

func (q *pileQueue) contains(id int) bool {
	for _, r := range q.items {
		if r.ID == id {
			return true
		}
	}
	return false
}

// findPosition returns the 0-based queue index of a request, -1 if absent.
func (q *pileQueue) findPosition(id int) int {
	for i, r := range q.items {
		if r.ID == id {
			return i
		}
	}
	return -1
}

// estimateSeconds sums the full serving time of every queued request,
// including the executing head at its original amount. Dispatch picks the
// pile minimizing this.
func (q *pileQueue) estimateSeconds() float64 {
	total := 0.0
	for _, r := range q.items {
		amount, _ := r.Amount.Float64()
		total += amount / q.powerKW * 3600
	}
	return total
}

// fetchAndClear empties the queue and returns the displaced requests.
// With includeExecuting=false the executing head stays in place.
func (q *pileQueue) fetchAndClear(includeExecuting bool) []*Request {
	if includeExecuting {
		fetched := q.items
		q.items = nil
		return fetched
	}
	var keep []*Request
	if exec := q.executing(); exec != nil {
		keep = []*Request{exec}
	}
	fetched := q.items[len(keep):]
	q.items = keep
	return fetched
}
