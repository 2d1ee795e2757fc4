package executor

import (
	"container/heap"
	"sync"
	"sync/atomic"
	"time"
)

// entry is one pending operation. The deadline orders it, the sequence
// breaks ties in submission order, and the cancelled flag outlives the heap
// slot so handles stay valid after the entry is gone.
type entry struct {
	op       TaggedOperation
	deadline time.Time
	seq      uint64

	index     int // heap index; -1 once popped or removed
	cancelled atomic.Bool
}

// entryHeap implements heap.Interface ordered by (deadline, seq).
type entryHeap []*entry

func (h entryHeap) Len() int { return len(h) }

func (h entryHeap) Less(i, j int) bool {
	if !h[i].deadline.Equal(h[j].deadline) {
		return h[i].deadline.Before(h[j].deadline)
	}
	return h[i].seq < h[j].seq
}

func (h entryHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *entryHeap) Push(x any) {
	n := len(*h)
	en := x.(*entry)
	en.index = n
	*h = append(*h, en)
}

func (h *entryHeap) Pop() any {
	old := *h
	n := len(old)
	en := old[n-1]
	old[n-1] = nil // avoid memory leak
	en.index = -1
	*h = old[0 : n-1]
	return en
}

// schedule is the single time-ordered queue shared by the dispatch loop and
// PopFromSchedule. All structural mutation happens under mu; the lock is
// never held across an operation's execution.
type schedule struct {
	mu      sync.Mutex
	entries entryHeap
	nextSeq uint64

	// wake is signalled whenever an insertion becomes the new earliest
	// entry, so a dispatch loop sleeping until a later deadline re-arms.
	wake chan struct{}
}

func newSchedule() *schedule {
	return &schedule{wake: make(chan struct{}, 1)}
}

func (s *schedule) insert(op TaggedOperation, deadline time.Time) *entry {
	s.mu.Lock()
	en := &entry{op: op, deadline: deadline, seq: s.nextSeq}
	s.nextSeq++
	heap.Push(&s.entries, en)
	isHead := en.index == 0
	s.mu.Unlock()

	if isHead {
		select {
		case s.wake <- struct{}{}:
		default:
		}
	}
	return en
}

// next pops and returns the earliest entry if its deadline has arrived.
// Otherwise en is nil and wait is the time until the earliest deadline;
// wait == 0 with a nil entry means the schedule is empty.
func (s *schedule) next(now time.Time) (en *entry, wait time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.entries) == 0 {
		return nil, 0
	}
	head := s.entries[0]
	if head.deadline.After(now) {
		return nil, head.deadline.Sub(now)
	}
	heap.Pop(&s.entries)
	return head, 0
}

// pop removes and returns the earliest entry regardless of deadline.
func (s *schedule) pop() (*entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.entries) == 0 {
		return nil, false
	}
	return heap.Pop(&s.entries).(*entry), true
}

func (s *schedule) isScheduled(tag Tag) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, en := range s.entries {
		if en.op.Tag == tag {
			return true
		}
	}
	return false
}

// remove cancels en: the flag is set unconditionally and the entry is
// unlinked from the heap if it is still queued. Safe to call any number of
// times, before or after the entry has run.
func (s *schedule) remove(en *entry) {
	s.mu.Lock()
	defer s.mu.Unlock()

	en.cancelled.Store(true)
	if en.index >= 0 {
		heap.Remove(&s.entries, en.index)
	}
}

func (s *schedule) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}
