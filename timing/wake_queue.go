package timing

import (
	"container/heap"
	"sync"
)

// WakeQueue is a min-priority queue of future times at which the clock must
// be allowed to advance. Duplicated times are kept; each pop advances to the
// earliest pending one.
type WakeQueue struct {
	sync.Mutex
	times wakeHeap
}

// NewWakeQueue creates an empty WakeQueue.
func NewWakeQueue() *WakeQueue {
	q := &WakeQueue{}
	q.times = make([]VTimeInSec, 0)
	heap.Init(&q.times)

	return q
}

// Push adds a wake time.
func (q *WakeQueue) Push(t VTimeInSec) {
	q.Lock()
	heap.Push(&q.times, t)
	q.Unlock()
}

// Pop removes and returns the earliest wake time. The second return value is
// false if the queue is empty.
func (q *WakeQueue) Pop() (VTimeInSec, bool) {
	q.Lock()
	defer q.Unlock()

	if q.times.Len() == 0 {
		return 0, false
	}

	return heap.Pop(&q.times).(VTimeInSec), true
}

// Peek returns the earliest wake time without removing it.
func (q *WakeQueue) Peek() (VTimeInSec, bool) {
	q.Lock()
	defer q.Unlock()

	if q.times.Len() == 0 {
		return 0, false
	}

	return q.times[0], true
}

// Len returns the number of pending wake times.
func (q *WakeQueue) Len() int {
	q.Lock()
	defer q.Unlock()

	return q.times.Len()
}

type wakeHeap []VTimeInSec

func (h wakeHeap) Len() int { return len(h) }

func (h wakeHeap) Less(i, j int) bool {
	return h[i] < h[j]
}

func (h wakeHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
}

func (h *wakeHeap) Push(x any) {
	*h = append(*h, x.(VTimeInSec))
}

func (h *wakeHeap) Pop() any {
	old := *h
	n := len(old)
	t := old[n-1]
	*h = old[:n-1]

	return t
}
