package dispatch

import "container/heap"

// pendingQueue holds triggered, not-yet-admitted instances.
//
// Ordering is a strict total order: priority descending, then arrival seq
// ascending (FIFO among equal priorities). Peek always returns the maximum
// under this order.
//
// Thread-safety is the dispatcher's job - the queue is only touched inside
// its critical section.
type pendingQueue struct {
	items instanceHeap
}

func newPendingQueue() *pendingQueue {
	return &pendingQueue{items: make(instanceHeap, 0, 16)}
}

// Push adds an instance to the queue.
func (q *pendingQueue) Push(inst *Instance) {
	heap.Push(&q.items, inst)
}

// Pop removes and returns the highest-priority instance, or nil if empty.
func (q *pendingQueue) Pop() *Instance {
	if len(q.items) == 0 {
		return nil
	}
	return heap.Pop(&q.items).(*Instance)
}

// Peek returns the highest-priority instance without removing it, or nil if
// empty.
func (q *pendingQueue) Peek() *Instance {
	if len(q.items) == 0 {
		return nil
	}
	return q.items[0]
}

// Len returns the number of pending instances.
func (q *pendingQueue) Len() int {
	return len(q.items)
}

// instanceHeap implements heap.Interface as a max-heap on priority with
// seq as the FIFO tie-break.
type instanceHeap []*Instance

func (h instanceHeap) Len() int { return len(h) }

func (h instanceHeap) Less(i, j int) bool {
	if h[i].Priority != h[j].Priority {
		return h[i].Priority > h[j].Priority
	}
	return h[i].Seq < h[j].Seq
}

func (h instanceHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *instanceHeap) Push(x any) {
	*h = append(*h, x.(*Instance))
}

func (h *instanceHeap) Pop() any {
	old := *h
	n := len(old)
	inst := old[n-1]
	old[n-1] = nil // allow GC of the Instance's payload
	*h = old[:n-1]
	return inst
}
