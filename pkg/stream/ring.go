package stream

// ring is a fixed-capacity FIFO used as the stream's element store. It is not
// safe for concurrent use; the stream serializes access under its own lock.
// Drained slots are zeroed so consumed elements do not pin memory.
type ring[T any] struct {
	items []T
	head  int
	count int
}

func newRing[T any](capacity int) ring[T] {
	return ring[T]{items: make([]T, capacity)}
}

func (r *ring[T]) len() int {
	return r.count
}

// push appends item at the tail. Returns false when the ring is full.
func (r *ring[T]) push(item T) bool {
	if r.count == len(r.items) {
		return false
	}
	r.items[(r.head+r.count)%len(r.items)] = item
	r.count++
	return true
}

// pushN appends as many leading elements of items as fit and returns the
// number appended.
func (r *ring[T]) pushN(items []T) int {
	n := 0
	for i := range items {
		if !r.push(items[i]) {
			break
		}
		n++
	}
	return n
}

// pop removes and returns the oldest element.
func (r *ring[T]) pop() (T, bool) {
	var zero T
	if r.count == 0 {
		return zero, false
	}
	item := r.items[r.head]
	r.items[r.head] = zero
	r.head = (r.head + 1) % len(r.items)
	r.count--
	return item, true
}

// drain removes and returns all elements in FIFO order. The returned slice is
// non-nil even when the ring is empty.
func (r *ring[T]) drain() []T {
	out := make([]T, 0, r.count)
	for r.count > 0 {
		item, _ := r.pop()
		out = append(out, item)
	}
	return out
}

// release drops the backing storage. Used on terminal transitions so a dead
// stream does not pin its elements.
func (r *ring[T]) release() {
	r.items = nil
	r.head = 0
	r.count = 0
}
