package window

import "sync"

// RingBuffer is a fixed-capacity circular buffer. Once full, each push evicts the oldest item.
type RingBuffer[T any] struct {
	mu   sync.RWMutex
	data []T
	size int
	head int // next write position
}

// NewRingBuffer creates a ring buffer holding at most capacity items
func NewRingBuffer[T any](capacity int) *RingBuffer[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &RingBuffer[T]{data: make([]T, capacity)}
}

// Push appends an item, overwriting the oldest one when full
func (rb *RingBuffer[T]) Push(v T) {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	rb.data[rb.head] = v
	rb.head = (rb.head + 1) % len(rb.data)
	if rb.size < len(rb.data) {
		rb.size++
	}
}

// Size returns the number of buffered items
func (rb *RingBuffer[T]) Size() int {
	rb.mu.RLock()
	defer rb.mu.RUnlock()
	return rb.size
}

// Capacity returns the maximum number of items
func (rb *RingBuffer[T]) Capacity() int {
	return len(rb.data)
}

// IsFull reports whether the buffer is at capacity
func (rb *RingBuffer[T]) IsFull() bool {
	rb.mu.RLock()
	defer rb.mu.RUnlock()
	return rb.size == len(rb.data)
}

// Items returns a copy of the buffered items, oldest first
func (rb *RingBuffer[T]) Items() []T {
	rb.mu.RLock()
	defer rb.mu.RUnlock()

	out := make([]T, rb.size)
	start := rb.start()
	for i := 0; i < rb.size; i++ {
		out[i] = rb.data[(start+i)%len(rb.data)]
	}
	return out
}

// Last returns the newest item
func (rb *RingBuffer[T]) Last() (T, bool) {
	rb.mu.RLock()
	defer rb.mu.RUnlock()

	var zero T
	if rb.size == 0 {
		return zero, false
	}
	return rb.data[(rb.head-1+len(rb.data))%len(rb.data)], true
}

// First returns the oldest item
func (rb *RingBuffer[T]) First() (T, bool) {
	rb.mu.RLock()
	defer rb.mu.RUnlock()

	var zero T
	if rb.size == 0 {
		return zero, false
	}
	return rb.data[rb.start()], true
}

// Clear empties the buffer
func (rb *RingBuffer[T]) Clear() {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	var zero T
	for i := range rb.data {
		rb.data[i] = zero
	}
	rb.size = 0
	rb.head = 0
}

// start must be called with the lock held
func (rb *RingBuffer[T]) start() int {
	if rb.size == len(rb.data) {
		return rb.head
	}
	return 0
}
