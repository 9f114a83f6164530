package audio

import "sync"

// RingBuffer is a fixed-size circular byte buffer that always keeps the
// most recent data: writes that exceed the remaining space overwrite the
// oldest bytes. It is safe for one writer and any number of snapshot
// readers, which makes it suitable as a passive tap on a live stream.
type RingBuffer struct {
	mu       sync.RWMutex
	buffer   []byte
	size     int
	writePos int
	filled   int
}

// NewRingBuffer creates a ring buffer holding at most size bytes
func NewRingBuffer(size int) *RingBuffer {
	return &RingBuffer{
		buffer: make([]byte, size),
		size:   size,
	}
}

// Write appends data, overwriting the oldest bytes when full.
// It always accepts the entire slice.
func (rb *RingBuffer) Write(data []byte) {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	if len(data) >= rb.size {
		// Only the newest window's worth survives
		copy(rb.buffer, data[len(data)-rb.size:])
		rb.writePos = 0
		rb.filled = rb.size
		return
	}

	n := copy(rb.buffer[rb.writePos:], data)
	if n < len(data) {
		copy(rb.buffer, data[n:])
	}
	rb.writePos = (rb.writePos + len(data)) % rb.size
	rb.filled += len(data)
	if rb.filled > rb.size {
		rb.filled = rb.size
	}
}

// Snapshot returns a copy of the buffered bytes in write order,
// oldest first. Returns nil when nothing has been written.
func (rb *RingBuffer) Snapshot() []byte {
	rb.mu.RLock()
	defer rb.mu.RUnlock()

	if rb.filled == 0 {
		return nil
	}

	out := make([]byte, rb.filled)
	start := (rb.writePos - rb.filled + rb.size) % rb.size
	n := copy(out, rb.buffer[start:])
	if n < rb.filled {
		copy(out[n:], rb.buffer)
	}
	return out
}

// Len returns the number of buffered bytes
func (rb *RingBuffer) Len() int {
	rb.mu.RLock()
	defer rb.mu.RUnlock()
	return rb.filled
}

// Size returns the buffer capacity in bytes
func (rb *RingBuffer) Size() int {
	return rb.size
}

// Reset discards all buffered data
func (rb *RingBuffer) Reset() {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	rb.writePos = 0
	rb.filled = 0
}
