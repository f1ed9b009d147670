package dispatch

import "sync"

// tailBuffer keeps the last size bytes written to it.
type tailBuffer struct {
	mu        sync.Mutex
	data      []byte
	size      int
	head      int
	tail      int
	full      bool
	truncated bool
}

func newTailBuffer(size int) *tailBuffer {
	return &tailBuffer{data: make([]byte, size), size: size}
}

func (b *tailBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, c := range p {
		if b.full {
			b.head = (b.head + 1) % b.size
			b.truncated = true
		}
		b.data[b.tail] = c
		b.tail = (b.tail + 1) % b.size
		b.full = b.tail == b.head
	}
	return len(p), nil
}

// Bytes returns the buffered bytes in write order and whether older output
// was dropped.
func (b *tailBuffer) Bytes() ([]byte, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch {
	case b.full:
		out := make([]byte, 0, b.size)
		out = append(out, b.data[b.head:]...)
		out = append(out, b.data[:b.tail]...)
		return out, b.truncated
	case b.tail >= b.head:
		return append([]byte(nil), b.data[b.head:b.tail]...), b.truncated
	default:
		out := append([]byte(nil), b.data[b.head:]...)
		return append(out, b.data[:b.tail]...), b.truncated
	}
}
