package testutil

import (
	"errors"
	"sync"
)

// SequenceReader is a deterministic stand-in for a host entropy source.
// It yields start, start+1, start+2, ... (mod 256).
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type SequenceReader struct {
	mu   sync.Mutex
	next byte
	read int
}

// NewSequenceReader creates a reader whose first byte is start.
func NewSequenceReader(start byte) *SequenceReader {
	return &SequenceReader{next: start}
}

// Read fills p with the next bytes of the sequence. It never fails.
func (r *SequenceReader) Read(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range p {
		p[i] = r.next
		r.next++
	}
	r.read += len(p)
	return len(p), nil
}

// BytesRead returns the total number of bytes handed out.
func (r *SequenceReader) BytesRead() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.read
}

// ErrEntropyUnavailable is returned by FailingReader.
var ErrEntropyUnavailable = errors.New("entropy source unavailable")

// FailingReader simulates a host entropy source that always fails.
type FailingReader struct{}

// Read always returns ErrEntropyUnavailable.
func (FailingReader) Read([]byte) (int, error) {
	return 0, ErrEntropyUnavailable
}
