// Package capture holds the ordered set of face stills a user collects before
// registering a person.
package capture

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrIndexOutOfRange is returned for Remove/Get with an index outside the buffer.
	ErrIndexOutOfRange = errors.New("capture index out of range")
	// ErrBufferFull is returned by Append once the configured limit is reached.
	ErrBufferFull = errors.New("capture buffer is full")
	// ErrEmptyImage is returned when appending a zero-length encoding.
	ErrEmptyImage = errors.New("captured image is empty")
)

// Entry is one encoded still in the buffer.
type Entry struct {
	ID         string    `json:"id"`
	CapturedAt time.Time `json:"captured_at"`
	Size       int       `json:"size"`
	Data       []byte    `json:"-"`
}

// Buffer is an ordered, mutable list of JPEG stills. Insertion order is significant
// because it determines the part names (face_0.jpg, face_1.jpg, ...) on upload.
type Buffer struct {
	mu      sync.RWMutex
	entries []Entry
	limit   int
}

// NewBuffer creates an empty buffer. A limit of 0 means unlimited.
func NewBuffer(limit int) *Buffer {
	return &Buffer{limit: limit}
}

// Append adds an encoded still to the end of the buffer and returns its entry.
func (b *Buffer) Append(data []byte) (Entry, error) {
	if len(data) == 0 {
		return Entry{}, ErrEmptyImage
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.limit > 0 && len(b.entries) >= b.limit {
		return Entry{}, fmt.Errorf("%w (limit %d)", ErrBufferFull, b.limit)
	}

	e := Entry{
		ID:         uuid.NewString(),
		CapturedAt: time.Now(),
		Size:       len(data),
		Data:       data,
	}
	b.entries = append(b.entries, e)
	return e, nil
}

// Remove deletes the entry at index, keeping the relative order of the rest.
func (b *Buffer) Remove(index int) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if index < 0 || index >= len(b.entries) {
		return fmt.Errorf("%w: %d (len %d)", ErrIndexOutOfRange, index, len(b.entries))
	}

	copy(b.entries[index:], b.entries[index+1:])
	b.entries[len(b.entries)-1] = Entry{}
	b.entries = b.entries[:len(b.entries)-1]
	return nil
}

// Get returns the entry at index.
func (b *Buffer) Get(index int) (Entry, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if index < 0 || index >= len(b.entries) {
		return Entry{}, fmt.Errorf("%w: %d (len %d)", ErrIndexOutOfRange, index, len(b.entries))
	}
	return b.entries[index], nil
}

// Clear empties the buffer.
func (b *Buffer) Clear() {
	b.mu.Lock()
	b.entries = nil
	b.mu.Unlock()
}

// Len returns the number of buffered stills.
func (b *Buffer) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.entries)
}

// Entries returns a copy of the buffered entries in order.
func (b *Buffer) Entries() []Entry {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]Entry, len(b.entries))
	copy(out, b.entries)
	return out
}

// Images returns the encoded stills in order.
func (b *Buffer) Images() [][]byte {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([][]byte, len(b.entries))
	for i, e := range b.entries {
		out[i] = e.Data
	}
	return out
}

// CanRegister reports whether the buffer holds at least threshold stills.
func (b *Buffer) CanRegister(threshold int) bool {
	return b.Len() >= threshold
}
