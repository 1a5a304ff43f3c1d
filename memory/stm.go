package memory

import "sync"

// DefaultSTMCapacity bounds the short-term buffer when no capacity is given.
const DefaultSTMCapacity = 20

// STM is a bounded FIFO buffer of recent messages for one session. When full,
// appending evicts the oldest message. All methods are safe for concurrent
// use, though the turn loop serializes writers per session.
type STM struct {
	mu       sync.Mutex
	capacity int
	msgs     []Message
}

// NewSTM creates a short-term buffer holding at most capacity messages.
func NewSTM(capacity int) *STM {
	if capacity <= 0 {
		capacity = DefaultSTMCapacity
	}
	return &STM{
		capacity: capacity,
		msgs:     make([]Message, 0, capacity),
	}
}

// Append adds msg to the buffer, evicting the oldest message when full.
func (s *STM) Append(msg Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.msgs) == s.capacity {
		copy(s.msgs, s.msgs[1:])
		s.msgs = s.msgs[:len(s.msgs)-1]
	}
	s.msgs = append(s.msgs, msg)
}

// Recent returns up to k of the newest messages in chronological order. A
// non-positive k returns the whole buffer. The result is a copy.
func (s *STM) Recent(k int) []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	if k <= 0 || k > len(s.msgs) {
		k = len(s.msgs)
	}
	out := make([]Message, k)
	copy(out, s.msgs[len(s.msgs)-k:])
	return out
}

// Len reports the number of buffered messages.
func (s *STM) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.msgs)
}

// Clear discards all buffered messages.
func (s *STM) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.msgs = s.msgs[:0]
}
