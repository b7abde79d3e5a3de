package pvpgrid

import (
	"sync"
	"time"
)

// WaitingEntry is a handle seeking a match.
type WaitingEntry struct {
	Handle
	QueuedAt time.Time
}

// WaitingQueue is a FIFO of waiting handles plus the per-identity debounce clock.
type WaitingQueue struct {
	mu       sync.Mutex
	entries  []WaitingEntry
	accepted map[string]time.Time // identity -> last accepted request
	window   time.Duration
}

func NewWaitingQueue(debounce time.Duration) *WaitingQueue {
	return &WaitingQueue{accepted: make(map[string]time.Time), window: debounce}
}

// Admit records a matchmaking request for identity and reports whether it
// falls outside the debounce window of the previous accepted one.
func (q *WaitingQueue) Admit(identity string, now time.Time) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if last, ok := q.accepted[identity]; ok && now.Sub(last) < q.window {
		return false
	}
	q.accepted[identity] = now
	if len(q.accepted) > 1024 {
		for id, at := range q.accepted {
			if now.Sub(at) >= q.window {
				delete(q.accepted, id)
			}
		}
	}
	return true
}

// Contains reports whether h is already waiting. With perConn only the
// connection is compared, which lets one identity queue from two connections.
func (q *WaitingQueue) Contains(h Handle, perConn bool) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, e := range q.entries {
		if e.ConnID == h.ConnID {
			return true
		}
		if !perConn && e.Identity == h.Identity {
			return true
		}
	}
	return false
}

func (q *WaitingQueue) Push(h Handle, now time.Time) {
	q.mu.Lock()
	q.entries = append(q.entries, WaitingEntry{Handle: h, QueuedAt: now})
	q.mu.Unlock()
}

// PopPair removes and returns the two oldest entries once at least two wait.
func (q *WaitingQueue) PopPair() ([2]WaitingEntry, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	var pair [2]WaitingEntry
	if len(q.entries) < 2 {
		return pair, false
	}
	pair[0], pair[1] = q.entries[0], q.entries[1]
	q.entries = append(q.entries[:0:0], q.entries[2:]...)
	return pair, true
}

// RemoveConn drops the entry held by connID.
func (q *WaitingQueue) RemoveConn(connID string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i, e := range q.entries {
		if e.ConnID == connID {
			q.entries = append(q.entries[:i], q.entries[i+1:]...)
			return true
		}
	}
	return false
}

func (q *WaitingQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}

// Entries returns a copy in arrival order.
func (q *WaitingQueue) Entries() []WaitingEntry {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]WaitingEntry(nil), q.entries...)
}
