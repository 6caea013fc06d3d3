package fixsession

import (
	"container/list"
	"sync"
	"time"

	"truex-mm/internal/fixcodec"
)

// sentEntry is one stored outbound message, kept for resend reconstruction.
type sentEntry struct {
	seq      int
	header   fixcodec.Header
	body     *fixcodec.Fields
	rawGroup []byte
	raw      []byte
	storedAt time.Time
}

// sentStore is the single-writer, FIFO-evicted record of every outbound
// application message, keyed by sequence number. It backs ResendRequest
// reconstruction: entries are kept until size or age eviction removes them.
// An ordered list gives O(1) eviction of the head, per the "owned indices"
// design note.
type sentStore struct {
	mu        sync.Mutex
	order     *list.List // of seq (int), oldest at Front
	positions map[int]*list.Element
	entries   map[int]sentEntry
	maxSize   int
	retention time.Duration
}

func newSentStore(maxSize int, retention time.Duration) *sentStore {
	return &sentStore{
		order:     list.New(),
		positions: make(map[int]*list.Element),
		entries:   make(map[int]sentEntry),
		maxSize:   maxSize,
		retention: retention,
	}
}

// put records an outbound message and evicts the oldest entry if the store
// now exceeds maxSize.
func (s *sentStore) put(e sentEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.entries[e.seq]; !exists {
		elem := s.order.PushBack(e.seq)
		s.positions[e.seq] = elem
	}
	s.entries[e.seq] = e

	for s.order.Len() > s.maxSize {
		s.evictOldestLocked()
	}
}

// get returns the stored entry for seq, if present.
func (s *sentStore) get(seq int) (sentEntry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[seq]
	return e, ok
}

// evictExpired removes every entry older than retention. Invoked by the
// periodic cleanup task and on disconnect.
func (s *sentStore) evictExpired(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for {
		front := s.order.Front()
		if front == nil {
			return
		}
		seq := front.Value.(int)
		e, ok := s.entries[seq]
		if !ok || now.Sub(e.storedAt) <= s.retention {
			return
		}
		s.evictOldestLocked()
	}
}

func (s *sentStore) evictOldestLocked() {
	front := s.order.Front()
	if front == nil {
		return
	}
	seq := front.Value.(int)
	s.order.Remove(front)
	delete(s.positions, seq)
	delete(s.entries, seq)
}

// clear empties the store. Called on reconnect since a fresh Logon with
// ResetSeqNumFlag invalidates every previously stored sequence number.
func (s *sentStore) clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.order.Init()
	s.positions = make(map[int]*list.Element)
	s.entries = make(map[int]sentEntry)
}

// size reports the current entry count, for tests and diagnostics.
func (s *sentStore) size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.order.Len()
}
