package library

import "sync"

// fairRWMutex is a write-preferring reader-writer lock: once a writer is
// waiting, later-arriving readers queue behind it instead of joining the
// active read phase. Plain sync.RWMutex makes no such promise and can
// starve a writer indefinitely under a steady stream of readers; §5
// requires writers not starve, so this hand-rolled lock backs every
// library container instead.
type fairRWMutex struct {
	mu             sync.Mutex
	cond           *sync.Cond
	activeReaders  int
	activeWriter   bool
	waitingWriters int
}

func newFairRWMutex() *fairRWMutex {
	m := &fairRWMutex{}
	m.cond = sync.NewCond(&m.mu)
	return m
}

// RLock blocks until no writer holds or is waiting for the lock.
func (m *fairRWMutex) RLock() {
	m.mu.Lock()
	for m.activeWriter || m.waitingWriters > 0 {
		m.cond.Wait()
	}
	m.activeReaders++
	m.mu.Unlock()
}

// RUnlock releases a reader's hold.
func (m *fairRWMutex) RUnlock() {
	m.mu.Lock()
	m.activeReaders--
	if m.activeReaders == 0 {
		m.cond.Broadcast()
	}
	m.mu.Unlock()
}

// Lock blocks until no reader or writer holds the lock, registering as a
// waiting writer immediately so new readers queue behind it.
func (m *fairRWMutex) Lock() {
	m.mu.Lock()
	m.waitingWriters++
	for m.activeWriter || m.activeReaders > 0 {
		m.cond.Wait()
	}
	m.waitingWriters--
	m.activeWriter = true
	m.mu.Unlock()
}

// Unlock releases the writer's hold.
func (m *fairRWMutex) Unlock() {
	m.mu.Lock()
	m.activeWriter = false
	m.cond.Broadcast()
	m.mu.Unlock()
}
