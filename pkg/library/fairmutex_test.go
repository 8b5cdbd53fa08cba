package library

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestFairRWMutexAllowsConcurrentReaders(t *testing.T) {
	m := newFairRWMutex()
	var active int32
	var maxSeen int32
	var wg sync.WaitGroup

	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.RLock()
			n := atomic.AddInt32(&active, 1)
			for {
				old := atomic.LoadInt32(&maxSeen)
				if n <= old || atomic.CompareAndSwapInt32(&maxSeen, old, n) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			atomic.AddInt32(&active, -1)
			m.RUnlock()
		}()
	}
	wg.Wait()
	require.Greater(t, atomic.LoadInt32(&maxSeen), int32(1))
}

func TestFairRWMutexWriterExcludesReaders(t *testing.T) {
	m := newFairRWMutex()
	var active int32

	m.Lock()
	done := make(chan struct{})
	go func() {
		m.RLock()
		atomic.AddInt32(&active, 1)
		m.RUnlock()
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	require.Equal(t, int32(0), atomic.LoadInt32(&active))
	m.Unlock()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("reader never acquired lock after writer released it")
	}
}

func TestFairRWMutexWriterDoesNotStarve(t *testing.T) {
	m := newFairRWMutex()
	stop := make(chan struct{})
	var readerCount int64

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				m.RLock()
				atomic.AddInt64(&readerCount, 1)
				time.Sleep(time.Millisecond)
				m.RUnlock()
			}
		}()
	}

	writerDone := make(chan struct{})
	go func() {
		m.Lock()
		m.Unlock()
		close(writerDone)
	}()

	select {
	case <-writerDone:
	case <-time.After(2 * time.Second):
		t.Fatal("writer starved by continuous readers")
	}
	close(stop)
	wg.Wait()
	require.Greater(t, atomic.LoadInt64(&readerCount), int64(0))
}
