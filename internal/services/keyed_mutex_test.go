package services

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKeyedMutexSerializesPerKey(t *testing.T) {
	km := newKeyedMutex()

	var inSection int
	var maxSeen int
	var mu sync.Mutex

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			km.Lock("key")
			mu.Lock()
			inSection++
			if inSection > maxSeen {
				maxSeen = inSection
			}
			mu.Unlock()

			mu.Lock()
			inSection--
			mu.Unlock()
			km.Unlock("key")
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, maxSeen)
	assert.Empty(t, km.entries)
}

func TestKeyedMutexIndependentKeys(t *testing.T) {
	km := newKeyedMutex()

	km.Lock("a")
	done := make(chan struct{})
	go func() {
		km.Lock("b")
		km.Unlock("b")
		close(done)
	}()
	<-done
	km.Unlock("a")

	assert.Empty(t, km.entries)
}

// A queued waiter must keep waiting on the same entry the holder releases,
// even when other goroutines churn the entry for the same key in between.
func TestKeyedMutexWaitersSurviveRelease(t *testing.T) {
	km := newKeyedMutex()

	var wg sync.WaitGroup
	var order []int
	var mu sync.Mutex
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			km.Lock("key")
			mu.Lock()
			order = append(order, id)
			mu.Unlock()
			km.Unlock("key")
		}(i)
	}
	wg.Wait()

	assert.Len(t, order, 3)
	assert.Empty(t, km.entries)
}
