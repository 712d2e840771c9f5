package keylock

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSameKeySerializes(t *testing.T) {
	kl := New()

	var wg sync.WaitGroup
	counter := 0
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := kl.Lock("loan:1")
			defer unlock()
			counter++
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, counter)
}

func TestDifferentKeysDoNotBlock(t *testing.T) {
	kl := New()

	unlockA := kl.Lock("loan:1")
	defer unlockA()

	done := make(chan struct{})
	go func() {
		unlockB := kl.Lock("loan:2")
		unlockB()
		close(done)
	}()

	<-done
}

func TestEntriesAreReclaimed(t *testing.T) {
	kl := New()

	unlock := kl.Lock("member:9")
	unlock()

	kl.mu.Lock()
	defer kl.mu.Unlock()
	assert.Empty(t, kl.locks)
}
