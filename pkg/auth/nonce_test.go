package auth

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNonceSource_StrictlyIncreasing(t *testing.T) {
	src := NewNonceSource()

	var last uint64
	for i := 0; i < 1000; i++ {
		n := src.Next()
		assert.Greater(t, n, last, "nonce %d must exceed previous", i)
		last = n
	}
}

func TestNonceSource_SeededFromTime(t *testing.T) {
	src := NewNonceSource()

	before := uint64(time.Now().UnixMicro())
	n := src.Next()
	assert.GreaterOrEqual(t, n, before)
}

func TestNonceSource_UniqueAcrossGoroutines(t *testing.T) {
	src := NewNonceSource()

	const workers = 8
	const perWorker = 1000

	results := make(chan uint64, workers*perWorker)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perWorker; j++ {
				results <- src.Next()
			}
		}()
	}
	wg.Wait()
	close(results)

	seen := make(map[uint64]bool, workers*perWorker)
	for n := range results {
		assert.False(t, seen[n], "nonce %d issued twice", n)
		seen[n] = true
	}
	assert.Len(t, seen, workers*perWorker)
}

func TestForKey_SharedPerCredential(t *testing.T) {
	a := ForKey("key-a")
	b := ForKey("key-a")
	c := ForKey("key-b")

	assert.Same(t, a, b)
	assert.NotSame(t, a, c)

	n1 := a.Next()
	n2 := b.Next()
	assert.Greater(t, n2, n1, "shared source must continue the sequence")
}
