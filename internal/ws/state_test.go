package ws

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStateDefaultsToDisconnected(t *testing.T) {
	var s State
	assert.Equal(t, StateDisconnected, s.Load())
}

func TestStateStoreAndLoad(t *testing.T) {
	var s State
	s.Store(StateReady)
	assert.Equal(t, StateReady, s.Load())
}

func TestStateCompareAndSwap(t *testing.T) {
	var s State
	s.Store(StateConnecting)

	assert.True(t, s.CompareAndSwap(StateConnecting, StateConnected))
	assert.Equal(t, StateConnected, s.Load())

	assert.False(t, s.CompareAndSwap(StateConnecting, StateReady))
	assert.Equal(t, StateConnected, s.Load())
}

func TestStateCompareAndSwapSingleWinner(t *testing.T) {
	var s State
	s.Store(StateConnected)

	var wg sync.WaitGroup
	wins := make(chan struct{}, 16)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if s.CompareAndSwap(StateConnected, StateAuthenticating) {
				wins <- struct{}{}
			}
		}()
	}
	wg.Wait()
	close(wins)

	count := 0
	for range wins {
		count++
	}
	assert.Equal(t, 1, count)
	assert.Equal(t, StateAuthenticating, s.Load())
}

func TestSessionStateString(t *testing.T) {
	cases := map[SessionState]string{
		StateDisconnected:   "disconnected",
		StateConnecting:     "connecting",
		StateConnected:      "connected",
		StateAuthenticating: "authenticating",
		StateReady:          "ready",
		StateClosing:        "closing",
	}
	for state, want := range cases {
		assert.Equal(t, want, state.String())
	}
}
