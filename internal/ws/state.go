// Package ws holds low-level websocket session primitives shared by the
// streaming layer.
package ws

import "sync/atomic"

// SessionState represents the current lifecycle state of a streaming session.
type SessionState int32

// Session states for the streaming lifecycle.
const (
	// StateDisconnected indicates no connection exists and none is in progress.
	StateDisconnected SessionState = iota
	// StateConnecting indicates a dial attempt is in flight.
	StateConnecting
	// StateConnected indicates the transport is up but not yet usable.
	StateConnected
	// StateAuthenticating indicates a session token is being obtained.
	StateAuthenticating
	// StateReady indicates the session accepts subscriptions and requests.
	StateReady
	// StateClosing indicates a deliberate shutdown is in progress.
	StateClosing
)

// String returns the string representation of the session state.
func (s SessionState) String() string {
	return [...]string{
		"disconnected",
		"connecting",
		"connected",
		"authenticating",
		"ready",
		"closing",
	}[s]
}

// State provides thread-safe atomic access to a SessionState value.
type State struct {
	state atomic.Int32
}

// Load returns the current session state.
func (s *State) Load() SessionState {
	return SessionState(s.state.Load())
}

// Store sets the session state to the given value.
func (s *State) Store(state SessionState) {
	s.state.Store(int32(state))
}

// CompareAndSwap atomically compares the current state with old and swaps to
// new if equal. It returns true if the swap was performed.
func (s *State) CompareAndSwap(old, new SessionState) bool {
	return s.state.CompareAndSwap(int32(old), int32(new))
}
