package acs

import "sync"

// ActiveCall tracks an answered call for the lifetime of its meeting.
type ActiveCall struct {
	CallConnectionID string
	ServerCallID     string
	CallerPhone      string
}

// CallRegistry maps call connection IDs to active calls.
type CallRegistry struct {
	mu    sync.RWMutex
	calls map[string]*ActiveCall
}

func NewCallRegistry() *CallRegistry {
	return &CallRegistry{calls: make(map[string]*ActiveCall)}
}

func (r *CallRegistry) Add(call *ActiveCall) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls[call.CallConnectionID] = call
}

func (r *CallRegistry) Get(callConnectionID string) (*ActiveCall, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	call, ok := r.calls[callConnectionID]
	return call, ok
}

func (r *CallRegistry) Remove(callConnectionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.calls, callConnectionID)
}

func (r *CallRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.calls)
}
