// Package store holds the in-memory shared state of the pipeline: buffered
// audio per source and accumulated transcript text per meeting. Both stores
// sit between an independent producer and a polling consumer, so every
// mutating operation is a short critical section and drains are atomic
// read-and-clear.
package store

import (
	"sync"
)

// AudioBufferStore keeps ordered raw PCM chunks per source key. The media
// feed appends, the transcription tick drains.
type AudioBufferStore struct {
	mu      sync.Mutex
	buffers map[string][][]byte
}

// NewAudioBufferStore creates an empty store
func NewAudioBufferStore() *AudioBufferStore {
	return &AudioBufferStore{
		buffers: make(map[string][][]byte),
	}
}

// Append adds a chunk to the tail of the buffer for key, creating the buffer
// if absent. The chunk is copied so the caller may reuse its slice.
func (s *AudioBufferStore) Append(key string, chunk []byte) {
	if len(chunk) == 0 {
		return
	}
	owned := make([]byte, len(chunk))
	copy(owned, chunk)

	s.mu.Lock()
	s.buffers[key] = append(s.buffers[key], owned)
	s.mu.Unlock()
}

// DrainAll atomically concatenates and clears all chunks for key, preserving
// append order. Returns nil when nothing was buffered.
func (s *AudioBufferStore) DrainAll(key string) []byte {
	s.mu.Lock()
	chunks := s.buffers[key]
	delete(s.buffers, key)
	s.mu.Unlock()

	if len(chunks) == 0 {
		return nil
	}

	total := 0
	for _, c := range chunks {
		total += len(c)
	}
	combined := make([]byte, 0, total)
	for _, c := range chunks {
		combined = append(combined, c...)
	}
	return combined
}

// HasData reports whether any chunks are buffered for key.
func (s *AudioBufferStore) HasData(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.buffers[key]) > 0
}

// Remove discards all buffered data for key. Appends arriving afterwards
// recreate the buffer; the final Remove at teardown cleans that up too.
func (s *AudioBufferStore) Remove(key string) {
	s.mu.Lock()
	delete(s.buffers, key)
	s.mu.Unlock()
}

// Len returns the number of keys currently holding data.
func (s *AudioBufferStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.buffers)
}
