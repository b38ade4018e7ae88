// Package registry implements the append-only CID store shared by the wasm
// guest and the in-process fallback.
//
// The store lives only as long as the module instance that owns it. Nothing is
// persisted; a reload starts from an empty store.
package registry

import (
	"sync"
	"unicode/utf8"
)

// Store is an ordered, append-only list of opaque CID strings.
// Entries are never removed or mutated, so an index stays valid for the
// lifetime of the store. Every method holds the lock for its full duration.
type Store struct {
	mu      sync.Mutex
	entries []string
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{}
}

// Submit appends data as a new entry and returns its zero-based index.
// The bytes are copied; the caller may reuse data after Submit returns.
func (s *Store) Submit(data []byte) (uint32, error) {
	if len(data) == 0 {
		return 0, ErrInvalidArgument
	}
	if !utf8.Valid(data) {
		return 0, ErrInvalidEncoding
	}

	cid := string(data)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries = append(s.entries, cid)
	return uint32(len(s.entries) - 1), nil
}

// Count returns the number of stored entries.
func (s *Store) Count() uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()

	return uint32(len(s.entries))
}

// Read copies the entry at index into dst and returns the number of bytes
// written. Nothing is written unless the whole entry fits.
func (s *Store) Read(index uint32, dst []byte) (int, error) {
	if len(dst) == 0 {
		return 0, ErrInvalidArgument
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if int(index) >= len(s.entries) {
		return 0, ErrNotFound
	}

	cid := s.entries[index]
	if len(cid) > len(dst) {
		return 0, ErrBufferTooSmall
	}

	return copy(dst, cid), nil
}

// Len returns the byte length of the entry at index.
func (s *Store) Len(index uint32) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if int(index) >= len(s.entries) {
		return 0, ErrNotFound
	}
	return len(s.entries[index]), nil
}
