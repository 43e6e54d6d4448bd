// Package audiostore keeps the per-chunk synthesis outcomes of one document.
package audiostore

import (
	"fmt"
	"sync"
)

// Result is one encoded chunk of narration.
type Result struct {
	Audio      []byte  `json:"-"`
	Format     string  `json:"format"`
	SampleRate int     `json:"sample_rate"`
	Channels   int     `json:"channels"`
	Duration   float64 `json:"duration_seconds"`
}

// SlotState describes a slot without copying its audio.
type SlotState struct {
	Index   int     `json:"index"`
	Ready   bool    `json:"ready"`
	Failure string  `json:"failure,omitempty"`
	Result  *Result `json:"result,omitempty"`
}

// IndexError reports an access outside the current slot range.
type IndexError struct {
	Index int
	Len   int
}

func (e *IndexError) Error() string {
	return fmt.Sprintf("chunk index %d out of range [0,%d)", e.Index, e.Len)
}

type slot struct {
	result  *Result
	failure string
}

// Store maps chunk index to a result or an absence marker. It is safe for
// concurrent use.
type Store struct {
	mu    sync.RWMutex
	slots []slot
}

func New() *Store {
	return &Store{}
}

// Reset clears the store to n absent slots.
func (s *Store) Reset(n int) {
	if n < 0 {
		n = 0
	}
	s.mu.Lock()
	s.slots = make([]slot, n)
	s.mu.Unlock()
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.slots)
}

// Set overwrites slot i with r.
func (s *Store) Set(i int, r Result) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(i); err != nil {
		return err
	}
	s.slots[i] = slot{result: &r}
	return nil
}

// MarkFailed clears slot i and records why it has no audio.
func (s *Store) MarkFailed(i int, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(i); err != nil {
		return err
	}
	s.slots[i] = slot{failure: reason}
	return nil
}

// Get returns slot i. ok is false when the slot is absent.
func (s *Store) Get(i int) (r Result, ok bool, err error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.check(i); err != nil {
		return Result{}, false, err
	}
	if s.slots[i].result == nil {
		return Result{}, false, nil
	}
	return *s.slots[i].result, true, nil
}

// CompletedCount returns the number of slots holding audio.
func (s *Store) CompletedCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, sl := range s.slots {
		if sl.result != nil {
			n++
		}
	}
	return n
}

func (s *Store) Snapshot() []SlotState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]SlotState, len(s.slots))
	for i, sl := range s.slots {
		st := SlotState{Index: i, Ready: sl.result != nil, Failure: sl.failure}
		if sl.result != nil {
			meta := *sl.result
			meta.Audio = nil
			st.Result = &meta
		}
		out[i] = st
	}
	return out
}

func (s *Store) check(i int) error {
	if i < 0 || i >= len(s.slots) {
		return &IndexError{Index: i, Len: len(s.slots)}
	}
	return nil
}
