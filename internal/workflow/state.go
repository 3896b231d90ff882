package workflow

import (
	"context"
	"sort"
	"sync"
)

type busyFlag int

const (
	flagMetadata busyFlag = iota
	flagCover
	flagSubmit
	flagPoll
	flagCount
)

func (f busyFlag) String() string {
	switch f {
	case flagMetadata:
		return "metadata"
	case flagCover:
		return "cover"
	case flagSubmit:
		return "submit"
	case flagPoll:
		return "poll"
	default:
		return "unknown"
	}
}

// sessionState is the in-memory concurrency record for one serviced session.
type sessionState struct {
	id     string
	ctx    context.Context
	cancel context.CancelFunc
	busy   [flagCount]bool
}

// SchedulerState owns the per-session busy flags and cancellation contexts.
// Records are created the first time a session is seen and destroyed when it
// leaves the serviced set or closes.
type SchedulerState struct {
	mu       sync.Mutex
	sessions map[string]*sessionState
}

// NewSchedulerState returns an empty state.
func NewSchedulerState() *SchedulerState {
	return &SchedulerState{sessions: make(map[string]*sessionState)}
}

func (s *SchedulerState) ensure(parent context.Context, id string) *sessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	if st, ok := s.sessions[id]; ok {
		return st
	}
	ctx, cancel := context.WithCancel(parent)
	st := &sessionState{id: id, ctx: ctx, cancel: cancel}
	s.sessions[id] = st
	return st
}

// acquire sets flag f on st if it is clear and st is still tracked.
func (s *SchedulerState) acquire(st *sessionState, f busyFlag) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if st.busy[f] || st.ctx.Err() != nil {
		return false
	}
	st.busy[f] = true
	return true
}

// release clears flag f on st. Releasing on a discarded record is harmless:
// a replacement record for the same session id is never touched.
func (s *SchedulerState) release(st *sessionState, f busyFlag) {
	s.mu.Lock()
	st.busy[f] = false
	s.mu.Unlock()
}

// discard cancels and forgets the session. It reports whether a record existed.
func (s *SchedulerState) discard(id string) bool {
	s.mu.Lock()
	st, ok := s.sessions[id]
	delete(s.sessions, id)
	s.mu.Unlock()
	if ok {
		st.cancel()
	}
	return ok
}

func (s *SchedulerState) discardAll() {
	for _, id := range s.Tracked() {
		s.discard(id)
	}
}

// Tracked returns the ids of sessions with a live record, sorted.
func (s *SchedulerState) Tracked() []string {
	s.mu.Lock()
	ids := make([]string, 0, len(s.sessions))
	for id := range s.sessions {
		ids = append(ids, id)
	}
	s.mu.Unlock()
	sort.Strings(ids)
	return ids
}

// Busy returns the names of the flags currently held for a session.
func (s *SchedulerState) Busy(id string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.sessions[id]
	if !ok {
		return nil
	}
	var out []string
	for f := busyFlag(0); f < flagCount; f++ {
		if st.busy[f] {
			out = append(out, f.String())
		}
	}
	return out
}
